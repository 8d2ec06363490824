package models

import (
	"time"
)

// Driver is a person who performs missions through the mobile API.
type Driver struct {
	ID           int64     `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Phone        string    `bson:"phone" json:"phone"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	IsActive     bool      `bson:"is_active" json:"is_active"`
	FCMToken     string    `bson:"fcm_token,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// DriverSession is what an authenticated driver request carries.
type DriverSession struct {
	DriverID int64
	IsActive bool
}

// CreateDriverRequest is the dispatcher payload for onboarding a driver.
type CreateDriverRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Phone    string `json:"phone" validate:"required,min=6,max=20"`
	Password string `json:"password" validate:"required,min=8"`
}

// DriverLoginRequest represents a driver login from the mobile app
type DriverLoginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateFCMTokenRequest registers the device push token of a driver.
type UpdateFCMTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

package models

import (
	"time"
)

// Car represents a fleet vehicle that missions and daily checks refer to.
type Car struct {
	ID          int64     `bson:"_id" json:"id"`
	PlateNumber string    `bson:"plate_number" json:"plate_number"`
	Make        string    `bson:"make" json:"make"`
	Model       string    `bson:"model" json:"model"`
	Year        int       `bson:"year" json:"year"`
	IsActive    bool      `bson:"is_active" json:"is_active"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// CreateCarRequest is the dispatcher payload for registering a car.
type CreateCarRequest struct {
	PlateNumber string `json:"plate_number" validate:"required,max=20"`
	Make        string `json:"make" validate:"max=50"`
	Model       string `json:"model" validate:"max=50"`
	Year        int    `json:"year" validate:"omitempty,gte=1950,lte=2100"`
}

package models

import (
	"time"
)

// VehicleInspection is a driver's daily vehicle check.
type VehicleInspection struct {
	ID        int64              `bson:"_id" json:"id"`
	DriverID  int64              `bson:"driver_id" json:"driver_id"`
	CarID     *int64             `bson:"car_id" json:"car_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	Metadata  InspectionMetadata `bson:"metadata" json:"metadata"`
}

// InspectionRequest is the driver payload for a daily check.
type InspectionRequest struct {
	CarID    *int64             `json:"car_id" validate:"omitempty,gt=0"`
	Metadata InspectionMetadata `json:"metadata"`
}

// InspectionFilter narrows inspection listings.
type InspectionFilter struct {
	DriverID *int64
	From     *time.Time
	To       *time.Time
	Limit    int
}

package models

import (
	"time"
)

// MissionStatus is the lifecycle state of a delivery mission.
type MissionStatus string

const (
	MissionUnassigned MissionStatus = "unassigned"
	MissionWaiting    MissionStatus = "waiting"
	MissionInProgress MissionStatus = "in_progress"
	MissionCompleted  MissionStatus = "completed"
	MissionProblem    MissionStatus = "problem"
)

// MissionStatuses lists every status in lifecycle order.
var MissionStatuses = []MissionStatus{
	MissionUnassigned,
	MissionWaiting,
	MissionInProgress,
	MissionCompleted,
	MissionProblem,
}

// Valid checks if a status is one of the known lifecycle states
func (s MissionStatus) Valid() bool {
	switch s {
	case MissionUnassigned, MissionWaiting, MissionInProgress, MissionCompleted, MissionProblem:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition may leave this status.
func (s MissionStatus) Terminal() bool {
	return s == MissionCompleted
}

// Mission represents a delivery assigned to a driver and a car.
type Mission struct {
	ID           int64           `json:"id" bson:"_id"`
	Reference    string          `json:"reference" bson:"reference"`
	ClientName   string          `json:"client_name" bson:"client_name"`
	Address      string          `json:"address" bson:"address"`
	Notes        string          `json:"notes" bson:"notes"`
	Status       MissionStatus   `json:"status" bson:"status"`
	DriverID     *int64          `json:"driver_id" bson:"driver_id"`
	CarID        *int64          `json:"car_id" bson:"car_id"`
	DateExpected time.Time       `json:"date_expected" bson:"date_expected"`
	CompletedAt  *time.Time      `json:"completed_at" bson:"completed_at"`
	Metadata     MissionMetadata `json:"metadata" bson:"metadata"`
	CreatedAt    time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" bson:"updated_at"`
}

// Assigned reports whether a driver or a car is attached to the mission.
func (m *Mission) Assigned() bool {
	return m.DriverID != nil || m.CarID != nil
}

// OwnedBy reports whether the mission is assigned to the given driver.
func (m *Mission) OwnedBy(driverID int64) bool {
	return m.DriverID != nil && *m.DriverID == driverID
}

// CreateMissionRequest is the dispatcher payload for a new mission.
type CreateMissionRequest struct {
	Reference    string    `json:"reference" validate:"required,max=64"`
	ClientName   string    `json:"client_name" validate:"max=200"`
	Address      string    `json:"address" validate:"required,max=500"`
	Notes        string    `json:"notes" validate:"max=2000"`
	DriverID     *int64    `json:"driver_id" validate:"omitempty,gt=0"`
	CarID        *int64    `json:"car_id" validate:"omitempty,gt=0"`
	DateExpected time.Time `json:"date_expected" validate:"required"`
}

// UpdateMissionRequest is a dispatcher edit. Nil fields are left untouched.
type UpdateMissionRequest struct {
	Reference     *string        `json:"reference" validate:"omitempty,max=64"`
	ClientName    *string        `json:"client_name" validate:"omitempty,max=200"`
	Address       *string        `json:"address" validate:"omitempty,max=500"`
	Notes         *string        `json:"notes" validate:"omitempty,max=2000"`
	DriverID      *int64         `json:"driver_id" validate:"omitempty,gte=0"`
	CarID         *int64         `json:"car_id" validate:"omitempty,gte=0"`
	DateExpected  *time.Time     `json:"date_expected"`
	Status        *MissionStatus `json:"status"`
	FailureReason *string        `json:"failure_reason"`
}

// CompletionRequest is the driver payload that closes a mission.
type CompletionRequest struct {
	DriverID          int64    `json:"driver_id"`
	CarID             *int64   `json:"car_id"`
	CertificateImages []string `json:"certificate_images"`
	PackageImages     []string `json:"package_images"`
}

// FailureRequest is the driver payload that reports a delivery problem.
// CarID is kept untyped so a non-numeric value can be rejected explicitly.
type FailureRequest struct {
	CarID      any       `json:"car_id"`
	Reason     string    `json:"reason"`
	Images     []string  `json:"failure_images"`
	Location   *Location `json:"failure_location"`
	Reported   *bool     `json:"reported"`
	ReportedTo *string   `json:"reported_to"`
}

// MissionFilter narrows mission listings.
// From and To bound date_expected; CompletedFrom bounds completed_at.
type MissionFilter struct {
	Statuses      []MissionStatus
	DriverID      *int64
	CarID         *int64
	From          *time.Time
	To            *time.Time
	CompletedFrom *time.Time
	Search        string
	SortBy        string // "date_expected", "created_at", "status", "reference"
	SortDesc      bool
	Page          int
	Limit         int
}

// Offset returns the number of rows to skip for the current page.
func (f MissionFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// MissionPage is one page of a filtered mission listing.
type MissionPage struct {
	Missions []Mission `json:"missions"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

// MissionEvent is published whenever a mission changes state.
type MissionEvent struct {
	MissionID int64         `json:"mission_id"`
	Status    MissionStatus `json:"status"`
	Previous  MissionStatus `json:"previous"`
	DriverID  *int64        `json:"driver_id"`
	Reason    string        `json:"reason,omitempty"`
	At        time.Time     `json:"at"`
}

// MissionOverview counts missions per status for the dashboard.
type MissionOverview struct {
	Counts map[MissionStatus]int64 `json:"counts"`
	Total  int64                   `json:"total"`
}

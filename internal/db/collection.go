package db

import (
	"context"
	"errors"
	"time"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

// ErrNotFound is returned by every store when a record does not exist.
var ErrNotFound = errors.New("record not found")

// MissionCollection defines the interface for mission data operations.
type MissionCollection interface {
	InsertMission(ctx context.Context, mission *models.Mission) error
	FindMissionByID(ctx context.Context, id int64) (*models.Mission, error)
	FindMissions(ctx context.Context, filter models.MissionFilter) ([]models.Mission, int64, error)
	UpdateMission(ctx context.Context, mission *models.Mission) error
	CountMissionsByStatus(ctx context.Context) (map[models.MissionStatus]int64, error)
}

// DriverCollection defines the interface for driver data operations.
type DriverCollection interface {
	InsertDriver(ctx context.Context, driver *models.Driver) error
	FindDriverByID(ctx context.Context, id int64) (*models.Driver, error)
	FindDriverByPhone(ctx context.Context, phone string) (*models.Driver, error)
	FindDrivers(ctx context.Context, activeOnly bool) ([]models.Driver, error)
	UpdateDriverFCMToken(ctx context.Context, id int64, token string) error
}

// CarCollection defines the interface for car data operations.
type CarCollection interface {
	InsertCar(ctx context.Context, car *models.Car) error
	FindCarByID(ctx context.Context, id int64) (*models.Car, error)
	FindCars(ctx context.Context) ([]models.Car, error)
}

// InspectionCollection defines the interface for daily check operations.
type InspectionCollection interface {
	InsertInspection(ctx context.Context, inspection *models.VehicleInspection) error
	FindInspections(ctx context.Context, filter models.InspectionFilter) ([]models.VehicleInspection, error)
	// LatestInspection returns the newest inspection of a driver created in
	// [from, to), or nil when there is none.
	LatestInspection(ctx context.Context, driverID int64, from, to time.Time) (*models.VehicleInspection, error)
}

// UserCollection defines the interface for dispatcher account operations.
type UserCollection interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id int64) error
}

// Store groups every collection the application needs.
type Store struct {
	Missions    MissionCollection
	Drivers     DriverCollection
	Cars        CarCollection
	Inspections InspectionCollection
	Users       UserCollection

	close func(ctx context.Context) error
}

// Close releases the underlying connection.
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 200
)

func normalizePage(f models.MissionFilter) models.MissionFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}
	return f
}

// sortField returns the requested sort key when it is one of the supported
// ones, and date_expected otherwise.
func sortField(f models.MissionFilter) string {
	switch f.SortBy {
	case "date_expected", "created_at", "status", "reference", "id":
		return f.SortBy
	default:
		return "date_expected"
	}
}

// Package mocks provides testify mocks of the db collection interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

// MissionCollection is a mock of db.MissionCollection.
type MissionCollection struct {
	mock.Mock
}

func (m *MissionCollection) InsertMission(ctx context.Context, mission *models.Mission) error {
	args := m.Called(ctx, mission)
	return args.Error(0)
}

func (m *MissionCollection) FindMissionByID(ctx context.Context, id int64) (*models.Mission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// hand out a copy so callers can't mutate the fixture
	mission := *args.Get(0).(*models.Mission)
	return &mission, args.Error(1)
}

func (m *MissionCollection) FindMissions(ctx context.Context, filter models.MissionFilter) ([]models.Mission, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Mission), args.Get(1).(int64), args.Error(2)
}

func (m *MissionCollection) UpdateMission(ctx context.Context, mission *models.Mission) error {
	args := m.Called(ctx, mission)
	return args.Error(0)
}

func (m *MissionCollection) CountMissionsByStatus(ctx context.Context) (map[models.MissionStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.MissionStatus]int64), args.Error(1)
}

// DriverCollection is a mock of db.DriverCollection.
type DriverCollection struct {
	mock.Mock
}

func (m *DriverCollection) InsertDriver(ctx context.Context, driver *models.Driver) error {
	args := m.Called(ctx, driver)
	return args.Error(0)
}

func (m *DriverCollection) FindDriverByID(ctx context.Context, id int64) (*models.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Driver), args.Error(1)
}

func (m *DriverCollection) FindDriverByPhone(ctx context.Context, phone string) (*models.Driver, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Driver), args.Error(1)
}

func (m *DriverCollection) FindDrivers(ctx context.Context, activeOnly bool) ([]models.Driver, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Driver), args.Error(1)
}

func (m *DriverCollection) UpdateDriverFCMToken(ctx context.Context, id int64, token string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

// CarCollection is a mock of db.CarCollection.
type CarCollection struct {
	mock.Mock
}

func (m *CarCollection) InsertCar(ctx context.Context, car *models.Car) error {
	args := m.Called(ctx, car)
	return args.Error(0)
}

func (m *CarCollection) FindCarByID(ctx context.Context, id int64) (*models.Car, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Car), args.Error(1)
}

func (m *CarCollection) FindCars(ctx context.Context) ([]models.Car, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Car), args.Error(1)
}

// InspectionCollection is a mock of db.InspectionCollection.
type InspectionCollection struct {
	mock.Mock
}

func (m *InspectionCollection) InsertInspection(ctx context.Context, inspection *models.VehicleInspection) error {
	args := m.Called(ctx, inspection)
	return args.Error(0)
}

func (m *InspectionCollection) FindInspections(ctx context.Context, filter models.InspectionFilter) ([]models.VehicleInspection, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VehicleInspection), args.Error(1)
}

func (m *InspectionCollection) LatestInspection(ctx context.Context, driverID int64, from, to time.Time) (*models.VehicleInspection, error) {
	args := m.Called(ctx, driverID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VehicleInspection), args.Error(1)
}

// UserCollection is a mock of db.UserCollection.
type UserCollection struct {
	mock.Mock
}

func (m *UserCollection) InsertUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserCollection) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserCollection) UpdateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserCollection) UpdateLastLogin(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

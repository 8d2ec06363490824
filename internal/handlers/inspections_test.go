package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-dispatch/internal/compliance"
	"github.com/ukydev/fleet-dispatch/internal/db/mocks"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

type inspectionFixture struct {
	inspections *mocks.InspectionCollection
	drivers     *mocks.DriverCollection
	handler     *InspectionHandler
	now         time.Time
}

func newInspectionFixture() *inspectionFixture {
	f := &inspectionFixture{
		inspections: new(mocks.InspectionCollection),
		drivers:     new(mocks.DriverCollection),
		now:         time.Date(2025, 3, 10, 6, 15, 0, 0, time.UTC),
	}
	evaluator := compliance.NewEvaluator(f.inspections, f.drivers, testZone,
		compliance.WithClock(func() time.Time { return f.now }))
	f.handler = NewInspectionHandler(f.inspections, evaluator, []string{"tires", "lights"})
	f.handler.now = func() time.Time { return f.now }
	return f
}

func TestInspectionHandler_Submit(t *testing.T) {
	t.Run("failed item makes it bad", func(t *testing.T) {
		f := newInspectionFixture()
		var stored *models.VehicleInspection
		f.inspections.On("InsertInspection", mock.Anything, mock.AnythingOfType("*models.VehicleInspection")).
			Run(func(args mock.Arguments) { stored = args.Get(1).(*models.VehicleInspection) }).
			Return(nil)

		body := `{"car_id": 3, "metadata": {"vehicleNumber": "12-345-67", "mileage": 1200, "checks": {"tires": false, "lights": true}, "status": "good"}}`
		w := httptest.NewRecorder()
		f.handler.Submit(w, asDriver(httptest.NewRequest(http.MethodPost, "/api/inspections", jsonBody(t, body)), 7))

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NotNil(t, stored)
		assert.Equal(t, int64(7), stored.DriverID)
		assert.Equal(t, models.InspectionBad, stored.Metadata.Status)
		assert.Equal(t, f.now, stored.CreatedAt)
		require.NotNil(t, stored.CarID)
		assert.Equal(t, int64(3), *stored.CarID)
	})

	t.Run("unanswered items stay good", func(t *testing.T) {
		f := newInspectionFixture()
		f.inspections.On("InsertInspection", mock.Anything, mock.MatchedBy(func(i *models.VehicleInspection) bool {
			return i.Metadata.Status == models.InspectionGood
		})).Return(nil)

		body := `{"metadata": {"vehicleNumber": "12-345-67", "checks": {"lights": true}}}`
		w := httptest.NewRecorder()
		f.handler.Submit(w, asDriver(httptest.NewRequest(http.MethodPost, "/api/inspections", jsonBody(t, body)), 7))

		assert.Equal(t, http.StatusCreated, w.Code)
		f.inspections.AssertExpectations(t)
	})

	t.Run("vehicle number required", func(t *testing.T) {
		f := newInspectionFixture()
		w := httptest.NewRecorder()
		f.handler.Submit(w, asDriver(httptest.NewRequest(http.MethodPost, "/api/inspections", jsonBody(t, `{"metadata": {}}`)), 7))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative mileage", func(t *testing.T) {
		f := newInspectionFixture()
		body := `{"metadata": {"vehicleNumber": "12-345-67", "mileage": -5}}`
		w := httptest.NewRecorder()
		f.handler.Submit(w, asDriver(httptest.NewRequest(http.MethodPost, "/api/inspections", jsonBody(t, body)), 7))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.inspections.AssertNotCalled(t, "InsertInspection", mock.Anything, mock.Anything)
	})
}

func TestInspectionHandler_Today(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		f := newInspectionFixture()
		start := time.Date(2025, 3, 10, 0, 0, 0, 0, testZone)
		latest := &models.VehicleInspection{
			ID:        11,
			DriverID:  7,
			CreatedAt: f.now,
			Metadata:  models.InspectionMetadata{VehicleNumber: "12-345-67", Status: models.InspectionGood},
		}
		f.inspections.On("LatestInspection", mock.Anything, int64(7), start, start.AddDate(0, 0, 1)).Return(latest, nil)

		w := httptest.NewRecorder()
		f.handler.Today(w, asDriver(httptest.NewRequest(http.MethodGet, "/api/inspections/today", nil), 7))

		require.Equal(t, http.StatusOK, w.Code)
		result := decode[compliance.DriverResult](t, w)
		assert.True(t, result.HasCompletedTodaysCheck)
		require.NotNil(t, result.LatestCheck)
		assert.Equal(t, int64(11), result.LatestCheck.ID)
	})

	t.Run("lookup failure", func(t *testing.T) {
		f := newInspectionFixture()
		f.inspections.On("LatestInspection", mock.Anything, int64(7), mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		w := httptest.NewRecorder()
		f.handler.Today(w, asDriver(httptest.NewRequest(http.MethodGet, "/api/inspections/today", nil), 7))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestInspectionHandler_List(t *testing.T) {
	f := newInspectionFixture()
	f.inspections.On("FindInspections", mock.Anything, mock.MatchedBy(func(filter models.InspectionFilter) bool {
		return filter.DriverID != nil && *filter.DriverID == 7 &&
			filter.To != nil && filter.To.Equal(time.Date(2025, 3, 11, 0, 0, 0, 0, testZone)) &&
			filter.Limit == defaultInspectionLimit
	})).Return(nil, nil)

	w := httptest.NewRecorder()
	f.handler.List(w, httptest.NewRequest(http.MethodGet, "/api/inspections?driver_id=7&to=2025-03-10", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"inspections": []}`, w.Body.String())
}

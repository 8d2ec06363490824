package mission

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/apperrors"
	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/metrics"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

// Publisher fans mission events out to other systems.
type Publisher interface {
	PublishMissionEvent(ctx context.Context, event models.MissionEvent) error
}

// Notifier pushes a message to the device of a driver.
type Notifier interface {
	NotifyAssignment(ctx context.Context, driver *models.Driver, mission *models.Mission) error
}

// Invalidator is implemented by caches that derive data from missions.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service loads missions, applies transitions, persists them and then runs the
// side effects. Side effect failures are logged and never fail the call.
type Service struct {
	missions  db.MissionCollection
	drivers   db.DriverCollection
	cars      db.CarCollection
	publisher Publisher
	notifier  Notifier
	caches    []Invalidator
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the mission event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithNotifier sets the driver push notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithInvalidator registers a cache to invalidate after every change.
func WithInvalidator(c Invalidator) Option {
	return func(s *Service) { s.caches = append(s.caches, c) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new mission service.
func NewService(missions db.MissionCollection, drivers db.DriverCollection, cars db.CarCollection, opts ...Option) *Service {
	s := &Service{
		missions: missions,
		drivers:  drivers,
		cars:     cars,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new mission after checking the referenced driver and car.
func (s *Service) Create(ctx context.Context, req models.CreateMissionRequest) (*models.Mission, error) {
	const op = "mission.Create"
	driver, err := s.checkRefs(ctx, op, req.DriverID, req.CarID)
	if err != nil {
		return nil, err
	}
	m := NewMission(req, s.now())
	if err := s.missions.InsertMission(ctx, &m); err != nil {
		return nil, apperrors.Upstream(op, err)
	}
	s.afterChange(ctx, &m, "", "")
	if driver != nil {
		s.notify(ctx, driver, &m)
	}
	return &m, nil
}

// Get returns one mission.
func (s *Service) Get(ctx context.Context, id int64) (*models.Mission, error) {
	return s.load(ctx, "mission.Get", id)
}

// List returns one page of missions matching the filter.
func (s *Service) List(ctx context.Context, filter models.MissionFilter) (*models.MissionPage, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.Validation("mission.List", "unknown status "+string(st))
		}
	}
	missions, total, err := s.missions.FindMissions(ctx, filter)
	if err != nil {
		return nil, apperrors.Upstream("mission.List", err)
	}
	if missions == nil {
		missions = []models.Mission{}
	}
	return &models.MissionPage{Missions: missions, Total: total, Page: max(filter.Page, 1), Limit: filter.Limit}, nil
}

// Overview counts missions per status.
func (s *Service) Overview(ctx context.Context) (models.MissionOverview, error) {
	counts, err := s.missions.CountMissionsByStatus(ctx)
	if err != nil {
		return models.MissionOverview{}, apperrors.Upstream("mission.Overview", err)
	}
	overview := models.MissionOverview{Counts: make(map[models.MissionStatus]int64, len(models.MissionStatuses))}
	for _, st := range models.MissionStatuses {
		overview.Counts[st] = counts[st]
		overview.Total += counts[st]
	}
	return overview, nil
}

// Update applies a dispatcher edit.
func (s *Service) Update(ctx context.Context, id int64, req models.UpdateMissionRequest) (*models.Mission, error) {
	const op = "mission.Update"
	driver, err := s.checkRefs(ctx, op, req.DriverID, req.CarID)
	if err != nil {
		return nil, err
	}
	var previousDriver *int64
	m, err := s.transition(ctx, op, id, func(m *models.Mission) error {
		previousDriver = m.DriverID
		return Update(m, req, s.now())
	})
	if err != nil {
		return nil, err
	}
	if driver != nil && (previousDriver == nil || *previousDriver != driver.ID) {
		s.notify(ctx, driver, m)
	}
	return m, nil
}

// Start begins a mission on behalf of its driver.
func (s *Service) Start(ctx context.Context, requester models.DriverSession, id int64) (*models.Mission, error) {
	if err := requireActive("mission.Start", requester); err != nil {
		return nil, err
	}
	return s.transition(ctx, "mission.Start", id, func(m *models.Mission) error {
		return Start(m, requester, s.now())
	})
}

// Complete closes a mission on behalf of its driver. A repeated completion
// keeps the stored completed_at.
func (s *Service) Complete(ctx context.Context, requester models.DriverSession, id int64, req models.CompletionRequest) (*models.Mission, error) {
	const op = "mission.Complete"
	if err := requireActive(op, requester); err != nil {
		return nil, err
	}
	if req.DriverID != requester.DriverID {
		return nil, apperrors.Validation(op, "driver_id does not match the authenticated driver")
	}
	return s.transition(ctx, op, id, func(m *models.Mission) error {
		return Complete(m, requester, req, s.now())
	})
}

// Fail reports a delivery problem on behalf of the mission's driver.
func (s *Service) Fail(ctx context.Context, requester models.DriverSession, id int64, req models.FailureRequest) (*models.Mission, error) {
	const op = "mission.Fail"
	if err := requireActive(op, requester); err != nil {
		return nil, err
	}
	return s.transition(ctx, op, id, func(m *models.Mission) error {
		return Fail(m, requester, req, s.now())
	})
}

// Owned returns a mission assigned to the requesting driver.
func (s *Service) Owned(ctx context.Context, requester models.DriverSession, id int64) (*models.Mission, error) {
	const op = "mission.Owned"
	if err := requireActive(op, requester); err != nil {
		return nil, err
	}
	m, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if !m.OwnedBy(requester.DriverID) {
		return nil, apperrors.Unauthorized(op, "mission is not assigned to this driver")
	}
	return m, nil
}

// ListForDriver returns the missions assigned to a driver that are not closed yet,
// plus the ones completed on or after since.
func (s *Service) ListForDriver(ctx context.Context, requester models.DriverSession, since time.Time) ([]models.Mission, error) {
	const op = "mission.ListForDriver"
	if err := requireActive(op, requester); err != nil {
		return nil, err
	}
	driverID := requester.DriverID
	open, _, err := s.missions.FindMissions(ctx, models.MissionFilter{
		DriverID: &driverID,
		Statuses: []models.MissionStatus{models.MissionWaiting, models.MissionInProgress, models.MissionProblem},
		SortBy:   "date_expected",
		Limit:    500,
	})
	if err != nil {
		return nil, apperrors.Upstream(op, err)
	}
	done, _, err := s.missions.FindMissions(ctx, models.MissionFilter{
		DriverID: &driverID,
		Statuses:      []models.MissionStatus{models.MissionCompleted},
		CompletedFrom: &since,
		SortBy:        "date_expected",
		Limit:         500,
	})
	if err != nil {
		return nil, apperrors.Upstream(op, err)
	}
	return append(append([]models.Mission{}, open...), done...), nil
}

func (s *Service) transition(ctx context.Context, op string, id int64, apply func(*models.Mission) error) (*models.Mission, error) {
	m, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	previous := m.Status
	if err := apply(m); err != nil {
		return nil, err
	}
	if err := s.missions.UpdateMission(ctx, m); err != nil {
		return nil, apperrors.Upstream(op, err)
	}
	reason := ""
	if m.Status == models.MissionProblem && m.Metadata.Failure != nil {
		reason = m.Metadata.Failure.Reason
	}
	s.afterChange(ctx, m, previous, reason)
	return m, nil
}

func (s *Service) load(ctx context.Context, op string, id int64) (*models.Mission, error) {
	m, err := s.missions.FindMissionByID(ctx, id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil, apperrors.NotFound(op, "mission not found")
	case err != nil:
		return nil, apperrors.Upstream(op, err)
	}
	return m, nil
}

// checkRefs verifies that a referenced driver and car exist and returns the driver.
func (s *Service) checkRefs(ctx context.Context, op string, driverID, carID *int64) (*models.Driver, error) {
	var driver *models.Driver
	if id := normalizeRef(driverID); id != nil {
		d, err := s.drivers.FindDriverByID(ctx, *id)
		switch {
		case errors.Is(err, db.ErrNotFound):
			return nil, apperrors.NotFound(op, "driver not found")
		case err != nil:
			return nil, apperrors.Upstream(op, err)
		case !d.IsActive:
			return nil, apperrors.Validation(op, "driver is not active")
		}
		driver = d
	}
	if id := normalizeRef(carID); id != nil {
		_, err := s.cars.FindCarByID(ctx, *id)
		switch {
		case errors.Is(err, db.ErrNotFound):
			return nil, apperrors.NotFound(op, "car not found")
		case err != nil:
			return nil, apperrors.Upstream(op, err)
		}
	}
	return driver, nil
}

func (s *Service) afterChange(ctx context.Context, m *models.Mission, previous models.MissionStatus, reason string) {
	if previous != m.Status {
		metrics.MissionTransitions.WithLabelValues(string(previous), string(m.Status)).Inc()
	}
	logger := log.WithFields(log.Fields{
		"mission_id": m.ID,
		"status":     m.Status,
		"previous":   previous,
	})
	logger.Info("Mission updated")

	if s.publisher != nil {
		event := models.MissionEvent{
			MissionID: m.ID,
			Status:    m.Status,
			Previous:  previous,
			DriverID:  m.DriverID,
			Reason:    reason,
			At:        m.UpdatedAt,
		}
		if err := s.publisher.PublishMissionEvent(ctx, event); err != nil {
			logger.WithError(err).Warn("Failed to publish mission event")
		}
	}
	for _, c := range s.caches {
		if err := c.Invalidate(ctx); err != nil {
			logger.WithError(err).Warn("Failed to refresh mission cache")
		}
	}
}

func (s *Service) notify(ctx context.Context, driver *models.Driver, m *models.Mission) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAssignment(ctx, driver, m); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"mission_id": m.ID,
			"driver_id":  driver.ID,
		}).Warn("Failed to notify driver")
	}
}

func requireActive(op string, requester models.DriverSession) error {
	if requester.DriverID <= 0 || !requester.IsActive {
		return apperrors.Unauthorized(op, "driver session is not active")
	}
	return nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-dispatch/internal/accounts"
	"github.com/ukydev/fleet-dispatch/internal/auth"
	"github.com/ukydev/fleet-dispatch/internal/cache"
	"github.com/ukydev/fleet-dispatch/internal/compliance"
	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/handlers"
	"github.com/ukydev/fleet-dispatch/internal/metrics"
	"github.com/ukydev/fleet-dispatch/internal/middleware"
	"github.com/ukydev/fleet-dispatch/internal/mission"
	"github.com/ukydev/fleet-dispatch/internal/models"
	"github.com/ukydev/fleet-dispatch/internal/storage"
)

type testEnv struct {
	handler  http.Handler
	auth     *auth.Service
	accounts *accounts.Service
	store    *db.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	metrics.Register()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := db.Open(context.Background(), "sqlite", "", "", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	authService := auth.NewService("routes-test", time.Hour)
	var missions *mission.Service
	overview := cache.New(func(ctx context.Context) (models.MissionOverview, error) {
		return missions.Overview(ctx)
	})
	t.Cleanup(overview.Close)
	missions = mission.NewService(store.Missions, store.Drivers, store.Cars, mission.WithInvalidator(overview))

	uploads, err := storage.NewLocalStore(t.TempDir(), uploadsPath)
	require.NoError(t, err)
	evaluator := compliance.NewEvaluator(store.Inspections, store.Drivers, time.UTC)
	accountService := accounts.NewService(authService, store.Users, store.Drivers)

	srv := &server{
		auth:        handlers.NewAuthHandler(authService, accountService, store.Users, store.Drivers),
		missions:    handlers.NewMissionHandler(missions, overview, time.UTC),
		driverApp:   handlers.NewDriverAppHandler(missions, store.Drivers, time.UTC),
		drivers:     handlers.NewDriverHandler(store.Drivers, accountService),
		inspections: handlers.NewInspectionHandler(store.Inspections, evaluator, nil),
		compliance:  handlers.NewComplianceHandler(evaluator),
		uploads:     handlers.NewUploadHandler(uploads, missions, time.Minute),
		authMW:      middleware.NewAuthMiddleware(authService, store.Drivers),
		rateLimit:   middleware.NewRateLimitMiddleware(),
	}
	return &testEnv{handler: srv.routes(), auth: authService, accounts: accountService, store: store}
}

func (e *testEnv) dispatcherToken(t *testing.T, role models.Role) string {
	t.Helper()
	token, err := e.auth.GenerateToken(&models.User{ID: 1, Username: "dispatcher", Role: role})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func TestRoutes_PublicEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Username: "nobody", Password: "password123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_RequireToken(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/missions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/missions", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_Permissions(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.dispatcherToken(t, models.RoleViewer)
	manager := env.dispatcherToken(t, models.RoleManager)

	body := map[string]any{"reference": "M-1", "address": "1 Harbour Rd", "date_expected": "2025-03-10T12:00:00Z"}

	w := env.do(t, http.MethodPost, "/api/missions", viewer, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/compliance/daily/export", viewer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/users", manager, models.RegisterRequest{
		Username: "newuser", Email: "new@example.com", Password: "password123", Role: models.RoleViewer,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/missions", manager, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/missions/overview", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var overview models.MissionOverview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &overview))
	assert.Equal(t, int64(1), overview.Total)
	assert.Equal(t, int64(1), overview.Counts[models.MissionUnassigned])
}

func TestRoutes_DriverFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.dispatcherToken(t, models.RoleAdmin)

	driver, err := env.accounts.CreateDriver(ctx, models.CreateDriverRequest{Name: "Noa", Phone: "0501234567", Password: "secret123"})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/driver/login", "", models.DriverLoginRequest{Phone: "0501234567", Password: "secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	driverToken := login.Token

	// a driver token never opens the dashboard, a dispatcher token never opens the app
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/missions", driverToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/driver/missions", admin, nil).Code)

	w = env.do(t, http.MethodPost, "/api/missions", admin, map[string]any{
		"reference":     "M-2",
		"address":       "2 Harbour Rd",
		"driver_id":     driver.ID,
		"date_expected": "2025-03-10T12:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Mission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.MissionWaiting, created.Status)

	base := fmt.Sprintf("/api/driver/missions/%d", created.ID)
	w = env.do(t, http.MethodPost, base+"/start", driverToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, base+"/complete", driverToken, map[string]any{
		"driver_id":          driver.ID,
		"certificate_images": []string{"missions/1/cert.jpg"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, base+"/fail", driverToken, map[string]any{"reason": "late", "car_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/driver/inspections", driverToken, map[string]any{
		"metadata": map[string]any{"vehicleNumber": "12-345-67", "checks": map[string]bool{"tires": true}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/driver/inspections/today", driverToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var today compliance.DriverResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &today))
	assert.True(t, today.HasCompletedTodaysCheck)
}

func TestRoutes_UnknownDriverIsRejected(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.auth.GenerateDriverToken(&models.Driver{ID: 99, Name: "Ghost"})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/driver/missions", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ukydev/fleet-dispatch/internal/handlers"
	"github.com/ukydev/fleet-dispatch/internal/middleware"
)

const (
	uploadsPath = "/uploads"

	rateLimitRequests = 300
	rateLimitWindow   = time.Minute
)

type server struct {
	auth        *handlers.AuthHandler
	missions    *handlers.MissionHandler
	driverApp   *handlers.DriverAppHandler
	drivers     *handlers.DriverHandler
	inspections *handlers.InspectionHandler
	compliance  *handlers.ComplianceHandler
	uploads     *handlers.UploadHandler
	authMW      *middleware.AuthMiddleware
	rateLimit   *middleware.RateLimitMiddleware
	files       http.Handler
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, middleware.Instrument(pattern, h))
	}
	dispatcher := func(action string, h http.HandlerFunc) http.Handler {
		return s.authMW.RequirePermission(action)(h)
	}
	driver := func(h http.HandlerFunc) http.Handler {
		return s.authMW.RequireDriver(h)
	}

	handle("GET /health", http.HandlerFunc(health))
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth
	handle("POST /api/auth/login", http.HandlerFunc(s.auth.Login))
	handle("POST /api/driver/login", http.HandlerFunc(s.auth.DriverLogin))
	handle("GET /api/auth/profile", http.HandlerFunc(s.auth.GetProfile))
	handle("PUT /api/auth/profile", http.HandlerFunc(s.auth.UpdateProfile))
	handle("POST /api/auth/change-password", http.HandlerFunc(s.auth.ChangePassword))
	handle("POST /api/users", dispatcher("manage_users", s.auth.CreateUser))

	// Dispatcher dashboard
	handle("GET /api/missions", dispatcher("view_missions", s.missions.List))
	handle("POST /api/missions", dispatcher("manage_missions", s.missions.Create))
	handle("GET /api/missions/overview", dispatcher("view_missions", s.missions.Overview))
	handle("GET /api/missions/export", dispatcher("view_missions", s.missions.Export))
	handle("GET /api/missions/{id}", dispatcher("view_missions", s.missions.Get))
	handle("PUT /api/missions/{id}", dispatcher("manage_missions", s.missions.Update))
	handle("GET /api/drivers", dispatcher("view_drivers", s.drivers.List))
	handle("POST /api/drivers", dispatcher("manage_drivers", s.drivers.Create))
	handle("GET /api/inspections", dispatcher("view_inspections", s.inspections.List))
	handle("GET /api/compliance/daily", dispatcher("view_compliance", s.compliance.Daily))
	handle("GET /api/compliance/daily/export", dispatcher("export_compliance", s.compliance.Export))

	// Driver app
	handle("GET /api/driver/missions", driver(s.driverApp.Missions))
	handle("POST /api/driver/missions/{id}/start", driver(s.driverApp.Start))
	handle("POST /api/driver/missions/{id}/complete", driver(s.driverApp.Complete))
	handle("POST /api/driver/missions/{id}/fail", driver(s.driverApp.Fail))
	handle("POST /api/driver/inspections", driver(s.inspections.Submit))
	handle("GET /api/driver/inspections/today", driver(s.inspections.Today))
	handle("POST /api/driver/uploads", driver(s.uploads.Upload))
	handle("POST /api/driver/uploads/presign", driver(s.uploads.Presign))
	handle("PUT /api/driver/fcm-token", driver(s.driverApp.UpdateFCMToken))

	if s.files != nil {
		handle("GET "+uploadsPath+"/", s.files)
	}

	var h http.Handler = mux
	h = s.authMW.Authenticate(h)
	h = s.rateLimit.RateLimit(rateLimitRequests, rateLimitWindow)(h)
	return middleware.RequestLogger(h)
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

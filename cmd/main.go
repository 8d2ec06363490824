package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/ukydev/fleet-dispatch/internal/accounts"
	"github.com/ukydev/fleet-dispatch/internal/auth"
	"github.com/ukydev/fleet-dispatch/internal/cache"
	"github.com/ukydev/fleet-dispatch/internal/compliance"
	"github.com/ukydev/fleet-dispatch/internal/config"
	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/events"
	"github.com/ukydev/fleet-dispatch/internal/handlers"
	"github.com/ukydev/fleet-dispatch/internal/jobs"
	"github.com/ukydev/fleet-dispatch/internal/logging"
	"github.com/ukydev/fleet-dispatch/internal/metrics"
	"github.com/ukydev/fleet-dispatch/internal/middleware"
	"github.com/ukydev/fleet-dispatch/internal/mission"
	"github.com/ukydev/fleet-dispatch/internal/models"
	"github.com/ukydev/fleet-dispatch/internal/notify"
	"github.com/ukydev/fleet-dispatch/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
	log.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := db.Open(ctx, cfg.DBDriver, cfg.MongoURI, cfg.MongoDB, cfg.SQLDSN)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.DBDriver, err)
	}
	defer store.Close(context.Background())
	log.WithField("driver", cfg.DBDriver).Info("Connected to database")

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set, using the development secret")
	}
	authService := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)

	var app *firebase.App
	if cfg.StorageDriver == "firebase" || cfg.FirebaseCredentials != "" {
		if app, err = newFirebaseApp(ctx, cfg); err != nil {
			return err
		}
	}

	var missions *mission.Service
	overview := cache.New(func(ctx context.Context) (models.MissionOverview, error) {
		return missions.Overview(ctx)
	})
	defer overview.Close()
	overview.Subscribe(metrics.ObserveOverview)

	opts := []mission.Option{mission.WithInvalidator(overview)}
	if cfg.MQTTBroker != "" {
		publisher, err := events.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
		if err != nil {
			log.WithError(err).WithField("broker", cfg.MQTTBroker).Warn("Mission events disabled")
		} else {
			defer publisher.Close()
			opts = append(opts, mission.WithPublisher(publisher))
		}
	}
	if app != nil {
		notifier, err := notify.NewFCMNotifier(ctx, app)
		if err != nil {
			return err
		}
		opts = append(opts, mission.WithNotifier(notifier))
	}
	missions = mission.NewService(store.Missions, store.Drivers, store.Cars, opts...)

	uploads, files, err := newUploadStore(ctx, cfg, app)
	if err != nil {
		return err
	}

	evaluator := compliance.NewEvaluator(store.Inspections, store.Drivers, cfg.Location,
		compliance.WithConcurrency(cfg.ComplianceConcurrency))
	job := jobs.NewComplianceJob(evaluator, cfg.ComplianceCron, cfg.Location)
	if err := job.Start(); err != nil {
		return err
	}
	defer job.Stop()

	accountService := accounts.NewService(authService, store.Users, store.Drivers)
	srv := &server{
		auth:        handlers.NewAuthHandler(authService, accountService, store.Users, store.Drivers),
		missions:    handlers.NewMissionHandler(missions, overview, cfg.Location),
		driverApp:   handlers.NewDriverAppHandler(missions, store.Drivers, cfg.Location),
		drivers:     handlers.NewDriverHandler(store.Drivers, accountService),
		inspections: handlers.NewInspectionHandler(store.Inspections, evaluator, mission.ParseCheckItems(cfg.InspectionCheckItems)),
		compliance:  handlers.NewComplianceHandler(evaluator),
		uploads:     handlers.NewUploadHandler(uploads, missions, cfg.UploadURLTTL),
		authMW:      middleware.NewAuthMiddleware(authService, store.Drivers),
		rateLimit:   middleware.NewRateLimitMiddleware(),
		files:       files,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func newFirebaseApp(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.FirebaseCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentials))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: cfg.StorageBucket}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	return app, nil
}

// newUploadStore returns the photo store and, for local disk, the handler
// that serves the stored files.
func newUploadStore(ctx context.Context, cfg *config.Config, app *firebase.App) (storage.Store, http.Handler, error) {
	if cfg.StorageDriver == "firebase" {
		store, err := storage.NewFirebaseStore(ctx, app, cfg.StorageBucket)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}

	store, err := storage.NewLocalStore(cfg.StorageDir, uploadsPath)
	if err != nil {
		return nil, nil, err
	}
	return store, http.StripPrefix(uploadsPath+"/", http.FileServer(http.Dir(cfg.StorageDir))), nil
}

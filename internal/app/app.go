package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"

	"visionqa/internal/config"
	"visionqa/internal/logger"
	"visionqa/internal/metrics"
	"visionqa/internal/repository/sqlite"
	"visionqa/internal/route"
	"visionqa/internal/service/ai"
	"visionqa/internal/service/ingest"
	"visionqa/internal/service/query"
	"visionqa/internal/service/storage"
	"visionqa/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

// App owns every long-lived component of the server.
type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	detector ai.Detector
	files    *storage.FileStore
	hub      *websocket.HubService
	engine   *query.Engine
	ingest   *ingest.Service
	metrics  *metrics.Metrics
}

// NewApp loads configuration and wires the store, detector and services.
func NewApp() (*App, error) {
	return New(config.Load())
}

// New wires an App from cfg. Components opened before a failure are closed.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &App{config: cfg, logger: log}
	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	cfg := a.config

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			SampleRate:       1.0,
			AttachStacktrace: true,
		}); err != nil {
			a.logger.Warning("Sentry disabled: %v", err)
		}
	}

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	a.metrics = m

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db

	files, err := storage.NewFileStore(cfg, a.logger)
	if err != nil {
		return err
	}
	a.files = files

	detector, err := ai.New(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize detector: %w", err)
	}
	a.detector = detector

	imageRepo := sqlite.NewImageRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	a.hub = websocket.NewHubService(m, a.logger)
	a.engine = query.NewEngine(cfg, imageRepo, detectionRepo, m, a.logger)
	a.ingest = ingest.NewService(cfg, files, detector, imageRepo, a.hub, a.engine, m, a.logger)
	return nil
}

// Handler builds the HTTP handler of the server.
func (a *App) Handler() http.Handler {
	return route.SetupRoutes(route.Services{
		Uploader: a.ingest,
		Engine:   a.engine,
		Files:    a.files,
		Feed:     a.hub,
		Detector: a.detector,
		Metrics:  a.metrics,
	}, a.config, a.logger)
}

// Run serves HTTP until ctx is cancelled, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("🚀 Image detection server")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("🗄️  Database: %s", a.config.DatabasePath)
	a.logger.Info("📁 Images: %s", a.config.StorageDirectory)
	a.logger.Info("🤖 Detector: %s", a.config.Detector)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.hub.Run(ctx)
	})

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the detector, the database and the log files.
func (a *App) Close() error {
	var errs []error
	if a.detector != nil {
		errs = append(errs, a.detector.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	sentry.Flush(2 * time.Second)
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}

package route

import (
	"net/http"

	"golang.org/x/time/rate"

	"visionqa/internal/config"
	"visionqa/internal/handler"
	"visionqa/internal/logger"
	"visionqa/internal/metrics"
	"visionqa/internal/middleware"
	"visionqa/internal/service/storage"
)

// Services groups everything the HTTP layer talks to.
type Services struct {
	Uploader handler.Uploader
	Engine   handler.ImageQuerier
	Files    *storage.FileStore
	Feed     handler.FeedHub
	Detector any // checked by /health when it implements handler.HealthChecker
	Metrics  *metrics.Metrics
}

// SetupRoutes registers the image API, file serving, the live feed and the
// operational endpoints, and wraps the mux with CORS and request logging.
// The log endpoints are only mounted when cfg.ExposeLogs is set.
func SetupRoutes(svc Services, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	limitUploads := middleware.RateLimit(rate.NewLimiter(rate.Limit(cfg.UploadRate), cfg.UploadBurst), logger)

	// Image API
	mux.Handle("POST /images", limitUploads(handler.UploadImageHandler(svc.Uploader, cfg, logger)))
	mux.HandleFunc("GET /images", handler.ListImagesHandler(svc.Engine, logger))
	mux.HandleFunc("GET /images/{id}", handler.GetImageHandler(svc.Engine, logger))
	mux.HandleFunc("GET /files/{ref}", handler.ViewPictureHandler(svc.Files))

	// Gallery helpers and live feed
	mux.HandleFunc("GET /api/tags", handler.TagsHandler(svc.Engine, logger))
	mux.HandleFunc("GET /api/stats", handler.StatsHandler(svc.Engine, logger))
	mux.HandleFunc("GET /api/feed", handler.FeedWebsocketHandler(svc.Feed, handler.NewUpgrader(cfg.CORSOrigins), logger))

	// Operations
	mux.HandleFunc("GET /health", handler.HealthHandler(svc.Detector, logger))
	mux.Handle("GET /metrics", svc.Metrics.Handler())
	if cfg.ExposeLogs {
		mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
		mux.HandleFunc("POST /logs/{level}/rotate", handler.RotateLogsHandler(logger))
	}

	return middleware.RequestLogger(logger)(middleware.CORS(cfg.CORSOrigins)(mux))
}

package handler

import (
	"context"
	"net/http"
	"time"

	"visionqa/internal/logger"
)

// HealthChecker is implemented by detectors that can check their backend.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthHandler answers {"status":"ok"} while the server is up. When the
// detector can be checked its state is reported as well; a failing detector
// does not fail the check.
func HealthHandler(detector any, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}

		if hc, ok := detector.(HealthChecker); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := hc.CheckHealth(ctx); err != nil {
				logger.Warning("Detector health check failed: %v", err)
				body["detector"] = "unavailable"
			} else {
				body["detector"] = "ok"
			}
		}

		writeJSON(w, http.StatusOK, body, logger)
	}
}

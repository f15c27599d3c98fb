package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"visionqa/internal/dto"
	"visionqa/internal/logger"
	"visionqa/internal/model"
)

// ImageQuerier is the read side used by the gallery handlers.
type ImageQuerier interface {
	List(ctx context.Context, filters dto.ImageFilters) ([]dto.ImageSummary, error)
	Get(ctx context.Context, id int64) (*dto.ImageDetail, error)
	Tags(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*model.ImageStats, error)
}

// Uploader runs the upload pipeline.
type Uploader interface {
	Upload(ctx context.Context, req dto.UploadRequest) (*dto.ImageDetail, error)
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// writeDetail sends {"detail": msg}.
func writeDetail(w http.ResponseWriter, status int, msg string, logger *logger.Logger) {
	writeJSON(w, status, dto.ErrorResponse{Detail: msg}, logger)
}

// writeError maps a domain error to its status code. Server-side failures are
// reported to Sentry and their cause is not exposed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *logger.Logger) {
	status := statusFor(err)
	msg := err.Error()

	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		msg = ve.Reason
	case status == http.StatusNotFound:
		msg = "Image not found"
	case status == http.StatusBadGateway:
		msg = "Detection failed"
	case status >= http.StatusInternalServerError:
		msg = "Internal Server Error"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
		reportError(r, err)
	}
	writeDetail(w, status, msg, logger)
}

func statusFor(err error) int {
	switch {
	case model.IsValidation(err):
		return http.StatusBadRequest
	case model.IsNotFound(err):
		return http.StatusNotFound
	case model.IsDetector(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// reportError sends err to Sentry; it is a no-op when Sentry is not initialised.
func reportError(r *http.Request, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("method", r.Method)
		scope.SetTag("path", r.URL.Path)
		scope.SetTag("component", "http")
		sentry.CaptureException(err)
	})
}

// Package ingest turns an uploaded image into a recorded image: it stores the
// bytes, runs the detector once and records the result atomically.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"slices"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"visionqa/internal/config"
	"visionqa/internal/dto"
	"visionqa/internal/logger"
	"visionqa/internal/metrics"
	"visionqa/internal/model"
	"visionqa/internal/repository"
	"visionqa/internal/service/ai"
	"visionqa/internal/service/storage"
)

// Broadcaster receives every recorded image.
type Broadcaster interface {
	BroadcastRecorded(detail *dto.ImageDetail)
}

// DetailCache is primed with the detail of every recorded image.
type DetailCache interface {
	Remember(detail *dto.ImageDetail)
}

// Service runs the upload pipeline.
type Service struct {
	files     *storage.FileStore
	detector  ai.Detector
	imageRepo repository.ImageRepository
	feed      Broadcaster
	cache     DetailCache
	baseURL   string
	metrics   *metrics.Metrics
	logger    *logger.Logger
	now       func() time.Time
}

// NewService wires the pipeline. feed and cache may be nil.
func NewService(cfg *config.Config, files *storage.FileStore, detector ai.Detector, imageRepo repository.ImageRepository,
	feed Broadcaster, cache DetailCache, m *metrics.Metrics, logger *logger.Logger) *Service {
	return &Service{
		files:     files,
		detector:  detector,
		imageRepo: imageRepo,
		feed:      feed,
		cache:     cache,
		baseURL:   cfg.PublicFilesURL,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Upload validates, stores, analyses and records one image. Nothing is
// recorded unless the detector and the store both succeed; the stored file
// is removed on every failure after it was written.
func (s *Service) Upload(ctx context.Context, req dto.UploadRequest) (*dto.ImageDetail, error) {
	if err := validateRequest(req); err != nil {
		s.metrics.UploadsTotal.WithLabelValues(metrics.UploadRejected).Inc()
		return nil, err
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(req.Data)); err != nil {
		s.metrics.UploadsTotal.WithLabelValues(metrics.UploadRejected).Inc()
		s.logger.Warning("Rejected upload %q: %v", req.Filename, err)
		return nil, model.NewValidationError("invalid or corrupt image")
	}

	ref, err := s.files.Save(req.Filename, req.Data)
	if err != nil {
		s.metrics.UploadsTotal.WithLabelValues(metrics.UploadStorage).Inc()
		s.logger.Error("Error saving upload %q: %v", req.Filename, err)
		return nil, &model.StorageError{Op: "save file", Err: err}
	}

	detections, err := s.detect(ctx, req)
	if err != nil {
		s.files.Remove(ref)
		s.metrics.UploadsTotal.WithLabelValues(metrics.UploadDetector).Inc()
		s.logger.Error("Detection failed for %s: %v", ref, err)
		return nil, err
	}

	img := model.NewImage{
		OriginalFilename: req.Filename,
		StoredRef:        ref,
		CreatedAt:        s.now().UTC(),
	}

	start := time.Now()
	id, err := s.imageRepo.Record(ctx, img, detections)
	s.metrics.RecordDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.files.Remove(ref)
		s.metrics.UploadsTotal.WithLabelValues(metrics.UploadStorage).Inc()
		s.logger.Error("Error recording image %s: %v", ref, err)
		return nil, err
	}

	detail := dto.NewImageDetail(model.Image{
		ID:               id,
		OriginalFilename: img.OriginalFilename,
		StoredRef:        img.StoredRef,
		CreatedAt:        img.CreatedAt,
	}, toDetections(id, detections), s.baseURL)

	s.metrics.UploadsTotal.WithLabelValues(metrics.UploadRecorded).Inc()
	s.metrics.DetectionsRecorded.Add(float64(len(detections)))
	s.logger.Info("Recorded image %d (%s) with %d detections, tags %v", id, ref, len(detections), detail.Tags)

	if s.cache != nil {
		s.cache.Remember(detail)
	}
	if s.feed != nil {
		s.feed.BroadcastRecorded(detail)
	}
	return detail, nil
}

func (s *Service) detect(ctx context.Context, req dto.UploadRequest) ([]model.RawDetection, error) {
	start := time.Now()
	detections, err := s.detector.Detect(ctx, req.Data, req.Threshold)
	s.metrics.DetectorDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &model.DetectorError{Err: err}
	}

	for i, d := range detections {
		if err := d.Validate(); err != nil {
			return nil, &model.DetectorError{Err: fmt.Errorf("detection %d: %w", i, err)}
		}
	}
	return detections, nil
}

func validateRequest(req dto.UploadRequest) error {
	if !strings.HasPrefix(req.ContentType, "image/") {
		return model.NewValidationError("file must be an image, got content type %q", req.ContentType)
	}
	if !ai.ValidThreshold(req.Threshold) {
		return model.NewValidationError("conf must be in (0, 1], got %v", req.Threshold)
	}
	if len(req.Data) == 0 {
		return model.NewValidationError("empty file")
	}
	return nil
}

// toDetections mirrors what the store returns for the recorded rows:
// confidence descending, ties in insertion order.
func toDetections(imageID int64, raw []model.RawDetection) []model.Detection {
	out := make([]model.Detection, 0, len(raw))
	for _, d := range raw {
		out = append(out, model.Detection{
			ImageID:    imageID,
			Label:      d.Label,
			Confidence: d.Confidence,
			Box:        d.Box,
		})
	}
	slices.SortStableFunc(out, func(a, b model.Detection) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	return out
}

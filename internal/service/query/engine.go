// Package query answers read requests over the detection store: recent
// images, images by tag, single image details and the label vocabulary.
package query

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"visionqa/internal/config"
	"visionqa/internal/dto"
	"visionqa/internal/logger"
	"visionqa/internal/metrics"
	"visionqa/internal/model"
	"visionqa/internal/repository"
)

// Engine serves list and detail queries. Recorded images never change, so
// details are cached by id once read.
type Engine struct {
	imageRepo     repository.ImageRepository
	detectionRepo repository.DetectionRepository
	baseURL       string
	details       *cache.Cache // nil when caching is disabled
	metrics       *metrics.Metrics
	logger        *logger.Logger
}

// NewEngine creates a query engine. A non-positive cfg.DetailCacheTTL disables the detail cache.
func NewEngine(cfg *config.Config, imageRepo repository.ImageRepository, detectionRepo repository.DetectionRepository,
	m *metrics.Metrics, logger *logger.Logger) *Engine {
	e := &Engine{
		imageRepo:     imageRepo,
		detectionRepo: detectionRepo,
		baseURL:       cfg.PublicFilesURL,
		metrics:       m,
		logger:        logger,
	}
	if cfg.DetailCacheTTL > 0 {
		e.details = cache.New(cfg.DetailCacheTTL, 2*cfg.DetailCacheTTL)
	}
	return e
}

// List returns up to filters.Limit image summaries, newest first. Without a
// tag every image qualifies and MinConfidence is not applied.
func (e *Engine) List(ctx context.Context, filters dto.ImageFilters) ([]dto.ImageSummary, error) {
	start := time.Now()
	defer e.metrics.ObserveQuery("list", start)

	if filters.Limit <= 0 {
		return []dto.ImageSummary{}, nil
	}

	var (
		images []model.Image
		err    error
		filter = "none"
	)
	if filters.HasTag() {
		filter = "tag"
		images, err = e.imageRepo.ListByTag(ctx, filters.Tag, filters.MinConfidence, filters.Limit)
	} else {
		images, err = e.imageRepo.ListRecent(ctx, filters.Limit)
	}
	if err != nil {
		e.logger.Error("Error listing images (tag=%q): %v", filters.Tag, err)
		return nil, err
	}

	items := make([]dto.ImageSummary, 0, len(images))
	for _, img := range images {
		items = append(items, dto.NewImageSummary(img, e.baseURL))
	}
	e.metrics.QueryResultSize.WithLabelValues(filter).Observe(float64(len(items)))
	return items, nil
}

// Get returns the image with its detections ordered by confidence and its
// sorted tag set. Unknown ids yield an error wrapping model.ErrNotFound.
func (e *Engine) Get(ctx context.Context, id int64) (*dto.ImageDetail, error) {
	start := time.Now()
	defer e.metrics.ObserveQuery("get", start)

	key := strconv.FormatInt(id, 10)
	if e.details != nil {
		if cached, ok := e.details.Get(key); ok {
			e.metrics.DetailCacheOperations.WithLabelValues("hit").Inc()
			return cached.(*dto.ImageDetail), nil
		}
		e.metrics.DetailCacheOperations.WithLabelValues("miss").Inc()
	}

	img, err := e.imageRepo.GetByID(ctx, id)
	if err != nil {
		if !model.IsNotFound(err) {
			e.logger.Error("Error loading image %d: %v", id, err)
		}
		return nil, err
	}

	detections, err := e.detectionRepo.GetByImageID(ctx, id)
	if err != nil {
		e.logger.Error("Error loading detections for image %d: %v", id, err)
		return nil, err
	}

	detail := dto.NewImageDetail(*img, detections, e.baseURL)
	e.Remember(detail)
	return detail, nil
}

// Remember puts a freshly built detail into the cache.
func (e *Engine) Remember(detail *dto.ImageDetail) {
	if e.details == nil || detail == nil {
		return
	}
	e.details.SetDefault(strconv.FormatInt(detail.ID, 10), detail)
}

// Tags returns every distinct label recorded so far, sorted.
func (e *Engine) Tags(ctx context.Context) ([]string, error) {
	start := time.Now()
	defer e.metrics.ObserveQuery("tags", start)

	labels, err := e.detectionRepo.GetAllLabels(ctx)
	if err != nil {
		e.logger.Error("Error loading labels: %v", err)
		return nil, err
	}
	return labels, nil
}

// Stats returns totals over the whole store.
func (e *Engine) Stats(ctx context.Context) (*model.ImageStats, error) {
	start := time.Now()
	defer e.metrics.ObserveQuery("stats", start)

	stats, err := e.imageRepo.Stats(ctx)
	if err != nil {
		e.logger.Error("Error computing statistics: %v", err)
		return nil, err
	}
	return stats, nil
}

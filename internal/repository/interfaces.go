package repository

import (
	"context"

	"visionqa/internal/model"
)

// ImageRepository defines the interface for image data operations.
type ImageRepository interface {
	// Record writes the image and all of its detections atomically and
	// returns the new image identifier.
	Record(ctx context.Context, img model.NewImage, detections []model.RawDetection) (int64, error)

	GetByID(ctx context.Context, id int64) (*model.Image, error)
	ListRecent(ctx context.Context, limit int) ([]model.Image, error)
	ListByTag(ctx context.Context, tag string, minConfidence float64, limit int) ([]model.Image, error)
	Stats(ctx context.Context) (*model.ImageStats, error)
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// GetByImageID returns detections ordered by confidence, highest first.
	GetByImageID(ctx context.Context, imageID int64) ([]model.Detection, error)
	GetAllLabels(ctx context.Context) ([]string, error)
}

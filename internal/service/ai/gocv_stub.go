//go:build !gocv
// +build !gocv

package ai

import (
	"context"
	"fmt"

	"visionqa/internal/config"
	"visionqa/internal/logger"
	"visionqa/internal/model"
)

// GoCVDetector is unavailable without the gocv build tag.
type GoCVDetector struct{}

// NewGoCVDetector fails when built without the gocv tag.
func NewGoCVDetector(cfg *config.Config, logger *logger.Logger) (*GoCVDetector, error) {
	return nil, fmt.Errorf("gocv build tag is not enabled: %w", ErrDetectorUnavailable)
}

// Detect always fails in this build.
func (d *GoCVDetector) Detect(ctx context.Context, image []byte, threshold float64) ([]model.RawDetection, error) {
	return nil, ErrDetectorUnavailable
}

// Close is a no-op.
func (d *GoCVDetector) Close() error {
	return nil
}

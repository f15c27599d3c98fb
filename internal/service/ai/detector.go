package ai

import (
	"context"
	"errors"
	"fmt"

	"visionqa/internal/config"
	"visionqa/internal/logger"
	"visionqa/internal/model"
)

// ErrDetectorUnavailable is returned by detectors that cannot run in this build.
var ErrDetectorUnavailable = errors.New("detector unavailable")

// Detector maps an encoded image and a confidence threshold to labelled
// boxes in absolute pixel coordinates. An empty result is valid.
type Detector interface {
	Detect(ctx context.Context, image []byte, threshold float64) ([]model.RawDetection, error)
	Close() error
}

// ValidThreshold reports whether t lies in (0, 1].
func ValidThreshold(t float64) bool {
	return t > 0 && t <= 1
}

// New builds the detector selected by cfg.Detector.
func New(cfg *config.Config, logger *logger.Logger) (Detector, error) {
	switch cfg.Detector {
	case config.DetectorRemote:
		return NewRemoteDetector(cfg, logger), nil
	case config.DetectorGoCV:
		d, err := NewGoCVDetector(cfg, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown detector %q", cfg.Detector)
	}
}

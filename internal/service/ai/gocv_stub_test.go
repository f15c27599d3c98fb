//go:build !gocv

package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"visionqa/internal/config"
	"visionqa/internal/logger"
)

func TestNew_GoCVWithoutBuildTag(t *testing.T) {
	d, err := New(&config.Config{Detector: config.DetectorGoCV}, logger.Discard())
	assert.ErrorIs(t, err, ErrDetectorUnavailable)
	assert.Nil(t, d)
}

package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionqa/internal/config"
)

func TestNewWithWriters_RoutesLevels(t *testing.T) {
	var info, warn, errb bytes.Buffer
	l := NewWithWriters(&info, &warn, &errb)

	l.Info("recorded image %d", 7)
	l.Warning("slow detector: %s", "2s")
	l.Error("commit failed: %v", "disk full")

	assert.Contains(t, info.String(), "INFO")
	assert.Contains(t, info.String(), "recorded image 7")
	assert.Contains(t, info.String(), "logger_test.go", "caller of Info is reported")
	assert.Contains(t, warn.String(), "slow detector: 2s")
	assert.Contains(t, errb.String(), "commit failed: disk full")
	assert.NotContains(t, info.String(), "commit failed")
}

func TestNewLogger_WritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	cfg := &config.Config{LogDirectory: dir, LogMaxSizeMB: 1, LogMaxBackups: 1}

	l, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.Equal(t, dir, l.Dir())

	l.Error("something broke")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, ErrorFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "something broke")
}

func TestRotate_UnknownFile(t *testing.T) {
	l := Discard()
	assert.Error(t, l.Rotate("debug.log"))
}

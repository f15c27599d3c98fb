package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionqa/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Port:              0,
		DatabasePath:      filepath.Join(dir, "data", "app.db"),
		StorageDirectory:  filepath.Join(dir, "storage"),
		PublicFilesURL:    "http://localhost/files/",
		Detector:          config.DetectorRemote,
		InferenceURL:      "http://127.0.0.1:1/predict",
		InferenceTimeout:  time.Second,
		DefaultConfidence: 0.35,
		MaxUploadBytes:    1 << 20,
		UploadRate:        5,
		UploadBurst:       10,
		DetailCacheTTL:    time.Minute,
		LogDirectory:      filepath.Join(dir, "logs"),
		LogMaxSizeMB:      1,
		LogMaxBackups:     1,
	}
}

func TestNew_ServesHandler(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/images", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestNew_UnknownDetector(t *testing.T) {
	cfg := testConfig(t)
	cfg.Detector = "magic"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

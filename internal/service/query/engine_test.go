package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionqa/internal/config"
	"visionqa/internal/dto"
	"visionqa/internal/logger"
	"visionqa/internal/metrics"
	"visionqa/internal/model"
	"visionqa/internal/repository"
	"visionqa/internal/repository/sqlite"
)

const baseURL = "http://localhost:8000/files/"

// countingImages counts calls reaching the image repository.
type countingImages struct {
	repository.ImageRepository
	calls int
}

func (c *countingImages) GetByID(ctx context.Context, id int64) (*model.Image, error) {
	c.calls++
	return c.ImageRepository.GetByID(ctx, id)
}

func (c *countingImages) ListRecent(ctx context.Context, limit int) ([]model.Image, error) {
	c.calls++
	return c.ImageRepository.ListRecent(ctx, limit)
}

func (c *countingImages) ListByTag(ctx context.Context, tag string, minConfidence float64, limit int) ([]model.Image, error) {
	c.calls++
	return c.ImageRepository.ListByTag(ctx, tag, minConfidence, limit)
}

type failingImages struct {
	repository.ImageRepository
}

func (failingImages) ListRecent(ctx context.Context, limit int) ([]model.Image, error) {
	return nil, &model.StorageError{Op: "list recent", Err: errors.New("disk I/O error")}
}

type fixture struct {
	engine  *Engine
	images  *countingImages
	metrics *metrics.Metrics
}

func setup(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "query.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m, err := metrics.New()
	require.NoError(t, err)

	images := &countingImages{ImageRepository: sqlite.NewImageRepository(db)}
	cfg := &config.Config{PublicFilesURL: baseURL, DetailCacheTTL: ttl}
	return &fixture{
		engine:  NewEngine(cfg, images, sqlite.NewDetectionRepository(db), m, logger.Discard()),
		images:  images,
		metrics: m,
	}
}

func (f *fixture) record(t *testing.T, ref string, dets ...model.RawDetection) int64 {
	t.Helper()
	id, err := f.images.Record(context.Background(), model.NewImage{
		OriginalFilename: ref,
		StoredRef:        ref,
		CreatedAt:        time.Now().UTC(),
	}, dets)
	require.NoError(t, err)
	return id
}

func raw(label string, conf float64) model.RawDetection {
	return model.RawDetection{Label: label, Confidence: conf, Box: model.BoundingBox{X2: 10, Y2: 10}}
}

func summaryIDs(items []dto.ImageSummary) []int64 {
	out := make([]int64, 0, len(items))
	for _, s := range items {
		out = append(out, s.ID)
	}
	return out
}

func TestEngine_Get_CatAndDog(t *testing.T) {
	f := setup(t, time.Minute)
	id := f.record(t, "a.jpg", raw("dog", 0.4), raw("cat", 0.9))

	detail, err := f.engine.Get(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, detail.ID)
	assert.Equal(t, "a.jpg", detail.OriginalFilename)
	assert.Equal(t, baseURL+"a.jpg", detail.URL)
	assert.Equal(t, []string{"cat", "dog"}, detail.Tags)
	require.Len(t, detail.Detections, 2)
	assert.Equal(t, "cat", detail.Detections[0].Label)
	assert.Equal(t, 0.9, detail.Detections[0].Confidence)
	assert.Equal(t, "dog", detail.Detections[1].Label)
}

func TestEngine_Get_NoDetections(t *testing.T) {
	f := setup(t, time.Minute)
	id := f.record(t, "empty.jpg")

	detail, err := f.engine.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, detail.Tags)
	assert.NotNil(t, detail.Tags)
	assert.Empty(t, detail.Detections)
}

func TestEngine_Get_NotFound(t *testing.T) {
	f := setup(t, time.Minute)

	_, err := f.engine.Get(context.Background(), 999)
	assert.True(t, model.IsNotFound(err))

	// Misses for unknown ids are not cached.
	f.record(t, "a.jpg")
	_, err = f.engine.Get(context.Background(), 999)
	assert.True(t, model.IsNotFound(err))
	assert.Equal(t, 2, f.images.calls)
}

func TestEngine_Get_UsesCache(t *testing.T) {
	f := setup(t, time.Minute)
	id := f.record(t, "a.jpg", raw("cat", 0.9))

	first, err := f.engine.Get(context.Background(), id)
	require.NoError(t, err)
	second, err := f.engine.Get(context.Background(), id)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, f.images.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DetailCacheOperations.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DetailCacheOperations.WithLabelValues("miss")))
}

func TestEngine_Get_CacheDisabled(t *testing.T) {
	f := setup(t, 0)
	id := f.record(t, "a.jpg")

	for range 3 {
		_, err := f.engine.Get(context.Background(), id)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.images.calls)
}

func TestEngine_Remember(t *testing.T) {
	f := setup(t, time.Minute)
	id := f.record(t, "a.jpg", raw("cat", 0.9))

	f.engine.Remember(&dto.ImageDetail{ImageSummary: dto.ImageSummary{ID: id}, Tags: []string{"cat"}})
	detail, err := f.engine.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, detail.Tags)
	assert.Zero(t, f.images.calls)
}

func TestEngine_List_Recent(t *testing.T) {
	f := setup(t, time.Minute)
	var want []int64
	for _, ref := range []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg"} {
		want = append([]int64{f.record(t, ref, raw("cat", 0.5))}, want...)
	}

	items, err := f.engine.List(context.Background(), dto.ImageFilters{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, want[:3], summaryIDs(items))
	assert.Equal(t, baseURL+"4.jpg", items[0].URL)

	items, err = f.engine.List(context.Background(), dto.ImageFilters{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, want, summaryIDs(items))
}

func TestEngine_List_MinConfidenceIgnoredWithoutTag(t *testing.T) {
	f := setup(t, time.Minute)
	f.record(t, "low.jpg", raw("cat", 0.1))
	f.record(t, "none.jpg")

	items, err := f.engine.List(context.Background(), dto.ImageFilters{MinConfidence: 0.99, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestEngine_List_NonPositiveLimit(t *testing.T) {
	f := setup(t, time.Minute)
	f.record(t, "a.jpg", raw("cat", 0.9))

	for _, limit := range []int{0, -5} {
		items, err := f.engine.List(context.Background(), dto.ImageFilters{Tag: "cat", Limit: limit})
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	}
	assert.Zero(t, f.images.calls)
}

func TestEngine_List_ByTag(t *testing.T) {
	f := setup(t, time.Minute)
	a := f.record(t, "a.jpg", raw("cat", 0.9), raw("dog", 0.4))
	b := f.record(t, "b.jpg", raw("dog", 0.8), raw("dog", 0.7))
	f.record(t, "c.jpg", raw("Dog", 0.95))
	f.record(t, "d.jpg")

	ctx := context.Background()

	items, err := f.engine.List(ctx, dto.ImageFilters{Tag: "dog", MinConfidence: 0.4, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, []int64{b, a}, summaryIDs(items), "each matching image once, newest first")

	items, err = f.engine.List(ctx, dto.ImageFilters{Tag: "dog", MinConfidence: 0.5, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, []int64{b}, summaryIDs(items))

	items, err = f.engine.List(ctx, dto.ImageFilters{Tag: "dog", MinConfidence: 0.4, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{b}, summaryIDs(items))

	items, err = f.engine.List(ctx, dto.ImageFilters{Tag: "unicorn", Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEngine_List_FilterSoundAndComplete(t *testing.T) {
	f := setup(t, time.Minute)
	dets := [][]model.RawDetection{
		{raw("cat", 0.2)},
		{raw("cat", 0.5), raw("cat", 0.1)},
		{raw("bird", 0.9)},
		{raw("cat", 0.35), raw("bird", 0.35)},
		{},
	}
	for i, d := range dets {
		f.record(t, string(rune('a'+i))+".jpg", d...)
	}

	ctx := context.Background()
	for _, minConf := range []float64{0, 0.2, 0.35, 0.5, 0.9} {
		items, err := f.engine.List(ctx, dto.ImageFilters{Tag: "cat", MinConfidence: minConf, Limit: 100})
		require.NoError(t, err)

		var want []int64
		for i := len(dets) - 1; i >= 0; i-- {
			for _, d := range dets[i] {
				if d.Label == "cat" && d.Confidence >= minConf {
					want = append(want, int64(i+1))
					break
				}
			}
		}
		if want == nil {
			want = []int64{}
		}
		assert.Equal(t, want, summaryIDs(items), "min_conf=%v", minConf)
	}
}

func TestEngine_List_StorageError(t *testing.T) {
	m, err := metrics.New()
	require.NoError(t, err)
	engine := NewEngine(&config.Config{}, failingImages{}, nil, m, logger.Discard())

	_, err = engine.List(context.Background(), dto.ImageFilters{Limit: 5})
	assert.True(t, model.IsStorage(err))
}

func TestEngine_TagsAndStats(t *testing.T) {
	f := setup(t, time.Minute)
	f.record(t, "a.jpg", raw("cat", 0.9), raw("dog", 0.4))
	f.record(t, "b.jpg", raw("bird", 0.6))
	f.record(t, "c.jpg")

	tags, err := f.engine.Tags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bird", "cat", "dog"}, tags)

	stats, err := f.engine.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalImages)
	assert.Equal(t, 3, stats.TotalDetections)
	assert.Equal(t, 1, stats.UntaggedImages)
}

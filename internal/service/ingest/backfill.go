package ingest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"visionqa/internal/dto"
)

// backfillTypes maps accepted file extensions to the content type used when
// sniffing the file contents gives nothing better.
var backfillTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// BackfillResult counts the outcome of a directory import.
type BackfillResult struct {
	Recorded int
	Failed   int
	Skipped  int
}

// Backfill uploads every image file of dir through the pipeline using at
// most workers concurrent uploads. A failing file is counted and logged; it
// does not stop the import. Cancelling ctx stops scheduling new files.
func (s *Service) Backfill(ctx context.Context, dir string, threshold float64, workers int) (BackfillResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("failed to read images directory: %w", err)
	}
	if workers < 1 {
		workers = 1
	}

	var recorded, failed atomic.Int64
	skipped := 0

	var g errgroup.Group
	g.SetLimit(workers)

	for _, entry := range entries {
		name := entry.Name()
		if _, ok := backfillTypes[strings.ToLower(filepath.Ext(name))]; entry.IsDir() || !ok {
			skipped++
			continue
		}
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := s.backfillFile(ctx, filepath.Join(dir, name), threshold); err != nil {
				s.logger.Warning("⚠️  Skipping %s: %v", name, err)
				failed.Add(1)
				return nil
			}
			recorded.Add(1)
			return nil
		})
	}

	g.Wait()

	result := BackfillResult{
		Recorded: int(recorded.Load()),
		Failed:   int(failed.Load()),
		Skipped:  skipped,
	}
	s.logger.Info("Backfill of %s finished: %d recorded, %d failed, %d skipped", dir, result.Recorded, result.Failed, result.Skipped)
	return result, ctx.Err()
}

func (s *Service) backfillFile(ctx context.Context, path string, threshold float64) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = backfillTypes[strings.ToLower(filepath.Ext(path))]
	}

	_, err = s.Upload(ctx, dto.UploadRequest{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Data:        data,
		Threshold:   threshold,
	})
	return err
}

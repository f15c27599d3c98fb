package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"visionqa/internal/model"
)

// timeLayout is how created_at is stored; fixed width keeps TEXT ordering chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ImageRepository implements repository.ImageRepository for SQLite.
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Record inserts the image row and then one row per detection inside a
// single transaction. Nothing is visible unless every insert succeeds.
func (r *ImageRepository) Record(ctx context.Context, img model.NewImage, detections []model.RawDetection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, &model.StorageError{Op: "record", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO images (original_filename, stored_ref, created_at)
		VALUES (?, ?, ?)
	`, nullString(img.OriginalFilename), img.StoredRef, img.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return 0, &model.StorageError{Op: "record", Err: fmt.Errorf("failed to insert image: %w", err)}
	}

	imageID, err := result.LastInsertId()
	if err != nil {
		return 0, &model.StorageError{Op: "record", Err: fmt.Errorf("failed to read image id: %w", err)}
	}

	if len(detections) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO detections (image_id, label, confidence, x1, y1, x2, y2)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return 0, &model.StorageError{Op: "record", Err: fmt.Errorf("failed to prepare statement: %w", err)}
		}
		defer stmt.Close()

		for i, det := range detections {
			b := det.Box
			if _, err := stmt.ExecContext(ctx, imageID, det.Label, det.Confidence, b.X1, b.Y1, b.X2, b.Y2); err != nil {
				return 0, &model.StorageError{Op: "record", Err: fmt.Errorf("failed to insert detection %d: %w", i, err)}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &model.StorageError{Op: "record", Err: fmt.Errorf("failed to commit: %w", err)}
	}

	return imageID, nil
}

// GetByID retrieves an image by its ID.
func (r *ImageRepository) GetByID(ctx context.Context, id int64) (*model.Image, error) {
	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, original_filename, stored_ref, created_at
		FROM images WHERE id = ?
	`, id)

	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("image %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, &model.StorageError{Op: "get image", Err: err}
	}
	return img, nil
}

// ListRecent returns the newest images, highest id first.
func (r *ImageRepository) ListRecent(ctx context.Context, limit int) ([]model.Image, error) {
	if limit <= 0 {
		return []model.Image{}, nil
	}
	return r.queryImages(ctx, "list images", `
		SELECT i.id, i.original_filename, i.stored_ref, i.created_at
		FROM images i
		ORDER BY i.id DESC
		LIMIT ?
	`, limit)
}

// ListByTag returns the newest images with at least one detection labelled
// tag at or above minConfidence. Each image appears once.
func (r *ImageRepository) ListByTag(ctx context.Context, tag string, minConfidence float64, limit int) ([]model.Image, error) {
	if limit <= 0 {
		return []model.Image{}, nil
	}
	return r.queryImages(ctx, "list images by tag", `
		SELECT i.id, i.original_filename, i.stored_ref, i.created_at
		FROM images i
		WHERE EXISTS (
			SELECT 1 FROM detections d
			WHERE d.image_id = i.id AND d.label = ? AND d.confidence >= ?
		)
		ORDER BY i.id DESC
		LIMIT ?
	`, tag, minConfidence, limit)
}

// Stats returns statistics about recorded images.
func (r *ImageRepository) Stats(ctx context.Context) (*model.ImageStats, error) {
	stats := &model.ImageStats{
		LabelCounts: make(map[string]int),
	}
	conn := r.db.Conn()

	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&stats.TotalImages); err != nil {
		return nil, &model.StorageError{Op: "stats", Err: err}
	}

	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM detections`).Scan(&stats.TotalDetections); err != nil {
		return nil, &model.StorageError{Op: "stats", Err: err}
	}

	if err := conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM images i
		WHERE NOT EXISTS (SELECT 1 FROM detections d WHERE d.image_id = i.id)
	`).Scan(&stats.UntaggedImages); err != nil {
		return nil, &model.StorageError{Op: "stats", Err: err}
	}

	// Most detected labels
	rows, err := conn.QueryContext(ctx, `
		SELECT label, COUNT(*) AS cnt
		FROM detections
		GROUP BY label
		ORDER BY cnt DESC, label
		LIMIT 10
	`)
	if err != nil {
		return nil, &model.StorageError{Op: "stats", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, &model.StorageError{Op: "stats", Err: err}
		}
		stats.LabelCounts[label] = count
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "stats", Err: err}
	}

	return stats, nil
}

func (r *ImageRepository) queryImages(ctx context.Context, op, query string, args ...any) ([]model.Image, error) {
	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &model.StorageError{Op: op, Err: fmt.Errorf("failed to query images: %w", err)}
	}
	defer rows.Close()

	images := []model.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, &model.StorageError{Op: op, Err: fmt.Errorf("failed to scan image: %w", err)}
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: op, Err: err}
	}

	return images, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(s rowScanner) (*model.Image, error) {
	var (
		img       model.Image
		filename  sql.NullString
		createdAt string
	)
	if err := s.Scan(&img.ID, &filename, &img.StoredRef, &createdAt); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	img.OriginalFilename = filename.String
	img.CreatedAt = ts.UTC()
	return &img, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package sqlite

import (
	"context"
	"fmt"

	"visionqa/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
// Detections are only written through ImageRepository.Record.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// GetByImageID retrieves all detections for an image, highest confidence
// first. Equal confidences keep insertion order.
func (r *DetectionRepository) GetByImageID(ctx context.Context, imageID int64) ([]model.Detection, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, image_id, label, confidence, x1, y1, x2, y2
		FROM detections WHERE image_id = ?
		ORDER BY confidence DESC, id ASC
	`, imageID)
	if err != nil {
		return nil, &model.StorageError{Op: "get detections", Err: fmt.Errorf("failed to query detections: %w", err)}
	}
	defer rows.Close()

	detections := []model.Detection{}
	for rows.Next() {
		var det model.Detection
		b := &det.Box
		if err := rows.Scan(&det.ID, &det.ImageID, &det.Label, &det.Confidence, &b.X1, &b.Y1, &b.X2, &b.Y2); err != nil {
			return nil, &model.StorageError{Op: "get detections", Err: fmt.Errorf("failed to scan detection: %w", err)}
		}
		detections = append(detections, det)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "get detections", Err: err}
	}

	return detections, nil
}

// GetAllLabels returns a list of all unique detected labels.
func (r *DetectionRepository) GetAllLabels(ctx context.Context) ([]string, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `SELECT DISTINCT label FROM detections ORDER BY label`)
	if err != nil {
		return nil, &model.StorageError{Op: "get labels", Err: fmt.Errorf("failed to query labels: %w", err)}
	}
	defer rows.Close()

	labels := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, &model.StorageError{Op: "get labels", Err: fmt.Errorf("failed to scan label: %w", err)}
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "get labels", Err: err}
	}

	return labels, nil
}

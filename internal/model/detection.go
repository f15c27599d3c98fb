package model

import (
	"fmt"
	"math"
	"slices"
)

// BoundingBox is an axis-aligned box in absolute pixel coordinates.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Detection represents a detected object persisted for an image.
type Detection struct {
	ID         int64       `json:"id"`
	ImageID    int64       `json:"image_id"`
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bbox"`
}

// RawDetection is a single result produced by a detector, before it is stored.
type RawDetection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bbox"`
}

// Validate checks the label, confidence range and box orientation.
func (d RawDetection) Validate() error {
	if d.Label == "" {
		return fmt.Errorf("detection label is empty")
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("detection %q: confidence %v outside [0,1]", d.Label, d.Confidence)
	}
	b := d.Box
	for _, v := range []float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("detection %q: box coordinate is not finite", d.Label)
		}
	}
	if b.X1 > b.X2 || b.Y1 > b.Y2 {
		return fmt.Errorf("detection %q: box corners out of order", d.Label)
	}
	return nil
}

// Tags returns the distinct labels of detections sorted lexicographically.
// The result is never nil.
func Tags(detections []Detection) []string {
	tags := make([]string, 0, len(detections))
	for _, d := range detections {
		tags = append(tags, d.Label)
	}
	slices.Sort(tags)
	return slices.Compact(tags)
}

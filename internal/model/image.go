package model

import "time"

// Image represents a recorded upload.
type Image struct {
	ID               int64     `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	StoredRef        string    `json:"stored_ref"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewImage holds the caller-supplied metadata of an image about to be recorded.
// An empty OriginalFilename means the client did not send one.
type NewImage struct {
	OriginalFilename string
	StoredRef        string
	CreatedAt        time.Time
}

// ImageStats contains statistics about recorded images.
type ImageStats struct {
	TotalImages     int            `json:"total_images"`
	TotalDetections int            `json:"total_detections"`
	UntaggedImages  int            `json:"untagged_images"`
	LabelCounts     map[string]int `json:"label_counts"`
}

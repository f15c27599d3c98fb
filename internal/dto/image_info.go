package dto

import (
	"encoding/json"
	"strings"
	"time"

	"visionqa/internal/model"
)

// ImageSummary is the list representation of a recorded image.
type ImageSummary struct {
	ID               int64     `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	URL              string    `json:"url"`
	CreatedAt        time.Time `json:"created_at"`
}

// MarshalJSON renders created_at in UTC and an absent filename as null.
func (s ImageSummary) MarshalJSON() ([]byte, error) {
	type Alias ImageSummary
	var filename *string
	if s.OriginalFilename != "" {
		filename = &s.OriginalFilename
	}
	return json.Marshal(&struct {
		OriginalFilename *string `json:"original_filename"`
		CreatedAt        string  `json:"created_at"`
		Alias
	}{
		OriginalFilename: filename,
		CreatedAt:        s.CreatedAt.UTC().Format(time.RFC3339Nano),
		Alias:            (Alias)(s),
	})
}

// DetectionInfo is a detection as exposed by the API.
type DetectionInfo struct {
	Label      string            `json:"label"`
	Confidence float64           `json:"confidence"`
	Box        model.BoundingBox `json:"bbox"`
}

// ImageDetail is a single image with its detections and derived tags.
type ImageDetail struct {
	ImageSummary
	Tags       []string        `json:"tags"`
	Detections []DetectionInfo `json:"detections"`
}

// MarshalJSON flattens the embedded summary next to tags and detections.
func (d ImageDetail) MarshalJSON() ([]byte, error) {
	summary, err := d.ImageSummary.MarshalJSON()
	if err != nil {
		return nil, err
	}
	extra, err := json.Marshal(&struct {
		Tags       []string        `json:"tags"`
		Detections []DetectionInfo `json:"detections"`
	}{
		Tags:       d.Tags,
		Detections: d.Detections,
	})
	if err != nil {
		return nil, err
	}
	// Both halves are JSON objects; splice them into one.
	out := make([]byte, 0, len(summary)+len(extra))
	out = append(out, summary[:len(summary)-1]...)
	out = append(out, ',')
	out = append(out, extra[1:]...)
	return out, nil
}

// FileURL joins the public files base and a stored reference.
func FileURL(base, ref string) string {
	if base == "" {
		return ref
	}
	return strings.TrimSuffix(base, "/") + "/" + ref
}

// NewImageSummary builds the summary of img with its access URL.
func NewImageSummary(img model.Image, baseURL string) ImageSummary {
	return ImageSummary{
		ID:               img.ID,
		OriginalFilename: img.OriginalFilename,
		URL:              FileURL(baseURL, img.StoredRef),
		CreatedAt:        img.CreatedAt,
	}
}

// NewImageDetail builds the detail view of img. Detections are expected in
// presentation order (confidence descending).
func NewImageDetail(img model.Image, detections []model.Detection, baseURL string) *ImageDetail {
	infos := make([]DetectionInfo, 0, len(detections))
	for _, d := range detections {
		infos = append(infos, DetectionInfo{
			Label:      d.Label,
			Confidence: d.Confidence,
			Box:        d.Box,
		})
	}
	return &ImageDetail{
		ImageSummary: NewImageSummary(img, baseURL),
		Tags:         model.Tags(detections),
		Detections:   infos,
	}
}

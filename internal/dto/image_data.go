package dto

// ImagesData is the response payload for the image list.
type ImagesData struct {
	Items []ImageSummary `json:"items"`
}

// TagsData lists every label ever recorded.
type TagsData struct {
	Tags []string `json:"tags"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// RecordedEvent is broadcast to feed viewers after an upload is recorded.
type RecordedEvent struct {
	Type  string       `json:"type"`
	Image *ImageDetail `json:"image"`
}

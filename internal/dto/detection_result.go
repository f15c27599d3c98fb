package dto

// UploadRequest carries an uploaded file into the ingest pipeline.
type UploadRequest struct {
	Filename    string
	ContentType string
	Data        []byte
	Threshold   float64
}

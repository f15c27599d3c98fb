package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"visionqa/internal/config"
	"visionqa/internal/logger"
	"visionqa/internal/model"
)

// RemoteDetector delegates inference to an HTTP model service.
type RemoteDetector struct {
	inferenceURL string
	client       *http.Client
	logger       *logger.Logger
}

// NewRemoteDetector creates a detector posting to cfg.InferenceURL.
func NewRemoteDetector(cfg *config.Config, logger *logger.Logger) *RemoteDetector {
	return &RemoteDetector{
		inferenceURL: cfg.InferenceURL,
		client:       &http.Client{Timeout: cfg.InferenceTimeout},
		logger:       logger,
	}
}

type remoteResponse struct {
	Detections []model.RawDetection `json:"detections"`
}

// Detect uploads the image as multipart form data and decodes the returned boxes.
func (d *RemoteDetector) Detect(ctx context.Context, image []byte, threshold float64) ([]model.RawDetection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(image)); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	target, err := url.Parse(d.inferenceURL)
	if err != nil {
		return nil, fmt.Errorf("parse inference url: %w", err)
	}
	q := target.Query()
	q.Set("conf", strconv.FormatFloat(threshold, 'f', -1, 64))
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// The service may ignore conf; enforce it here.
	detections := make([]model.RawDetection, 0, len(result.Detections))
	for _, det := range result.Detections {
		if det.Confidence >= threshold {
			detections = append(detections, det)
		}
	}
	if dropped := len(result.Detections) - len(detections); dropped > 0 {
		d.logger.Info("Dropped %d detections below threshold %.2f", dropped, threshold)
	}

	return detections, nil
}

// CheckHealth reports whether the inference service answers on /health.
func (d *RemoteDetector) CheckHealth(ctx context.Context) error {
	target, err := url.Parse(d.inferenceURL)
	if err != nil {
		return fmt.Errorf("parse inference url: %w", err)
	}
	target.Path = "/health"
	target.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

// Close drops idle connections to the inference service.
func (d *RemoteDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

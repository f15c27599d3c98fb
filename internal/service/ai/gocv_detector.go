//go:build gocv
// +build gocv

package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"visionqa/internal/config"
	"visionqa/internal/logger"
	"visionqa/internal/model"
)

// GoCVDetector runs an SSD MobileNet COCO graph through OpenCV's DNN module.
type GoCVDetector struct {
	net        gocv.Net
	modelPath  string
	configPath string
	logger     *logger.Logger
	mu         sync.Mutex // gocv.Net is not safe for concurrent Forward calls
}

// NewGoCVDetector loads the network from the configured model/config paths.
func NewGoCVDetector(cfg *config.Config, logger *logger.Logger) (*GoCVDetector, error) {
	d := &GoCVDetector{
		modelPath:  cfg.ModelPath,
		configPath: cfg.ConfigPath,
		logger:     logger,
	}

	if err := d.initializeNet(); err != nil {
		return nil, fmt.Errorf("could not initialize detection network: %w", err)
	}
	return d, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (d *GoCVDetector) initializeNet() error {
	if _, err := os.Stat(d.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", d.modelPath)
	}

	if _, err := os.Stat(d.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", d.configPath)
	}

	net := gocv.ReadNet(d.modelPath, d.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	d.net = net
	d.logger.Info("Detection network initialized from %s", d.modelPath)
	return nil
}

// Detect runs the network on the image and returns detections at or above threshold.
func (d *GoCVDetector) Detect(ctx context.Context, imageBytes []byte, threshold float64) ([]model.RawDetection, error) {
	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	// Blob parameters fit the SSD COCO network input.
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	width := float64(mat.Cols())
	height := float64(mat.Rows())
	results := []model.RawDetection{}

	// Each row: [batch_id, class_id, confidence, x1, y1, x2, y2], coordinates relative.
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()
	for i := 0; i < rows.Rows(); i++ {
		confidence := float64(rows.GetFloatAt(i, 2))
		if confidence < threshold {
			continue
		}

		x1 := clamp(float64(rows.GetFloatAt(i, 3)), 0, 1) * width
		y1 := clamp(float64(rows.GetFloatAt(i, 4)), 0, 1) * height
		x2 := clamp(float64(rows.GetFloatAt(i, 5)), 0, 1) * width
		y2 := clamp(float64(rows.GetFloatAt(i, 6)), 0, 1) * height
		if x2 < x1 {
			x1, x2 = x2, x1
		}
		if y2 < y1 {
			y1, y2 = y2, y1
		}

		results = append(results, model.RawDetection{
			Label:      classLabel(int(rows.GetFloatAt(i, 1))),
			Confidence: clamp(confidence, 0, 1),
			Box:        model.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
		})
	}

	return results, nil
}

// Close releases the network.
func (d *GoCVDetector) Close() error {
	return d.net.Close()
}

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"visionqa/internal/config"
	"visionqa/internal/logger"
)

// DefaultExtension is used when the uploaded filename carries none.
const DefaultExtension = ".jpg"

// FileStore persists uploaded image bytes under generated names. The
// generated name is the stored reference handed to the detection store.
type FileStore struct {
	dir    string
	logger *logger.Logger
}

// NewFileStore creates a FileStore rooted at the configured storage directory.
func NewFileStore(cfg *config.Config, logger *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(cfg.StorageDirectory, 0755); err != nil {
		return nil, fmt.Errorf("error creating storage directory: %w", err)
	}
	return &FileStore{dir: cfg.StorageDirectory, logger: logger}, nil
}

// Dir returns the directory holding stored files.
func (s *FileStore) Dir() string {
	return s.dir
}

// Save writes data under a fresh reference derived from originalName's extension.
func (s *FileStore) Save(originalName string, data []byte) (string, error) {
	ref := uuid.New().String()
	ref = strings.ReplaceAll(ref, "-", "") + extension(originalName)

	if err := os.WriteFile(filepath.Join(s.dir, ref), data, 0644); err != nil {
		return "", fmt.Errorf("error saving image %s: %w", ref, err)
	}
	return ref, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *FileStore) Remove(ref string) {
	path, err := s.Path(ref)
	if err != nil {
		s.logger.Warning("Refusing to remove %q: %v", ref, err)
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete file %s: %v", path, err)
	}
}

// Path resolves ref to a file inside the storage directory.
func (s *FileStore) Path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", fmt.Errorf("invalid stored reference %q", ref)
	}
	return filepath.Join(s.dir, ref), nil
}

func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || ext == "." {
		return DefaultExtension
	}
	return ext
}

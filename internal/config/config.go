package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultConfidenceThreshold is the detection cut-off used when an upload sends no conf.
const DefaultConfidenceThreshold = 0.35

// Detector backends selectable through DETECTOR.
const (
	DetectorRemote = "remote"
	DetectorGoCV   = "gocv"
)

type Config struct {
	Port             int
	DatabasePath     string
	StorageDirectory string
	PublicFilesURL   string // prefix joined with a stored reference to build image URLs
	CORSOrigins      []string

	Detector          string
	InferenceURL      string
	InferenceTimeout  time.Duration
	ModelPath         string
	ConfigPath        string
	DefaultConfidence float64

	MaxUploadBytes int64
	UploadRate     float64 // uploads per second across all clients
	UploadBurst    int
	DetailCacheTTL time.Duration

	LogDirectory  string
	LogMaxSizeMB  int
	LogMaxBackups int
	SentryDSN     string
	ExposeLogs    bool // serve /logs; the files can hold client addresses and paths

	BackfillWorkers int
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory when one exists.
func Load() *Config {
	_ = godotenv.Load()

	port := getEnvAsInt("PORT", 8000)
	return &Config{
		Port:             port,
		DatabasePath:     getEnv("DB_PATH", filepath.Join(".", "data", "visionqa.db")),
		StorageDirectory: getEnv("STORAGE_DIR", filepath.Join(".", "storage")),
		PublicFilesURL:   getEnv("PUBLIC_FILES_URL", "http://localhost:"+strconv.Itoa(port)+"/files/"),
		CORSOrigins:      getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),

		Detector:          getEnv("DETECTOR", DetectorRemote),
		InferenceURL:      getEnv("INFERENCE_URL", "http://localhost:9000/predict"),
		InferenceTimeout:  time.Duration(getEnvAsInt("INFERENCE_TIMEOUT", 60)) * time.Second,
		ModelPath:         getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:        getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		DefaultConfidence: getEnvAsFloat("DEFAULT_CONFIDENCE", DefaultConfidenceThreshold),

		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_MB", 20)) << 20,
		UploadRate:     getEnvAsFloat("UPLOAD_RATE", 5),
		UploadBurst:    getEnvAsInt("UPLOAD_BURST", 10),
		DetailCacheTTL: time.Duration(getEnvAsInt("DETAIL_CACHE_TTL", 300)) * time.Second,

		LogDirectory:  getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogMaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
		SentryDSN:     getEnv("SENTRY_DSN", ""),
		ExposeLogs:    getEnvAsBool("EXPOSE_LOGS", false),

		BackfillWorkers: getEnvAsInt("BACKFILL_WORKERS", 3),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

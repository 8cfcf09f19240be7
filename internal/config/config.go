package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type ConfidenceFormat string

const (
	ConfidenceFloat   ConfidenceFormat = "float"
	ConfidencePercent ConfidenceFormat = "percent"
	ConfidenceNone    ConfidenceFormat = "none"
)

type Config struct {
	Host string
	Port string

	ModelPath    string
	MetadataPath string
	LabelsPath   string
	ONNXLibPath  string

	ConfidenceFormat ConfidenceFormat
	ResizeFilter     string
	MaxUploadBytes   int64
	Message          string
	CORSOrigin       string
	Debug            bool
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", k, v, err)
	}
	return n, nil
}

func envBool(k string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", k, v, err)
	}
	return b, nil
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	modelDir := getEnv("MODEL_DIR", "models")

	cfg := &Config{
		Host: getEnv("HOST", ""),
		Port: getEnv("PORT", "8080"),

		ModelPath:    getEnv("MODEL_PATH", filepath.Join(modelDir, "model.onnx")),
		MetadataPath: getEnv("METADATA_PATH", filepath.Join(modelDir, "model_metadata.json")),
		LabelsPath:   getEnv("LABELS_PATH", ""),
		ONNXLibPath:  getEnv("ONNXRUNTIME_LIB", ""),

		ConfidenceFormat: ConfidenceFormat(strings.ToLower(getEnv("CONFIDENCE_FORMAT", string(ConfidenceFloat)))),
		ResizeFilter:     getEnv("RESIZE_FILTER", "bicubic"),
		Message:          getEnv("API_MESSAGE", "Image Classification API Running"),
		CORSOrigin:       getEnv("CORS_ORIGIN", "*"),
	}

	switch cfg.ConfidenceFormat {
	case ConfidenceFloat, ConfidencePercent, ConfidenceNone:
	default:
		return nil, fmt.Errorf("invalid CONFIDENCE_FORMAT %q: want float, percent or none", cfg.ConfidenceFormat)
	}

	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT %q", cfg.Port)
	}

	maxMB, err := envInt("MAX_UPLOAD_MB", 10)
	if err != nil {
		return nil, err
	}
	if maxMB <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB %d: must be positive", maxMB)
	}
	cfg.MaxUploadBytes = int64(maxMB) << 20

	if cfg.Debug, err = envBool("DEBUG", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

package config

import (
	"DefectScope/pkg/detector"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
)

// AppConfig is the service configuration read from the environment.
type AppConfig struct {
	Port          string `validate:"required,numeric"`
	Env           string `validate:"required"`
	APIPrefix     string `validate:"required,startswith=/"`
	PublicBaseURL string `validate:"omitempty,url"`

	WorkDir     string        `validate:"required"`
	MaxUploadMB int           `validate:"gte=1"`
	JobTimeout  time.Duration `validate:"gt=0"`

	VideoBackend string `validate:"oneof=opencv ffmpeg"`
	OutputExt    string `validate:"required,alphanum"`
	OutputCodec  string
	FFmpegPath   string
	FFprobePath  string

	DetectorBackend string   `validate:"oneof=onnx remote"`
	ModelPath       string   `validate:"required_if=DetectorBackend onnx"`
	ModelClasses    []string `validate:"min=1,dive,required"`
	ModelInputSize  int      `validate:"gte=32"`
	NMSThreshold    float64  `validate:"gte=0,lte=1"`
	DetectorURL     string   `validate:"required_if=DetectorBackend remote"`

	ReportProvider  string `validate:"oneof=none gemini openai"`
	GeminiAPIKey    string `validate:"required_if=ReportProvider gemini"`
	GeminiModelName string
	OpenAIAPIKey    string `validate:"required_if=ReportProvider openai"`
	OpenAIChatModel string

	ExtractMaxFrames  int `validate:"gte=1"`
	RetentionMaxAge   time.Duration
	RetentionMaxBytes int64 `validate:"gte=0"`

	RateLimitRPS   float64 `validate:"gte=0"`
	RateLimitBurst int     `validate:"gte=0"`
}

func (c AppConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// LoadAppConfig reads the environment, applies defaults and validates the
// result.
func LoadAppConfig(validate *validator.Validate) (AppConfig, error) {
	cfg := AppConfig{
		Port:          getEnv("APP_PORT", "3000"),
		Env:           getEnv("APP_ENV", "development"),
		APIPrefix:     strings.TrimSuffix(getEnv("API_PREFIX", "/api/v1"), "/"),
		PublicBaseURL: strings.TrimSuffix(os.Getenv("PUBLIC_BASE_URL"), "/"),

		WorkDir: getEnv("WORK_DIR", "./storage/work"),

		VideoBackend: strings.ToLower(getEnv("VIDEO_BACKEND", "opencv")),
		OutputExt:    strings.TrimPrefix(getEnv("OUTPUT_EXT", "mp4"), "."),
		OutputCodec:  os.Getenv("OUTPUT_CODEC"),
		FFmpegPath:   getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:  getEnv("FFPROBE_PATH", "ffprobe"),

		DetectorBackend: strings.ToLower(getEnv("DETECTOR_BACKEND", "onnx")),
		ModelPath:       getEnv("MODEL_PATH", "models/best.onnx"),
		ModelClasses:    splitList(getEnv("MODEL_CLASSES", strings.Join(detector.DefaultClasses, ","))),
		DetectorURL:     getEnv("DETECTOR_URL", "ws://localhost:8000/ws/detect"),

		ReportProvider:  strings.ToLower(getEnv("REPORT_PROVIDER", "none")),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModelName: os.Getenv("GEMINI_MODEL_NAME"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIChatModel: os.Getenv("OPENAI_CHAT_MODEL"),
	}

	var err error
	if cfg.MaxUploadMB, err = getInt("MAX_UPLOAD_MB", 500); err != nil {
		return cfg, err
	}
	if cfg.JobTimeout, err = getDuration("JOB_TIMEOUT", 10*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.ModelInputSize, err = getInt("MODEL_INPUT_SIZE", 640); err != nil {
		return cfg, err
	}
	if cfg.NMSThreshold, err = getFloat("NMS_THRESHOLD", 0.45); err != nil {
		return cfg, err
	}
	if cfg.ExtractMaxFrames, err = getInt("EXTRACT_MAX_FRAMES", 10); err != nil {
		return cfg, err
	}
	if cfg.RetentionMaxAge, err = getDuration("RETENTION_MAX_AGE", 0); err != nil {
		return cfg, err
	}
	if cfg.RetentionMaxBytes, err = getBytes("RETENTION_MAX_BYTES"); err != nil {
		return cfg, err
	}
	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 1); err != nil {
		return cfg, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 5); err != nil {
		return cfg, err
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// getBytes accepts plain byte counts or sizes like "20GB" and "512MiB".
func getBytes(key string) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return int64(n), nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

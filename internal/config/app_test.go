package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_PORT", "APP_ENV", "API_PREFIX", "PUBLIC_BASE_URL", "WORK_DIR", "MAX_UPLOAD_MB", "JOB_TIMEOUT",
		"VIDEO_BACKEND", "OUTPUT_EXT", "OUTPUT_CODEC", "FFMPEG_PATH", "FFPROBE_PATH",
		"DETECTOR_BACKEND", "MODEL_PATH", "MODEL_CLASSES", "MODEL_INPUT_SIZE", "NMS_THRESHOLD", "DETECTOR_URL",
		"REPORT_PROVIDER", "GEMINI_API_KEY", "GEMINI_MODEL_NAME", "OPENAI_API_KEY", "OPENAI_CHAT_MODEL",
		"EXTRACT_MAX_FRAMES", "RETENTION_MAX_AGE", "RETENTION_MAX_BYTES", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAppConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadAppConfig(NewValidator())
	if err != nil {
		t.Fatalf("LoadAppConfig: %v", err)
	}

	if cfg.Port != "3000" || cfg.APIPrefix != "/api/v1" {
		t.Fatalf("unexpected server defaults %+v", cfg)
	}
	if cfg.VideoBackend != "opencv" || cfg.DetectorBackend != "onnx" || cfg.ReportProvider != "none" {
		t.Fatalf("unexpected backend defaults %+v", cfg)
	}
	if len(cfg.ModelClasses) != 6 || cfg.ModelClasses[0] != "scratch" {
		t.Fatalf("unexpected classes %v", cfg.ModelClasses)
	}
	if cfg.MaxUploadBytes() != 500*1024*1024 {
		t.Fatalf("unexpected upload limit %d", cfg.MaxUploadBytes())
	}
	if cfg.ExtractMaxFrames != 10 || cfg.JobTimeout != 10*time.Minute {
		t.Fatalf("unexpected job defaults %+v", cfg)
	}
	if cfg.RetentionMaxAge != 0 || cfg.RetentionMaxBytes != 0 {
		t.Fatalf("retention should be off by default, got %v / %d", cfg.RetentionMaxAge, cfg.RetentionMaxBytes)
	}
}

func TestLoadAppConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_PREFIX", "/v2/")
	t.Setenv("VIDEO_BACKEND", "FFMPEG")
	t.Setenv("OUTPUT_EXT", ".mkv")
	t.Setenv("MODEL_CLASSES", "scratch, dent ,,rust")
	t.Setenv("RETENTION_MAX_AGE", "72h")
	t.Setenv("RETENTION_MAX_BYTES", "2 GB")
	t.Setenv("PUBLIC_BASE_URL", "https://media.example.com/")

	cfg, err := LoadAppConfig(NewValidator())
	if err != nil {
		t.Fatalf("LoadAppConfig: %v", err)
	}

	if cfg.APIPrefix != "/v2" || cfg.VideoBackend != "ffmpeg" || cfg.OutputExt != "mkv" {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if strings.Join(cfg.ModelClasses, "|") != "scratch|dent|rust" {
		t.Fatalf("unexpected classes %v", cfg.ModelClasses)
	}
	if cfg.RetentionMaxAge != 72*time.Hour || cfg.RetentionMaxBytes != 2_000_000_000 {
		t.Fatalf("unexpected retention %v / %d", cfg.RetentionMaxAge, cfg.RetentionMaxBytes)
	}
	if cfg.PublicBaseURL != "https://media.example.com" {
		t.Fatalf("unexpected base url %q", cfg.PublicBaseURL)
	}
}

func TestLoadAppConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown video backend", map[string]string{"VIDEO_BACKEND": "gstreamer"}},
		{"gemini without key", map[string]string{"REPORT_PROVIDER": "gemini"}},
		{"openai without key", map[string]string{"REPORT_PROVIDER": "openai"}},
		{"nms out of range", map[string]string{"NMS_THRESHOLD": "1.5"}},
		{"bad duration", map[string]string{"RETENTION_MAX_AGE": "soon"}},
		{"bad size", map[string]string{"RETENTION_MAX_BYTES": "lots"}},
		{"zero upload limit", map[string]string{"MAX_UPLOAD_MB": "0"}},
		{"non numeric port", map[string]string{"APP_PORT": "http"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadAppConfig(NewValidator()); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

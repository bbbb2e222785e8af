package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            int
	DataDir         string
	MaxUploadSizeMB int

	// Job queue limits.
	MaxConcurrentJobs int
	MaxPendingJobs    int

	// Expiry of finished jobs and orphaned temp files.
	JobExpiry     time.Duration
	SweepInterval time.Duration

	// External tools and services. ffmpeg and ffprobe are resolved
	// from PATH.
	YtDlpPath             string
	OpenAIKey             string
	OpenAIBaseURL         string
	OpenAITranscribeModel string
	OpenAIVisionModel     string
	OpenAIScriptModel     string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := intEnv("PORT", 8880)
	if err != nil {
		return nil, err
	}
	maxUploadSizeMB, err := intEnv("MAX_UPLOAD_SIZE_MB", 500)
	if err != nil {
		return nil, err
	}
	maxConcurrent, err := intEnv("MAX_CONCURRENT_JOBS", 2)
	if err != nil {
		return nil, err
	}
	maxPending, err := intEnv("MAX_PENDING_JOBS", 20)
	if err != nil {
		return nil, err
	}
	jobExpiry, err := durationEnv("JOB_EXPIRY", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := durationEnv("SWEEP_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	if maxConcurrent < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}
	if maxPending < maxConcurrent {
		return nil, fmt.Errorf("MAX_PENDING_JOBS must be at least MAX_CONCURRENT_JOBS")
	}

	return &Config{
		Port:              port,
		DataDir:           getEnv("DATA_DIR", "/data"),
		MaxUploadSizeMB:   maxUploadSizeMB,
		MaxConcurrentJobs: maxConcurrent,
		MaxPendingJobs:    maxPending,
		JobExpiry:         jobExpiry,
		SweepInterval:     sweepInterval,
		YtDlpPath:         getEnv("YTDLP_PATH", "yt-dlp"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),

		OpenAITranscribeModel: os.Getenv("OPENAI_TRANSCRIBE_MODEL"),
		OpenAIVisionModel:     os.Getenv("OPENAI_VISION_MODEL"),
		OpenAIScriptModel:     os.Getenv("OPENAI_SCRIPT_MODEL"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8880, cfg.Port)
	assert.Equal(t, 2, cfg.MaxConcurrentJobs)
	assert.Equal(t, 20, cfg.MaxPendingJobs)
	assert.Equal(t, 24*time.Hour, cfg.JobExpiry)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "yt-dlp", cfg.YtDlpPath)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_CONCURRENT_JOBS", "4")
	t.Setenv("MAX_PENDING_JOBS", "40")
	t.Setenv("JOB_EXPIRY", "2h")
	t.Setenv("DATA_DIR", "/tmp/cine")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 4, cfg.MaxConcurrentJobs)
	assert.Equal(t, 40, cfg.MaxPendingJobs)
	assert.Equal(t, 2*time.Hour, cfg.JobExpiry)
	assert.Equal(t, "/tmp/cine", cfg.DataDir)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("non-numeric port", func(t *testing.T) {
		t.Setenv("PORT", "not-a-port")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("JOB_EXPIRY", "soon")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("zero concurrency", func(t *testing.T) {
		t.Setenv("MAX_CONCURRENT_JOBS", "0")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("pending below concurrency", func(t *testing.T) {
		t.Setenv("MAX_CONCURRENT_JOBS", "4")
		t.Setenv("MAX_PENDING_JOBS", "2")
		_, err := Load()
		assert.Error(t, err)
	})
}

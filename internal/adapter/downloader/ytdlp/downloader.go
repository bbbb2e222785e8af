package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/cinescribe/cinescribe/internal/infrastructure/logger"
	"github.com/cinescribe/cinescribe/internal/port"
)

// Downloader fetches remote videos with the yt-dlp binary. Download
// failure is fatal for a job, so transient failures are retried with
// exponential backoff before giving up.
type Downloader struct {
	binaryPath string
	outputPath func(jobID string) string
	maxRetries uint64
	timeout    time.Duration
}

func NewDownloader(binaryPath string, outputPath func(jobID string) string) *Downloader {
	if binaryPath == "" {
		binaryPath = "yt-dlp"
	}
	return &Downloader{
		binaryPath: binaryPath,
		outputPath: outputPath,
		maxRetries: 2,
		timeout:    10 * time.Minute,
	}
}

// videoInfo is the subset of yt-dlp's --print-json output we keep.
type videoInfo struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

func (d *Downloader) Fetch(ctx context.Context, jobID, url string) (*port.DownloadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	outputPath := d.outputPath(jobID)

	var info videoInfo
	backoff := retry.WithMaxRetries(d.maxRetries, retry.NewExponential(2*time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		parsed, runErr := d.runOnce(ctx, url, outputPath)
		if runErr != nil {
			logger.Warn.Printf("job %s: yt-dlp attempt failed: %v", jobID, runErr)
			// Partial files confuse the next attempt.
			_ = os.Remove(outputPath)
			return retry.RetryableError(runErr)
		}
		info = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", logger.SanitizeForLog(url), err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return nil, fmt.Errorf("yt-dlp reported success but produced no file: %w", err)
	}

	return &port.DownloadResult{
		FilePath:        outputPath,
		Title:           info.Title,
		DurationSeconds: info.Duration,
	}, nil
}

func (d *Downloader) runOnce(ctx context.Context, url, outputPath string) (videoInfo, error) {
	// --print-json emits the metadata of the downloaded video on stdout.
	args := []string{
		"-f", "mp4/best",
		"--no-playlist",
		"--no-warnings",
		"--print-json",
		"-o", outputPath,
		url,
	}
	cmd := exec.CommandContext(ctx, d.binaryPath, args...)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return videoInfo{}, fmt.Errorf("yt-dlp failed: %w, stderr: %s", err, stderr.String())
	}

	var info videoInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		return videoInfo{}, fmt.Errorf("parse yt-dlp output: %w", err)
	}
	return info, nil
}

var _ port.Downloader = (*Downloader)(nil)

package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/cinescribe/cinescribe/internal/domain"
)

// Probe runs ffprobe and parses the container/stream layout. Both the
// audio extractor and the frame sampler lean on it: one to detect the
// audio track, the other to learn the duration.
func Probe(ctx context.Context, inputPath string) (*domain.ProbeResult, error) {
	if err := validatePath(inputPath); err != nil {
		return nil, err
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}
	cmd := exec.CommandContext(ctx, "ffprobe", args...)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result domain.ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	return &result, nil
}

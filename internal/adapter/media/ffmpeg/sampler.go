package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/cinescribe/cinescribe/internal/port"
)

// maxFrames caps how many stills are handed to the visual analyzer;
// more frames means more vision-model tokens without much extra signal.
const maxFrames = 10

// FrameSampler extracts stills evenly spread across the video. An empty
// result (zero-length video) is valid; errors mean hard I/O failure.
type FrameSampler struct {
	ws *Workspace
}

func NewFrameSampler(ws *Workspace) *FrameSampler {
	return &FrameSampler{ws: ws}
}

func (s *FrameSampler) Sample(ctx context.Context, jobID, filePath string, durationSeconds float64) ([]port.Frame, error) {
	if err := validatePath(filePath); err != nil {
		return nil, err
	}

	if durationSeconds <= 0 {
		probe, err := Probe(ctx, filePath)
		if err != nil {
			return nil, fmt.Errorf("probe before sampling: %w", err)
		}
		durationSeconds = probe.DurationSeconds()
	}
	if durationSeconds <= 0 {
		return nil, nil
	}

	framesDir := s.ws.FramesDir(jobID)
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}

	timestamps := sampleTimestamps(durationSeconds)
	frames := make([]port.Frame, 0, len(timestamps))
	for i, ts := range timestamps {
		outputPath := filepath.Join(framesDir, fmt.Sprintf("frame_%03d.jpg", i))
		args := []string{
			"-ss", fmt.Sprintf("%.2f", ts),
			"-i", filePath,
			"-vframes", "1",
			"-q:v", "4",
			"-y", outputPath,
		}
		cmd := exec.CommandContext(ctx, "ffmpeg", args...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("ffmpeg frame at %.2fs: %w (%s)", ts, err, tail(out))
		}
		frames = append(frames, port.Frame{Path: outputPath, TimestampSeconds: ts})
	}

	return frames, nil
}

// sampleTimestamps spreads up to maxFrames sample points across the
// video, roughly one every ten seconds for short clips, avoiding the
// very first and very last instants where players often show black.
func sampleTimestamps(durationSeconds float64) []float64 {
	count := int(durationSeconds / 10)
	if count < 1 {
		count = 1
	}
	if count > maxFrames {
		count = maxFrames
	}

	step := durationSeconds / float64(count+1)
	out := make([]float64, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, step*float64(i))
	}
	return out
}

var _ port.FrameSampler = (*FrameSampler)(nil)

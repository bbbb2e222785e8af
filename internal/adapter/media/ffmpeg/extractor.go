package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/cinescribe/cinescribe/internal/infrastructure/logger"
	"github.com/cinescribe/cinescribe/internal/port"
)

// AudioExtractor pulls the audio track out of a video with ffmpeg.
// A video without an audio stream is reported as data, not an error.
type AudioExtractor struct {
	ws *Workspace
}

func NewAudioExtractor(ws *Workspace) *AudioExtractor {
	return &AudioExtractor{ws: ws}
}

func (e *AudioExtractor) Extract(ctx context.Context, jobID, filePath string) (port.AudioExtraction, error) {
	if err := validatePath(filePath); err != nil {
		return port.AudioExtraction{}, err
	}

	probe, err := Probe(ctx, filePath)
	if err != nil {
		return port.AudioExtraction{}, fmt.Errorf("probe before extraction: %w", err)
	}
	if probe.AudioStream() == nil {
		logger.Info.Printf("job %s: source has no audio stream", jobID)
		return port.AudioExtraction{HasAudio: false}, nil
	}

	outputPath := e.ws.AudioPath(jobID)
	args := []string{
		"-i", filePath,
		"-vn",
		"-c:a", "aac",
		"-b:a", "128k",
		"-y", outputPath,
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return port.AudioExtraction{}, fmt.Errorf("ffmpeg audio extraction: %w (%s)", err, tail(out))
	}

	return port.AudioExtraction{AudioPath: outputPath, HasAudio: true}, nil
}

// tail keeps the last chunk of ffmpeg output for error messages; the
// interesting part is always at the end.
func tail(out []byte) string {
	const max = 256
	if len(out) <= max {
		return string(out)
	}
	return "..." + string(out[len(out)-max:])
}

var _ port.AudioExtractor = (*AudioExtractor)(nil)

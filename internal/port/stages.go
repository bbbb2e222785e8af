package port

import (
	"context"

	"github.com/cinescribe/cinescribe/internal/domain"
)

// DownloadResult is what a successful fetch yields: the local file plus
// whatever source metadata the downloader could recover.
type DownloadResult struct {
	FilePath        string
	Title           string
	DurationSeconds float64
}

// Downloader fetches a remote video to local disk. A failed download is
// fatal for the job, so implementations should exhaust their retries
// before returning an error.
type Downloader interface {
	Fetch(ctx context.Context, jobID, url string) (*DownloadResult, error)
}

// AudioExtraction reports absence of audio as data, not as an error.
type AudioExtraction struct {
	AudioPath string
	HasAudio  bool
}

// AudioExtractor pulls the audio track out of a video file. Extract never
// returns an error for a video that simply has no audio; HasAudio is
// false in that case.
type AudioExtractor interface {
	Extract(ctx context.Context, jobID, filePath string) (AudioExtraction, error)
}

// Frame is one sampled still with its position in the video.
type Frame struct {
	Path             string
	TimestampSeconds float64
}

// FrameSampler extracts representative stills spread across the video.
// An empty result is valid (e.g. zero-length video); errors are reserved
// for hard I/O failure.
type FrameSampler interface {
	Sample(ctx context.Context, jobID, filePath string, durationSeconds float64) ([]Frame, error)
}

// Transcriber turns an audio track into attributed dialogue.
type Transcriber interface {
	Transcribe(ctx context.Context, jobID, audioPath string) (*domain.Transcript, error)
}

// VisualAnalyzer derives action, character and scene data from sampled frames.
type VisualAnalyzer interface {
	Analyze(ctx context.Context, jobID string, frames []Frame, title string, durationSeconds float64) (*domain.VisualAnalysis, error)
}

// Assembler produces the final screenplay text. On error the orchestrator
// falls back to domain.FormatFallbackScript, so assembly failure never
// fails a job.
type Assembler interface {
	Assemble(ctx context.Context, jobID string, input domain.ScriptInput) (string, error)
}

// Cleanup removes per-job temporary artifacts. Both methods are
// idempotent and best-effort; they never return an error.
type Cleanup interface {
	RemoveAudio(jobID string)
	RemoveFrames(jobID string)
}

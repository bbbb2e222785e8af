package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinescribe/cinescribe/internal/adapter/storage/memory"
	"github.com/cinescribe/cinescribe/internal/domain"
	"github.com/cinescribe/cinescribe/internal/port"
)

// Stub collaborators. Each stage is a function so individual tests can
// script success, failure or absence of data.

type stubDownloader struct {
	fetch func(jobID, url string) (*port.DownloadResult, error)
}

func (s *stubDownloader) Fetch(_ context.Context, jobID, url string) (*port.DownloadResult, error) {
	return s.fetch(jobID, url)
}

type stubAudioExtractor struct {
	extract func(jobID, filePath string) (port.AudioExtraction, error)
}

func (s *stubAudioExtractor) Extract(_ context.Context, jobID, filePath string) (port.AudioExtraction, error) {
	return s.extract(jobID, filePath)
}

type stubFrameSampler struct {
	sample func(jobID, filePath string, duration float64) ([]port.Frame, error)
}

func (s *stubFrameSampler) Sample(_ context.Context, jobID, filePath string, duration float64) ([]port.Frame, error) {
	return s.sample(jobID, filePath, duration)
}

type stubTranscriber struct {
	transcribe func(jobID, audioPath string) (*domain.Transcript, error)
}

func (s *stubTranscriber) Transcribe(_ context.Context, jobID, audioPath string) (*domain.Transcript, error) {
	return s.transcribe(jobID, audioPath)
}

type stubVisualAnalyzer struct {
	analyze func(jobID string, frames []port.Frame, title string, duration float64) (*domain.VisualAnalysis, error)
}

func (s *stubVisualAnalyzer) Analyze(_ context.Context, jobID string, frames []port.Frame, title string, duration float64) (*domain.VisualAnalysis, error) {
	return s.analyze(jobID, frames, title, duration)
}

type stubAssembler struct {
	assemble func(jobID string, input domain.ScriptInput) (string, error)
	lastIn   atomic.Pointer[domain.ScriptInput]
}

func (s *stubAssembler) Assemble(_ context.Context, jobID string, input domain.ScriptInput) (string, error) {
	s.lastIn.Store(&input)
	return s.assemble(jobID, input)
}

type stubCleanup struct {
	audioRemovals atomic.Int32
	frameRemovals atomic.Int32
}

func (s *stubCleanup) RemoveAudio(string)  { s.audioRemovals.Add(1) }
func (s *stubCleanup) RemoveFrames(string) { s.frameRemovals.Add(1) }

type stubArchive struct {
	save  func(port.ArchivedScript) error
	saved atomic.Pointer[port.ArchivedScript]
}

func (s *stubArchive) Save(_ context.Context, script port.ArchivedScript) error {
	s.saved.Store(&script)
	if s.save != nil {
		return s.save(script)
	}
	return nil
}
func (s *stubArchive) Get(context.Context, string) (*port.ArchivedScript, error) { return nil, nil }
func (s *stubArchive) List(context.Context, int) ([]port.ArchivedScript, error)  { return nil, nil }
func (s *stubArchive) Close() error                                              { return nil }

// pipelineHarness bundles a pipeline with happy-path stubs that tests
// override per scenario.
type pipelineHarness struct {
	store       *memory.Store
	downloader  *stubDownloader
	audio       *stubAudioExtractor
	frames      *stubFrameSampler
	transcriber *stubTranscriber
	visual      *stubVisualAnalyzer
	assembler   *stubAssembler
	cleanup     *stubCleanup
	archive     *stubArchive
	videoPath   string
}

func newPipelineHarness(t *testing.T) *pipelineHarness {
	t.Helper()

	videoPath := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("fake video"), 0o600))

	h := &pipelineHarness{
		store:     memory.NewStore(),
		videoPath: videoPath,
		cleanup:   &stubCleanup{},
		archive:   &stubArchive{},
	}
	h.downloader = &stubDownloader{fetch: func(_, _ string) (*port.DownloadResult, error) {
		return &port.DownloadResult{FilePath: videoPath, Title: "Test Video", DurationSeconds: 60}, nil
	}}
	h.audio = &stubAudioExtractor{extract: func(_, _ string) (port.AudioExtraction, error) {
		return port.AudioExtraction{AudioPath: "/tmp/audio.m4a", HasAudio: true}, nil
	}}
	h.frames = &stubFrameSampler{sample: func(_, _ string, _ float64) ([]port.Frame, error) {
		return []port.Frame{{Path: "/tmp/f1.jpg", TimestampSeconds: 10}, {Path: "/tmp/f2.jpg", TimestampSeconds: 50}}, nil
	}}
	h.transcriber = &stubTranscriber{transcribe: func(_, _ string) (*domain.Transcript, error) {
		return &domain.Transcript{
			Dialogue: []domain.DialogueEntry{{Speaker: "ANNA", Text: "Hello.", StartSeconds: 5}},
			Speakers: []string{"ANNA"},
		}, nil
	}}
	h.visual = &stubVisualAnalyzer{analyze: func(_ string, _ []port.Frame, _ string, _ float64) (*domain.VisualAnalysis, error) {
		return &domain.VisualAnalysis{
			Actions:    []domain.ActionEntry{{Description: "Anna waves.", TimestampSeconds: 4}},
			Characters: []string{"ANNA"},
		}, nil
	}}
	h.assembler = &stubAssembler{assemble: func(_ string, _ domain.ScriptInput) (string, error) {
		return "FADE IN:\n\nANNA\nHello.\n", nil
	}}
	return h
}

func (h *pipelineHarness) pipeline() *Pipeline {
	return NewPipeline(h.store, h.downloader, h.audio, h.frames, h.transcriber, h.visual, h.assembler, h.cleanup, h.archive, nil)
}

func (h *pipelineHarness) startJob(t *testing.T) *domain.Job {
	t.Helper()
	job := domain.NewJobFromURL("https://youtu.be/test")
	h.store.Create(job)
	require.True(t, h.store.CompareAndSetStatus(job.ID, domain.JobStatusQueued, domain.JobStatusProcessing))
	snapshot, ok := h.store.Get(job.ID)
	require.True(t, ok)
	return snapshot
}

func TestPipeline_Run_Success(t *testing.T) {
	h := newPipelineHarness(t)
	job := h.startJob(t)

	h.pipeline().Run(context.Background(), job)

	got, ok := h.store.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusComplete, got.Status)
	assert.Equal(t, domain.StageComplete, got.Stages[domain.StageDownload])
	assert.Equal(t, domain.StageComplete, got.Stages[domain.StageTranscription])
	assert.Equal(t, domain.StageComplete, got.Stages[domain.StageVisual])
	assert.Equal(t, domain.StageComplete, got.Stages[domain.StageAssembly])
	assert.Contains(t, got.Script, "ANNA")
	require.NotNil(t, got.Metadata)
	assert.Equal(t, "Test Video", got.Metadata.Title)
	assert.False(t, got.CompletedAt.IsZero())

	_, err := os.Stat(h.videoPath)
	assert.True(t, os.IsNotExist(err), "source video must be deleted after extraction")

	assert.Equal(t, int32(1), h.cleanup.audioRemovals.Load())
	assert.Equal(t, int32(1), h.cleanup.frameRemovals.Load())

	saved := h.archive.saved.Load()
	require.NotNil(t, saved, "completed script should be archived")
	assert.Equal(t, job.ID, saved.JobID)
}

func TestPipeline_Run_DownloadFailureIsFatal(t *testing.T) {
	h := newPipelineHarness(t)
	h.downloader.fetch = func(_, _ string) (*port.DownloadResult, error) {
		return nil, errors.New("yt-dlp exited with status 1")
	}
	transcribed := false
	h.transcriber.transcribe = func(_, _ string) (*domain.Transcript, error) {
		transcribed = true
		return nil, nil
	}
	job := h.startJob(t)

	h.pipeline().Run(context.Background(), job)

	got, _ := h.store.Get(job.ID)
	assert.Equal(t, domain.JobStatusError, got.Status)
	assert.Equal(t, domain.StageFailed, got.Stages[domain.StageDownload])
	require.NotNil(t, got.Err)
	assert.Equal(t, domain.StageDownload, got.Err.Stage)
	assert.Contains(t, got.Err.Internal, "yt-dlp")
	assert.NotContains(t, got.Err.UserMessage, "yt-dlp", "user message must not expose internals")
	assert.False(t, transcribed, "nothing downstream may run after a fatal download")
	assert.False(t, got.CompletedAt.IsZero())
}

func TestPipeline_Run_NoAudioSkipsTranscription(t *testing.T) {
	h := newPipelineHarness(t)
	h.audio.extract = func(_, _ string) (port.AudioExtraction, error) {
		return port.AudioExtraction{HasAudio: false}, nil
	}
	job := h.startJob(t)

	h.pipeline().Run(context.Background(), job)

	got, _ := h.store.Get(job.ID)
	assert.Equal(t, domain.JobStatusComplete, got.Status)
	assert.Equal(t, domain.StageSkipped, got.Stages[domain.StageTranscription])
	assert.Equal(t, domain.StageComplete, got.Stages[domain.StageVisual])
	assert.Nil(t, got.Transcript)
	require.NotNil(t, got.Visual)
}

func TestPipeline_Run_NoFramesSkipsVisual(t *testing.T) {
	h := newPipelineHarness(t)
	h.frames.sample = func(_, _ string, _ float64) ([]port.Frame, error) {
		return nil, nil
	}
	job := h.startJob(t)

	h.pipeline().Run(context.Background(), job)

	got, _ := h.store.Get(job.ID)
	assert.Equal(t, domain.JobStatusComplete, got.Status)
	assert.Equal(t, domain.StageSkipped, got.Stages[domain.StageVisual])
	assert.Equal(t, domain.StageComplete, got.Stages[domain.StageTranscription])
}

func TestPipeline_Run_OneSidedVisualFailure(t *testing.T) {
	h := newPipelineHarness(t)
	h.visual.analyze = func(_ string, _ []port.Frame, _ string, _ float64) (*domain.VisualAnalysis, error) {
		return nil, errors.New("vision model unavailable")
	}
	job := h.startJob(t)

	h.pipeline().Run(context.Background(), job)

	got, _ := h.store.Get(job.ID)
	assert.Equal(t, domain.JobStatusComplete, got.Status, "one-sided failure still completes")
	assert.Equal(t, domain.StageFailed, got.Stages[domain.StageVisual])
	assert.Equal(t, domain.StageComplete, got.Stages[domain.StageTranscription])
	assert.Equal(t, "vision model unavailable", got.StageErrors[domain.StageVisual])
	assert.Nil(t, got.Err, "partial failure records no top-level error")

	in := h.assembler.lastIn.Load()
	require.NotNil(t, in)
	assert.NotEmpty(t, in.Dialogue, "script input still carries the dialogue side")
	assert.Empty(t, in.Actions)
}

func TestPipeline_Run_JointAnalysisFailureAborts(t *testing.T) {
	h := newPipelineHarness(t)
	h.transcriber.transcribe = func(_, _ string) (*domain.Transcript, error) {
		return nil, errors.New("whisper timeout")
	}
	h.visual.analyze = func(_ string, _ []port.Frame, _ string, _ float64) (*domain.VisualAnalysis, error) {
		return nil, errors.New("vision model unavailable")
	}
	job := h.startJob(t)

	h.pipeline().Run(context.Background(), job)

	got, _ := h.store.Get(job.ID)
	assert.Equal(t, domain.JobStatusError, got.Status)
	require.NotNil(t, got.Err)
	assert.Equal(t, domain.StagePipeline, got.Err.Stage)
	assert.Nil(t, h.assembler.lastIn.Load(), "assembly must not run after joint failure")
	assert.Equal(t, domain.StagePending, got.Stages[domain.StageAssembly])
}

func TestPipeline_Run_SkipPlusErrorStillAssembles(t *testing.T) {
	h := newPipelineHarness(t)
	h.audio.extract = func(_, _ string) (port.AudioExtraction, error) {
		return port.AudioExtraction{HasAudio: false}, nil
	}
	h.visual.analyze = func(_ string, _ []port.Frame, _ string, _ float64) (*domain.VisualAnalysis, error) {
		return nil, errors.New("vision model unavailable")
	}
	job := h.startJob(t)

	h.pipeline().Run(context.Background(), job)

	got, _ := h.store.Get(job.ID)
	assert.Equal(t, domain.JobStatusComplete, got.Status,
		"skipped transcription plus failed visual is not a joint failure")
	assert.Equal(t, domain.StageSkipped, got.Stages[domain.StageTranscription])
	assert.Equal(t, domain.StageFailed, got.Stages[domain.StageVisual])
}

func TestPipeline_Run_AssemblerFailureUsesFallback(t *testing.T) {
	h := newPipelineHarness(t)
	h.assembler.assemble = func(_ string, _ domain.ScriptInput) (string, error) {
		return "", errors.New("llm rate limited")
	}
	job := h.startJob(t)

	h.pipeline().Run(context.Background(), job)

	got, _ := h.store.Get(job.ID)
	assert.Equal(t, domain.JobStatusComplete, got.Status, "assembly failure never fails the job")
	assert.Equal(t, domain.StageComplete, got.Stages[domain.StageAssembly])
	assert.NotEmpty(t, got.Script)
	assert.Contains(t, got.Script, "Hello.", "fallback keeps the dialogue data")
	assert.Nil(t, got.Err)
}

func TestPipeline_Run_UploadSkipsDownload(t *testing.T) {
	h := newPipelineHarness(t)
	fetched := false
	h.downloader.fetch = func(_, _ string) (*port.DownloadResult, error) {
		fetched = true
		return nil, errors.New("must not be called")
	}

	job := domain.NewJobFromUpload(h.videoPath)
	h.store.Create(job)
	require.True(t, h.store.CompareAndSetStatus(job.ID, domain.JobStatusQueued, domain.JobStatusProcessing))
	snapshot, _ := h.store.Get(job.ID)

	h.pipeline().Run(context.Background(), snapshot)

	got, _ := h.store.Get(job.ID)
	assert.False(t, fetched)
	assert.Equal(t, domain.JobStatusComplete, got.Status)
	assert.Equal(t, domain.StageSkipped, got.Stages[domain.StageDownload])
	require.NotNil(t, got.Metadata)
	assert.Equal(t, "video", got.Metadata.Title, "title falls back to the file name")
	assert.Equal(t, float64(50), got.Metadata.DurationSeconds, "duration approximated from last frame")
}

func TestPipeline_Run_ArchiveFailureDoesNotFailJob(t *testing.T) {
	h := newPipelineHarness(t)
	h.archive.save = func(port.ArchivedScript) error {
		return errors.New("disk full")
	}
	job := h.startJob(t)

	h.pipeline().Run(context.Background(), job)

	got, _ := h.store.Get(job.ID)
	assert.Equal(t, domain.JobStatusComplete, got.Status)
}

func TestPipeline_Run_AbortCleansArtifacts(t *testing.T) {
	h := newPipelineHarness(t)
	h.downloader.fetch = func(_, _ string) (*port.DownloadResult, error) {
		return nil, errors.New("network unreachable")
	}
	job := h.startJob(t)

	h.pipeline().Run(context.Background(), job)

	assert.GreaterOrEqual(t, h.cleanup.audioRemovals.Load(), int32(1))
	assert.GreaterOrEqual(t, h.cleanup.frameRemovals.Load(), int32(1))
}

package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cinescribe/cinescribe/internal/domain"
	"github.com/cinescribe/cinescribe/internal/infrastructure/logger"
	"github.com/cinescribe/cinescribe/internal/port"
	"github.com/cinescribe/cinescribe/internal/telemetry"
)

// Pipeline drives exactly one job through download, extraction,
// transcription/visual analysis and assembly to a terminal status. It is
// the only component that writes derived content into the job.
type Pipeline struct {
	store       port.JobStore
	downloader  port.Downloader
	audio       port.AudioExtractor
	frames      port.FrameSampler
	transcriber port.Transcriber
	visual      port.VisualAnalyzer
	assembler   port.Assembler
	cleanup     port.Cleanup
	archive     port.ScriptArchive
	events      *EventBus
}

func NewPipeline(
	store port.JobStore,
	downloader port.Downloader,
	audio port.AudioExtractor,
	frames port.FrameSampler,
	transcriber port.Transcriber,
	visual port.VisualAnalyzer,
	assembler port.Assembler,
	cleanup port.Cleanup,
	archive port.ScriptArchive,
	events *EventBus,
) *Pipeline {
	return &Pipeline{
		store:       store,
		downloader:  downloader,
		audio:       audio,
		frames:      frames,
		transcriber: transcriber,
		visual:      visual,
		assembler:   assembler,
		cleanup:     cleanup,
		archive:     archive,
		events:      events,
	}
}

// Run processes one job. The job is already marked processing by the
// scheduler; Run leaves it complete or error, never in between.
func (p *Pipeline) Run(ctx context.Context, job *domain.Job) {
	p.publishStatus(job.ID, domain.JobStatusProcessing, "")

	meta, filePath, ok := p.runDownload(ctx, job)
	if !ok {
		return
	}

	extraction, frames := p.runExtraction(ctx, job.ID, filePath, meta.DurationSeconds)
	if meta.DurationSeconds == 0 && len(frames) > 0 {
		// Uploads carry no duration up front; the last sampled frame is
		// a close enough approximation for script timestamps.
		meta.DurationSeconds = frames[len(frames)-1].TimestampSeconds
		p.store.SetMetadata(job.ID, meta)
	}

	transcript, visual := p.runAnalysis(ctx, job.ID, meta, extraction, frames)

	// The audio track and frame stills are finished with; remove them
	// before assembly so a long LLM call does not hold disk.
	p.cleanup.RemoveAudio(job.ID)
	p.cleanup.RemoveFrames(job.ID)

	if transcript == nil && visual == nil && p.bothAnalysisStagesFailed(job.ID) {
		p.abort(job.ID, domain.StagePipeline,
			"transcription and visual analysis both failed",
			"Neither dialogue nor visuals could be extracted from this video.")
		return
	}

	p.runAssembly(ctx, job.ID, meta, transcript, visual)
}

// runDownload makes the source video available locally. A false return
// means the job already aborted: download failure is fatal, nothing
// downstream can run without the file.
func (p *Pipeline) runDownload(ctx context.Context, job *domain.Job) (domain.VideoMetadata, string, bool) {
	if job.FilePath != "" {
		// Uploaded file: stage was pre-marked skipped at creation.
		meta := domain.VideoMetadata{
			Title:  strings.TrimSuffix(filepath.Base(job.FilePath), filepath.Ext(job.FilePath)),
			Source: "upload",
		}
		p.store.SetMetadata(job.ID, meta)
		return meta, job.FilePath, true
	}

	p.setStage(job.ID, domain.StageDownload, domain.StageInProgress)
	res, err := p.downloader.Fetch(ctx, job.ID, job.VideoURL)
	if err != nil {
		logger.Error.Printf("job %s: download failed: %v", job.ID, err)
		p.setStage(job.ID, domain.StageDownload, domain.StageFailed)
		telemetry.StageFailures.WithLabelValues(string(domain.StageDownload)).Inc()
		p.abort(job.ID, domain.StageDownload, err.Error(),
			"The video could not be downloaded.")
		return domain.VideoMetadata{}, "", false
	}

	meta := domain.VideoMetadata{
		Title:           res.Title,
		DurationSeconds: res.DurationSeconds,
		Source:          job.Platform,
	}
	p.store.SetMetadata(job.ID, meta)
	p.setStage(job.ID, domain.StageDownload, domain.StageComplete)
	return meta, res.FilePath, true
}

// runExtraction pulls the audio track and samples frames concurrently,
// then deletes the source video: it is never needed again, and holding
// full videos for the length of a transcription call would dominate the
// storage footprint. Extraction failures are folded into the
// transcription/visual stages rather than aborting here.
func (p *Pipeline) runExtraction(ctx context.Context, jobID, filePath string, durationSeconds float64) (port.AudioExtraction, []port.Frame) {
	var (
		extraction port.AudioExtraction
		audioErr   error
		frames     []port.Frame
		framesErr  error
	)

	var g errgroup.Group
	g.Go(func() error {
		extraction, audioErr = p.audio.Extract(ctx, jobID, filePath)
		return nil
	})
	g.Go(func() error {
		frames, framesErr = p.frames.Sample(ctx, jobID, filePath, durationSeconds)
		return nil
	})
	_ = g.Wait()

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		logger.Warn.Printf("job %s: could not remove source video: %v", jobID, err)
	}

	if audioErr != nil {
		logger.Error.Printf("job %s: audio extraction failed: %v", jobID, audioErr)
		p.failStage(jobID, domain.StageTranscription, audioErr.Error())
		extraction = port.AudioExtraction{}
	}
	if framesErr != nil {
		logger.Error.Printf("job %s: frame sampling failed: %v", jobID, framesErr)
		p.failStage(jobID, domain.StageVisual, framesErr.Error())
		frames = nil
	}

	return extraction, frames
}

// runAnalysis fans transcription and visual analysis out concurrently.
// Each side is independently catchable: one failing leaves the other's
// result intact, and a side without input is skipped, not failed.
func (p *Pipeline) runAnalysis(
	ctx context.Context,
	jobID string,
	meta domain.VideoMetadata,
	extraction port.AudioExtraction,
	frames []port.Frame,
) (*domain.Transcript, *domain.VisualAnalysis) {
	var (
		transcript *domain.Transcript
		visual     *domain.VisualAnalysis
	)

	var g errgroup.Group

	if stage, _ := p.stageStatus(jobID, domain.StageTranscription); stage == domain.StageFailed {
		// already failed during extraction
	} else if !extraction.HasAudio {
		logger.Info.Printf("job %s: no audio track, skipping transcription", jobID)
		p.setStage(jobID, domain.StageTranscription, domain.StageSkipped)
	} else {
		p.setStage(jobID, domain.StageTranscription, domain.StageInProgress)
		g.Go(func() error {
			t, err := p.transcriber.Transcribe(ctx, jobID, extraction.AudioPath)
			if err != nil {
				logger.Error.Printf("job %s: transcription failed: %v", jobID, err)
				p.failStage(jobID, domain.StageTranscription, err.Error())
				return nil
			}
			transcript = t
			p.store.SetTranscript(jobID, *t)
			p.setStage(jobID, domain.StageTranscription, domain.StageComplete)
			return nil
		})
	}

	if stage, _ := p.stageStatus(jobID, domain.StageVisual); stage == domain.StageFailed {
		// already failed during extraction
	} else if len(frames) == 0 {
		logger.Info.Printf("job %s: no frames sampled, skipping visual analysis", jobID)
		p.setStage(jobID, domain.StageVisual, domain.StageSkipped)
	} else {
		p.setStage(jobID, domain.StageVisual, domain.StageInProgress)
		g.Go(func() error {
			v, err := p.visual.Analyze(ctx, jobID, frames, meta.Title, meta.DurationSeconds)
			if err != nil {
				logger.Error.Printf("job %s: visual analysis failed: %v", jobID, err)
				p.failStage(jobID, domain.StageVisual, err.Error())
				return nil
			}
			visual = v
			p.store.SetVisual(jobID, *v)
			p.setStage(jobID, domain.StageVisual, domain.StageComplete)
			return nil
		})
	}

	_ = g.Wait()
	return transcript, visual
}

// runAssembly produces the final script. The external assembler may
// fail; the deterministic fallback formatter may not, so assembly always
// ends with a complete job.
func (p *Pipeline) runAssembly(
	ctx context.Context,
	jobID string,
	meta domain.VideoMetadata,
	transcript *domain.Transcript,
	visual *domain.VisualAnalysis,
) {
	p.setStage(jobID, domain.StageAssembly, domain.StageInProgress)

	input := domain.ScriptInput{
		Title:           meta.Title,
		DurationSeconds: meta.DurationSeconds,
	}
	if transcript != nil {
		input.Dialogue = transcript.Dialogue
		input.Speakers = transcript.Speakers
	}
	if visual != nil {
		input.Actions = visual.Actions
		input.Characters = visual.Characters
		input.Scenes = visual.Scenes
	}

	script, err := p.assembler.Assemble(ctx, jobID, input)
	if err != nil {
		logger.Warn.Printf("job %s: assembler failed, using fallback formatter: %v", jobID, err)
		telemetry.AssemblyFallbacks.Inc()
		script = domain.FormatFallbackScript(input)
	}

	p.store.SetScript(jobID, script)
	p.setStage(jobID, domain.StageAssembly, domain.StageComplete)
	p.store.SetStatus(jobID, domain.JobStatusComplete)
	p.publishStatus(jobID, domain.JobStatusComplete, "")

	p.archiveScript(ctx, jobID, meta, script)
}

// archiveScript keeps the finished screenplay past job expiry. Failure
// here is logged and swallowed: the job already completed.
func (p *Pipeline) archiveScript(ctx context.Context, jobID string, meta domain.VideoMetadata, script string) {
	if p.archive == nil {
		return
	}
	job, ok := p.store.Get(jobID)
	if !ok {
		return
	}
	err := p.archive.Save(ctx, port.ArchivedScript{
		JobID:           jobID,
		Title:           meta.Title,
		Platform:        job.Platform,
		DurationSeconds: meta.DurationSeconds,
		Script:          script,
		CreatedAt:       job.CreatedAt,
	})
	if err != nil {
		logger.Error.Printf("job %s: script archive failed: %v", jobID, err)
	}
}

// abort is the single terminal error handler: record the top-level
// error, best-effort clean temp artifacts, and publish the transition.
// The processing slot itself is freed by the scheduler's deferred
// OnJobComplete, not here, so even a bug in abort cannot leak a slot.
func (p *Pipeline) abort(jobID string, stage domain.Stage, internal, userMsg string) {
	p.store.SetError(jobID, domain.StageError{
		Stage:       stage,
		Internal:    internal,
		UserMessage: userMsg,
	})
	p.cleanup.RemoveAudio(jobID)
	p.cleanup.RemoveFrames(jobID)
	p.publishStatus(jobID, domain.JobStatusError, userMsg)
}

func (p *Pipeline) bothAnalysisStagesFailed(jobID string) bool {
	t, _ := p.stageStatus(jobID, domain.StageTranscription)
	v, _ := p.stageStatus(jobID, domain.StageVisual)
	return t == domain.StageFailed && v == domain.StageFailed
}

func (p *Pipeline) stageStatus(jobID string, stage domain.Stage) (domain.StageStatus, bool) {
	job, ok := p.store.Get(jobID)
	if !ok {
		return "", false
	}
	return job.Stages[stage], true
}

func (p *Pipeline) failStage(jobID string, stage domain.Stage, msg string) {
	p.store.SetStage(jobID, stage, domain.StageFailed)
	p.store.SetStageError(jobID, stage, msg)
	telemetry.StageFailures.WithLabelValues(string(stage)).Inc()
	p.publishStage(jobID, stage, domain.StageFailed, msg)
}

func (p *Pipeline) setStage(jobID string, stage domain.Stage, status domain.StageStatus) {
	p.store.SetStage(jobID, stage, status)
	p.publishStage(jobID, stage, status, "")
}

func (p *Pipeline) publishStatus(jobID string, status domain.JobStatus, detail string) {
	if p.events != nil {
		p.events.Publish(jobID, Event{Type: "status", Status: status, Detail: detail})
	}
}

func (p *Pipeline) publishStage(jobID string, stage domain.Stage, state domain.StageStatus, detail string) {
	if p.events != nil {
		p.events.Publish(jobID, Event{Type: "stage", Stage: stage, State: state, Detail: detail})
	}
}

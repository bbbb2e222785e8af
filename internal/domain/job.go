package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
	JobStatusCancelled  JobStatus = "cancelled"
)

type Stage string

const (
	StageDownload      Stage = "download"
	StageTranscription Stage = "transcription"
	StageVisual        Stage = "visual"
	StageAssembly      Stage = "assembly"

	// StagePipeline tags errors that are not attributable to a single
	// stage: joint fan-out failure or an unexpected internal error.
	StagePipeline Stage = "pipeline"
)

type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageComplete   StageStatus = "complete"
	StageSkipped    StageStatus = "skipped"
	StageFailed     StageStatus = "error"
)

// StageError carries both an operator-facing diagnostic and a simplified
// user-facing message. The two are never conflated in API responses.
type StageError struct {
	Stage       Stage  `json:"stage"`
	Internal    string `json:"internal"`
	UserMessage string `json:"user_message"`
}

// Job is one submitted video working its way through the pipeline.
// Exactly one of VideoURL and FilePath is set at creation.
type Job struct {
	ID          string                `json:"id"`
	VideoURL    string                `json:"video_url,omitempty"`
	FilePath    string                `json:"file_path,omitempty"`
	Platform    string                `json:"platform"`
	Status      JobStatus             `json:"status"`
	Stages      map[Stage]StageStatus `json:"stages"`
	Metadata    *VideoMetadata        `json:"metadata,omitempty"`
	Transcript  *Transcript           `json:"transcript,omitempty"`
	Visual      *VisualAnalysis       `json:"visual,omitempty"`
	Script      string                `json:"script,omitempty"`
	Err         *StageError           `json:"error,omitempty"`
	StageErrors map[Stage]string      `json:"stage_errors,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt time.Time             `json:"completed_at,omitzero"`
}

// NewJobFromURL creates a queued job for a video that must be downloaded first.
func NewJobFromURL(videoURL string) *Job {
	j := newJob()
	j.VideoURL = videoURL
	j.Platform = DetectPlatform(videoURL)
	return j
}

// NewJobFromUpload creates a queued job for an already-local video file.
// The download stage is pre-marked skipped since there is nothing to fetch.
func NewJobFromUpload(filePath string) *Job {
	j := newJob()
	j.FilePath = filePath
	j.Platform = "upload"
	j.Stages[StageDownload] = StageSkipped
	return j
}

func newJob() *Job {
	return &Job{
		ID:     uuid.New().String(),
		Status: JobStatusQueued,
		Stages: map[Stage]StageStatus{
			StageDownload:      StagePending,
			StageTranscription: StagePending,
			StageVisual:        StagePending,
			StageAssembly:      StagePending,
		},
		CreatedAt: time.Now(),
	}
}

func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusComplete, JobStatusError, JobStatusCancelled:
		return true
	}
	return false
}

// Clone returns a deep copy so callers can read a snapshot without
// holding any store lock.
func (j *Job) Clone() *Job {
	c := *j
	c.Stages = make(map[Stage]StageStatus, len(j.Stages))
	for k, v := range j.Stages {
		c.Stages[k] = v
	}
	if j.StageErrors != nil {
		c.StageErrors = make(map[Stage]string, len(j.StageErrors))
		for k, v := range j.StageErrors {
			c.StageErrors[k] = v
		}
	}
	if j.Metadata != nil {
		m := *j.Metadata
		c.Metadata = &m
	}
	if j.Transcript != nil {
		t := j.Transcript.clone()
		c.Transcript = &t
	}
	if j.Visual != nil {
		v := j.Visual.clone()
		c.Visual = &v
	}
	if j.Err != nil {
		e := *j.Err
		c.Err = &e
	}
	return &c
}

// DetectPlatform tags a submission URL with its source platform.
func DetectPlatform(videoURL string) string {
	lower := strings.ToLower(videoURL)
	switch {
	case strings.Contains(lower, "youtube.com"), strings.Contains(lower, "youtu.be"):
		return "youtube"
	case strings.Contains(lower, "tiktok.com"):
		return "tiktok"
	case strings.Contains(lower, "vimeo.com"):
		return "vimeo"
	default:
		return "unknown"
	}
}

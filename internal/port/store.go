package port

import (
	"time"

	"github.com/cinescribe/cinescribe/internal/domain"
)

// JobStore is the single source of truth for job state. All mutators are
// atomic per call and are silent no-ops for unknown ids; Get returns a
// deep copy so readers never observe in-flight mutation.
type JobStore interface {
	Create(job *domain.Job)
	Get(id string) (*domain.Job, bool)
	SetStatus(id string, status domain.JobStatus)
	// CompareAndSetStatus transitions id from one status to another
	// atomically, reporting whether the swap happened. The scheduler
	// uses it so a cancel can never race a slot claim.
	CompareAndSetStatus(id string, from, to domain.JobStatus) bool
	SetStage(id string, stage domain.Stage, status domain.StageStatus)
	SetMetadata(id string, meta domain.VideoMetadata)
	SetTranscript(id string, transcript domain.Transcript)
	SetVisual(id string, visual domain.VisualAnalysis)
	SetScript(id string, script string)
	SetError(id string, stageErr domain.StageError)
	SetStageError(id string, stage domain.Stage, msg string)
	ListByStatus(status domain.JobStatus) []*domain.Job
	CountByStatus(status domain.JobStatus) int
	Delete(id string)
	SweepExpired(olderThan time.Duration) int
}

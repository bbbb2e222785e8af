package port

import (
	"context"
	"time"
)

// ArchivedScript is a completed screenplay kept past job expiry.
type ArchivedScript struct {
	JobID           string
	Title           string
	Platform        string
	DurationSeconds float64
	Script          string
	CreatedAt       time.Time
}

// ScriptArchive persists finished screenplays. Archive writes are
// best-effort from the pipeline's point of view; a failed insert is
// logged and never fails the job.
type ScriptArchive interface {
	Save(ctx context.Context, script ArchivedScript) error
	Get(ctx context.Context, jobID string) (*ArchivedScript, error)
	List(ctx context.Context, limit int) ([]ArchivedScript, error)
	Close() error
}

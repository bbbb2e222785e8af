package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/cinescribe/cinescribe/internal/domain"
	"github.com/cinescribe/cinescribe/internal/infrastructure/logger"
	"github.com/cinescribe/cinescribe/internal/port"
	"github.com/cinescribe/cinescribe/internal/telemetry"
)

// ProcessFunc runs one job's pipeline to a terminal status. It is
// injected at construction so the scheduler never knows how a job is
// actually processed.
type ProcessFunc func(ctx context.Context, job *domain.Job)

// Scheduler bounds how many jobs process concurrently and turns queued
// jobs into processing jobs in FIFO order as slots free. All counts are
// read live from the store; nothing is cached.
type Scheduler struct {
	store   port.JobStore
	process ProcessFunc

	maxProcessing int // processing slots (C)
	maxPending    int // queued+processing admission ceiling (Q)

	// claimMu serializes the capacity check and the slot claim in
	// TryStartNext so concurrent callers cannot both fill the last slot.
	claimMu sync.Mutex

	ctx context.Context
}

func NewScheduler(store port.JobStore, process ProcessFunc, maxProcessing, maxPending int) *Scheduler {
	return &Scheduler{
		store:         store,
		process:       process,
		maxProcessing: maxProcessing,
		maxPending:    maxPending,
		ctx:           context.Background(),
	}
}

// Start records the context spawned jobs inherit and resumes any jobs
// left queued from before. Call once before accepting submissions.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.TryStartNext()
}

// CanEnqueue reports whether another job fits under the admission
// ceiling. It only advises: the request layer checks it before creating
// a job, and the scheduler will still run any job that exists.
func (s *Scheduler) CanEnqueue() bool {
	queued := s.store.CountByStatus(domain.JobStatusQueued)
	processing := s.store.CountByStatus(domain.JobStatusProcessing)
	return queued+processing < s.maxPending
}

// Enqueue admits a job under the pending ceiling and registers it. The
// capacity check and the insert happen under claimMu so two concurrent
// submissions cannot both squeeze into the last admission slot.
func (s *Scheduler) Enqueue(job *domain.Job) error {
	s.claimMu.Lock()
	queued := s.store.CountByStatus(domain.JobStatusQueued)
	processing := s.store.CountByStatus(domain.JobStatusProcessing)
	if queued+processing >= s.maxPending {
		s.claimMu.Unlock()
		telemetry.AdmissionRejects.Inc()
		return domain.ErrQueueFull
	}
	s.store.Create(job)
	s.claimMu.Unlock()

	telemetry.JobsCreated.Inc()
	logger.Info.Printf("job %s queued (platform=%s)", job.ID, job.Platform)
	s.TryStartNext()
	return nil
}

// CreateJob registers a new queued job without an admission check and
// immediately tries to start it.
func (s *Scheduler) CreateJob(job *domain.Job) {
	s.store.Create(job)
	telemetry.JobsCreated.Inc()
	logger.Info.Printf("job %s queued (platform=%s)", job.ID, job.Platform)
	s.TryStartNext()
}

// GetJob returns a read-only snapshot of a job.
func (s *Scheduler) GetJob(id string) (*domain.Job, error) {
	job, ok := s.store.Get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// TryStartNext starts the oldest queued job if a processing slot is
// free. It is a no-op when all slots are busy or nothing is queued.
func (s *Scheduler) TryStartNext() {
	s.claimMu.Lock()

	processing := s.store.CountByStatus(domain.JobStatusProcessing)
	if processing >= s.maxProcessing {
		s.claimMu.Unlock()
		logger.Debug.Printf("all %d processing slots busy, job stays queued", s.maxProcessing)
		return
	}

	var claimed *domain.Job
	for _, job := range s.store.ListByStatus(domain.JobStatusQueued) {
		// A concurrent cancel can win the race for any individual job;
		// move on to the next queued one.
		if s.store.CompareAndSetStatus(job.ID, domain.JobStatusQueued, domain.JobStatusProcessing) {
			claimed = job
			break
		}
	}
	s.claimMu.Unlock()

	if claimed == nil {
		return
	}

	snapshot, ok := s.store.Get(claimed.ID)
	if !ok {
		return
	}

	logger.Info.Printf("job %s started processing", snapshot.ID)
	telemetry.JobsProcessing.Inc()

	// Fire and forget: the slot is freed by the deferred OnJobComplete
	// no matter how processing ends, including a panic in the pipeline.
	go func() {
		defer s.OnJobComplete(snapshot.ID)
		defer s.recoverJob(snapshot.ID)
		s.process(s.ctx, snapshot)
	}()
}

// recoverJob converts a pipeline panic into a recorded job error so a
// bug can never leak a processing slot or leave a job non-terminal.
func (s *Scheduler) recoverJob(id string) {
	r := recover()
	if r == nil {
		return
	}
	logger.Error.Printf("job %s: pipeline panic: %v", id, r)
	s.store.SetError(id, domain.StageError{
		Stage:       domain.StagePipeline,
		Internal:    fmt.Sprintf("pipeline panic: %v", r),
		UserMessage: "An unexpected error occurred while processing the video.",
	})
}

// OnJobComplete frees the caller's slot and pulls the next queued job.
// It is invoked unconditionally when a job's processing finishes,
// whatever the outcome; this is the only path by which a freed slot is
// reused.
func (s *Scheduler) OnJobComplete(id string) {
	telemetry.JobsProcessing.Dec()
	if job, ok := s.store.Get(id); ok {
		switch job.Status {
		case domain.JobStatusComplete:
			telemetry.JobsCompleted.Inc()
		case domain.JobStatusError:
			telemetry.JobsFailed.Inc()
		}
		logger.Info.Printf("job %s finished with status %s", id, job.Status)
	}
	s.TryStartNext()
}

// Cancel cancels a job that has not started processing. Anything past
// queued is rejected; in-flight work always runs to a terminal status.
func (s *Scheduler) Cancel(id string) error {
	if s.store.CompareAndSetStatus(id, domain.JobStatusQueued, domain.JobStatusCancelled) {
		telemetry.JobsCancelled.Inc()
		logger.Info.Printf("job %s cancelled", id)
		return nil
	}
	if _, ok := s.store.Get(id); !ok {
		return domain.ErrNotFound
	}
	return domain.ErrNotCancellable
}

// QueuePosition returns the 1-based position of a queued job, ordered by
// creation time, or 0 if the job is not currently queued.
func (s *Scheduler) QueuePosition(id string) int {
	for i, job := range s.store.ListByStatus(domain.JobStatusQueued) {
		if job.ID == id {
			return i + 1
		}
	}
	return 0
}

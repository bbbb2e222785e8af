package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/cinescribe/cinescribe/internal/domain"
	"github.com/cinescribe/cinescribe/internal/port"
)

// Store is the authoritative in-memory job registry. A single RWMutex
// guards the map; every mutator is atomic, so two stages of the same job
// finishing at once cannot corrupt the stage map. Mutators are no-ops
// for unknown ids, and reads hand out deep copies.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*domain.Job),
	}
}

func (s *Store) Create(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job.Clone()
}

func (s *Store) Get(id string) (*domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return j.Clone(), true
}

func (s *Store) SetStatus(id string, status domain.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return
	}
	// SetError already stamped a terminal error; a later status write
	// must not undo it.
	if j.Status == domain.JobStatusError {
		return
	}
	j.Status = status
	if j.IsTerminal() && j.CompletedAt.IsZero() {
		j.CompletedAt = time.Now()
	}
}

func (s *Store) CompareAndSetStatus(id string, from, to domain.JobStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status != from {
		return false
	}
	j.Status = to
	if j.IsTerminal() && j.CompletedAt.IsZero() {
		j.CompletedAt = time.Now()
	}
	return true
}

func (s *Store) SetStage(id string, stage domain.Stage, status domain.StageStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[id]; ok {
		j.Stages[stage] = status
	}
}

func (s *Store) SetMetadata(id string, meta domain.VideoMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[id]; ok {
		j.Metadata = &meta
	}
}

func (s *Store) SetTranscript(id string, transcript domain.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[id]; ok {
		j.Transcript = &transcript
	}
}

func (s *Store) SetVisual(id string, visual domain.VisualAnalysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[id]; ok {
		j.Visual = &visual
	}
}

func (s *Store) SetScript(id string, script string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[id]; ok {
		j.Script = script
	}
}

// SetError records the top-level error and forces the job terminal. It is
// the only mutator that changes status as a side effect, and it wins over
// any previously set status.
func (s *Store) SetError(id string, stageErr domain.StageError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return
	}
	j.Err = &stageErr
	j.Status = domain.JobStatusError
	if j.CompletedAt.IsZero() {
		j.CompletedAt = time.Now()
	}
}

func (s *Store) SetStageError(id string, stage domain.Stage, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return
	}
	if j.StageErrors == nil {
		j.StageErrors = make(map[domain.Stage]string)
	}
	j.StageErrors[stage] = msg
}

// ListByStatus returns matching jobs ordered by creation time, oldest
// first. Creation-time ties keep map-insertion order irrelevant because
// ids are compared as a final tiebreak.
func (s *Store) ListByStatus(status domain.JobStatus) []*domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Job
	for _, j := range s.jobs {
		if j.Status == status {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out
}

// CountByStatus reads live state; the scheduler's admission decisions
// never rely on cached counts.
func (s *Store) CountByStatus(status domain.JobStatus) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, j := range s.jobs {
		if j.Status == status {
			n++
		}
	}
	return n
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, id)
}

// SweepExpired removes terminal jobs strictly older than the window and
// returns how many were removed.
func (s *Store) SweepExpired(olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for id, j := range s.jobs {
		if j.IsTerminal() && j.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

var _ port.JobStore = (*Store)(nil)

package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cinescribe/cinescribe/internal/infrastructure/logger"
	"github.com/cinescribe/cinescribe/internal/port"
	"github.com/cinescribe/cinescribe/internal/telemetry"
)

// Sweeper bounds growth of the in-memory job table and the temp
// directories. Jobs and files are swept independently: a dangling temp
// file whose job record is already gone is still reclaimed.
type Sweeper struct {
	store    port.JobStore
	tempDirs []string
	expiry   time.Duration
	interval time.Duration
}

func NewSweeper(store port.JobStore, tempDirs []string, expiry, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		tempDirs: tempDirs,
		expiry:   expiry,
		interval: interval,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce()
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce removes expired terminal jobs and stale temp files, returning
// the counts of each.
func (s *Sweeper) SweepOnce() (jobs, files int) {
	jobs = s.store.SweepExpired(s.expiry)
	if jobs > 0 {
		logger.Info.Printf("sweeper removed %d expired jobs", jobs)
		telemetry.SweptJobs.Add(float64(jobs))
	}

	files = s.sweepFiles()
	if files > 0 {
		logger.Info.Printf("sweeper removed %d stale temp files", files)
		telemetry.SweptFiles.Add(float64(files))
	}
	return jobs, files
}

// sweepFiles deletes any file under the temp directories whose mtime is
// older than the expiry window, whether or not a job still references
// it, then prunes directories that emptied out.
func (s *Sweeper) sweepFiles() int {
	cutoff := time.Now().Add(-s.expiry)
	removed := 0

	for _, dir := range s.tempDirs {
		entries := collectStale(dir, cutoff)
		for _, path := range entries {
			if err := os.Remove(path); err != nil {
				logger.Warn.Printf("sweeper could not remove %s: %v", path, err)
				continue
			}
			removed++
		}
		pruneEmptyDirs(dir)
	}
	return removed
}

func collectStale(root string, cutoff time.Time) []string {
	var stale []string
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			stale = append(stale, path)
		}
		return nil
	})
	return stale
}

// pruneEmptyDirs removes empty per-job subdirectories left behind after
// their contents were swept. The root itself is kept.
func pruneEmptyDirs(root string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(root, e.Name())
		if children, err := os.ReadDir(sub); err == nil && len(children) == 0 {
			_ = os.Remove(sub)
		}
	}
}

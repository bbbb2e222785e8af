package ffmpeg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/cinescribe/cinescribe/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path is empty")
	ErrInvalidPath = errors.New("path contains invalid characters")
)

// Workspace owns the on-disk layout for per-job media artifacts:
//
//	<dataDir>/videos/<jobID>.mp4
//	<dataDir>/audio/<jobID>.m4a
//	<dataDir>/frames/<jobID>/frame_NNN.jpg
type Workspace struct {
	dataDir string
}

func NewWorkspace(dataDir string) *Workspace {
	return &Workspace{dataDir: dataDir}
}

func (w *Workspace) VideosDir() string { return filepath.Join(w.dataDir, "videos") }
func (w *Workspace) AudioDir() string  { return filepath.Join(w.dataDir, "audio") }
func (w *Workspace) FramesRoot() string {
	return filepath.Join(w.dataDir, "frames")
}

func (w *Workspace) VideoPath(jobID string) string {
	return filepath.Join(w.VideosDir(), jobID+".mp4")
}

func (w *Workspace) AudioPath(jobID string) string {
	return filepath.Join(w.AudioDir(), jobID+".m4a")
}

func (w *Workspace) FramesDir(jobID string) string {
	return filepath.Join(w.FramesRoot(), jobID)
}

// TempDirs lists the directories the sweeper scans for stale artifacts.
func (w *Workspace) TempDirs() []string {
	return []string{w.VideosDir(), w.AudioDir(), w.FramesRoot()}
}

// EnsureDirs creates the artifact directories up front so stage
// executors never race on MkdirAll.
func (w *Workspace) EnsureDirs() error {
	for _, dir := range w.TempDirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// RemoveAudio deletes a job's extracted audio track. Idempotent and
// best-effort per the cleanup contract.
func (w *Workspace) RemoveAudio(jobID string) {
	_ = os.Remove(w.AudioPath(jobID))
}

// RemoveFrames deletes a job's sampled frames directory.
func (w *Workspace) RemoveFrames(jobID string) {
	_ = os.RemoveAll(w.FramesDir(jobID))
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	return nil
}

var _ port.Cleanup = (*Workspace)(nil)

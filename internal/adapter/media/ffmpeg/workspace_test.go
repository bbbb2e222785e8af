package ffmpeg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{
			name:    "valid path",
			path:    "/tmp/video.mp4",
			wantErr: nil,
		},
		{
			name:    "valid path with spaces",
			path:    "/tmp/my video.mp4",
			wantErr: nil,
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: ErrEmptyPath,
		},
		{
			name:    "path with null byte",
			path:    "/tmp/\x00video.mp4",
			wantErr: ErrInvalidPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validatePath(%q) = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestWorkspace_Paths(t *testing.T) {
	ws := NewWorkspace("/data")

	assert.Equal(t, filepath.Join("/data", "videos", "j1.mp4"), ws.VideoPath("j1"))
	assert.Equal(t, filepath.Join("/data", "audio", "j1.m4a"), ws.AudioPath("j1"))
	assert.Equal(t, filepath.Join("/data", "frames", "j1"), ws.FramesDir("j1"))
	assert.Len(t, ws.TempDirs(), 3)
}

func TestWorkspace_Cleanup(t *testing.T) {
	ws := NewWorkspace(t.TempDir())
	require.NoError(t, ws.EnsureDirs())

	audioPath := ws.AudioPath("j1")
	require.NoError(t, os.WriteFile(audioPath, []byte("x"), 0o600))

	framesDir := ws.FramesDir("j1")
	require.NoError(t, os.MkdirAll(framesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(framesDir, "frame_000.jpg"), []byte("x"), 0o600))

	ws.RemoveAudio("j1")
	ws.RemoveFrames("j1")

	_, err := os.Stat(audioPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(framesDir)
	assert.True(t, os.IsNotExist(err))

	// Idempotent: a second removal of already-gone artifacts is fine.
	assert.NotPanics(t, func() {
		ws.RemoveAudio("j1")
		ws.RemoveFrames("j1")
	})
}

func TestSampleTimestamps(t *testing.T) {
	t.Run("short clip gets one frame", func(t *testing.T) {
		ts := sampleTimestamps(5)
		require.Len(t, ts, 1)
		assert.InDelta(t, 2.5, ts[0], 0.01)
	})

	t.Run("timestamps stay inside the video", func(t *testing.T) {
		ts := sampleTimestamps(60)
		require.Len(t, ts, 6)
		for _, v := range ts {
			assert.Greater(t, v, 0.0)
			assert.Less(t, v, 60.0)
		}
	})

	t.Run("long video capped at maxFrames", func(t *testing.T) {
		ts := sampleTimestamps(3600)
		assert.Len(t, ts, maxFrames)
	})
}

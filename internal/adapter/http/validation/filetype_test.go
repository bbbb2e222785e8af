package validation

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// padBytes pads magic bytes out so detection has enough data.
func padBytes(magic []byte, size int) []byte {
	if len(magic) >= size {
		return magic
	}
	result := make([]byte, size)
	copy(result, magic)
	return result
}

func TestValidateMagicBytes(t *testing.T) {
	tests := []struct {
		name    string
		magic   []byte
		mime    string
		allowed bool
	}{
		{"mp4", []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}, "video/mp4", true},
		{"quicktime", []byte{0x00, 0x00, 0x00, 0x14, 'f', 't', 'y', 'p', 'q', 't', ' ', ' '}, "video/quicktime", true},
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3}, "video/webm", true},
		{"flv", []byte{'F', 'L', 'V', 0x01}, "video/x-flv", true},
		{"unknown ftyp brand is mp4", []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'X', 'X', 'X', 'X'}, "video/mp4", true},
		{"png rejected", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png", false},
		{"mp3 rejected", []byte{'I', 'D', '3', 0x04, 0x00, 0x00}, "audio/mpeg", false},
		{"html rejected", []byte("<!DOCTYPE html><html></html>"), "text/html; charset=utf-8", false},
		{"executable rejected", []byte{0x4D, 0x5A, 0x90, 0x00}, "application/octet-stream", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := bytes.NewReader(padBytes(tt.magic, 512))

			mime, allowed, err := ValidateMagicBytes(reader)
			require.NoError(t, err)
			assert.Equal(t, tt.mime, mime)
			assert.Equal(t, tt.allowed, allowed)

			pos, err := reader.Seek(0, 1)
			require.NoError(t, err)
			assert.Zero(t, pos, "reader must be rewound")
		})
	}
}

func TestValidateMagicBytes_EmptyFile(t *testing.T) {
	_, allowed, err := ValidateMagicBytes(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.False(t, allowed)
}

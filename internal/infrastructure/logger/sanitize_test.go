package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain string unchanged", "https://youtube.com/watch?v=abc", "https://youtube.com/watch?v=abc"},
		{"newline escaped", "line1\nINFO: forged entry", "line1\\nINFO: forged entry"},
		{"carriage return escaped", "a\rb", "a\\rb"},
		{"tab escaped", "a\tb", "a\\tb"},
		{"ansi escape hex-encoded", "a\x1b[31mred", "a\\x1b[31mred"},
		{"null byte hex-encoded", "a\x00b", "a\\x00b"},
		{"unicode preserved", "café 日本語 🎬", "café 日本語 🎬"},
		{"empty string", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeForLog(tt.input))
		})
	}
}

func TestSanitizeForLog_Truncation(t *testing.T) {
	got := SanitizeForLog(strings.Repeat("a", 500))
	assert.Len(t, got, maxLogValueLen+len("..."))
	assert.True(t, strings.HasSuffix(got, "..."))
}

package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxFilenameLength is the common filesystem filename limit.
const maxFilenameLength = 255

// SanitizeFilename makes a client-supplied filename safe for use in
// file paths and Content-Disposition headers. Path separators, quotes
// and control characters become underscores; Unicode is preserved; the
// result is truncated to 255 bytes keeping the extension. Empty input
// sanitizes to "video".
func SanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		if unsafeFilenameRune(r) {
			sb.WriteRune('_')
		} else {
			sb.WriteRune(r)
		}
	}

	result := strings.TrimSpace(sb.String())
	if strings.Trim(result, "_") == "" {
		return "video"
	}
	if len(result) > maxFilenameLength {
		result = truncatePreservingExtension(result)
	}
	return result
}

func unsafeFilenameRune(r rune) bool {
	if r < 32 || r == 127 {
		return true
	}
	switch r {
	case '"', '\\', '/', ':':
		return true
	}
	return false
}

func truncatePreservingExtension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || len(ext) >= maxFilenameLength {
		return truncateToRuneBoundary(name, maxFilenameLength)
	}
	base := strings.TrimSuffix(name, ext)
	return truncateToRuneBoundary(base, maxFilenameLength-len(ext)) + ext
}

// truncateToRuneBoundary cuts a UTF-8 string to at most maxBytes
// without splitting a multi-byte character.
func truncateToRuneBoundary(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

// ContentDisposition returns a safe Content-Disposition header value
// for the given filename.
func ContentDisposition(filename string, inline bool) string {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	return fmt.Sprintf("%s; filename=%q", disposition, SanitizeFilename(filename))
}

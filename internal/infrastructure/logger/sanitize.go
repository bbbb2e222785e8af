package logger

import (
	"fmt"
	"strings"
)

// maxLogValueLen caps client-supplied values in log lines. Video URLs
// and filenames arrive from the outside and can be arbitrarily long.
const maxLogValueLen = 200

// SanitizeForLog makes a client-supplied string safe to embed in a log
// line. Newlines and carriage returns cannot forge log entries, other
// control characters are hex-escaped, Unicode passes through, and the
// result is truncated to 200 characters.
func SanitizeForLog(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	n := 0
	for _, r := range s {
		if n >= maxLogValueLen {
			result.WriteString("...")
			break
		}
		n++

		switch r {
		case '\n':
			result.WriteString("\\n")
		case '\r':
			result.WriteString("\\r")
		case '\t':
			result.WriteString("\\t")
		default:
			if r < 32 || r == 127 {
				result.WriteString(fmt.Sprintf("\\x%02x", r))
			} else {
				result.WriteRune(r)
			}
		}
	}
	return result.String()
}

// Package validation provides upload validation utilities.
package validation

import (
	"errors"
	"io"
	"net/http"
)

// ErrDisallowedFileType is returned when a file type is not in the allowlist.
var ErrDisallowedFileType = errors.New("file type not allowed")

// allowedMIMETypes is the allowlist of upload MIME types. Only video
// containers are accepted; everything downstream assumes a video file.
var allowedMIMETypes = map[string]bool{
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
	"video/x-msvideo": true,
	"video/x-flv":     true,
}

// magicBytesBufferSize is the number of bytes read for content type detection.
const magicBytesBufferSize = 512

// ValidateMagicBytes detects a file's content type from its leading
// bytes and reports whether it is an accepted video format. The reader
// is rewound to the start afterwards, so the caller can hand the same
// reader straight to a copy.
func ValidateMagicBytes(reader io.ReadSeeker) (mime string, allowed bool, err error) {
	buf := make([]byte, magicBytesBufferSize)
	n, err := reader.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}
	if n == 0 {
		return "application/octet-stream", false, nil
	}
	buf = buf[:n]

	mime = detectVideoMagicBytes(buf)
	if mime == "" {
		mime = http.DetectContentType(buf)
	}
	return mime, allowedMIMETypes[mime], nil
}

// detectVideoMagicBytes handles video containers that
// http.DetectContentType does not recognize reliably.
func detectVideoMagicBytes(buf []byte) string {
	if len(buf) < 4 {
		return ""
	}

	// WebM/Matroska: EBML header
	if buf[0] == 0x1A && buf[1] == 0x45 && buf[2] == 0xDF && buf[3] == 0xA3 {
		return "video/webm"
	}

	// FLV: "FLV" followed by version byte
	if buf[0] == 'F' && buf[1] == 'L' && buf[2] == 'V' && buf[3] == 0x01 {
		return "video/x-flv"
	}

	// MP4/QuickTime: ftyp box at offset 4
	if len(buf) >= 12 && buf[4] == 'f' && buf[5] == 't' && buf[6] == 'y' && buf[7] == 'p' {
		if string(buf[8:12]) == "qt  " {
			return "video/quicktime"
		}
		return "video/mp4"
	}

	return ""
}

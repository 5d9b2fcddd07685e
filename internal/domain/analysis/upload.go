package analysis

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	AudioMimeType  = "audio/mpeg"
	AudioExtension = ".mp3"
	MaxUploadBytes = 10 << 20
)

// ValidateUpload accepts a file whose declared type is audio/mpeg or whose
// name ends in .mp3, and that fits within max bytes (MaxUploadBytes when max <= 0).
func ValidateUpload(name, mimeType string, size, max int64) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: no file received", ErrInvalidUpload)
	}
	if max <= 0 {
		max = MaxUploadBytes
	}
	if size > max {
		return fmt.Errorf("%w: file is %d bytes, limit is %d", ErrInvalidUpload, size, max)
	}
	if !IsAudio(name, mimeType) {
		return fmt.Errorf("%w: formato no válido, sólo se permiten archivos MP3", ErrInvalidUpload)
	}
	return nil
}

// IsAudio reports whether either the MIME type or the extension marks an MP3.
func IsAudio(name, mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt == AudioMimeType || strings.HasSuffix(strings.ToLower(name), AudioExtension)
}

// SanitizeFilename keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with '_'.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "audio" + AudioExtension
	}
	return out
}

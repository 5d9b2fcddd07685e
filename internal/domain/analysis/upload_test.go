package analysis

import (
	"errors"
	"testing"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		mime    string
		size    int64
		wantErr bool
	}{
		{"mp3 by both", "heartbeat.mp3", "audio/mpeg", 1024, false},
		{"mp3 by extension only", "HEARTBEAT.MP3", "application/octet-stream", 1024, false},
		{"mp3 by mime only", "recording", "audio/mpeg", 1024, false},
		{"mime with params", "rec", "audio/mpeg; charset=binary", 1, false},
		{"pdf", "document.pdf", "application/pdf", 1024, true},
		{"wav", "beat.wav", "audio/wav", 1024, true},
		{"exactly at limit", "a.mp3", "audio/mpeg", MaxUploadBytes, false},
		{"over limit", "a.mp3", "audio/mpeg", MaxUploadBytes + 1, true},
		{"no file", "", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.file, tt.mime, tt.size, 0)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidUpload) {
					t.Fatalf("expected ErrInvalidUpload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"heartbeat.mp3":         "heartbeat.mp3",
		"../../etc/passwd":      "passwd",
		`C:\Users\x\latido.mp3`: "latido.mp3",
		"mi audio (1).mp3":      "mi_audio__1_.mp3",
		"corazón.mp3":           "coraz_n.mp3",
		"..":                    "audio.mp3",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

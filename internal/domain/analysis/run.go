package analysis

import "time"

// RunRequest for Runner
type RunRequest struct {
	FilePath string // absolute
}

// RunResult is what the classifier process left behind.
type RunResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

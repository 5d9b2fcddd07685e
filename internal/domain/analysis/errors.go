package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidUpload: wrong type, too large or missing file.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrStorage: the accepted upload could not be written.
	ErrStorage = errors.New("upload storage failed")
	// ErrLaunch: the classifier process could not be started.
	ErrLaunch = errors.New("classifier launch failed")
	// ErrTimeout: the classifier exceeded its deadline and was killed.
	ErrTimeout = errors.New("classifier timed out")
	// ErrMalformedOutput: stdout was not a single well-formed record.
	ErrMalformedOutput = errors.New("malformed classifier output")
	// ErrPersistence: the analysis row could not be written.
	ErrPersistence = errors.New("analysis persistence failed")
	// ErrNotFound: no such analysis.
	ErrNotFound = errors.New("analysis not found")
)

// ClassificationError carries the message the classifier reported with status "error".
type ClassificationError struct {
	Message string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification error: %s", e.Message)
}

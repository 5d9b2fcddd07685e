package analysis

import (
	"context"
	"io"
)

// Repository port (persistence gateway)
type Repository interface {
	Record(ctx context.Context, f UploadedFile, out Output, patientInfo string) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]*Record, error)
	Get(ctx context.Context, id int64) (*Record, error)
	Aggregate(ctx context.Context) ([]ClassStat, error)
}

// Runner port: runs the external classifier against a stored file.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// FileStore port: durable storage for accepted uploads.
type FileStore interface {
	Save(ctx context.Context, originalName, mimeType string, src io.Reader) (UploadedFile, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// ArtifactStore port: optional off-host mirror of accepted uploads.
type ArtifactStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

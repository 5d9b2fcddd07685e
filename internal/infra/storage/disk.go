package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/heartscan/internal/domain/analysis"
)

// Clock lets tests pin the timestamp component of stored names.
type Clock interface {
	Now() time.Time
}

// Disk keeps accepted uploads under a single directory.
type Disk struct {
	dir      string
	maxBytes int64
	clock    Clock
}

func NewDisk(dir string, maxBytes int64, clock Clock) (*Disk, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = domain.MaxUploadBytes
	}
	return &Disk{dir: abs, maxBytes: maxBytes, clock: clock}, nil
}

// Dir is the absolute uploads directory.
func (d *Disk) Dir() string { return d.dir }

// Save streams src to <dir>/<millis>-<random>-<sanitized name>. The file is
// created exclusively, so two uploads can never share a path.
func (d *Disk) Save(ctx context.Context, originalName, mimeType string, src io.Reader) (domain.UploadedFile, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return domain.UploadedFile{}, fmt.Errorf("%w: mkdir %s: %v", domain.ErrStorage, d.dir, err)
	}

	clean := domain.SanitizeFilename(originalName)
	var (
		f    *os.File
		name string
		err  error
	)
	for attempt := 0; attempt < 5; attempt++ {
		name = d.storedName(clean)
		f, err = os.OpenFile(filepath.Join(d.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil || !errors.Is(err, os.ErrExist) {
			break
		}
	}
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("%w: create: %v", domain.ErrStorage, err)
	}
	path := f.Name()

	n, err := io.Copy(f, io.LimitReader(src, d.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return domain.UploadedFile{}, fmt.Errorf("%w: write: %v", domain.ErrStorage, err)
	}
	if n > d.maxBytes {
		_ = os.Remove(path)
		return domain.UploadedFile{}, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidUpload, d.maxBytes)
	}

	return domain.UploadedFile{
		StoredName:   name,
		OriginalName: originalName,
		Path:         path,
		MimeType:     mimeType,
		Size:         n,
	}, nil
}

func (d *Disk) storedName(clean string) string {
	u := uuid.New()
	rnd := binary.BigEndian.Uint32(u[:4]) % 1_000_000_000
	return fmt.Sprintf("%d-%09d-%s", d.clock.Now().UnixMilli(), rnd, clean)
}

// Read returns the bytes of a stored file; a missing file is ErrNotFound.
func (d *Disk) Read(ctx context.Context, path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, err
	}
	return b, nil
}

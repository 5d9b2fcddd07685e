package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	domain "github.com/bryanwahyu/heartscan/internal/domain/analysis"
	"github.com/bryanwahyu/heartscan/internal/logger"
)

// Service implements the upload pipeline and the read use-cases.
// Safe for concurrent use; all pipeline state is per call.
type Service struct {
	Repo    domain.Repository
	Runner  domain.Runner
	Files   domain.FileStore
	Archive domain.ArtifactStore // optional
	Log     *logger.Logger

	MaxUploadBytes int64
	// FailClosed makes a failed insert fail the whole upload.
	FailClosed bool
}

// UploadCommand is one multipart upload as received.
type UploadCommand struct {
	Filename    string
	MimeType    string
	Size        int64
	Body        io.Reader
	PatientInfo string
}

// UploadResult is what the renderer needs. File is set as soon as intake
// succeeded, even when a later stage fails.
type UploadResult struct {
	File        domain.UploadedFile
	Output      domain.Output
	PatientInfo string
	RecordID    int64
	Saved       bool
	PersistErr  error
}

// Process runs intake → classifier → parser → persistence, stopping at the
// first failing stage. The stored file is kept whatever happens afterwards.
func (s *Service) Process(ctx context.Context, cmd UploadCommand) (UploadResult, error) {
	res := UploadResult{PatientInfo: strings.TrimSpace(cmd.PatientInfo)}
	if res.PatientInfo == "" {
		res.PatientInfo = domain.DefaultPatientInfo
	}

	if err := domain.ValidateUpload(cmd.Filename, cmd.MimeType, cmd.Size, s.MaxUploadBytes); err != nil {
		s.Log.Warn("upload rejected", "filename", cmd.Filename, "mime", cmd.MimeType, "size", cmd.Size, "error", err)
		return res, err
	}

	file, err := s.Files.Save(ctx, cmd.Filename, cmd.MimeType, cmd.Body)
	if err != nil {
		s.Log.Error("upload not stored", "filename", cmd.Filename, "error", err)
		return res, err
	}
	res.File = file
	log := s.Log.With("stored_name", file.StoredName)
	log.Info("new analysis request", "original_name", file.OriginalName, "size", file.Size, "patient", res.PatientInfo)

	if s.Archive != nil {
		if url, err := s.Archive.Upload(ctx, file.Path, "audios/"+file.StoredName); err != nil {
			log.Warn("archive mirror failed", "error", err)
		} else {
			log.Debug("archived upload", "url", url)
		}
	}

	run, err := s.Runner.Run(ctx, domain.RunRequest{FilePath: file.Path})
	if err != nil {
		log.Error("classifier run failed", "error", err, "stderr", string(run.Stderr))
		return res, err
	}
	log.Info("classifier exited", "exit_code", run.ExitCode, "duration_ms", run.Duration.Milliseconds())

	out, err := domain.ParseOutput(run.Stdout)
	if err != nil {
		var ce *domain.ClassificationError
		if errors.As(err, &ce) {
			log.Warn("classifier reported an error", "message", ce.Message)
		} else {
			log.Error("classifier output not parseable", "error", err, "stdout", string(run.Stdout))
		}
		return res, err
	}
	res.Output = out

	id, err := s.Repo.Record(ctx, file, out, res.PatientInfo)
	if err != nil {
		res.PersistErr = fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		log.Error("analysis not saved", "error", err, "fail_closed", s.FailClosed)
		if s.FailClosed {
			return res, res.PersistErr
		}
		return res, nil
	}
	res.RecordID = id
	res.Saved = true
	log.Info("analysis saved", "id", id, "class", out.Class, "confidence", out.Confidence)
	return res, nil
}

// History returns the latest analyses.
func (s *Service) History(ctx context.Context) ([]*domain.Record, error) {
	return s.Repo.ListRecent(ctx, domain.DefaultHistoryLimit)
}

// Stats groups analyses per classification.
func (s *Service) Stats(ctx context.Context) ([]domain.ClassStat, error) {
	return s.Repo.Aggregate(ctx)
}

const (
	audioMissing   = "Archivo de audio no encontrado"
	audioReadError = "Error al leer archivo de audio"
)

// Detail loads one analysis with its audio inlined as base64. A missing or
// unreadable file and unparseable graph data degrade to null fields.
func (s *Service) Detail(ctx context.Context, id int64) (*domain.Detail, error) {
	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &domain.Detail{
		ID:           rec.ID,
		OriginalName: rec.OriginalName,
		Class:        rec.Class,
		Confidence:   rec.Confidence,
		Cycles:       rec.Cycles,
		AnalyzedAt:   rec.AnalyzedAt,
		PatientInfo:  rec.PatientInfo,
	}

	audio, err := s.Files.Read(ctx, rec.Path)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		msg := audioMissing
		d.AudioError = &msg
	case err != nil:
		s.Log.Error("reading audio", "id", id, "path", rec.Path, "error", err)
		msg := audioReadError
		d.AudioError = &msg
	default:
		enc := base64.StdEncoding.EncodeToString(audio)
		d.AudioBase64 = &enc
	}

	d.GraphData = domain.DecodeGraphData(rec.GraphData)
	if rec.GraphData != nil && d.GraphData == nil {
		s.Log.Warn("stored graph_data is not valid JSON", "id", id)
	}
	return d, nil
}

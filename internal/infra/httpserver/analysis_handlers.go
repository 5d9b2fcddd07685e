package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	appanalysis "github.com/bryanwahyu/heartscan/internal/application/analysis"
	domain "github.com/bryanwahyu/heartscan/internal/domain/analysis"
	"github.com/bryanwahyu/heartscan/internal/middleware"
)

const (
	uploadField  = "cancion"
	patientField = "paciente_info"

	// room for the multipart envelope and the text fields around the file
	formOverhead    = 1 << 20
	multipartMemory = 1 << 20
)

// POST /upload (multipart: cancion, paciente_info)
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) {
	middleware.IncrementUploads()

	req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxUploadBytes+formOverhead)
	cmd, cleanup, err := r.readUpload(req)
	defer cleanup()
	if err != nil {
		r.log.Warn("upload form rejected", "error", err, "ip", middleware.ClientIP(req))
		r.renderUploadFailure(w, err)
		return
	}

	middleware.IncrementClassifying()
	res, err := r.analysis.Process(context.WithoutCancel(req.Context()), cmd)
	middleware.DecrementClassifying()
	if err != nil {
		r.renderUploadFailure(w, err)
		return
	}

	if res.Saved {
		middleware.IncrementSaved()
	} else if res.PersistErr != nil {
		middleware.IncrementPersistenceFailures()
	}
	if err := r.pages.render(w, http.StatusOK, "result.html", newResultView(res)); err != nil {
		r.log.Error("render result", "error", err)
	}
}

func (r *Router) readUpload(req *http.Request) (appanalysis.UploadCommand, func(), error) {
	cleanup := func() {}
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		return appanalysis.UploadCommand{}, cleanup, errors.Join(domain.ErrInvalidUpload, err)
	}
	cleanup = func() { req.MultipartForm.RemoveAll() }

	file, header, err := req.FormFile(uploadField)
	if err != nil {
		return appanalysis.UploadCommand{}, cleanup, errors.Join(domain.ErrInvalidUpload, err)
	}
	prev := cleanup
	cleanup = func() {
		file.Close()
		prev()
	}

	return appanalysis.UploadCommand{
		Filename:    header.Filename,
		MimeType:    header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		PatientInfo: middleware.SanitizeString(req.FormValue(patientField)),
	}, cleanup, nil
}

func (r *Router) renderUploadFailure(w http.ResponseWriter, err error) {
	countUploadFailure(err)
	status, view := uploadFailure(err)
	if rerr := r.pages.message(w, status, view); rerr != nil {
		r.log.Error("render upload failure", "error", rerr)
	}
}

func countUploadFailure(err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidUpload):
		middleware.IncrementRejected()
	case errors.Is(err, domain.ErrStorage):
		middleware.IncrementStorageFailures()
	case errors.Is(err, domain.ErrLaunch):
		middleware.IncrementLaunchFailures()
	case errors.Is(err, domain.ErrTimeout):
		middleware.IncrementTimeouts()
	case errors.Is(err, domain.ErrPersistence):
		middleware.IncrementPersistenceFailures()
	default:
		middleware.IncrementClassifierFailed()
	}
}

// GET /api/historial
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	list, err := r.analysis.History(req.Context())
	if err != nil {
		return failWith(http.StatusInternalServerError, "Error al obtener historial", err)
	}
	if list == nil {
		list = []*domain.Record{}
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /api/analisis/{id}
func (r *Router) handleDetail(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseID(chi.URLParam(req, "id"))
	if err != nil {
		return failWith(http.StatusNotFound, "Análisis no encontrado", err)
	}
	d, err := r.analysis.Detail(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, d)
}

// GET /api/estadisticas
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	stats, err := r.analysis.Stats(req.Context())
	if err != nil {
		return failWith(http.StatusInternalServerError, "Error al obtener estadísticas", err)
	}
	if stats == nil {
		stats = []domain.ClassStat{}
	}
	return writeJSON(w, http.StatusOK, stats)
}

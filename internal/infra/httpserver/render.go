package httpserver

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"

	appanalysis "github.com/bryanwahyu/heartscan/internal/application/analysis"
	domain "github.com/bryanwahyu/heartscan/internal/domain/analysis"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*.html
var staticFS embed.FS

type renderer struct {
	tmpl   *template.Template
	static fs.FS
}

func newRenderer() *renderer {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return &renderer{
		tmpl:   template.Must(template.ParseFS(templateFS, "templates/*.html")),
		static: sub,
	}
}

// resultView feeds templates/result.html.
type resultView struct {
	Title        string
	Icon         string
	Color        string
	Class        string
	Confidence   float64
	Cycles       int
	PatientInfo  string
	OriginalName string
	Saved        bool
	RecordID     int64
}

func newResultView(res appanalysis.UploadResult) resultView {
	v := resultView{
		Title:        "ANOMALÍA DETECTADA",
		Icon:         "⚠️",
		Color:        "#dc3545",
		Class:        res.Output.Class,
		Confidence:   res.Output.Confidence,
		Cycles:       res.Output.Cycles,
		PatientInfo:  res.PatientInfo,
		OriginalName: res.File.OriginalName,
		Saved:        res.Saved,
		RecordID:     res.RecordID,
	}
	if res.Output.IsNormal() {
		v.Title, v.Icon, v.Color = "CORAZÓN NORMAL", "💚", "#28a745"
	}
	return v
}

// messageView feeds templates/message.html, used for every error and notice page.
type messageView struct {
	Title    string
	Color    string
	Message  string
	LinkHref string
	LinkText string
}

const (
	colorError   = "red"
	colorWarning = "orange"
	colorOK      = "#28a745"
)

func (p *renderer) render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func (p *renderer) message(w http.ResponseWriter, status int, v messageView) error {
	if v.LinkHref == "" {
		v.LinkHref, v.LinkText = "/", "Volver"
	}
	return p.render(w, status, "message.html", v)
}

// page serves one of the embedded static pages.
func (r *Router) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, err := fs.ReadFile(r.pages.static, name)
		if err != nil {
			r.log.Error("static page missing", "page", name, "error", err)
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(body)
	}
}

// uploadFailure maps a pipeline error to the page the user sees.
func uploadFailure(err error) (int, messageView) {
	var ce *domain.ClassificationError
	switch {
	case errors.As(err, &ce):
		return http.StatusInternalServerError, messageView{
			Title:   "No se pudo analizar",
			Color:   colorWarning,
			Message: ce.Message,
		}
	case errors.Is(err, domain.ErrInvalidUpload):
		return http.StatusBadRequest, messageView{
			Title:    "Archivo no válido",
			Color:    colorError,
			Message:  "Por favor sube un archivo MP3 válido (máximo 10 MB).",
			LinkText: "Intentar de nuevo",
		}
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInternalServerError, messageView{
			Title:    "Error Interno",
			Color:    colorError,
			Message:  "No se pudo guardar el archivo subido.",
			LinkText: "Intentar de nuevo",
		}
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout, messageView{
			Title:    "Tiempo de análisis agotado",
			Color:    colorError,
			Message:  "El análisis tardó demasiado y fue cancelado. Intenta con un audio más corto.",
			LinkText: "Intentar de nuevo",
		}
	case errors.Is(err, domain.ErrMalformedOutput):
		return http.StatusInternalServerError, messageView{
			Title:    "Error Interno",
			Color:    colorError,
			Message:  "El sistema de IA no devolvió una respuesta válida.",
			LinkText: "Intentar de nuevo",
		}
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, messageView{
			Title:    "Error Interno",
			Color:    colorError,
			Message:  "El análisis se completó pero no pudo guardarse.",
			LinkText: "Intentar de nuevo",
		}
	default:
		return http.StatusInternalServerError, messageView{
			Title:    "Error Interno",
			Color:    colorError,
			Message:  "No fue posible procesar el archivo en este momento.",
			LinkText: "Intentar de nuevo",
		}
	}
}

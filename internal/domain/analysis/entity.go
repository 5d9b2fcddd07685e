package analysis

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultPatientInfo is stored when the upload form carries no annotation.
const DefaultPatientInfo = "Sin información del paciente"

// DefaultHistoryLimit is the size of the history listing.
const DefaultHistoryLimit = 50

// UploadedFile describes an accepted upload already written to disk.
type UploadedFile struct {
	StoredName   string
	OriginalName string
	Path         string // absolute
	MimeType     string
	Size         int64
}

// Request is the transient input to one classification.
type Request struct {
	FilePath    string
	PatientInfo string
}

// Status reported by the classifier process.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Output is the parsed classifier verdict. GraphData always holds the
// canonical serialized text, or nil when the classifier sent none.
type Output struct {
	Status     Status
	Class      string
	Confidence float64
	Cycles     int
	GraphData  *string
	Message    string
}

// IsNormal drives the severity styling of the result page.
func (o Output) IsNormal() bool {
	return strings.EqualFold(o.Class, "normal")
}

// Record is one persisted analisis_audios row.
type Record struct {
	ID           int64     `json:"id"`
	StoredName   string    `json:"nombre_archivo"`
	OriginalName string    `json:"nombre_original"`
	Path         string    `json:"ruta_archivo"`
	Class        string    `json:"clasificacion"`
	Confidence   float64   `json:"confianza"`
	Cycles       int       `json:"ciclos_latidos"`
	PatientInfo  string    `json:"paciente_info"`
	GraphData    *string   `json:"graph_data"`
	AnalyzedAt   time.Time `json:"fecha_analisis"`
}

// Detail is the single-record API view with the audio inlined.
type Detail struct {
	ID           int64           `json:"id"`
	OriginalName string          `json:"nombre_original"`
	Class        string          `json:"clasificacion"`
	Confidence   float64         `json:"confianza"`
	Cycles       int             `json:"ciclos_latidos"`
	AnalyzedAt   time.Time       `json:"fecha_analisis"`
	PatientInfo  string          `json:"paciente_info"`
	AudioBase64  *string         `json:"audio_base64"`
	AudioError   *string         `json:"audio_error"`
	GraphData    json.RawMessage `json:"graph_data"`
}

// ClassStat aggregates records sharing a classification label.
type ClassStat struct {
	Class         string  `json:"clasificacion"`
	Total         int64   `json:"total"`
	AvgConfidence float64 `json:"confianza_promedio"`
}

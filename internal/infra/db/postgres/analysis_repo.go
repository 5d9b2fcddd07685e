package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/heartscan/internal/domain/analysis"
)

type AnalysisRepository struct{ db *sql.DB }

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository { return &AnalysisRepository{db: db} }

const analysisColumns = `id, nombre_archivo, nombre_original, ruta_archivo, clasificacion,
       confianza, ciclos_latidos, paciente_info, graph_data, fecha_analisis`

func (r *AnalysisRepository) Record(ctx context.Context, f domain.UploadedFile, out domain.Output, patientInfo string) (int64, error) {
	const q = `
INSERT INTO analisis_audios
  (nombre_archivo, nombre_original, ruta_archivo, clasificacion, confianza, ciclos_latidos, paciente_info, graph_data)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id`
	var id int64
	err := r.db.QueryRowContext(ctx, q,
		f.StoredName, f.OriginalName, f.Path,
		out.Class, out.Confidence, out.Cycles,
		stringOrDefault(patientInfo, domain.DefaultPatientInfo),
		out.GraphData,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert analysis: %w", err)
	}
	return id, nil
}

func (r *AnalysisRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}
	q := `SELECT ` + analysisColumns + `
FROM analisis_audios
ORDER BY fecha_analisis DESC, id DESC
LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *AnalysisRepository) Get(ctx context.Context, id int64) (*domain.Record, error) {
	q := `SELECT ` + analysisColumns + ` FROM analisis_audios WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *AnalysisRepository) Aggregate(ctx context.Context) ([]domain.ClassStat, error) {
	const q = `
SELECT clasificacion, COUNT(*), COALESCE(AVG(confianza), 0)
FROM analisis_audios
GROUP BY clasificacion
ORDER BY clasificacion`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer rows.Close()

	out := []domain.ClassStat{}
	for rows.Next() {
		var s domain.ClassStat
		if err := rows.Scan(&s.Class, &s.Total, &s.AvgConfidence); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var patient, graph sql.NullString
	if err := row.Scan(
		&rec.ID, &rec.StoredName, &rec.OriginalName, &rec.Path, &rec.Class,
		&rec.Confidence, &rec.Cycles, &patient, &graph, &rec.AnalyzedAt,
	); err != nil {
		return nil, err
	}
	rec.PatientInfo = patient.String
	rec.GraphData = nullString(graph)
	return &rec, nil
}

package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/bryanwahyu/heartscan/internal/domain/analysis"
	"github.com/bryanwahyu/heartscan/internal/domain/users"
	"github.com/bryanwahyu/heartscan/internal/testhelpers"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return testhelpers.NewSQLiteDB(t)
}

func sampleFile(name string) analysis.UploadedFile {
	return analysis.UploadedFile{
		StoredName:   "1700000000000-000000001-" + name,
		OriginalName: name,
		Path:         "/srv/uploads/1700000000000-000000001-" + name,
		MimeType:     "audio/mpeg",
		Size:         1234,
	}
}

func TestAnalysisRepository_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository(newTestDB(t))

	graph := `{"envelope":[0.1,0.9],"fs":2000}`
	out := analysis.Output{Status: analysis.StatusOK, Class: "Normal", Confidence: 92.5, Cycles: 14, GraphData: &graph}

	id, err := repo.Record(ctx, sampleFile("heartbeat.mp3"), out, "Juan, 45 años")
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected generated id, got %d", id)
	}

	rec, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.ID != id || rec.Class != "Normal" || rec.Confidence != 92.5 || rec.Cycles != 14 {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.OriginalName != "heartbeat.mp3" || rec.PatientInfo != "Juan, 45 años" {
		t.Errorf("metadata not stored: %+v", rec)
	}
	if rec.AnalyzedAt.IsZero() {
		t.Errorf("fecha_analisis not assigned")
	}

	var want, got map[string]any
	_ = json.Unmarshal([]byte(graph), &want)
	if err := json.Unmarshal(analysis.DecodeGraphData(rec.GraphData), &got); err != nil {
		t.Fatalf("graph data: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("graph round trip: %v vs %v", want, got)
	}
}

func TestAnalysisRepository_DefaultsAndNulls(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository(newTestDB(t))

	id, err := repo.Record(ctx, sampleFile("a.mp3"), analysis.Output{Class: "Murmur", Confidence: 70, Cycles: 8}, "  ")
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	rec, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.PatientInfo != analysis.DefaultPatientInfo {
		t.Errorf("patient info = %q", rec.PatientInfo)
	}
	if rec.GraphData != nil {
		t.Errorf("graph data should be NULL, got %q", *rec.GraphData)
	}
}

func TestAnalysisRepository_GetMissing(t *testing.T) {
	repo := NewAnalysisRepository(newTestDB(t))
	if _, err := repo.Get(context.Background(), 99); !errors.Is(err, analysis.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalysisRepository_ListRecentOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewAnalysisRepository(db)

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := repo.Record(ctx, sampleFile("x.mp3"), analysis.Output{Class: "Normal", Confidence: 80, Cycles: i}, "")
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	// push the first row into the future so timestamp order beats id order
	if _, err := db.Exec(`UPDATE analisis_audios SET fecha_analisis = ? WHERE id = ?`, "2999-01-01 00:00:00", ids[0]); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, err := repo.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecent error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(list))
	}
	if list[0].ID != ids[0] {
		t.Errorf("newest row should be %d, got %d", ids[0], list[0].ID)
	}
	if list[1].ID != ids[4] || list[2].ID != ids[3] {
		t.Errorf("ties should fall back to id desc: got %d, %d", list[1].ID, list[2].ID)
	}
}

func TestAnalysisRepository_Aggregate(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository(newTestDB(t))

	for _, o := range []analysis.Output{
		{Class: "Normal", Confidence: 90, Cycles: 1},
		{Class: "Normal", Confidence: 80, Cycles: 1},
		{Class: "Murmur", Confidence: 60, Cycles: 1},
	} {
		if _, err := repo.Record(ctx, sampleFile("s.mp3"), o, ""); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	stats, err := repo.Aggregate(ctx)
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	want := []analysis.ClassStat{
		{Class: "Murmur", Total: 1, AvgConfidence: 60},
		{Class: "Normal", Total: 2, AvgConfidence: 85},
	}
	if !reflect.DeepEqual(stats, want) {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

func TestUserRepository_CreateFindList(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)

	acc := &users.Account{FullName: "Ana Pérez", Email: "ana@example.com", PasswordHash: "$2a$hash"}
	id, err := repo.CreatePatient(ctx, acc)
	if err != nil {
		t.Fatalf("CreatePatient error: %v", err)
	}
	if acc.ID != id {
		t.Errorf("account id not set")
	}

	var patients int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pacientes WHERE usuario_id = ?`, id).Scan(&patients); err != nil || patients != 1 {
		t.Fatalf("expected linked paciente row, got %d (%v)", patients, err)
	}

	if _, err := repo.CreatePatient(ctx, &users.Account{FullName: "Otra", Email: "ana@example.com", PasswordHash: "x"}); !errors.Is(err, users.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	found, err := repo.FindByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}
	if found.PasswordHash != "$2a$hash" || found.Role != users.RolePatient || found.LastAccess != nil {
		t.Errorf("unexpected account %+v", found)
	}

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := repo.TouchLastAccess(ctx, id, at); err != nil {
		t.Fatalf("TouchLastAccess error: %v", err)
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 1 || list[0].LastAccess == nil || !list[0].LastAccess.Equal(at) {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[0].PasswordHash != "" {
		t.Errorf("List must not load passwords")
	}

	if _, err := repo.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, users.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

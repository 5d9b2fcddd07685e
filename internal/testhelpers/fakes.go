package testhelpers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bryanwahyu/heartscan/internal/domain/analysis"
	"github.com/bryanwahyu/heartscan/internal/domain/users"
)

// FakeRunner answers every Run with a canned stdout (or error) and counts calls.
type FakeRunner struct {
	mu     sync.Mutex
	Stdout string
	Err    error
	Calls  []analysis.RunRequest
}

func (f *FakeRunner) Run(ctx context.Context, req analysis.RunRequest) (analysis.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, req)
	if f.Err != nil {
		return analysis.RunResult{ExitCode: -1}, f.Err
	}
	return analysis.RunResult{Stdout: []byte(f.Stdout), Duration: time.Millisecond}, nil
}

func (f *FakeRunner) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// AnalysisRepo is an in-memory analysis.Repository. Set RecordErr to make
// inserts fail.
type AnalysisRepo struct {
	mu        sync.Mutex
	rows      []*analysis.Record
	RecordErr error
}

func (r *AnalysisRepo) Record(ctx context.Context, f analysis.UploadedFile, out analysis.Output, patientInfo string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.RecordErr != nil {
		return 0, r.RecordErr
	}
	rec := &analysis.Record{
		ID:           int64(len(r.rows) + 1),
		StoredName:   f.StoredName,
		OriginalName: f.OriginalName,
		Path:         f.Path,
		Class:        out.Class,
		Confidence:   out.Confidence,
		Cycles:       out.Cycles,
		PatientInfo:  patientInfo,
		GraphData:    out.GraphData,
		AnalyzedAt:   time.Now().Add(time.Duration(len(r.rows)) * time.Millisecond),
	}
	r.rows = append(r.rows, rec)
	return rec.ID, nil
}

func (r *AnalysisRepo) ListRecent(ctx context.Context, limit int) ([]*analysis.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*analysis.Record, 0, len(r.rows))
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.rows[i])
	}
	return out, nil
}

func (r *AnalysisRepo) Get(ctx context.Context, id int64) (*analysis.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.rows {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, analysis.ErrNotFound
}

func (r *AnalysisRepo) Aggregate(ctx context.Context) ([]analysis.ClassStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := map[string]int{}
	var out []analysis.ClassStat
	for _, rec := range r.rows {
		i, ok := idx[rec.Class]
		if !ok {
			i = len(out)
			idx[rec.Class] = i
			out = append(out, analysis.ClassStat{Class: rec.Class})
		}
		s := &out[i]
		s.AvgConfidence = (s.AvgConfidence*float64(s.Total) + rec.Confidence) / float64(s.Total+1)
		s.Total++
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Class < out[b].Class })
	return out, nil
}

// Count is the number of stored analyses.
func (r *AnalysisRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// UserRepo is an in-memory users.Repository.
type UserRepo struct {
	mu       sync.Mutex
	accounts []*users.Account
}

func (r *UserRepo) CreatePatient(ctx context.Context, a *users.Account) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.accounts {
		if strings.EqualFold(acc.Email, a.Email) {
			return 0, users.ErrEmailTaken
		}
	}
	cp := *a
	cp.ID = int64(len(r.accounts) + 1)
	if cp.Role == "" {
		cp.Role = users.RolePatient
	}
	cp.RegisteredAt = time.Now()
	r.accounts = append(r.accounts, &cp)
	a.ID = cp.ID
	return cp.ID, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*users.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.accounts {
		if acc.Email == email {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (r *UserRepo) TouchLastAccess(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.accounts {
		if acc.ID == id {
			t := at
			acc.LastAccess = &t
		}
	}
	return nil
}

func (r *UserRepo) List(ctx context.Context) ([]*users.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*users.Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		cp := *acc
		cp.PasswordHash = ""
		out = append(out, &cp)
	}
	return out, nil
}

package users

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/bryanwahyu/heartscan/internal/domain/users"
	"github.com/bryanwahyu/heartscan/internal/infra/session"
	"github.com/bryanwahyu/heartscan/internal/logger"
	"github.com/bryanwahyu/heartscan/internal/testhelpers"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var loginAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newService() (*Service, *testhelpers.UserRepo) {
	repo := &testhelpers.UserRepo{}
	return &Service{
		Repo:       repo,
		Sessions:   session.NewMemory(),
		Clock:      fixedClock{loginAt},
		Log:        logger.Nop(),
		SessionTTL: time.Hour,
	}, repo
}

func register(t *testing.T, svc *Service) *domain.Account {
	t.Helper()
	acc, err := svc.Register(context.Background(), RegisterCommand{
		FullName: "Rosa Pérez",
		Email:    " Rosa@Example.com ",
		Password: "secreta123",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return acc
}

func TestRegister_HashesPasswordAndNormalizesEmail(t *testing.T) {
	svc, repo := newService()
	acc := register(t, svc)

	if acc.ID == 0 || acc.Role != domain.RolePatient {
		t.Errorf("account = %+v", acc)
	}
	stored, err := repo.FindByEmail(context.Background(), "rosa@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "secreta123" {
		t.Errorf("password stored as %q", stored.PasswordHash)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newService()
	cases := []RegisterCommand{
		{FullName: "", Email: "a@b.com", Password: "secreta123"},
		{FullName: "Ana", Email: "no-es-email", Password: "secreta123"},
		{FullName: "Ana", Email: "a@b.com", Password: ""},
	}
	for _, c := range cases {
		if _, err := svc.Register(context.Background(), c); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Register(%+v) err = %v, want ErrInvalidInput", c, err)
		}
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newService()
	register(t, svc)

	_, err := svc.Register(context.Background(), RegisterCommand{
		FullName: "Otra Rosa",
		Email:    "rosa@example.com",
		Password: "otraclave",
	})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestLogin_OpensSessionAndTouchesLastAccess(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()
	acc := register(t, svc)

	sess, err := svc.Login(ctx, LoginCommand{Email: "ROSA@example.com", Password: "secreta123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.UserID != acc.ID || sess.Name != "Rosa Pérez" || sess.ID == "" {
		t.Errorf("session = %+v", sess)
	}

	got, err := svc.Session(ctx, sess.ID)
	if err != nil || got.UserID != acc.ID {
		t.Fatalf("Session = %+v, %v", got, err)
	}

	stored, _ := repo.FindByEmail(ctx, "rosa@example.com")
	if stored.LastAccess == nil || !stored.LastAccess.Equal(loginAt) {
		t.Errorf("ultimo_acceso = %v, want %v", stored.LastAccess, loginAt)
	}

	if err := svc.Logout(ctx, sess.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Session(ctx, sess.ID); !errors.Is(err, domain.ErrNoSession) {
		t.Errorf("after logout err = %v, want ErrNoSession", err)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _ := newService()
	register(t, svc)

	for _, cmd := range []LoginCommand{
		{Email: "rosa@example.com", Password: "incorrecta"},
		{Email: "nadie@example.com", Password: "secreta123"},
	} {
		if _, err := svc.Login(context.Background(), cmd); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Errorf("Login(%s) err = %v, want ErrInvalidCredentials", cmd.Email, err)
		}
	}
}

func TestList_OmitsPasswords(t *testing.T) {
	svc, _ := newService()
	register(t, svc)

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].PasswordHash != "" {
		t.Errorf("list = %+v", list)
	}
}

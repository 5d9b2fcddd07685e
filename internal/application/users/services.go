package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bryanwahyu/heartscan/internal/application"
	domain "github.com/bryanwahyu/heartscan/internal/domain/users"
	"github.com/bryanwahyu/heartscan/internal/logger"
)

// Service covers registration, login/logout and the account listing.
type Service struct {
	Repo       domain.Repository
	Sessions   domain.SessionStore
	Clock      application.Clock
	Log        *logger.Logger
	SessionTTL time.Duration
}

var validate = validator.New()

// RegisterCommand is the /registro form.
type RegisterCommand struct {
	FullName string `validate:"required,max=100"`
	Email    string `validate:"required,email,max=100"`
	Password string `validate:"required,min=6,max=72"`
}

// LoginCommand is the /login form.
type LoginCommand struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a patient account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*domain.Account, error) {
	cmd.FullName = strings.TrimSpace(cmd.FullName)
	cmd.Email = normalizeEmail(cmd.Email)
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc := &domain.Account{
		FullName:     cmd.FullName,
		Email:        cmd.Email,
		PasswordHash: string(hash),
		Role:         domain.RolePatient,
	}
	id, err := s.Repo.CreatePatient(ctx, acc)
	if err != nil {
		if !errors.Is(err, domain.ErrEmailTaken) {
			s.Log.Error("registration failed", "email", cmd.Email, "error", err)
		}
		return nil, err
	}
	acc.ID = id
	s.Log.Info("account registered", "id", id, "email", acc.Email)
	return acc, nil
}

// Login verifies the credentials and opens a session. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, cmd LoginCommand) (*domain.Session, error) {
	cmd.Email = normalizeEmail(cmd.Email)
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	acc, err := s.Repo.FindByEmail(ctx, cmd.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.Log.Warn("login for unknown email", "email", cmd.Email)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(cmd.Password)); err != nil {
		s.Log.Warn("login with wrong password", "email", cmd.Email)
		return nil, domain.ErrInvalidCredentials
	}

	now := s.Clock.Now()
	sess := domain.Session{
		ID:        uuid.NewString(),
		UserID:    acc.ID,
		Email:     acc.Email,
		Name:      acc.FullName,
		CreatedAt: now,
	}
	if err := s.Sessions.Save(ctx, sess, s.SessionTTL); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if err := s.Repo.TouchLastAccess(ctx, acc.ID, now); err != nil {
		s.Log.Warn("ultimo_acceso not updated", "id", acc.ID, "error", err)
	}
	s.Log.Info("login", "user_id", acc.ID)
	return &sess, nil
}

// Logout drops the session; an unknown id is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.Sessions.Delete(ctx, sessionID)
}

// Session resolves a cookie value to its session, or ErrNoSession.
func (s *Service) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, domain.ErrNoSession
	}
	return s.Sessions.Get(ctx, sessionID)
}

// List returns every account without password material.
func (s *Service) List(ctx context.Context) ([]*domain.Account, error) {
	list, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		a.PasswordHash = ""
	}
	return list, nil
}

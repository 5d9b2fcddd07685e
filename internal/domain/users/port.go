package users

import (
	"context"
	"time"
)

// Repository port for usuarios/pacientes.
type Repository interface {
	// CreatePatient inserts the account and its linked pacientes row.
	CreatePatient(ctx context.Context, a *Account) (int64, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	TouchLastAccess(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context) ([]*Account, error)
}

// SessionStore keeps sessions keyed by their random id.
type SessionStore interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

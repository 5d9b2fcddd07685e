package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/heartscan/internal/domain/users"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreatePatient inserts the usuarios row and its pacientes link in one transaction.
func (r *UserRepository) CreatePatient(ctx context.Context, a *domain.Account) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM usuarios WHERE email = ?`, a.Email).Scan(&n); err != nil {
		return 0, fmt.Errorf("checking email: %w", err)
	}
	if n > 0 {
		return 0, domain.ErrEmailTaken
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO usuarios (nombre_completo, email, password, rol) VALUES (?,?,?,?)`,
		a.FullName, a.Email, a.PasswordHash, stringOrDefault(a.Role, domain.RolePatient),
	)
	if err != nil {
		if isDuplicate(err) {
			return 0, domain.ErrEmailTaken
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO pacientes (usuario_id) VALUES (?)`, id); err != nil {
		return 0, fmt.Errorf("insert patient: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const q = `
SELECT id, nombre_completo, email, password, rol, fecha_registro, ultimo_acceso
FROM usuarios WHERE email = ? LIMIT 1`
	var a domain.Account
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx, q, email).Scan(
		&a.ID, &a.FullName, &a.Email, &a.PasswordHash, &a.Role, &a.RegisteredAt, &last,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if last.Valid {
		a.LastAccess = &last.Time
	}
	return &a, nil
}

func (r *UserRepository) TouchLastAccess(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE usuarios SET ultimo_acceso = ? WHERE id = ?`, at, id)
	return err
}

// List returns every account without the password column.
func (r *UserRepository) List(ctx context.Context) ([]*domain.Account, error) {
	const q = `
SELECT id, nombre_completo, email, rol, fecha_registro, ultimo_acceso
FROM usuarios ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	out := []*domain.Account{}
	for rows.Next() {
		var a domain.Account
		var last sql.NullTime
		if err := rows.Scan(&a.ID, &a.FullName, &a.Email, &a.Role, &a.RegisteredAt, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			t := last.Time
			a.LastAccess = &t
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

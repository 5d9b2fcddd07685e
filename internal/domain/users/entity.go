package users

import "time"

const (
	RolePatient = "paciente"
)

// Account is a usuarios row. PasswordHash never leaves the server.
type Account struct {
	ID           int64      `json:"id"`
	FullName     string     `json:"nombre_completo"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"rol"`
	RegisteredAt time.Time  `json:"fecha_registro"`
	LastAccess   *time.Time `json:"ultimo_acceso"`
}

// Session is the server-side state behind the session cookie.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

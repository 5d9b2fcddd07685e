package testhelpers

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// sqliteSchema mirrors the MySQL and Postgres tables closely enough for the
// repository SQL of both gateways.
var sqliteSchema = []string{
	`CREATE TABLE usuarios (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  nombre_completo TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password TEXT NOT NULL,
  rol TEXT NOT NULL DEFAULT 'paciente',
  fecha_registro DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  ultimo_acceso DATETIME NULL
)`,
	`CREATE TABLE pacientes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  usuario_id INTEGER NOT NULL REFERENCES usuarios(id)
)`,
	`CREATE TABLE analisis_audios (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  nombre_archivo TEXT NOT NULL,
  nombre_original TEXT NOT NULL,
  ruta_archivo TEXT NOT NULL,
  clasificacion TEXT NOT NULL,
  confianza REAL NOT NULL,
  ciclos_latidos INTEGER NOT NULL,
  paciente_info TEXT,
  graph_data TEXT NULL,
  fecha_analisis DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
}

// NewSQLiteDB opens an in-memory sqlite database with the heartscan tables.
// sqlite accepts both ? and $N placeholders and supports RETURNING, so the
// same fixture serves the MySQL and Postgres repositories.
func NewSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// every :memory: connection is a separate database
	db.SetMaxOpenConns(1)
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("schema: %v", err)
		}
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

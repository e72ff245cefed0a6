package repository

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/wiltort/bot-constructor/internal/lib/sl"

	_ "modernc.org/sqlite"
)

// SQLite is the embedded store used when no MongoDB is configured.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens (or creates) the database file and prepares the schema.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	store, err := NewSQLite(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLite wraps an open database handle. One connection is kept so that
// in-memory databases are shared and writes are serialized.
func NewSQLite(db *sql.DB, logger *slog.Logger) (*SQLite, error) {
	db.SetMaxOpenConns(1)
	s := &SQLite{
		db:  db,
		log: logger.With(sl.Module("sqlite")),
	}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS bots (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			telegram_token TEXT NOT NULL DEFAULT '',
			gpt_api_key TEXT NOT NULL DEFAULT '',
			gpt_api_url TEXT NOT NULL DEFAULT '',
			ai_model TEXT NOT NULL DEFAULT '',
			current_scenario TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 0,
			is_running INTEGER NOT NULL DEFAULT 0,
			last_started INTEGER NOT NULL DEFAULT 0,
			last_stopped INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS scenarios (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			scenario_type TEXT NOT NULL DEFAULT 'conversation'
		);
		CREATE TABLE IF NOT EXISTS steps (
			id TEXT PRIMARY KEY,
			scenario_id TEXT NOT NULL,
			title TEXT NOT NULL,
			on_state TEXT NOT NULL DEFAULT '',
			result_state TEXT NOT NULL DEFAULT '',
			template TEXT NOT NULL,
			is_entry_point INTEGER NOT NULL DEFAULT 0,
			is_fallback INTEGER NOT NULL DEFAULT 0,
			is_end INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			is_using_ai INTEGER NOT NULL DEFAULT 0,
			priority INTEGER NOT NULL DEFAULT 1,
			message TEXT NOT NULL DEFAULT '',
			handler_data TEXT NOT NULL DEFAULT '{}',
			UNIQUE (scenario_id, title)
		);
		CREATE INDEX IF NOT EXISTS steps_scenario ON steps (scenario_id, priority, id);`,
	)
	return err
}

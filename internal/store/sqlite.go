package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type Store struct {
	Path string
	db   *sql.DB
}

// Open opens (creating if needed) the database at path and brings the
// schema up to date.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers inside this process; WAL and
	// busy_timeout cover other processes (the CLI and a running watcher).
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate %s: %w", path, err)
	}
	return &Store{Path: path, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			command_id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			issued_at_unixnano INTEGER NOT NULL,
			payload_json TEXT NOT NULL,
			created_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_aggregate ON commands(kind, aggregate_id);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_issued ON commands(issued_at_unixnano, seq);`,
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS checklists (
			id TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS claimed_commands (
			command_id TEXT PRIMARY KEY,
			aggregate_id TEXT NOT NULL,
			claimed_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS legacy_templates (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at_unixms INTEGER NOT NULL,
			is_removed INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS legacy_tasks (
			id TEXT PRIMARY KEY,
			template_id TEXT NOT NULL REFERENCES legacy_templates(id) ON DELETE CASCADE,
			parent_id TEXT,
			title TEXT NOT NULL,
			sort_position INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_legacy_tasks_template ON legacy_tasks(template_id);`,
		`CREATE TABLE IF NOT EXISTS legacy_reminders (
			id TEXT PRIMARY KEY,
			template_id TEXT NOT NULL REFERENCES legacy_templates(id) ON DELETE CASCADE,
			start_at_unixms INTEGER NOT NULL,
			repeat TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS legacy_checklists (
			id TEXT PRIMARY KEY,
			template_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at_unixms INTEGER NOT NULL,
			is_removed INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS legacy_checkboxes (
			id TEXT PRIMARY KEY,
			checklist_id TEXT NOT NULL REFERENCES legacy_checklists(id) ON DELETE CASCADE,
			parent_id TEXT,
			title TEXT NOT NULL,
			sort_position INTEGER NOT NULL,
			is_checked INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_legacy_checkboxes_checklist ON legacy_checkboxes(checklist_id);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

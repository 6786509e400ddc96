package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	metaMigrationRan = "legacy_migration_ran"
	metaLastSyncedAt = "last_synced_at"
	metaLastIssuedAt = "last_issued_at"
)

func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM meta WHERE k = ?`, strings.TrimSpace(key)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta(k, v) VALUES(?, ?)`, strings.TrimSpace(key), value)
	return err
}

func (s *Store) MigrationRan(ctx context.Context) (bool, error) {
	v, ok, err := s.GetMeta(ctx, metaMigrationRan)
	if err != nil || !ok {
		return false, err
	}
	b, _ := strconv.ParseBool(v)
	return b, nil
}

func (s *Store) MarkMigrationRan(ctx context.Context) error {
	return s.SetMeta(ctx, metaMigrationRan, "true")
}

// LastSyncedAt is the time of the last fully successful push. Zero if the
// log has never been drained.
func (s *Store) LastSyncedAt(ctx context.Context) (time.Time, error) {
	v, ok, err := s.GetMeta(ctx, metaLastSyncedAt)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func (s *Store) SetLastSyncedAt(ctx context.Context, t time.Time) error {
	return s.SetMeta(ctx, metaLastSyncedAt, t.UTC().Format(time.RFC3339Nano))
}

// LastIssuedAt is the newest command timestamp ever appended to this
// database. It outlives acknowledgement, so a new process can seed its clock
// past every command it or an earlier process issued.
func (s *Store) LastIssuedAt(ctx context.Context) (time.Time, error) {
	var ns int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(n) FROM (
			SELECT COALESCE(MAX(issued_at_unixnano), 0) AS n FROM commands
			UNION ALL
			SELECT COALESCE(CAST(v AS INTEGER), 0) FROM meta WHERE k = ?
		)`, metaLastIssuedAt).Scan(&ns)
	if err != nil {
		return time.Time{}, err
	}
	if ns == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, ns).UTC(), nil
}

func raiseLastIssued(ctx context.Context, q queryer, ns int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO meta(k, v) VALUES(?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v
		WHERE CAST(excluded.v AS INTEGER) > CAST(meta.v AS INTEGER)`,
		metaLastIssuedAt, strconv.FormatInt(ns, 10))
	return err
}

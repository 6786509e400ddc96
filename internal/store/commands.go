package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkmate/internal/command"
	"checkmate/internal/hydrate"
	"checkmate/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append logs commands in one transaction. A command whose id is already in
// the log is ignored.
func (s *Store) Append(ctx context.Context, cmds ...command.Command) error {
	if len(cmds) == 0 {
		return nil
	}
	for _, c := range cmds {
		if !command.Valid(c) {
			return fmt.Errorf("append: invalid command envelope: %+v", envOf(c))
		}
	}
	now := time.Now().UTC().UnixMilli()
	var newest int64
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range cmds {
			r, err := command.Encode(c)
			if err != nil {
				return err
			}
			e := c.Env()
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO commands(command_id, kind, type, aggregate_id, issued_at_unixnano, payload_json, created_at_unixms)
				VALUES(?, ?, ?, ?, ?, ?, ?)`,
				e.CommandID, string(c.Kind()), r.Type, e.AggregateID, e.Timestamp.UTC().UnixNano(), string(r.Payload), now,
			); err != nil {
				return err
			}
			newest = max(newest, e.Timestamp.UTC().UnixNano())
		}
		return raiseLastIssued(ctx, tx, newest)
	})
}

func envOf(c command.Command) command.Envelope {
	if c == nil {
		return command.Envelope{}
	}
	return c.Env()
}

func readCommands(ctx context.Context, q queryer, where string, args ...any) ([]command.Command, error) {
	query := `SELECT command_id, type, payload_json FROM commands`
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY issued_at_unixnano, seq"
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []command.Command
	for rows.Next() {
		var id, typ, payload string
		if err := rows.Scan(&id, &typ, &payload); err != nil {
			return nil, err
		}
		c, err := command.Decode(command.Record{Type: typ, Payload: json.RawMessage(payload)})
		if err != nil {
			return nil, fmt.Errorf("command %s: %w", id, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// All returns every pending command ordered by timestamp, then by insertion.
func (s *Store) All(ctx context.Context) ([]command.Command, error) {
	return readCommands(ctx, s.db, "")
}

// Pending returns pending commands split by aggregate kind.
func (s *Store) Pending(ctx context.Context) ([]command.TemplateCommand, []command.ChecklistCommand, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, nil, err
	}
	tpls, cls := command.Split(all)
	return tpls, cls, nil
}

func (s *Store) ForAggregate(ctx context.Context, kind model.Kind, aggregateID string) ([]command.Command, error) {
	return readCommands(ctx, s.db, "kind = ? AND aggregate_id = ?", string(kind), aggregateID)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commands`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// HasPending reports whether any command is waiting for acknowledgement.
func (s *Store) HasPending(ctx context.Context) (bool, error) {
	n, err := s.Count(ctx)
	return n > 0, err
}

// DeleteByIDs removes commands by id. Unknown ids are ignored.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return deleteCommands(ctx, tx, ids)
	})
}

func deleteCommands(ctx context.Context, tx *sql.Tx, ids []string) error {
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM commands WHERE command_id = ?`, strings.TrimSpace(id)); err != nil {
			return err
		}
	}
	return nil
}

// Acknowledge folds the acknowledged commands into their base rows and then
// removes them from the log, in one transaction. Commands not in ids stay
// pending and keep applying on top of the updated bases.
func (s *Store) Acknowledge(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		acked, err := readCommands(ctx, tx, "command_id IN ("+placeholders(len(ids))+")", anySlice(ids)...)
		if err != nil {
			return err
		}
		tpls, cls := command.Split(acked)
		if err := foldInto(ctx, tx, "templates", model.EmptyTemplate, tpls); err != nil {
			return err
		}
		if err := foldInto(ctx, tx, "checklists", model.EmptyChecklist, cls); err != nil {
			return err
		}
		return deleteCommands(ctx, tx, ids)
	})
}

func foldInto[A any](ctx context.Context, tx *sql.Tx, table string, empty func(string) A, cmds []command.Applier[A]) error {
	seen := map[string]bool{}
	for _, c := range cmds {
		id := c.Env().AggregateID
		if seen[id] {
			continue
		}
		seen[id] = true
		base, ok, err := getJSONRow[A](ctx, tx, table, id)
		if err != nil {
			return err
		}
		if !ok {
			base = empty(id)
		}
		if err := putJSONRow(ctx, tx, table, id, hydrate.Fold(base, id, cmds)); err != nil {
			return err
		}
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func anySlice(ids []string) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, strings.TrimSpace(id))
	}
	return out
}

func getJSONRow[T any](ctx context.Context, q queryer, table, id string) (T, bool, error) {
	var zero T
	var js string
	err := q.QueryRowContext(ctx, `SELECT json FROM `+table+` WHERE id = ?`, id).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal([]byte(js), &v); err != nil {
		return zero, false, fmt.Errorf("%s %s: %w", table, id, err)
	}
	return v, true, nil
}

func putJSONRow(ctx context.Context, q queryer, table, id string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT OR REPLACE INTO `+table+`(id, json, updated_at_unixms) VALUES(?, ?, ?)`,
		id, string(b), time.Now().UTC().UnixMilli())
	return err
}

func readJSONRows[T any](ctx context.Context, q queryer, query string) ([]T, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var js string
		if err := rows.Scan(&js); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(js), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

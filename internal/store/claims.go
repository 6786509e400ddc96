package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"checkmate/internal/command"
	"checkmate/internal/model"
)

// ApplyOnce claims the command id and folds c into its base row in the same
// transaction. It reports false and writes nothing when the id was claimed
// before, including by an earlier process on the same database.
func (s *Store) ApplyOnce(ctx context.Context, c command.Command) (bool, error) {
	e := c.Env()
	first := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO claimed_commands(command_id, aggregate_id, claimed_at_unixms) VALUES(?, ?, ?)`,
			strings.TrimSpace(e.CommandID), e.AggregateID, time.Now().UTC().UnixMilli())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		first = true
		switch v := c.(type) {
		case command.TemplateCommand:
			return foldInto(ctx, tx, "templates", model.EmptyTemplate, []command.TemplateCommand{v})
		case command.ChecklistCommand:
			return foldInto(ctx, tx, "checklists", model.EmptyChecklist, []command.ChecklistCommand{v})
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return first, nil
}

func (s *Store) Claimed(ctx context.Context, commandID string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claimed_commands WHERE command_id = ?`, strings.TrimSpace(commandID)).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

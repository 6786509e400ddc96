package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"checkmate/internal/model"
	"checkmate/internal/tree"
)

// The legacy_* tables hold data written directly, before edits were
// recorded as commands. They are only read by the one-time migration (and
// written by fixtures that seed them).

func (s *Store) LegacyTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, created_at_unixms, is_removed
		FROM legacy_templates ORDER BY created_at_unixms, id`)
	if err != nil {
		return nil, err
	}
	var out []model.Template
	for rows.Next() {
		var (
			t       model.Template
			created int64
			removed int
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &created, &removed); err != nil {
			_ = rows.Close()
			return nil, err
		}
		t.CreatedAt = time.UnixMilli(created).UTC()
		t.Removed = removed != 0
		out = append(out, t)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		nodes, err := s.legacyNodes(ctx, `
			SELECT id, COALESCE(parent_id, ''), title, sort_position, 0
			FROM legacy_tasks WHERE template_id = ?`, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Tasks = tree.FromNodes(nodes)
		if out[i].Reminders, err = s.legacyReminders(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) LegacyChecklists(ctx context.Context) ([]model.Checklist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, template_id, title, description, created_at_unixms, is_removed
		FROM legacy_checklists ORDER BY created_at_unixms, id`)
	if err != nil {
		return nil, err
	}
	var out []model.Checklist
	for rows.Next() {
		var (
			c       model.Checklist
			created int64
			removed int
		)
		if err := rows.Scan(&c.ID, &c.TemplateID, &c.Title, &c.Description, &created, &removed); err != nil {
			_ = rows.Close()
			return nil, err
		}
		c.CreatedAt = time.UnixMilli(created).UTC()
		c.Removed = removed != 0
		out = append(out, c)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		nodes, err := s.legacyNodes(ctx, `
			SELECT id, COALESCE(parent_id, ''), title, sort_position, is_checked
			FROM legacy_checkboxes WHERE checklist_id = ?`, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Tasks = tree.FromNodes(nodes)
	}
	return out, nil
}

func (s *Store) legacyNodes(ctx context.Context, query, ownerID string) ([]tree.Node, error) {
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []tree.Node
	for rows.Next() {
		var (
			n       tree.Node
			checked int
		)
		if err := rows.Scan(&n.ID, &n.ParentID, &n.Title, &n.Position, &checked); err != nil {
			return nil, err
		}
		n.Checked = checked != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) legacyReminders(ctx context.Context, templateID string) ([]model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_at_unixms, repeat FROM legacy_reminders
		WHERE template_id = ? ORDER BY start_at_unixms, id`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reminder
	for rows.Next() {
		var (
			r      model.Reminder
			start  int64
			repeat string
		)
		if err := rows.Scan(&r.ID, &start, &repeat); err != nil {
			return nil, err
		}
		r.StartAt = time.UnixMilli(start).UTC()
		r.Repeat = model.Repeat(repeat)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PutLegacyTemplate writes a template the old way: header row, then every
// task and reminder row replaced in the same transaction.
func (s *Store) PutLegacyTemplate(ctx context.Context, t model.Template) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO legacy_templates(id, title, description, created_at_unixms, is_removed)
			VALUES(?, ?, ?, ?, ?)`,
			t.ID, t.Title, t.Description, t.CreatedAt.UTC().UnixMilli(), boolToInt(t.Removed)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM legacy_tasks WHERE template_id = ?`, t.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM legacy_reminders WHERE template_id = ?`, t.ID); err != nil {
			return err
		}
		for _, n := range t.Tasks.Nodes() {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO legacy_tasks(id, template_id, parent_id, title, sort_position)
				VALUES(?, ?, ?, ?, ?)`,
				n.ID, t.ID, nullIfEmpty(n.ParentID), n.Title, n.Position); err != nil {
				return err
			}
		}
		for _, r := range t.Reminders {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO legacy_reminders(id, template_id, start_at_unixms, repeat)
				VALUES(?, ?, ?, ?)`,
				r.ID, t.ID, r.StartAt.UTC().UnixMilli(), string(r.Repeat)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) PutLegacyChecklist(ctx context.Context, c model.Checklist) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO legacy_checklists(id, template_id, title, description, created_at_unixms, is_removed)
			VALUES(?, ?, ?, ?, ?, ?)`,
			c.ID, c.TemplateID, c.Title, c.Description, c.CreatedAt.UTC().UnixMilli(), boolToInt(c.Removed)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM legacy_checkboxes WHERE checklist_id = ?`, c.ID); err != nil {
			return err
		}
		for _, n := range c.Tasks.Nodes() {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO legacy_checkboxes(id, checklist_id, parent_id, title, sort_position, is_checked)
				VALUES(?, ?, ?, ?, ?, ?)`,
				n.ID, c.ID, nullIfEmpty(n.ParentID), n.Title, n.Position, boolToInt(n.Checked)); err != nil {
				return err
			}
		}
		return nil
	})
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

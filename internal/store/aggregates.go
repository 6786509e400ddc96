package store

import (
	"context"
	"database/sql"
	"strings"

	"checkmate/internal/command"
	"checkmate/internal/hydrate"
	"checkmate/internal/model"
	"checkmate/internal/tree"
)

// BaseTemplates returns the acknowledged template rows, without pending
// commands applied.
func (s *Store) BaseTemplates(ctx context.Context) ([]model.Template, error) {
	return readJSONRows[model.Template](ctx, s.db, `SELECT json FROM templates ORDER BY id`)
}

func (s *Store) BaseChecklists(ctx context.Context) ([]model.Checklist, error) {
	return readJSONRows[model.Checklist](ctx, s.db, `SELECT json FROM checklists ORDER BY id`)
}

func (s *Store) BaseTemplate(ctx context.Context, id string) (model.Template, bool, error) {
	return getJSONRow[model.Template](ctx, s.db, "templates", strings.TrimSpace(id))
}

func (s *Store) BaseChecklist(ctx context.Context, id string) (model.Checklist, bool, error) {
	return getJSONRow[model.Checklist](ctx, s.db, "checklists", strings.TrimSpace(id))
}

// PutTemplates upserts base rows in one transaction.
func (s *Store) PutTemplates(ctx context.Context, ts ...model.Template) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range ts {
			if err := putJSONRow(ctx, tx, "templates", t.ID, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) PutChecklists(ctx context.Context, cs ...model.Checklist) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range cs {
			if err := putJSONRow(ctx, tx, "checklists", c.ID, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceBases swaps every base row for the given sets atomically. Used after
// pulling authoritative state from the remote service; pending commands are
// left alone and keep applying on top.
func (s *Store) ReplaceBases(ctx context.Context, ts []model.Template, cs []model.Checklist) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"templates", "checklists"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return err
			}
		}
		for _, t := range ts {
			if err := putJSONRow(ctx, tx, "templates", t.ID, t); err != nil {
				return err
			}
		}
		for _, c := range cs {
			if err := putJSONRow(ctx, tx, "checklists", c.ID, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// Templates hydrates every template (base rows plus pending commands),
// including ones that exist only as commands. Soft-deleted templates are
// kept; callers filter with hydrate.Live.
func (s *Store) Templates(ctx context.Context) ([]model.Template, error) {
	bases, err := s.BaseTemplates(ctx)
	if err != nil {
		return nil, err
	}
	tpls, _, err := s.Pending(ctx)
	if err != nil {
		return nil, err
	}
	return hydrate.Templates(bases, tpls), nil
}

func (s *Store) Checklists(ctx context.Context) ([]model.Checklist, error) {
	bases, err := s.BaseChecklists(ctx)
	if err != nil {
		return nil, err
	}
	_, cls, err := s.Pending(ctx)
	if err != nil {
		return nil, err
	}
	return hydrate.Checklists(bases, cls), nil
}

// Template hydrates a single template. ok is false when the id has neither
// a base row nor any pending command.
func (s *Store) Template(ctx context.Context, id string) (model.Template, bool, error) {
	id = strings.TrimSpace(id)
	base, found, err := s.BaseTemplate(ctx, id)
	if err != nil {
		return model.Template{}, false, err
	}
	cmds, err := s.ForAggregate(ctx, model.KindTemplate, id)
	if err != nil {
		return model.Template{}, false, err
	}
	if !found && len(cmds) == 0 {
		return model.Template{}, false, nil
	}
	if !found {
		base = model.EmptyTemplate(id)
	}
	tpls, _ := command.Split(cmds)
	return hydrate.Template(base, tpls), true, nil
}

func (s *Store) Checklist(ctx context.Context, id string) (model.Checklist, bool, error) {
	id = strings.TrimSpace(id)
	base, found, err := s.BaseChecklist(ctx, id)
	if err != nil {
		return model.Checklist{}, false, err
	}
	cmds, err := s.ForAggregate(ctx, model.KindChecklist, id)
	if err != nil {
		return model.Checklist{}, false, err
	}
	if !found && len(cmds) == 0 {
		return model.Checklist{}, false, nil
	}
	if !found {
		base = model.EmptyChecklist(id)
	}
	_, cls := command.Split(cmds)
	return hydrate.Checklist(base, cls), true, nil
}

// ResolveTemplate finds a template by exact id or by unique id prefix.
func (s *Store) ResolveTemplate(ctx context.Context, ref string) (model.Template, error) {
	all, err := s.Templates(ctx)
	if err != nil {
		return model.Template{}, err
	}
	return resolve(all, ref, "template", model.Template.AggregateID)
}

func (s *Store) ResolveChecklist(ctx context.Context, ref string) (model.Checklist, error) {
	all, err := s.Checklists(ctx)
	if err != nil {
		return model.Checklist{}, err
	}
	return resolve(all, ref, "checklist", model.Checklist.AggregateID)
}

func resolve[A any](all []A, ref, kind string, idOf func(A) string) (A, error) {
	var zero A
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return zero, tree.NotFoundError{Kind: kind, ID: ref}
	}
	var match []A
	for _, a := range all {
		id := idOf(a)
		if id == ref {
			return a, nil
		}
		if strings.HasPrefix(id, ref) {
			match = append(match, a)
		}
	}
	if len(match) == 1 {
		return match[0], nil
	}
	if len(match) > 1 {
		return zero, AmbiguousError{Kind: kind, Ref: ref, Count: len(match)}
	}
	return zero, tree.NotFoundError{Kind: kind, ID: ref}
}

package hydrate

import (
	"slices"
	"strings"

	"checkmate/internal/command"
	"checkmate/internal/model"
)

// Fold applies the commands addressed to id on top of base, in timestamp
// order. Commands for other aggregates are ignored. cmds is not reordered.
func Fold[A any](base A, id string, cmds []command.Applier[A]) A {
	mine := make([]command.Applier[A], 0, len(cmds))
	for _, c := range cmds {
		if c != nil && c.Env().AggregateID == id {
			mine = append(mine, c)
		}
	}
	command.SortByTimestamp(mine)
	out := base
	for _, c := range mine {
		out = c.Apply(out)
	}
	return out
}

func Template(base model.Template, cmds []command.TemplateCommand) model.Template {
	return Fold(base, base.ID, cmds)
}

func Checklist(base model.Checklist, cmds []command.ChecklistCommand) model.Checklist {
	return Fold(base, base.ID, cmds)
}

// all materializes every aggregate that has a base row or at least one
// command. Aggregates known only from commands start from empty(id).
// Output follows base order, then first appearance in cmds.
func all[A any](bases []A, idOf func(A) string, empty func(string) A, cmds []command.Applier[A]) []A {
	byAgg := map[string][]command.Applier[A]{}
	var commandOnly []string
	known := map[string]bool{}
	for _, b := range bases {
		known[idOf(b)] = true
	}
	for _, c := range cmds {
		if c == nil {
			continue
		}
		id := c.Env().AggregateID
		if strings.TrimSpace(id) == "" {
			continue
		}
		if !known[id] {
			known[id] = true
			commandOnly = append(commandOnly, id)
		}
		byAgg[id] = append(byAgg[id], c)
	}

	out := make([]A, 0, len(bases)+len(commandOnly))
	for _, b := range bases {
		id := idOf(b)
		out = append(out, Fold(b, id, byAgg[id]))
	}
	for _, id := range commandOnly {
		out = append(out, Fold(empty(id), id, byAgg[id]))
	}
	return out
}

// Templates hydrates every template. Soft-deleted templates are included;
// use Live to hide them.
func Templates(bases []model.Template, cmds []command.TemplateCommand) []model.Template {
	return all(bases, model.Template.AggregateID, model.EmptyTemplate, cmds)
}

func Checklists(bases []model.Checklist, cmds []command.ChecklistCommand) []model.Checklist {
	return all(bases, model.Checklist.AggregateID, model.EmptyChecklist, cmds)
}

type removable interface {
	model.Template | model.Checklist
}

// Live drops soft-deleted aggregates.
func Live[A removable](in []A) []A {
	return slices.DeleteFunc(slices.Clone(in), func(a A) bool {
		switch v := any(a).(type) {
		case model.Template:
			return v.Removed
		case model.Checklist:
			return v.Removed
		}
		return false
	})
}

package model

import (
	"strings"
	"time"

	"checkmate/internal/tree"
)

// NewChecklistFromTemplate instantiates a checklist from a template. Every
// task gets a fresh id from newID; order and nesting are kept and all boxes
// start unchecked.
func NewChecklistFromTemplate(t Template, id string, now time.Time, newID func() string) Checklist {
	tasks := t.Tasks.Remap(func(string) string { return newID() })
	tasks = tasks.Map(func(n tree.Node) tree.Node {
		n.Checked = false
		return n
	})
	return Checklist{
		ID:          id,
		TemplateID:  t.ID,
		Title:       strings.TrimSpace(t.Title),
		Description: t.Description,
		CreatedAt:   now.UTC(),
		Tasks:       tasks,
	}
}

// Progress counts checked boxes against all boxes.
func (c Checklist) Progress() (done, total int) {
	for _, n := range c.Tasks.Nodes() {
		total++
		if n.Checked {
			done++
		}
	}
	return done, total
}

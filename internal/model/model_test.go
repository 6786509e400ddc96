package model

import (
	"fmt"
	"testing"
	"time"

	"checkmate/internal/tree"
)

func TestNewChecklistFromTemplate_CopiesShapeWithFreshIDs(t *testing.T) {
	tmpl := Template{
		ID:    "tpl-1",
		Title: "  Packing  ",
		Tasks: tree.Build([]tree.Task{
			{ID: "a", Title: "Clothes", Checked: true, Children: []tree.Task{{ID: "a1", Title: "Socks"}}},
			{ID: "b", Title: "Passport"},
		}),
	}
	n := 0
	newID := func() string {
		n++
		return fmt.Sprintf("box-%d", n)
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	c := NewChecklistFromTemplate(tmpl, "chk-1", now, newID)
	if c.ID != "chk-1" || c.TemplateID != "tpl-1" || c.Title != "Packing" {
		t.Fatalf("unexpected checklist header: %#v", c)
	}
	if c.Tasks.Len() != 3 {
		t.Fatalf("expected 3 boxes, got %d", c.Tasks.Len())
	}
	for _, node := range c.Tasks.Nodes() {
		if node.ID == "a" || node.ID == "a1" || node.ID == "b" {
			t.Fatalf("template id leaked into checklist: %#v", node)
		}
		if node.Checked {
			t.Fatalf("expected unchecked box: %#v", node)
		}
	}
	titles := []string{}
	for _, e := range c.Tasks.Flatten() {
		titles = append(titles, fmt.Sprintf("%d:%s", e.Depth, e.Node.Title))
	}
	want := "[0:Clothes 1:Socks 0:Passport]"
	if fmt.Sprint(titles) != want {
		t.Fatalf("got %v want %s", titles, want)
	}
	if done, total := c.Progress(); done != 0 || total != 3 {
		t.Fatalf("unexpected progress %d/%d", done, total)
	}
}

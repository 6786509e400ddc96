package hydrate

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"checkmate/internal/command"
	"checkmate/internal/model"
	"checkmate/internal/tree"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func env(id, agg string, sec int) command.Envelope {
	return command.Envelope{CommandID: id, Timestamp: t0.Add(time.Duration(sec) * time.Second), AggregateID: agg}
}

func TestTemplate_FoldsInTimestampOrder(t *testing.T) {
	base := model.Template{ID: "tpl", Title: "base"}
	cmds := []command.TemplateCommand{
		command.UpdateTemplateTitle{Envelope: env("c2", "tpl", 2), Title: "second"},
		command.UpdateTemplateTitle{Envelope: env("c1", "tpl", 1), Title: "first"},
		command.UpdateTemplateTitle{Envelope: env("x", "other", 9), Title: "other"},
	}
	got := Template(base, cmds)
	if got.Title != "second" {
		t.Fatalf("expected last-by-timestamp title, got %q", got.Title)
	}
	if cmds[0].Env().CommandID != "c2" {
		t.Fatalf("input slice was reordered")
	}
}

func TestTemplates_CommandOnlyAggregateStartsEmpty(t *testing.T) {
	bases := []model.Template{{ID: "a", Title: "A"}}
	cmds := []command.TemplateCommand{
		command.AddTemplateTask{Envelope: env("c1", "new", 1), TaskID: "t1", Title: "first"},
		command.UpdateTemplateTitle{Envelope: env("c2", "new", 2), Title: "Offline"},
		command.DeleteTemplate{Envelope: env("c3", "a", 3)},
	}
	out := Templates(bases, cmds)
	if len(out) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(out))
	}
	if out[0].ID != "a" || !out[0].Removed {
		t.Fatalf("unexpected base template %#v", out[0])
	}
	if out[1].ID != "new" || out[1].Title != "Offline" || out[1].Tasks.Len() != 1 {
		t.Fatalf("unexpected command-only template %#v", out[1])
	}
	if live := Live(out); len(live) != 1 || live[0].ID != "new" {
		t.Fatalf("unexpected live set %v", live)
	}
}

func TestChecklists_Hydrate(t *testing.T) {
	bases := []model.Checklist{{ID: "cl", Tasks: tree.Build([]tree.Task{{ID: "x", Title: "X"}})}}
	cmds := []command.ChecklistCommand{
		command.UpdateChecklistCheckbox{Envelope: env("c1", "cl", 1), TaskID: "x", Checked: true},
	}
	out := Checklists(bases, cmds)
	if done, total := out[0].Progress(); done != 1 || total != 1 {
		t.Fatalf("unexpected progress %d/%d", done, total)
	}
}

// Commands sharing a timestamp keep log order, so shuffling only the
// untied ones must not change the outcome.
func TestTemplate_DeterministicUnderTies(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	var cmds []command.TemplateCommand
	for i := range 30 {
		sec := i / 3
		cmds = append(cmds, command.AddTemplateTask{
			Envelope: env(fmt.Sprintf("c%d", i), "tpl", sec),
			TaskID:   fmt.Sprintf("t%d", i),
			Title:    fmt.Sprintf("T%d", i),
		})
	}
	want := Template(model.EmptyTemplate("tpl"), cmds)

	for round := range 20 {
		// shuffle whole timestamp groups, keeping each group's internal order
		groups := make([][]command.TemplateCommand, 10)
		for i, c := range cmds {
			groups[i/3] = append(groups[i/3], c)
		}
		r.Shuffle(len(groups), func(i, j int) { groups[i], groups[j] = groups[j], groups[i] })
		var shuffled []command.TemplateCommand
		for _, g := range groups {
			shuffled = append(shuffled, g...)
		}
		got := Template(model.EmptyTemplate("tpl"), shuffled)
		if !got.Tasks.Equal(want.Tasks) {
			t.Fatalf("round %d: hydration depends on input order", round)
		}
	}
}

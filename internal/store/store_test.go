package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"checkmate/internal/command"
	"checkmate/internal/model"
	"checkmate/internal/tree"
)

var t0 = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "checkmate.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func env(id, agg string, sec int) command.Envelope {
	return command.Envelope{CommandID: id, Timestamp: t0.Add(time.Duration(sec) * time.Second), AggregateID: agg}
}

func TestAppend_IsIdempotentByCommandID(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	c := command.UpdateTemplateTitle{Envelope: env("c1", "tpl", 1), Title: "A"}
	if err := s.Append(ctx, c); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, c, command.UpdateTemplateTitle{Envelope: env("c1", "tpl", 5), Title: "B"}); err != nil {
		t.Fatalf("append again: %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected exactly 1 entry, got %d (%v)", n, err)
	}
	all, _ := s.All(ctx)
	if all[0].(command.UpdateTemplateTitle).Title != "A" {
		t.Fatalf("expected first write to win, got %#v", all[0])
	}
}

func TestAppend_RejectsInvalidEnvelope(t *testing.T) {
	s := openTest(t)
	err := s.Append(context.Background(), command.DeleteTemplate{Envelope: command.Envelope{CommandID: "x"}})
	if err == nil {
		t.Fatalf("expected invalid envelope error")
	}
	if n, _ := s.Count(context.Background()); n != 0 {
		t.Fatalf("nothing should be logged, got %d", n)
	}
}

func TestAll_OrdersByTimestampThenInsertion(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_ = s.Append(ctx,
		command.UpdateTemplateTitle{Envelope: env("late", "tpl", 9)},
		command.UpdateTemplateTitle{Envelope: env("tie-a", "tpl", 1)},
		command.DeleteChecklist{Envelope: env("tie-b", "cl", 1)},
	)
	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if got := command.IDs(all); !slices.Equal(got, []string{"tie-a", "tie-b", "late"}) {
		t.Fatalf("unexpected order %v", got)
	}
	forCL, _ := s.ForAggregate(ctx, model.KindChecklist, "cl")
	if len(forCL) != 1 || forCL[0].Tag() != command.TagDeleteChecklist {
		t.Fatalf("unexpected aggregate filter %v", forCL)
	}
}

func TestUnknownTagInLogSurfaces(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO commands(command_id, kind, type, aggregate_id, issued_at_unixnano, payload_json, created_at_unixms)
		VALUES('bad', 'template', 'explodeTemplate', 'tpl', 1, '{}', 1)`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := s.All(ctx)
	var ute command.UnknownTagError
	if !errors.As(err, &ute) {
		t.Fatalf("expected UnknownTagError, got %v", err)
	}
}

func TestAcknowledge_FoldsIntoBaseAndDeletesOnlyAcked(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_ = s.Append(ctx,
		command.CreateTemplate{Envelope: env("c1", "tpl", 1), Template: model.Template{Title: "Draft"}},
		command.AddTemplateTask{Envelope: env("c2", "tpl", 2), TaskID: "a", Title: "A"},
		command.UpdateTemplateTitle{Envelope: env("c3", "tpl", 3), Title: "Final"},
	)
	if err := s.Acknowledge(ctx, []string{"c1", "c2"}); err != nil {
		t.Fatalf("ack: %v", err)
	}
	base, ok, err := s.BaseTemplate(ctx, "tpl")
	if err != nil || !ok {
		t.Fatalf("expected base row, got %v %v", ok, err)
	}
	if base.Title != "Draft" || base.Tasks.Len() != 1 {
		t.Fatalf("unexpected base %#v", base)
	}
	left, _ := s.All(ctx)
	if got := command.IDs(left); !slices.Equal(got, []string{"c3"}) {
		t.Fatalf("expected only c3 pending, got %v", got)
	}
	cur, ok, _ := s.Template(ctx, "tpl")
	if !ok || cur.Title != "Final" || cur.Tasks.Len() != 1 {
		t.Fatalf("unexpected hydrated template %#v", cur)
	}
}

func TestTemplates_IncludesCommandOnlyAggregates(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	if err := s.PutTemplates(ctx, model.Template{ID: "base", Title: "Stored"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_ = s.Append(ctx, command.CreateTemplate{Envelope: env("c1", "offline", 1), Template: model.Template{Title: "Offline"}})
	all, err := s.Templates(ctx)
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	if len(all) != 2 || all[0].ID != "base" || all[1].Title != "Offline" {
		t.Fatalf("unexpected templates %#v", all)
	}
	got, err := s.ResolveTemplate(ctx, "off")
	if err != nil || got.ID != "offline" {
		t.Fatalf("resolve prefix: %#v %v", got, err)
	}
	var nf tree.NotFoundError
	if _, err := s.ResolveTemplate(ctx, "zzz"); !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, ok, _ := s.Template(ctx, "ghost"); ok {
		t.Fatalf("unknown template should not be found")
	}
}

func TestLegacyRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	tpl := model.Template{
		ID: "L1", Title: "Legacy", CreatedAt: t0,
		Tasks: tree.Build([]tree.Task{
			{ID: "z", Title: "first", Position: 0, Children: []tree.Task{{ID: "y", Title: "nested", Position: 0}}},
			{ID: "a", Title: "second", Position: 1},
		}),
		Reminders: []model.Reminder{{ID: "r", StartAt: t0, Repeat: model.RepeatMonthly}},
	}
	if err := s.PutLegacyTemplate(ctx, tpl); err != nil {
		t.Fatalf("put legacy: %v", err)
	}
	got, err := s.LegacyTemplates(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("legacy templates: %v %v", got, err)
	}
	if !got[0].Tasks.Equal(tpl.Tasks) || got[0].Title != "Legacy" || len(got[0].Reminders) != 1 || !got[0].CreatedAt.Equal(t0) {
		t.Fatalf("legacy round trip lost data: %#v", got[0])
	}

	cl := model.Checklist{ID: "LC", TemplateID: "L1", Title: "Run", CreatedAt: t0,
		Tasks: tree.Build([]tree.Task{{ID: "b1", Title: "box", Checked: true}})}
	if err := s.PutLegacyChecklist(ctx, cl); err != nil {
		t.Fatalf("put legacy checklist: %v", err)
	}
	cls, err := s.LegacyChecklists(ctx)
	if err != nil || len(cls) != 1 {
		t.Fatalf("legacy checklists: %v %v", cls, err)
	}
	if done, total := cls[0].Progress(); done != 1 || total != 1 {
		t.Fatalf("checked flag lost: %d/%d", done, total)
	}
}

func TestMetaFlags(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	if ran, _ := s.MigrationRan(ctx); ran {
		t.Fatalf("fresh store should not be migrated")
	}
	_ = s.MarkMigrationRan(ctx)
	if ran, _ := s.MigrationRan(ctx); !ran {
		t.Fatalf("expected migration flag")
	}
	if ts, _ := s.LastSyncedAt(ctx); !ts.IsZero() {
		t.Fatalf("expected zero last sync")
	}
	_ = s.SetLastSyncedAt(ctx, t0)
	if ts, _ := s.LastSyncedAt(ctx); !ts.Equal(t0) {
		t.Fatalf("unexpected last sync %v", ts)
	}
}

func TestReplaceBases_KeepsPending(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_ = s.PutTemplates(ctx, model.Template{ID: "old", Title: "Old"})
	_ = s.Append(ctx, command.UpdateTemplateTitle{Envelope: env("c1", "new", 1), Title: "Local"})
	if err := s.ReplaceBases(ctx, []model.Template{{ID: "new", Title: "Remote"}}, nil); err != nil {
		t.Fatalf("replace: %v", err)
	}
	all, _ := s.Templates(ctx)
	if len(all) != 1 || all[0].ID != "new" || all[0].Title != "Local" {
		t.Fatalf("unexpected templates after replace %#v", all)
	}
}

func TestLastIssuedAt_SeedsNextProcessClock(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	wall := t0.Add(time.Hour)
	ids := 0
	newID := func() string { ids++; return fmt.Sprintf("id-%d", ids) }

	first := command.NewClockWith(func() time.Time { return wall }, newID)
	if err := s.Append(ctx, command.CreateTemplate{Envelope: first.Envelope("tpl"), Template: model.Template{Title: "first"}}); err != nil {
		t.Fatalf("append: %v", err)
	}

	// next session with a wall clock that stepped back
	second := command.NewClockWith(func() time.Time { return wall.Add(-time.Second) }, newID)
	last, err := s.LastIssuedAt(ctx)
	if err != nil || !last.Equal(wall) {
		t.Fatalf("expected last issued %v, got %v %v", wall, last, err)
	}
	second.Observe(last)
	if err := s.Append(ctx, command.UpdateTemplateTitle{Envelope: second.Envelope("tpl"), Title: "second"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	tpl, _, _ := s.Template(ctx, "tpl")
	if tpl.Title != "second" {
		t.Fatalf("later rename lost, title %q", tpl.Title)
	}

	if err := s.Acknowledge(ctx, []string{"id-1", "id-2"}); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if last, _ := s.LastIssuedAt(ctx); !last.After(wall) {
		t.Fatalf("acknowledgement dropped the issued floor: %v", last)
	}
}

func TestApplyOnce_ClaimsAndWritesTogether(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	add := command.AddTemplateTask{Envelope: env("c1", "tpl", 1), TaskID: "a", Title: "A"}
	if first, err := s.ApplyOnce(ctx, add); err != nil || !first {
		t.Fatalf("first apply: %v %v", first, err)
	}
	rename := command.UpdateTemplateTaskTitle{Envelope: env("c1", "tpl", 2), TaskID: "a", Title: "B"}
	if first, err := s.ApplyOnce(ctx, rename); err != nil || first {
		t.Fatalf("reused id should be a duplicate: %v %v", first, err)
	}
	base, ok, _ := s.BaseTemplate(ctx, "tpl")
	if n, _ := base.Tasks.Node("a"); !ok || n.Title != "A" {
		t.Fatalf("unexpected base %#v", base)
	}
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"checkmate/internal/format"
	"checkmate/internal/model"
	"checkmate/internal/remote"
	"checkmate/internal/store"
)

type harness struct {
	t   *testing.T
	dir string
	db  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CHECKMATE_CONFIG_DIR", dir)
	return &harness{t: t, dir: dir, db: filepath.Join(dir, "client.sqlite")}
}

func (h *harness) run(args ...string) ([]byte, []byte, error) {
	h.t.Helper()
	cmd := NewRootCmd()
	var outBuf, errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(append([]string{"--db", h.db, "--format", "json"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return outBuf.Bytes(), errBuf.Bytes(), err
}

func (h *harness) mustRun(out any, args ...string) {
	h.t.Helper()
	stdout, stderr, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("checkmate %v failed: %v\nstderr:\n%s", args, err, stderr)
	}
	if out == nil {
		return
	}
	if err := json.Unmarshal(stdout, out); err != nil {
		h.t.Fatalf("checkmate %v: unmarshal %v\nstdout:\n%s", args, err, stdout)
	}
}

func TestTemplateEditingFlow(t *testing.T) {
	h := newHarness(t)

	var tpl model.Template
	h.mustRun(&tpl, "templates", "create", "Opening shift", "--task", "Unlock doors", "--task", "Start coffee")
	if tpl.ID == "" || tpl.Title != "Opening shift" || tpl.Tasks.Len() != 2 {
		t.Fatalf("unexpected template %#v", tpl)
	}
	roots := tpl.Tasks.Roots()
	unlock, coffee := roots[0], roots[1]

	var added struct {
		TaskID   string         `json:"taskId"`
		Template model.Template `json:"template"`
	}
	h.mustRun(&added, "tasks", "add", tpl.ID[:8], "Back door", "--parent", unlock)
	if n, ok := added.Template.Tasks.Node(added.TaskID); !ok || n.ParentID != unlock {
		t.Fatalf("expected new task under %s, got %#v", unlock, n)
	}

	// dragging the child down onto the next root makes it that root's first child
	h.mustRun(&tpl, "tasks", "drag", tpl.ID, added.TaskID, coffee)
	if n, _ := tpl.Tasks.Node(added.TaskID); n.ParentID != coffee {
		t.Fatalf("expected back door under coffee after drag, got parent %q", n.ParentID)
	}

	h.mustRun(&tpl, "tasks", "move", tpl.ID, added.TaskID)
	if n, _ := tpl.Tasks.Node(added.TaskID); !n.IsRoot() || tpl.Tasks.Roots()[2] != added.TaskID {
		t.Fatalf("expected back door appended to the root list, got %#v", tpl.Tasks.Roots())
	}

	h.mustRun(&tpl, "reminders", "set", tpl.ID, "--at", "2026-03-01T09:00:00Z", "--repeat", "weekly")
	if len(tpl.Reminders) != 1 || tpl.Reminders[0].Repeat != model.RepeatWeekly {
		t.Fatalf("unexpected reminders %#v", tpl.Reminders)
	}

	// a fresh read hydrates the same template from base plus log
	var shown model.Template
	h.mustRun(&shown, "templates", "show", tpl.ID)
	if !shown.Tasks.Equal(tpl.Tasks) || shown.Title != tpl.Title {
		t.Fatalf("show differs from last edit:\n got %#v\nwant %#v", shown, tpl)
	}

	if _, _, err := h.run("tasks", "rm", tpl.ID, "no-such-task"); err == nil {
		t.Fatalf("expected error removing unknown task")
	}

	var entries []format.LogEntry
	h.mustRun(&entries, "log", "list")
	if len(entries) == 0 || entries[0].Type != "createTemplate" {
		t.Fatalf("expected log to start with createTemplate, got %#v", entries)
	}

	h.mustRun(nil, "templates", "delete", tpl.ID)
	var live []model.Template
	h.mustRun(&live, "templates", "list")
	if len(live) != 0 {
		t.Fatalf("deleted template still listed: %#v", live)
	}
	if _, _, err := h.run("templates", "rename", tpl.ID, "Again"); err == nil {
		t.Fatalf("expected editing a deleted template to fail")
	}
}

func TestChecklistFlowAndSyncPush(t *testing.T) {
	h := newHarness(t)

	remoteStore, err := store.Open(context.Background(), filepath.Join(h.dir, "server.sqlite"))
	if err != nil {
		t.Fatalf("open server store: %v", err)
	}
	t.Cleanup(func() { _ = remoteStore.Close() })
	srv := httptest.NewServer(remote.NewServer(remoteStore, nil, "s3cret", log.New(io.Discard, "", 0)).Router())
	t.Cleanup(srv.Close)
	t.Setenv("CHECKMATE_REMOTE_URL", srv.URL)
	t.Setenv("CHECKMATE_REMOTE_TOKEN", "s3cret")

	var tpl model.Template
	h.mustRun(&tpl, "templates", "create", "Closing", "--task", "Count till")
	var cl model.Checklist
	h.mustRun(&cl, "checklists", "create", tpl.ID, "--title", "Closing Friday")
	if cl.TemplateID != tpl.ID || cl.Title != "Closing Friday" || cl.Tasks.Len() != 1 {
		t.Fatalf("unexpected checklist %#v", cl)
	}
	box := cl.Tasks.Roots()[0]
	if tpl.Tasks.Has(box) {
		t.Fatalf("checklist tasks must get fresh ids")
	}
	h.mustRun(&cl, "checklists", "check", cl.ID, box)
	if n, _ := cl.Tasks.Node(box); !n.Checked {
		t.Fatalf("expected box checked")
	}

	h.mustRun(&cl, "checklists", "rename", cl.ID[:8], "Closing Saturday")
	h.mustRun(&cl, "checklists", "describe", cl.ID, "Lock the back too")
	if cl.Title != "Closing Saturday" || cl.Description != "Lock the back too" {
		t.Fatalf("unexpected checklist after edits %#v", cl)
	}

	var status map[string]any
	h.mustRun(&status, "sync", "status")
	if status["unsynced"] != true {
		t.Fatalf("expected unsynced work before push: %#v", status)
	}

	var pushed map[string]any
	h.mustRun(&pushed, "sync", "push")
	if pushed["remaining"].(float64) != 0 || pushed["acknowledged"].(float64) == 0 {
		t.Fatalf("unexpected push result %#v", pushed)
	}

	h.mustRun(&status, "sync", "status")
	if status["pending"].(float64) != 0 || status["lastSyncedAt"] == nil {
		t.Fatalf("expected drained log with sync time: %#v", status)
	}

	// local reads survive the drain, and the remote holds the same state
	var local model.Checklist
	h.mustRun(&local, "checklists", "show", cl.ID)
	onServer, ok, err := remoteStore.BaseChecklist(context.Background(), cl.ID)
	if err != nil || !ok {
		t.Fatalf("checklist missing on server: %v", err)
	}
	if !local.Tasks.Equal(onServer.Tasks) || !local.Tasks.Equal(cl.Tasks) || onServer.Title != "Closing Saturday" {
		t.Fatalf("local and remote differ:\nlocal %#v\nremote %#v", local, onServer)
	}
}

func TestLegacySeedAndMigrate(t *testing.T) {
	h := newHarness(t)
	seed := `{"templates":[{"id":"legacy-1","title":"Old one","createdAt":"2024-05-01T00:00:00Z","tasks":[{"id":"a","title":"A","children":[{"id":"a1","title":"A1"}]},{"id":"b","title":"B"}]}]}`

	cmd := NewRootCmd()
	cmd.SetIn(strings.NewReader(seed))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--db", h.db, "--format", "json", "legacy", "seed", "-"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var res map[string]any
	h.mustRun(&res, "migrate")
	if res["outcome"] != "migrated" || res["templates"].(float64) != 1 {
		t.Fatalf("unexpected migrate result %#v", res)
	}
	var tpl model.Template
	h.mustRun(&tpl, "templates", "show", "legacy-1")
	if tpl.Title != "Old one" || tpl.Tasks.Len() != 3 || tpl.Tasks.Roots()[0] != "a" {
		t.Fatalf("unexpected migrated template %#v", tpl)
	}

	h.mustRun(&res, "migrate")
	if res["outcome"] != "already-ran" {
		t.Fatalf("expected already-ran, got %#v", res)
	}
}

func TestSyncWithoutRemoteFails(t *testing.T) {
	h := newHarness(t)
	if _, stderr, err := h.run("sync", "push"); err == nil || !strings.Contains(string(stderr), "no remote configured") {
		t.Fatalf("expected missing remote error, got %v %s", err, stderr)
	}
}

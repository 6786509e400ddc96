package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"

	"checkmate/internal/model"
	"checkmate/internal/tree"
)

func sampleChecklist() model.Checklist {
	return model.Checklist{
		ID:    "cl-0001-abcdef",
		Title: "Opening shift",
		Tasks: tree.Build([]tree.Task{
			{ID: "a", Title: "Unlock doors", Position: 0, Checked: true, Children: []tree.Task{
				{ID: "a1", Title: "Back door", Position: 0},
			}},
			{ID: "b", Title: "Start coffee", Position: 1},
		}),
	}
}

func TestWrite_TextChecklistTree(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithProfile(&buf, termenv.Ascii)
	if err := p.Print(sampleChecklist()); err != nil {
		t.Fatalf("print: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Opening shift", "[x] Unlock doors", "  [ ] Back door", "[ ] Start coffee", "1 of 3 done"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("ascii profile must not emit escape codes:\n%q", out)
	}
}

func TestWrite_TextTruncatesRows(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithProfile(&buf, termenv.Ascii)
	p.Width = 20
	tpl := model.Template{ID: "t1", Title: strings.Repeat("long title ", 10)}
	if err := p.Print([]model.Template{tpl}); err != nil {
		t.Fatalf("print: %v", err)
	}
	line := strings.TrimRight(buf.String(), "\n")
	if !strings.HasSuffix(line, "…") || len([]rune(line)) > 20 {
		t.Fatalf("expected truncated row, got %q", line)
	}
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	entries := []LogEntry{{CommandID: "c1", Type: "addTemplateTask", Kind: "template", AggregateID: "t1", IssuedAt: time.Unix(0, 0).UTC()}}
	if err := Write(&buf, entries, "json", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	var back []LogEntry
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 1 || back[0].Type != "addTemplateTask" {
		t.Fatalf("unexpected %#v", back)
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, 1, "edn", false); err == nil {
		t.Fatalf("expected error")
	}
}

package format

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"checkmate/internal/model"
	"checkmate/internal/tree"
)

// LogEntry is one row of the pending command log.
type LogEntry struct {
	CommandID   string    `json:"commandId"`
	Type        string    `json:"type"`
	Kind        string    `json:"kind"`
	AggregateID string    `json:"aggregateId"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// Printer renders the text view. Colors follow the writer: a non-terminal
// writer (or NO_COLOR) gets plain text.
type Printer struct {
	w       io.Writer
	profile termenv.Profile
	// Width truncates list rows; 0 disables truncation.
	Width int

	title lipgloss.Style
	dim   lipgloss.Style
	done  lipgloss.Style
	label lipgloss.Style
}

func NewPrinter(w io.Writer) *Printer {
	return NewPrinterWithProfile(w, termenv.NewOutput(w).EnvColorProfile())
}

func NewPrinterWithProfile(w io.Writer, profile termenv.Profile) *Printer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(profile)
	return &Printer{
		w:       w,
		profile: profile,
		Width:   100,
		title:   r.NewStyle().Bold(true),
		dim:     r.NewStyle().Foreground(lipgloss.Color("8")),
		done:    r.NewStyle().Foreground(lipgloss.Color("2")),
		label:   r.NewStyle().Foreground(lipgloss.Color("4")),
	}
}

func (p *Printer) Print(v any) error {
	switch x := v.(type) {
	case model.Template:
		p.template(x)
	case []model.Template:
		if len(x) == 0 {
			p.line(p.dim.Render("no templates"))
		}
		for _, t := range x {
			p.templateRow(t)
		}
	case model.Checklist:
		p.checklist(x)
	case []model.Checklist:
		if len(x) == 0 {
			p.line(p.dim.Render("no checklists"))
		}
		for _, c := range x {
			p.checklistRow(c)
		}
	case []LogEntry:
		if len(x) == 0 {
			p.line(p.dim.Render("log is empty"))
		}
		for _, e := range x {
			p.line(fmt.Sprintf("%s  %s  %-30s %s", p.dim.Render(e.IssuedAt.Local().Format(time.DateTime)), shortID(e.CommandID), e.Type, shortID(e.AggregateID)))
		}
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(x)) {
			p.line(fmt.Sprintf("%s %v", p.label.Render(k+":"), x[k]))
		}
	case string:
		p.line(x)
	default:
		return WriteJSON(p.w, v, true)
	}
	return nil
}

func (p *Printer) line(s string) {
	if p.Width > 0 {
		s = xansi.Truncate(s, p.Width, "…")
	}
	fmt.Fprintln(p.w, s)
}

func (p *Printer) templateRow(t model.Template) {
	meta := fmt.Sprintf("%d tasks", t.Tasks.Len())
	if n := len(t.Reminders); n > 0 {
		meta += fmt.Sprintf(", %d reminders", n)
	}
	p.line(fmt.Sprintf("%s  %s  %s", p.dim.Render(shortID(t.ID)), t.Title, p.dim.Render("("+meta+")")))
}

func (p *Printer) checklistRow(c model.Checklist) {
	done, total := c.Progress()
	progress := fmt.Sprintf("%d/%d", done, total)
	if total > 0 && done == total {
		progress = p.done.Render(progress)
	}
	p.line(fmt.Sprintf("%s  %s  %s", p.dim.Render(shortID(c.ID)), c.Title, progress))
}

func (p *Printer) header(id, title, description string) {
	fmt.Fprintln(p.w, p.title.Render(title)+"  "+p.dim.Render(id))
	if d := p.markdown(description); d != "" {
		fmt.Fprintln(p.w, d)
	}
}

func (p *Printer) template(t model.Template) {
	p.header(t.ID, t.Title, t.Description)
	p.tasks(t.Tasks, false)
	if len(t.Reminders) > 0 {
		fmt.Fprintln(p.w, p.label.Render("reminders"))
		for _, r := range t.Reminders {
			repeat := string(r.Repeat)
			if repeat == "" {
				repeat = "once"
			}
			fmt.Fprintf(p.w, "  %s  %s  %s\n", p.dim.Render(shortID(r.ID)), r.StartAt.Local().Format(time.DateTime), repeat)
		}
	}
}

func (p *Printer) checklist(c model.Checklist) {
	p.header(c.ID, c.Title, c.Description)
	p.tasks(c.Tasks, true)
	done, total := c.Progress()
	fmt.Fprintln(p.w, p.dim.Render(fmt.Sprintf("%d of %d done", done, total)))
}

func (p *Printer) tasks(f tree.Forest, boxes bool) {
	for _, row := range f.Flatten() {
		marker := "•"
		title := row.Node.Title
		if boxes {
			marker = "[ ]"
			if row.Node.Checked {
				marker = p.done.Render("[x]")
				title = p.dim.Render(title)
			}
		}
		p.line(fmt.Sprintf("%s%s %s  %s", strings.Repeat("  ", row.Depth), marker, title, p.dim.Render(shortID(row.Node.ID))))
	}
}

var (
	mdMu        sync.Mutex
	mdRenderers = map[string]*glamour.TermRenderer{}
)

// markdown renders a description with glamour. Plain writers get the notty
// style so no escape codes leak into pipes.
func (p *Printer) markdown(md string) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	style := styles.DarkStyle
	if p.profile == termenv.Ascii {
		style = styles.NoTTYStyle
	}
	width := p.Width
	if width <= 0 {
		width = 80
	}
	key := fmt.Sprintf("%s:%d", style, width)

	mdMu.Lock()
	defer mdMu.Unlock()
	r := mdRenderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(glamour.WithStandardStyle(style), glamour.WithWordWrap(width))
		if err != nil {
			return md
		}
		mdRenderers[key] = rr
		r = rr
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

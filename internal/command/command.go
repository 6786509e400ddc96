package command

import (
	"slices"
	"strings"
	"time"

	"checkmate/internal/model"
)

// Envelope carries the fields every command shares. CommandID is the
// idempotency key for the log and the remote service.
type Envelope struct {
	CommandID   string    `json:"commandId"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateID string    `json:"aggregateId"`
}

func (e Envelope) Env() Envelope { return e }

type Command interface {
	Env() Envelope
	Tag() string
	Kind() model.Kind
}

// Applier is a command that folds into an aggregate of type A. Apply is
// total: a command naming a task or reminder that no longer exists is a no-op.
type Applier[A any] interface {
	Command
	Apply(A) A
}

type (
	TemplateCommand  = Applier[model.Template]
	ChecklistCommand = Applier[model.Checklist]
)

// SortByTimestamp orders commands by timestamp. Ties keep their input order.
func SortByTimestamp[C Command](cmds []C) {
	slices.SortStableFunc(cmds, func(a, b C) int {
		return a.Env().Timestamp.Compare(b.Env().Timestamp)
	})
}

// IDs lists command ids in order.
func IDs[C Command](cmds []C) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Env().CommandID)
	}
	return out
}

// Valid reports whether the envelope can be logged.
func Valid(c Command) bool {
	if c == nil {
		return false
	}
	e := c.Env()
	return strings.TrimSpace(e.CommandID) != "" && strings.TrimSpace(e.AggregateID) != "" && !e.Timestamp.IsZero()
}

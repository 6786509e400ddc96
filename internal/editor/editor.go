package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"checkmate/internal/command"
	"checkmate/internal/hydrate"
	"checkmate/internal/model"
	"checkmate/internal/tree"
)

type State int

const (
	Loading State = iota
	Ready
	Saved
	Discarded
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Saved:
		return "saved"
	case Discarded:
		return "discarded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrNotReady = errors.New("editor is not ready")

// Sink receives the command list on save. The command log implements it.
type Sink interface {
	Append(ctx context.Context, cmds ...command.Command) error
}

type Editor struct {
	clock    *command.Clock
	state    State
	original model.Template
	cmds     []command.TemplateCommand
	current  model.Template
}

func New(clock *command.Clock) *Editor {
	if clock == nil {
		clock = command.NewClock()
	}
	return &Editor{clock: clock}
}

func (e *Editor) State() State { return e.state }

// Load moves a fresh editor to Ready on an existing template.
func (e *Editor) Load(t model.Template) error {
	if e.state != Loading {
		return fmt.Errorf("load: editor is %s", e.state)
	}
	e.original = t
	e.current = t
	e.state = Ready
	return nil
}

// Create starts a new template. Its first staged command carries the
// initial snapshot.
func (e *Editor) Create(title string) (string, error) {
	if e.state != Loading {
		return "", fmt.Errorf("create: editor is %s", e.state)
	}
	id := e.clock.NewID()
	env := e.clock.Envelope(id)
	e.original = model.EmptyTemplate(id)
	e.current = e.original
	e.state = Ready
	e.push(command.CreateTemplate{Envelope: env, Template: model.Template{
		ID:        id,
		Title:     strings.TrimSpace(title),
		CreatedAt: env.Timestamp,
	}})
	return id, nil
}

func (e *Editor) Original() model.Template { return e.original }

// Current is the snapshot with every staged command applied.
func (e *Editor) Current() model.Template { return e.current }

func (e *Editor) Flattened() []tree.Flat { return e.current.Tasks.Flatten() }

func (e *Editor) Commands() []command.TemplateCommand {
	return append([]command.TemplateCommand(nil), e.cmds...)
}

func (e *Editor) push(c command.TemplateCommand) {
	e.cmds = append(e.cmds, c)
	e.current = hydrate.Template(e.original, e.cmds)
}

func (e *Editor) ready() error {
	if e.state != Ready {
		return ErrNotReady
	}
	return nil
}

func (e *Editor) env() command.Envelope { return e.clock.Envelope(e.original.ID) }

func (e *Editor) requireTask(id string) error {
	if !e.current.Tasks.Has(id) {
		return tree.NotFoundError{Kind: "task", ID: id}
	}
	return nil
}

func (e *Editor) Rename(title string) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.push(command.UpdateTemplateTitle{Envelope: e.env(), Title: strings.TrimSpace(title)})
	return nil
}

func (e *Editor) ChangeDescription(desc string) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.push(command.UpdateTemplateDescription{Envelope: e.env(), Description: desc})
	return nil
}

// AddTask appends a new task under parentID ("" for the root list) and
// returns its id.
func (e *Editor) AddTask(parentID, title string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	var parent *string
	if pid := strings.TrimSpace(parentID); pid != "" {
		if err := e.requireTask(pid); err != nil {
			return "", err
		}
		parent = &pid
	}
	id := e.clock.NewID()
	e.push(command.AddTemplateTask{Envelope: e.env(), TaskID: id, ParentID: parent, Title: strings.TrimSpace(title)})
	return id, nil
}

func (e *Editor) RenameTask(id, title string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireTask(id); err != nil {
		return err
	}
	e.push(command.UpdateTemplateTaskTitle{Envelope: e.env(), TaskID: id, Title: strings.TrimSpace(title)})
	return nil
}

// RemoveTask drops the task and its subtree.
func (e *Editor) RemoveTask(id string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireTask(id); err != nil {
		return err
	}
	e.push(command.DeleteTemplateTask{Envelope: e.env(), TaskID: id})
	return nil
}

// MoveTask re-parents id to the end of newParentID's children, or to the end
// of the root list when newParentID is "".
func (e *Editor) MoveTask(id, newParentID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireTask(id); err != nil {
		return err
	}
	var parent *string
	if pid := strings.TrimSpace(newParentID); pid != "" {
		if err := e.requireTask(pid); err != nil {
			return err
		}
		if pid == id || e.current.Tasks.IsDescendant(pid, id) {
			return tree.CycleError{ID: id, TargetID: pid}
		}
		parent = &pid
	}
	e.push(command.MoveTemplateTask{Envelope: e.env(), TaskID: id, NewParentID: parent})
	return nil
}

// Drag applies a drag in the flattened list: movedID is dropped onto the row
// held by refID. The result is staged as a move (when the parent changes)
// followed by a positions update.
func (e *Editor) Drag(movedID, refID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	before := e.current.Tasks
	after, err := tree.ReassembleAfterDrag(before.Flatten(), movedID, refID)
	if err != nil {
		return err
	}
	if after.Equal(before) {
		return nil
	}
	oldNode, _ := before.Node(movedID)
	newNode, _ := after.Node(movedID)
	if oldNode.ParentID != newNode.ParentID {
		var parent *string
		if newNode.ParentID != "" {
			pid := newNode.ParentID
			parent = &pid
		}
		e.push(command.MoveTemplateTask{Envelope: e.env(), TaskID: movedID, NewParentID: parent})
	}
	e.push(command.UpdateTemplateTaskPositions{Envelope: e.env(), Positions: after.FlatPositions()})
	return nil
}

func (e *Editor) SetReminder(r model.Reminder) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if strings.TrimSpace(r.ID) == "" {
		r.ID = e.clock.NewID()
	}
	r.StartAt = r.StartAt.UTC()
	e.push(command.AddOrReplaceTemplateReminder{Envelope: e.env(), Reminder: r})
	return r.ID, nil
}

func (e *Editor) DeleteReminder(id string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.current.FindReminder(id) < 0 {
		return tree.NotFoundError{Kind: "reminder", ID: id}
	}
	e.push(command.DeleteTemplateReminder{Envelope: e.env(), ReminderID: id})
	return nil
}

// Delete soft-deletes the template.
func (e *Editor) Delete() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.push(command.DeleteTemplate{Envelope: e.env()})
	return nil
}

// Save stages a final positions update capturing the flattened order and
// hands every staged command to sink. A failed hand-off leaves the editor
// Ready so the caller can retry. Saving with nothing staged is a no-op.
func (e *Editor) Save(ctx context.Context, sink Sink) ([]command.Command, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if len(e.cmds) == 0 {
		e.state = Saved
		return nil, nil
	}
	staged := e.Commands()
	if e.current.Tasks.Len() > 0 && !e.current.Removed {
		staged = append(staged, command.UpdateTemplateTaskPositions{
			Envelope:  e.env(),
			Positions: e.current.Tasks.FlatPositions(),
		})
	}
	out := make([]command.Command, 0, len(staged))
	for _, c := range staged {
		out = append(out, c)
	}
	if err := sink.Append(ctx, out...); err != nil {
		return nil, fmt.Errorf("save template %s: %w", e.original.ID, err)
	}
	e.cmds = staged
	e.current = hydrate.Template(e.original, e.cmds)
	e.state = Saved
	return out, nil
}

// Discard drops every staged command.
func (e *Editor) Discard() {
	e.cmds = nil
	e.current = e.original
	e.state = Discarded
}

package migrate

import (
	"context"
	"fmt"
	"log"

	"checkmate/internal/command"
	"checkmate/internal/model"
)

// Source is the store the migration reads from and marks.
type Source interface {
	MigrationRan(ctx context.Context) (bool, error)
	MarkMigrationRan(ctx context.Context) error
	HasPending(ctx context.Context) (bool, error)
	Count(ctx context.Context) (int, error)
	LegacyTemplates(ctx context.Context) ([]model.Template, error)
	LegacyChecklists(ctx context.Context) ([]model.Checklist, error)
}

// Sink receives the synthesized commands (the synchronizer's Enqueue).
type Sink interface {
	Enqueue(ctx context.Context, cmds ...command.Command) error
}

// Reporter receives non-fatal anomalies.
type Reporter interface {
	Report(err error)
}

// LogReporter reports to a logger.
type LogReporter struct{ Logger *log.Logger }

func (r LogReporter) Report(err error) {
	l := r.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf("migrate: %v", err)
}

// ConsistencyError means the migration found commands already in the log,
// i.e. the data has been command-sourced before. Synthesis is skipped.
type ConsistencyError struct {
	PendingCommands int
}

func (e ConsistencyError) Error() string {
	return fmt.Sprintf("legacy migration skipped: %d commands already pending", e.PendingCommands)
}

type Outcome string

const (
	OutcomeAlreadyRan Outcome = "already-ran"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeMigrated   Outcome = "migrated"
)

type Result struct {
	Outcome    Outcome
	Templates  int
	Checklists int
}

type Migrator struct {
	Source   Source
	Sink     Sink
	Clock    *command.Clock
	Reporter Reporter
}

// Run performs the migration at most once. When commands are already
// pending, the anomaly is reported and nothing is synthesized; the run is
// still marked so it does not repeat on every start.
func (m *Migrator) Run(ctx context.Context) (Result, error) {
	ran, err := m.Source.MigrationRan(ctx)
	if err != nil {
		return Result{}, err
	}
	if ran {
		return Result{Outcome: OutcomeAlreadyRan}, nil
	}

	pending, err := m.Source.HasPending(ctx)
	if err != nil {
		return Result{}, err
	}
	if pending {
		n, err := m.Source.Count(ctx)
		if err != nil {
			return Result{}, err
		}
		m.report(ConsistencyError{PendingCommands: n})
		if err := m.Source.MarkMigrationRan(ctx); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeSkipped}, nil
	}

	cmds, res, err := m.Synthesize(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := m.Sink.Enqueue(ctx, cmds...); err != nil {
		return Result{}, fmt.Errorf("migrate: enqueue: %w", err)
	}
	if err := m.Source.MarkMigrationRan(ctx); err != nil {
		return Result{}, err
	}
	res.Outcome = OutcomeMigrated
	return res, nil
}

// Synthesize builds one create command per legacy template and checklist,
// each embedding the full snapshot.
func (m *Migrator) Synthesize(ctx context.Context) ([]command.Command, Result, error) {
	clock := m.Clock
	if clock == nil {
		clock = command.NewClock()
	}
	tpls, err := m.Source.LegacyTemplates(ctx)
	if err != nil {
		return nil, Result{}, fmt.Errorf("migrate: read legacy templates: %w", err)
	}
	cls, err := m.Source.LegacyChecklists(ctx)
	if err != nil {
		return nil, Result{}, fmt.Errorf("migrate: read legacy checklists: %w", err)
	}
	out := make([]command.Command, 0, len(tpls)+len(cls))
	for _, t := range tpls {
		out = append(out, command.CreateTemplate{Envelope: clock.Envelope(t.ID), Template: t})
	}
	for _, c := range cls {
		out = append(out, command.CreateChecklist{Envelope: clock.Envelope(c.ID), Checklist: c})
	}
	return out, Result{Templates: len(tpls), Checklists: len(cls)}, nil
}

func (m *Migrator) report(err error) {
	if m.Reporter == nil {
		LogReporter{}.Report(err)
		return
	}
	m.Reporter.Report(err)
}

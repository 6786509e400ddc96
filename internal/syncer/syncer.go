package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"checkmate/internal/command"
	"checkmate/internal/model"
)

// Log is the part of the local store the synchronizer needs.
type Log interface {
	All(ctx context.Context) ([]command.Command, error)
	Append(ctx context.Context, cmds ...command.Command) error
	HasPending(ctx context.Context) (bool, error)
	Acknowledge(ctx context.Context, ids []string) error
	ReplaceBases(ctx context.Context, ts []model.Template, cs []model.Checklist) error
	SetLastSyncedAt(ctx context.Context, t time.Time) error
}

type Options struct {
	// Timeout bounds a single remote call.
	Timeout time.Duration
	// Attempts is the number of tries per remote call (at least 1).
	Attempts int
	// Backoff is the delay before the second try; it doubles after each try.
	Backoff   time.Duration
	BatchSize int
	Logger    *log.Logger
	Now       func() time.Time
}

type Synchronizer struct {
	log       Log
	transport Transport
	opts      Options

	mu sync.Mutex
}

func New(l Log, t Transport, opts Options) *Synchronizer {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Synchronizer{log: l, transport: t, opts: opts}
}

type PushResult struct {
	Pushed       int
	Acknowledged int
	Rejected     []Ack
	Remaining    int
}

// HasUnsynchronizedCommands reports whether the log still holds commands the
// remote has not confirmed. Callers check it before logout or shutdown.
func (s *Synchronizer) HasUnsynchronizedCommands(ctx context.Context) (bool, error) {
	return s.log.HasPending(ctx)
}

// Enqueue logs commands for the next push.
func (s *Synchronizer) Enqueue(ctx context.Context, cmds ...command.Command) error {
	return s.log.Append(ctx, cmds...)
}

// Push sends every pending command and drops the confirmed ones. On a
// transport failure the unconfirmed commands stay in the log untouched.
func (s *Synchronizer) Push(ctx context.Context) (PushResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.push(ctx)
}

func (s *Synchronizer) push(ctx context.Context) (PushResult, error) {
	var res PushResult
	cmds, err := s.log.All(ctx)
	if err != nil {
		return res, err
	}
	if len(cmds) == 0 {
		return res, nil
	}

	for start := 0; start < len(cmds); start += s.opts.BatchSize {
		batch := cmds[start:min(start+s.opts.BatchSize, len(cmds))]
		records, err := command.EncodeAll(batch)
		if err != nil {
			return res, err
		}
		acks, err := s.pushWithRetry(ctx, records)
		if err != nil {
			res.Remaining = len(cmds) - res.Acknowledged
			return res, err
		}
		res.Pushed += len(batch)

		inBatch := make(map[string]bool, len(batch))
		for _, c := range batch {
			inBatch[c.Env().CommandID] = true
		}
		var confirmed []string
		for _, a := range acks {
			if !inBatch[a.CommandID] {
				continue
			}
			inBatch[a.CommandID] = false
			if a.Status.Confirmed() {
				confirmed = append(confirmed, a.CommandID)
			} else if a.Status == AckRejected {
				res.Rejected = append(res.Rejected, a)
				s.opts.Logger.Printf("sync: remote rejected command %s: %s", a.CommandID, a.Reason)
			}
		}
		if err := s.log.Acknowledge(ctx, confirmed); err != nil {
			return res, fmt.Errorf("sync: acknowledge: %w", err)
		}
		res.Acknowledged += len(confirmed)
	}
	res.Remaining = len(cmds) - res.Acknowledged
	if res.Remaining == 0 {
		if err := s.log.SetLastSyncedAt(ctx, s.opts.Now()); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Synchronizer) pushWithRetry(ctx context.Context, records []command.Record) ([]Ack, error) {
	var acks []Ack
	err := s.retry(ctx, "push", func(ctx context.Context) error {
		var err error
		acks, err = s.transport.Push(ctx, records)
		return err
	})
	return acks, err
}

// retry runs fn up to Attempts times with a per-try timeout, doubling the
// delay between tries. Errors that are not temporary stop it early.
func (s *Synchronizer) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	delay := s.opts.Backoff
	for attempt := 0; attempt < s.opts.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		var te TransportError
		if errors.As(err, &te) && !te.Temporary() {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.opts.Logger.Printf("sync: %s attempt %d/%d failed: %v", op, attempt+1, s.opts.Attempts, err)
	}
	return fmt.Errorf("sync %s: gave up after %d attempts: %w", op, s.opts.Attempts, lastErr)
}

// Pull replaces local base rows with the remote snapshot. Pending commands
// stay in the log and keep applying on top.
func (s *Synchronizer) Pull(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pull(ctx)
}

func (s *Synchronizer) pull(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.retry(ctx, "pull", func(ctx context.Context) error {
		var err error
		snap, err = s.transport.Pull(ctx)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.log.ReplaceBases(ctx, snap.Templates, snap.Checklists); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Sync pushes, then pulls when the push went through.
func (s *Synchronizer) Sync(ctx context.Context) (PushResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.push(ctx)
	if err != nil {
		return res, err
	}
	if _, err := s.pull(ctx); err != nil {
		return res, err
	}
	return res, nil
}

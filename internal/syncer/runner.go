package syncer

import (
	"context"
	"sync"
	"time"
)

// Runner schedules background syncs. Notify coalesces bursts of edits into
// one sync after the debounce window; at most one sync runs at a time.
type Runner struct {
	syncer   *Synchronizer
	debounce time.Duration

	// ctx is cancelled by Stop; in-flight syncs run under it
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	running bool
	closed  bool

	// OnResult, when set, sees the outcome of every background sync.
	OnResult func(PushResult, error)
}

func NewRunner(s *Synchronizer, debounce time.Duration) *Runner {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{syncer: s, debounce: debounce, ctx: ctx, cancel: cancel}
}

func (r *Runner) Notify() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.pending = true
	if r.timer == nil {
		r.timer = time.AfterFunc(r.debounce, r.onTimer)
		return
	}
	r.timer.Reset(r.debounce)
}

func (r *Runner) onTimer() {
	r.mu.Lock()
	if r.running {
		// picked up again when the in-flight run finishes
		r.mu.Unlock()
		return
	}
	if !r.pending || r.closed {
		r.mu.Unlock()
		return
	}
	r.pending = false
	r.running = true
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	res, err := r.syncer.Sync(r.ctx)
	if r.OnResult != nil {
		r.OnResult(res, err)
	}

	r.mu.Lock()
	r.running = false
	if r.pending && !r.closed && r.timer != nil {
		r.timer.Reset(r.debounce)
	}
	r.mu.Unlock()
}

// Run schedules a sync now and then once per interval until ctx is done.
// Notify calls made in between go through the same debounce timer.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	r.Notify()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Stop()
			return ctx.Err()
		case <-t.C:
			r.Notify()
		}
	}
}

// Stop cancels any scheduled run, cancels the one in flight and waits for it
// to return. The synchronizer's store may be closed once Stop returns.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}

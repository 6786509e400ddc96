package command

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock issues envelopes with strictly increasing timestamps, even when the
// wall clock stalls or steps backwards.
type Clock struct {
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
	last  time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now, newID: uuid.NewString}
}

// NewClockWith is for tests and replays that need fixed time or ids.
func NewClockWith(now func() time.Time, newID func() string) *Clock {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Clock{now: now, newID: newID}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}

// Observe raises the floor for the next timestamp to just after t. Callers
// seed it with the newest timestamp a previous process issued.
func (c *Clock) Observe(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t = t.UTC(); t.After(c.last) {
		c.last = t
	}
}

// NewID returns a fresh opaque id (UUID unless overridden).
func (c *Clock) NewID() string { return c.newID() }

func (c *Clock) Envelope(aggregateID string) Envelope {
	return Envelope{
		CommandID:   c.NewID(),
		Timestamp:   c.Now(),
		AggregateID: aggregateID,
	}
}

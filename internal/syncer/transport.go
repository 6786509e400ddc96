package syncer

import (
	"context"
	"fmt"

	"checkmate/internal/command"
	"checkmate/internal/model"
)

// AckStatus is the per-command answer from the remote service.
type AckStatus string

const (
	// AckAccepted means the command was applied for the first time.
	AckAccepted AckStatus = "accepted"
	// AckDuplicate means the command id was already known; nothing changed.
	AckDuplicate AckStatus = "duplicate"
	// AckRejected means the command could not be applied (e.g. it does not
	// decode). It stays in the local log.
	AckRejected AckStatus = "rejected"
)

// Confirmed reports whether the command can be dropped from the local log.
func (s AckStatus) Confirmed() bool { return s == AckAccepted || s == AckDuplicate }

type Ack struct {
	CommandID string    `json:"commandId"`
	Status    AckStatus `json:"status"`
	Reason    string    `json:"reason,omitempty"`
}

type PushRequest struct {
	Commands []command.Record `json:"commands"`
}

type PushResponse struct {
	Acks []Ack `json:"acks"`
}

// Snapshot is the remote's authoritative state, fetched on pull.
type Snapshot struct {
	Templates  []model.Template  `json:"templates"`
	Checklists []model.Checklist `json:"checklists"`
}

// Transport moves commands to the remote service and state back. Push must
// be safe to repeat with the same commands.
type Transport interface {
	Push(ctx context.Context, batch []command.Record) ([]Ack, error)
	Pull(ctx context.Context) (Snapshot, error)
}

// TransportError wraps a failed exchange with the remote service. Status is
// the HTTP status when one was received.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("sync %s: remote status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("sync %s: %v", e.Op, e.Err)
}

func (e TransportError) Unwrap() error { return e.Err }

// Temporary reports whether retrying might help.
func (e TransportError) Temporary() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

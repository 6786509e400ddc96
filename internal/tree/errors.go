package tree

import "fmt"

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

type DuplicateError struct {
	ID string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("task already present: %s", e.ID)
}

// CycleError is returned when an insert would place a node below itself.
type CycleError struct {
	ID       string
	TargetID string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("cannot place %s under its own subtree (%s)", e.ID, e.TargetID)
}

func notFound(id string) error { return NotFoundError{Kind: "task", ID: id} }

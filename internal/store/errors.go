package store

import "fmt"

// AmbiguousError is returned when an id prefix matches more than one row.
type AmbiguousError struct {
	Kind  string
	Ref   string
	Count int
}

func (e AmbiguousError) Error() string {
	return fmt.Sprintf("%s id %q is ambiguous (%d matches)", e.Kind, e.Ref, e.Count)
}

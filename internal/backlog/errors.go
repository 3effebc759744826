package backlog

import "fmt"

// FilterValidationError reports a bad filter request. It names the
// offending field so callers can point at it. Never retried.
type FilterValidationError struct {
	Field  string
	Reason string
}

func (e *FilterValidationError) Error() string {
	return fmt.Sprintf("invalid filter field %q: %s", e.Field, e.Reason)
}

// DraftReferenceError reports a malformed creation graph: a parent
// reference that is out of range, of the wrong type, or missing where
// one is required. It is raised during validation, before any network
// call is made.
type DraftReferenceError struct {
	Index  int
	Reason string
}

func (e *DraftReferenceError) Error() string {
	return fmt.Sprintf("draft %d: %s", e.Index, e.Reason)
}

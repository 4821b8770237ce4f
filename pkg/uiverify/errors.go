package uiverify

import (
	"errors"
	"fmt"
	"time"
)

// ErrChecksFailed is returned by Run when the flow completed but at least
// one recorded check failed.
var ErrChecksFailed = errors.New("verification checks failed")

// NavigationError reports that the target application could not be loaded.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("failed to navigate to %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ElementNotFoundError reports zero matches for a required locator.
type ElementNotFoundError struct {
	Query Query
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s", e.Query)
}

// ElementNotInteractableError reports an element that exists but cannot
// receive a click.
type ElementNotInteractableError struct {
	Query  Query
	Reason string
}

func (e *ElementNotInteractableError) Error() string {
	return fmt.Sprintf("element not interactable: %s: %s", e.Query, e.Reason)
}

// BrokenAriaReferenceError reports an ARIA id reference that does not
// resolve to an element.
type BrokenAriaReferenceError struct {
	Attr string
	ID   string
}

func (e *BrokenAriaReferenceError) Error() string {
	return fmt.Sprintf("%s references missing element #%s", e.Attr, e.ID)
}

// MissingLabelAssociationError reports an input without exactly one
// associated <label for> element.
type MissingLabelAssociationError struct {
	ID     string
	Inputs int
	Labels int
}

func (e *MissingLabelAssociationError) Error() string {
	return fmt.Sprintf("input #%s: want 1 input and 1 label, got %d inputs and %d labels",
		e.ID, e.Inputs, e.Labels)
}

// TimeoutVerificationError reports an awaited condition that never became
// true within its timeout.
type TimeoutVerificationError struct {
	Text    string
	Elapsed time.Duration
	Timeout time.Duration
}

func (e *TimeoutVerificationError) Error() string {
	return fmt.Sprintf("timed out waiting for %q after %v (limit %v)", e.Text, e.Elapsed, e.Timeout)
}

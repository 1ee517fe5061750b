package catalog

import (
	"errors"
	"fmt"
)

// ErrLessonNotFound reports that the requested lesson does not exist.
// A delete that hits this error has had no side effects.
var ErrLessonNotFound = errors.New("lesson not found")

// PartialFailureError reports that a lesson was deleted but the progress
// repair did not commit completely. Until a repair run converges, the
// catalog and the progress records are inconsistent: a record may still
// reference the removed sequence number. Callers must surface this and
// re-run the repair, never swallow it.
type PartialFailureError struct {
	LessonID string
	Title    string
	Seq      int
	Written  int // progress updates that committed before the failure
	Err      error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("lesson %q (seq %d) deleted but progress repair incomplete after %d writes: %v",
		e.Title, e.Seq, e.Written, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// StoreUnavailableError marks a transient I/O failure on one of the
// stores. Retrying with backoff is the expected recovery; the operation
// may or may not have reached the store.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the target lesson is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLessonNotFound)
}

// IsPartialFailure reports whether err carries a half-open deletion.
func IsPartialFailure(err error) bool {
	var pf *PartialFailureError
	return errors.As(err, &pf)
}

// IsStoreUnavailable reports whether err is a transient store failure.
func IsStoreUnavailable(err error) bool {
	var su *StoreUnavailableError
	return errors.As(err, &su)
}

package violations

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a review operation references a violation
// id that does not exist.
var ErrNotFound = errors.New("violation not found")

// ValidationError rejects a record at the store boundary. The store
// never coerces unknown types; only the client monitor does that.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

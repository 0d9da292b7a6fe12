package service

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound marks a request referencing an absent entity. Detected before
// any mutation; HTTP maps it to 404.
var ErrNotFound = errors.New("not found")

// ErrConflict marks a precondition violation (already-processed invoice,
// concurrent claim). Detected before the derivation mutates anything beyond
// the processing claim; HTTP maps it to 409.
var ErrConflict = errors.New("conflict")

// AutomationError surfaces a failed automation run to the caller. It is only
// possible after the invoice has been claimed: the failure path has already
// recorded the terminal run state when this error is returned.
type AutomationError struct {
	RunID   string
	Message string
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("automation failed: %s", e.Message)
}

// Logger defines the logging interface the services depend on.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

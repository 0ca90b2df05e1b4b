package pipeline

import (
	"errors"
	"fmt"

	"dwh/internal/warehouse"
)

// ErrInvalidTransition is returned when a driver operation is called from a
// state that does not allow it.
var ErrInvalidTransition = errors.New("pipeline: invalid state transition")

// StepError reports the statement that stopped a run.
type StepError struct {
	// Step is the phase: connect, drop, create, truncate, reset, load or
	// transform.
	Step string
	// Statement is the statement name, e.g. populate_songplays.
	Statement string
	Kind      warehouse.ErrorKind
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s failed (%s): %v", e.Step, e.Statement, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// KindOf returns the classification carried by err, or KindUnknown.
func KindOf(err error) warehouse.ErrorKind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	if k, ok := warehouse.ClassifyCommon(err); ok {
		return k
	}
	return warehouse.KindUnknown
}

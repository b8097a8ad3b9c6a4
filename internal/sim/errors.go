package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig wraps every reason New refuses a configuration.
	ErrInvalidConfig = errors.New("sim: invalid configuration")

	// ErrUnknownMode is returned for a mode other than live or cached.
	ErrUnknownMode = errors.New("sim: unknown mode")

	ErrNoDuration = errors.New("sim: run needs a positive duration")
)

// StepError wraps an error with the step it happened in.
type StepError struct {
	Step            int64
	TimeNanoseconds float64
	Wrapped         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("sim: step %d at %.0fns: %v", e.Step, e.TimeNanoseconds, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

package compose

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInvocable is returned when a chain contains a nil middleware.
	ErrNotInvocable = errors.New("middleware must be a non-nil function")
	// ErrNextCalledMultipleTimes is returned when a middleware invokes its next more than once.
	ErrNextCalledMultipleTimes = errors.New("next() called multiple times")
)

// PanicError carries a value recovered from a panicking step.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("middleware panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

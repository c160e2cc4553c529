package flow

import "errors"

var (
	// ErrNilAction is returned by New when no terminal action is given.
	ErrNilAction = errors.New("flow: action must be a non-nil function")
	// ErrUnknownPosition is returned for a scope position other than Prefix or Suffix.
	ErrUnknownPosition = errors.New("flow: unknown scope position")
)

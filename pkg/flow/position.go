package flow

import (
	"fmt"
	"strings"
)

// Position selects where Scope.Register places a middleware.
type Position int

const (
	// Prefix runs before everything currently in the scope.
	Prefix Position = iota
	// Suffix runs after everything currently in the scope, still before the action.
	Suffix
)

func (p Position) String() string {
	switch p {
	case Prefix:
		return "prefix"
	case Suffix:
		return "suffix"
	default:
		return "unknown"
	}
}

// ParsePosition parses "prefix" or "suffix".
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prefix":
		return Prefix, nil
	case "suffix":
		return Suffix, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPosition, s)
	}
}

// UnmarshalText lets a Position be decoded from configuration files.
func (p *Position) UnmarshalText(text []byte) error {
	v, err := ParsePosition(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Position) MarshalText() ([]byte, error) {
	if p != Prefix && p != Suffix {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPosition, int(p))
	}
	return []byte(p.String()), nil
}

package hlswalk

import "fmt"

// LoaderError wraps a failure from the injected Loader (network, I/O, HTTP
// status). Surfaced as an Error event; does not transition controller state
// (spec.md §7.1).
type LoaderError struct {
	URI string
	Err error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("hlswalk: load %s: %v", e.URI, e.Err)
}

func (e *LoaderError) Unwrap() error { return e.Err }

// ParseError wraps a failure from the injected Parser. Surfaced as an Error
// event; does not transition controller state (spec.md §7.2).
type ParseError struct {
	URI string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hlswalk: parse %s: %v", e.URI, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// InvariantError indicates an internal invariant violation. It is fatal:
// the walk controller panics rather than continuing in a state it cannot
// reason about (spec.md §7.4).
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("hlswalk: invariant violated in %s: %s", e.Op, e.Msg)
}

func panicInvariant(op, msg string) {
	panic(&InvariantError{Op: op, Msg: msg})
}

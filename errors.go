package hmmer

import (
	"errors"
	"fmt"
)

// Sentinel errors for the DP core, one per failure category named in
// spec.md §6/§7. Callers should use errors.Is against these, and may
// unwrap for positional detail (traceback failures wrap a *TraceError).
var (
	// ErrAlloc indicates a matrix grow/create entry point could not
	// allocate the requested storage.
	ErrAlloc = errors.New("hmmer: allocation failure")

	// ErrInvalidArg indicates bad input detected at entry: non-positive
	// M, a profile/sequence length mismatch, or an anchor list violating
	// the sort/range invariant. DP state is left untouched.
	ErrInvalidArg = errors.New("hmmer: invalid argument")

	// ErrUnreachablePath indicates stochastic traceback was asked to
	// sample from a cell whose score is -Inf: no path reaches it.
	ErrUnreachablePath = errors.New("hmmer: unreachable path")

	// ErrInternal indicates an inconsistency reconstructive traceback
	// could not resolve: no incoming edge matched the stored cell value
	// within tolerance. This represents a bug in the DP fill, not bad
	// input.
	ErrInternal = errors.New("hmmer: internal traceback inconsistency")
)

// TraceError wraps ErrInternal with the (state, k, i) position at which
// reconstructive traceback failed to find a matching incoming edge.
type TraceError struct {
	State State
	K, I  int
	Value float32
}

func (e *TraceError) Error() string {
	return fmt.Sprintf("hmmer: no incoming edge matches stored cell value %v at state=%s k=%d i=%d",
		e.Value, e.State, e.K, e.I)
}

func (e *TraceError) Unwrap() error { return ErrInternal }

package record

import (
	"errors"
	"fmt"

	"github.com/inference-sim/mcsim/sim/stream"
)

var (
	// ErrAllocation reports a request for storage that cannot be satisfied.
	ErrAllocation = errors.New("allocation failure")
	// ErrShapeMismatch reports a copy or merge across operands of
	// incompatible type, length or bin layout.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrMalformedStream reports unreadable input during Read.
	ErrMalformedStream = stream.ErrMalformed
)

// OpError names the module and operation a lifecycle failure came from.
type OpError struct {
	Module string
	Op     string
	Err    error
}

func (e *OpError) Error() string {
	return e.Module + "::" + e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// Errorf builds an *OpError wrapping kind with a formatted detail message.
func Errorf(module, op string, kind error, format string, args ...any) error {
	return &OpError{
		Module: module,
		Op:     op,
		Err:    fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)),
	}
}

// Wrap attributes err to module and op. Nil stays nil; an error that already
// carries an *OpError is returned unchanged so the innermost origin is kept.
func Wrap(module, op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return &OpError{Module: module, Op: op, Err: err}
}

// Mismatch is the common error for a Copy/Add/Subtr operand of the wrong
// concrete type.
func Mismatch(module, op string, want, got Record) error {
	return Errorf(module, op, ErrShapeMismatch, "operand %T is not %T", got, want)
}

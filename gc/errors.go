package gc

import (
	"errors"
	"fmt"
)

// Fatal conditions. The heap never returns these; it panics with a
// *FatalError that wraps one of them, so that a recovered value can be
// matched with errors.Is.
var (
	ErrOutOfMemory    = errors.New("out of memory")
	ErrRootDiscipline = errors.New("root stack discipline violated")
	ErrRootOverflow   = errors.New("root stack overflow")
	ErrForwarding     = errors.New("forwarding invariant violated")
	ErrToSpaceAccess  = errors.New("access to an object in to-space")
	ErrFieldIndex     = errors.New("field index out of range")
	ErrBadRef         = errors.New("not a heap object")
	ErrBadSize        = errors.New("invalid allocation size")
	ErrNoGeneration   = errors.New("no such generation")
)

// ErrBadConfig is returned by New for a configuration it can't use.
var ErrBadConfig = errors.New("invalid gc configuration")

// FatalError is the panic value for every unrecoverable heap condition.
type FatalError struct {
	Err error  // one of the Err* sentinels
	Msg string // details
}

func (e *FatalError) Error() string {
	if e.Msg == "" {
		return "gc: " + e.Err.Error()
	}
	return "gc: " + e.Err.Error() + ": " + e.Msg
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// fatal aborts the current operation. It does not return.
func fatal(err error, format string, args ...any) {
	panic(&FatalError{Err: err, Msg: fmt.Sprintf(format, args...)})
}

// Recover converts a panic value raised by the heap back into an error. It
// returns nil for nil and re-panics for anything that isn't a *FatalError.
//
//	defer func() { err = gc.Recover(recover()) }()
func Recover(v any) error {
	if v == nil {
		return nil
	}
	if err, ok := v.(*FatalError); ok {
		return err
	}
	panic(v)
}

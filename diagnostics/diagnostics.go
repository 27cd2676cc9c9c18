// Package diagnostics formats heap errors and prints them in a consistent
// way.
package diagnostics

import (
	"errors"
	"fmt"
	"io"

	"github.com/stella-rt/copygc/gc"
	"github.com/stella-rt/copygc/stella"
)

// A single diagnostic.
type Diagnostic struct {
	Kind string // short name of the failure, empty for plain errors
	Msg  string

	// Hint suggests a way out, if there is one.
	Hint string
}

// All diagnostics produced for one error. An error that joins several
// errors produces one diagnostic per error.
type Diagnostics []Diagnostic

var kinds = []struct {
	err  error
	kind string
	hint string
}{
	{gc.ErrOutOfMemory, "out of memory", "the live data does not fit in a semi-space: use a larger -space or more generations"},
	{gc.ErrRootDiscipline, "root discipline", "every PushRoot must be matched by a PopRoot of the same slot, in reverse order"},
	{gc.ErrRootOverflow, "root overflow", "raise -max-roots, or set it to 0 for an unbounded root stack"},
	{gc.ErrForwarding, "forwarding", "a reference escaped the collector: this is a collector bug"},
	{gc.ErrToSpaceAccess, "stale reference", "an object was used after a collection without being rooted across it"},
	{gc.ErrFieldIndex, "field index", ""},
	{gc.ErrBadRef, "bad reference", ""},
	{gc.ErrBadSize, "bad allocation", ""},
	{gc.ErrNoGeneration, "bad generation", ""},
	{gc.ErrBadConfig, "configuration", "run 'copygc config' to see the effective options"},
	{stella.ErrNotCallable, "not callable", ""},
}

// CreateDiagnostics reads the underlying errors in the error object and
// creates a set of diagnostics that can be readily printed.
func CreateDiagnostics(err error) Diagnostics {
	if err == nil {
		return nil
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var diags Diagnostics
		for _, err := range multi.Unwrap() {
			diags = append(diags, CreateDiagnostics(err)...)
		}
		return diags
	}
	return Diagnostics{createDiagnostic(err)}
}

func createDiagnostic(err error) Diagnostic {
	diag := Diagnostic{Msg: err.Error()}
	var fatal *gc.FatalError
	if errors.As(err, &fatal) {
		diag.Msg = fatal.Msg
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			diag.Kind = k.kind
			diag.Hint = k.hint
			if fatal == nil {
				diag.Msg = err.Error()
			}
			break
		}
	}
	return diag
}

// Fatal reports whether any of the diagnostics comes from a fatal heap
// condition rather than a usage error.
func (diags Diagnostics) Fatal() bool {
	for _, diag := range diags {
		switch diag.Kind {
		case "", "configuration":
		default:
			return true
		}
	}
	return false
}

// Print writes the diagnostics to w. With color set, the kind is
// highlighted with ANSI escapes.
func (diags Diagnostics) Print(w io.Writer, color bool) {
	for _, diag := range diags {
		diag.Print(w, color)
	}
}

// Print writes this diagnostic to w.
func (diag Diagnostic) Print(w io.Writer, color bool) {
	if diag.Kind == "" {
		fmt.Fprintln(w, diag.Msg)
		return
	}
	kind := diag.Kind
	if color {
		kind = "\033[1;31m" + kind + "\033[0m"
	}
	fmt.Fprintf(w, "%s: %s\n", kind, diag.Msg)
	if diag.Hint != "" {
		fmt.Fprintf(w, "\thint: %s\n", diag.Hint)
	}
}

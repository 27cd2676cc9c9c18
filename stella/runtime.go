// Package stella contains the runtime support for compiled Stella programs:
// value constructors, conversion of natural numbers, closures, the Nat::rec
// builtin and the value printer. Everything here goes through the gc.Heap
// allocation and field access contract.
//
// Any function in this package that takes object references keeps them
// rooted while it allocates. Callers still have to root their own
// references across calls.
package stella

import (
	"fmt"
	"io"

	"github.com/stella-rt/copygc/gc"
	"github.com/stella-rt/copygc/object"
)

// Runtime is the state of a running program: its heap and the table of
// native functions that closures refer to.
type Runtime struct {
	Heap *gc.Heap

	funcs  []Func
	names  []string
	byName map[string]object.Ref

	// Sum of the field counts of every object requested, including the
	// shared singletons.
	allocatedFields uint64
}

// New returns a runtime that allocates from h.
func New(h *gc.Heap) *Runtime {
	return &Runtime{
		Heap:   h,
		byName: make(map[string]object.Ref),
	}
}

// New allocates an object with the given tag and fields. Zero-field
// singleton forms return the shared instance.
func (rt *Runtime) New(tag object.Tag, fields ...object.Ref) object.Ref {
	h := rt.Heap
	rt.allocatedFields += uint64(len(fields))
	for i := range fields {
		h.PushRoot(&fields[i])
	}
	obj := h.Allocate(tag, len(fields))
	for i := len(fields) - 1; i >= 0; i-- {
		h.PopRoot(&fields[i])
	}
	for i, v := range fields {
		h.Init(obj, i, v)
	}
	return obj
}

func (rt *Runtime) Succ(n object.Ref) object.Ref {
	return rt.New(object.TagSucc, n)
}

func (rt *Runtime) Cons(head, tail object.Ref) object.Ref {
	return rt.New(object.TagCons, head, tail)
}

func (rt *Runtime) Tuple(fields ...object.Ref) object.Ref {
	return rt.New(object.TagTuple, fields...)
}

func (rt *Runtime) Inl(v object.Ref) object.Ref {
	return rt.New(object.TagInl, v)
}

func (rt *Runtime) Inr(v object.Ref) object.Ref {
	return rt.New(object.TagInr, v)
}

// NewRef allocates a mutable reference cell holding v.
func (rt *Runtime) NewRef(v object.Ref) object.Ref {
	return rt.New(object.TagRef, v)
}

// Deref returns the value held by the reference cell r.
func (rt *Runtime) Deref(r object.Ref) object.Ref {
	return rt.Heap.Read(r, 0)
}

// Assign stores v in the reference cell r.
func (rt *Runtime) Assign(r, v object.Ref) {
	rt.Heap.Write(r, 0, v)
}

// Bool returns the true or false singleton.
func Bool(b bool) object.Ref {
	if b {
		return object.TheTrue
	}
	return object.TheFalse
}

// List allocates a cons list of the given elements.
func (rt *Runtime) List(elems ...object.Ref) object.Ref {
	h := rt.Heap
	for i := range elems {
		h.PushRoot(&elems[i])
	}
	l := object.TheEmpty
	h.PushRoot(&l)
	for i := len(elems) - 1; i >= 0; i-- {
		l = rt.Cons(elems[i], l)
	}
	h.PopRoot(&l)
	for i := len(elems) - 1; i >= 0; i-- {
		h.PopRoot(&elems[i])
	}
	return l
}

// AllocatedFields returns the total number of fields requested so far.
func (rt *Runtime) AllocatedFields() uint64 {
	return rt.allocatedFields
}

const statsRule = "------------------------------------------------------------"

// PrintStats writes the collector statistics followed by the runtime's own.
func (rt *Runtime) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "\n%s\nGarbage collector (GC) statistics:\n", statsRule)
	rt.Heap.PrintAllocStats(w)
	fmt.Fprintf(w, "\n%s\nStella runtime statistics:\n", statsRule)
	fmt.Fprintf(w, "Total allocated fields in Stella objects: %d fields\n", rt.allocatedFields)
}

package stella

import (
	"github.com/stella-rt/copygc/gc"
	"github.com/stella-rt/copygc/object"
)

// Func is the code of a closure. self is the closure object, so the code can
// read its captured values with Captured.
//
// Neither self nor arg is rooted by the caller: a Func that allocates and
// still needs them afterwards must register them itself.
type Func func(rt *Runtime, self, arg object.Ref) object.Ref

// Register adds fn to the function table under name and returns the native
// reference that closures store in their first field. Registering a name
// again returns the existing entry.
func (rt *Runtime) Register(name string, fn Func) object.Ref {
	if code, ok := rt.byName[name]; ok {
		return code
	}
	code := object.Native(uint64(len(rt.funcs)))
	rt.funcs = append(rt.funcs, fn)
	rt.names = append(rt.names, name)
	rt.byName[name] = code
	return code
}

// FuncName returns the name code was registered with.
func (rt *Runtime) FuncName(code object.Ref) string {
	if !code.IsNative() || code.NativeIndex() >= uint64(len(rt.names)) {
		return "?"
	}
	return rt.names[code.NativeIndex()]
}

// Closure allocates a function object: field 0 holds code, the remaining
// fields the captured values.
func (rt *Runtime) Closure(code object.Ref, captured ...object.Ref) object.Ref {
	return rt.New(object.TagFn, append([]object.Ref{code}, captured...)...)
}

// Captured returns captured value i of the closure f.
func (rt *Runtime) Captured(f object.Ref, i int) object.Ref {
	return rt.Heap.Read(f, 1+i)
}

// Call applies the closure f to x.
func (rt *Runtime) Call(f, x object.Ref) object.Ref {
	h := rt.Heap
	if tag := h.Tag(f); tag != object.TagFn {
		panic(&gc.FatalError{Err: ErrNotCallable, Msg: "call of a " + tag.String() + " object"})
	}
	code := h.Read(f, 0)
	if !code.IsNative() || code.NativeIndex() >= uint64(len(rt.funcs)) {
		panic(&gc.FatalError{Err: ErrNotCallable, Msg: "closure code " + code.String()})
	}
	return rt.funcs[code.NativeIndex()](rt, f, x)
}

package stella

import (
	"fmt"
	"sort"

	"github.com/stella-rt/copygc/object"
)

// A Program is a compiled Stella program with a main function over Nat.
type Program struct {
	Name string
	Doc  string
	Main func(rt *Runtime, n object.Ref) object.Ref
}

var programs = map[string]Program{
	"id": {
		Name: "id",
		Doc:  "fn main(n : Nat) -> Nat { return n }",
		Main: func(rt *Runtime, n object.Ref) object.Ref { return n },
	},
	"double": {
		Name: "double",
		Doc:  "fn main(n : Nat) -> Nat { return Nat::rec(n, 0, fn(_ : Nat) { return fn(acc : Nat) { return succ(succ(acc)) } }) }",
		Main: doubleMain,
	},
	"add": {
		Name: "add",
		Doc:  "fn main(n : Nat) -> Nat { return add(n)(n) }",
		Main: func(rt *Runtime, n object.Ref) object.Ref { return rt.add(n, n) },
	},
	"fib": {
		Name: "fib",
		Doc:  "fn main(n : Nat) -> Nat { return Nat::rec(n, {0, 1}, fn(_ : Nat) { return fn(p : {Nat, Nat}) { return {p.2, add(p.1)(p.2)} } }).1 }",
		Main: fibMain,
	},
	"range": {
		Name: "range",
		Doc:  "fn main(n : Nat) -> [Nat] { return Nat::rec(n, [], fn(k : Nat) { return fn(l : [Nat]) { return cons(k, l) } }) }",
		Main: rangeMain,
	},
}

// Programs returns the names of the built-in programs in sorted order.
func Programs() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupProgram returns the built-in program with the given name.
func LookupProgram(name string) (Program, bool) {
	p, ok := programs[name]
	return p, ok
}

// Run encodes n, runs the named program on it and returns the result.
func (rt *Runtime) Run(name string, n int) (object.Ref, error) {
	p, ok := programs[name]
	if !ok {
		return object.Nil, fmt.Errorf("unknown program %q", name)
	}
	if n < 0 {
		return object.Nil, fmt.Errorf("input must be a natural number, got %d", n)
	}
	return p.Main(rt, rt.NatToObject(n)), nil
}

// constant returns the code of a closure that ignores its argument and
// returns a fresh closure over code.
func (rt *Runtime) constant(name string, code object.Ref) object.Ref {
	return rt.Register(name, func(rt *Runtime, _, _ object.Ref) object.Ref {
		return rt.Closure(code)
	})
}

func doubleMain(rt *Runtime, n object.Ref) object.Ref {
	step := rt.Register("double.step", func(rt *Runtime, _, acc object.Ref) object.Ref {
		return rt.Succ(rt.Succ(acc))
	})
	h := rt.Heap
	h.PushRoot(&n)
	f := rt.Closure(rt.constant("double.f", step))
	h.PopRoot(&n)
	return rt.NatRec(n, object.TheZero, f)
}

// add returns a + b, counting b up a times.
func (rt *Runtime) add(a, b object.Ref) object.Ref {
	succ := rt.Register("add.succ", func(rt *Runtime, _, x object.Ref) object.Ref {
		return rt.Succ(x)
	})
	h := rt.Heap
	h.PushRoot(&a)
	h.PushRoot(&b)
	f := rt.Closure(rt.constant("add.f", succ))
	h.PopRoot(&b)
	h.PopRoot(&a)
	return rt.NatRec(a, b, f)
}

func fibMain(rt *Runtime, n object.Ref) object.Ref {
	step := rt.Register("fib.step", func(rt *Runtime, _, p object.Ref) object.Ref {
		h := rt.Heap
		h.PushRoot(&p)
		sum := rt.add(h.Read(p, 0), h.Read(p, 1))
		h.PushRoot(&sum)
		next := rt.Tuple(h.Read(p, 1), sum)
		h.PopRoot(&sum)
		h.PopRoot(&p)
		return next
	})
	h := rt.Heap
	h.PushRoot(&n)
	z := rt.Tuple(object.TheZero, rt.Succ(object.TheZero))
	h.PushRoot(&z)
	f := rt.Closure(rt.constant("fib.f", step))
	h.PopRoot(&z)
	h.PopRoot(&n)
	return h.Read(rt.NatRec(n, z, f), 0)
}

func rangeMain(rt *Runtime, n object.Ref) object.Ref {
	// Unlike the other programs, the step keeps the counter it is given.
	step := rt.Register("range.step", func(rt *Runtime, self, l object.Ref) object.Ref {
		return rt.Cons(rt.Captured(self, 0), l)
	})
	f := rt.Register("range.f", func(rt *Runtime, _, k object.Ref) object.Ref {
		return rt.Closure(step, k)
	})
	h := rt.Heap
	h.PushRoot(&n)
	fn := rt.Closure(f)
	h.PopRoot(&n)
	return rt.NatRec(n, object.TheEmpty, fn)
}

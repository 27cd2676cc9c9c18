package stella

import "github.com/stella-rt/copygc/object"

// NatToObject builds the unary encoding of n: n succ cells around zero.
func (rt *Runtime) NatToObject(n int) object.Ref {
	h := rt.Heap
	result := object.TheZero
	// Each new cell only refers to the previous result.
	h.PushRoot(&result)
	for i := n; i > 0; i-- {
		result = rt.Succ(result)
	}
	h.PopRoot(&result)
	return result
}

// ObjectToNat counts the succ cells in front of obj. It does not allocate.
func (rt *Runtime) ObjectToNat(obj object.Ref) int {
	h := rt.Heap
	n := 0
	for h.Tag(obj) == object.TagSucc {
		obj = h.Read(obj, 0)
		n++
	}
	return n
}

// NatRec implements Nat::rec(n, z, f): starting from z, it replaces the
// accumulator with f(k)(acc) for k = n-1 down to 0.
func (rt *Runtime) NatRec(n, z, f object.Ref) object.Ref {
	h := rt.Heap
	h.PushRoot(&n)
	h.PushRoot(&z)
	h.PushRoot(&f)
	for h.Tag(n) == object.TagSucc {
		n = h.Read(n, 0)
		g := rt.Call(f, n)
		z = rt.Call(g, z)
	}
	h.PopRoot(&f)
	h.PopRoot(&z)
	h.PopRoot(&n)
	return z
}

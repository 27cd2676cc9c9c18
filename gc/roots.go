package gc

import "github.com/stella-rt/copygc/object"

// PushRoot registers a mutator variable as a root. The reference stored in
// *slot is kept alive by every collection until the matching PopRoot, and
// *slot is rewritten in place when the object moves.
//
// Any code that holds a heap reference in a local variable across a call
// that may allocate must bracket that variable with PushRoot/PopRoot:
//
//	h.PushRoot(&list)
//	cell := h.Allocate(object.TagCons, 2) // may move list
//	h.PopRoot(&list)
func (h *Heap) PushRoot(slot *object.Ref) {
	if slot == nil {
		fatal(ErrRootDiscipline, "push of a nil slot")
	}
	if h.config.MaxRoots > 0 && len(h.roots) >= h.config.MaxRoots {
		fatal(ErrRootOverflow, "more than %d roots", h.config.MaxRoots)
	}
	h.roots = append(h.roots, slot)
	if len(h.roots) > h.stats.maxRoots {
		h.stats.maxRoots = len(h.roots)
	}
}

// PopRoot removes the most recently pushed root, which must be slot. With
// asserts enabled a mismatch aborts; without them the top entry is removed
// regardless.
func (h *Heap) PopRoot(slot *object.Ref) {
	n := len(h.roots)
	if n == 0 {
		fatal(ErrRootDiscipline, "pop from an empty root stack")
	}
	if h.config.Asserts && h.roots[n-1] != slot {
		fatal(ErrRootDiscipline, "pop of %p but the top of the stack is %p", slot, h.roots[n-1])
	}
	h.roots[n-1] = nil
	h.roots = h.roots[:n-1]
}

// RootDepth returns the number of roots currently registered.
func (h *Heap) RootDepth() int {
	return len(h.roots)
}

// Roots returns the registered slots, bottom of the stack first.
func (h *Heap) Roots() []*object.Ref {
	return append([]*object.Ref(nil), h.roots...)
}

// MaxRootDepth returns the largest number of roots registered at once.
func (h *Heap) MaxRootDepth() int {
	return h.stats.maxRoots
}

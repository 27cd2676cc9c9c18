package gc

import "github.com/stella-rt/copygc/object"

// The barriers run on every valid Read and Write (but not on Init). Right
// now they only keep statistics; this is the place where a remembered set or
// card marking would go.

func (h *Heap) readBarrier(obj object.Ref, i int) {
	h.stats.reads++
}

func (h *Heap) writeBarrier(obj object.Ref, i int, v object.Ref) {
	h.stats.writes++
	if len(h.gens) > 1 {
		// An older object now refers to a younger one.
		if dst := h.generationOf(v); dst >= 0 && dst < h.generationOf(obj) {
			h.stats.crossGenWrites++
		}
	}
}

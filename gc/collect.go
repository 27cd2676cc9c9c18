package gc

import (
	"time"

	"github.com/stella-rt/copygc/object"
)

// maxPauses is the number of recent pause times kept for ReadGCStats.
const maxPauses = 256

// CollectAll collects every generation, generation 0 first. It does nothing
// before the first allocation or when the collector is disabled.
func (h *Heap) CollectAll() {
	if h.arena == nil || h.config.Policy == CollectNever {
		return
	}
	start := time.Now()
	for g := range h.gens {
		h.collect(g)
	}
	h.finishPause(start)
}

// Collect runs a single scavenge of generation g. Objects in the other
// generations are treated as roots.
func (h *Heap) Collect(g int) {
	if g < 0 || g >= h.config.Generations {
		fatal(ErrNoGeneration, "generation %d of %d", g, h.config.Generations)
	}
	if h.arena == nil || h.config.Policy == CollectNever {
		return
	}
	start := time.Now()
	h.collect(g)
	h.finishPause(start)
}

func (h *Heap) finishPause(start time.Time) {
	pause := time.Since(start)
	h.stats.pauseTotal += pause
	h.stats.lastGC = time.Now()
	h.stats.pauses = append(h.stats.pauses, 0)
	copy(h.stats.pauses[1:], h.stats.pauses)
	h.stats.pauses[0] = pause
	if len(h.stats.pauses) > maxPauses {
		h.stats.pauses = h.stats.pauses[:maxPauses]
	}
	if h.config.Asserts {
		h.verify()
	}
	h.noteResidency(0, 0)
}

// collect performs one scavenge of generation g:
//
//  1. Forward every root, and every field of the objects living in the other
//     generations.
//  2. Walk the to-space from the scan cursor to the copy cursor, forwarding
//     every field of every copied object. Copying more objects moves the copy
//     cursor, so this runs until the two meet. Objects promoted into the next
//     generation are scanned the same way.
//  3. Clear the old from-space (if configured) and swap the two spaces.
func (h *Heap) collect(g int) {
	p := h.gens[g]
	p.scan = p.to.start
	p.copy = p.to.start
	c := &cycle{pair: p}
	if h.config.PromoteAge > 0 && g+1 < len(h.gens) {
		c.older = h.gens[g+1]
		c.promoStart = c.older.next
		c.promoScan = c.older.next
	}
	h.cur = c

	for _, slot := range h.roots {
		*slot = h.forward(*slot)
	}
	for _, q := range h.gens {
		if q == p {
			continue
		}
		end := q.next
		if q == c.older {
			// Promoted objects are scanned below.
			end = c.promoStart
		}
		h.scanRange(q.from.start, end)
	}

scavenge:
	for {
		switch {
		case p.scan < p.copy:
			p.scan = h.scanObject(p.scan)
		case c.older != nil && c.promoScan < c.older.next:
			c.promoScan = h.scanObject(c.promoScan)
		default:
			break scavenge
		}
	}

	if h.config.ZeroFromSpace {
		h.zero(p.from)
	}
	p.objects = c.copied
	p.swap()
	p.cycles++
	if c.older != nil {
		c.older.objects += c.promoted
	}
	h.stats.promoted += uint64(c.promoted)
	h.cur = nil

	h.log.Debug("gc: scavenge",
		"gen", g,
		"cycle", p.cycles,
		"copied", c.copied,
		"promoted", c.promoted,
		"used", p.used())
}

// scanRange forwards the fields of every object in lo..hi.
func (h *Heap) scanRange(lo, hi object.Ref) {
	for addr := lo; addr < hi; {
		addr = h.scanObject(addr)
	}
}

// scanObject forwards every field of the object at addr in place and returns
// the address just past it.
func (h *Heap) scanObject(addr object.Ref) object.Ref {
	hdr := object.DecodeHeader(h.load(addr))
	for i := 0; i < hdr.FieldCount; i++ {
		slot := object.Field(addr, i)
		h.store(slot, uint64(h.forward(object.Ref(h.load(slot)))))
	}
	return addr + object.Ref(object.Size(hdr.FieldCount))
}

// forward returns the new address of r. References that don't point into
// the from-space being collected (singletons, native values, objects of
// other generations) are returned unchanged. An object that has already been
// copied holds its new address in field 0; anything else is copied now.
func (h *Heap) forward(r object.Ref) object.Ref {
	if !h.InFromSpace(r) {
		return r
	}
	if fwd, ok := h.forwardingPointer(r); ok {
		return fwd
	}
	h.chase(r)
	fwd, _ := h.forwardingPointer(r)
	return fwd
}

// forwardingPointer returns field 0 of the from-space object r if it points
// to where objects are copied during this cycle.
func (h *Heap) forwardingPointer(r object.Ref) (object.Ref, bool) {
	fwd := object.Ref(h.load(object.Field(r, 0)))
	c := h.cur
	if c.pair.to.contains(fwd) {
		return fwd, true
	}
	if c.older != nil && fwd >= c.promoStart && fwd < c.older.next {
		return fwd, true
	}
	return object.Nil, false
}

// chase copies r, and then keeps copying one not yet copied object that the
// last copy refers to until there is none left. Because the forwarding
// pointer is installed before the copied fields are inspected, an object
// that refers back to itself or to an ancestor is seen as already copied,
// so cyclic structures terminate. Fields that are not chased here are
// picked up later by the scan.
func (h *Heap) chase(r object.Ref) {
	for r != object.Nil {
		word := h.load(r)
		n := object.DecodeHeader(word).FieldCount
		q, header := h.copyTarget(word, object.Size(n))

		h.store(q, header)
		for i := 0; i < n; i++ {
			h.store(object.Field(q, i), h.load(object.Field(r, i)))
		}
		if n == 0 {
			h.store(object.Field(q, 0), 0)
		}
		h.store(object.Field(r, 0), uint64(q))

		next := object.Nil
		for i := 0; i < n; i++ {
			v := object.Ref(h.load(object.Field(q, i)))
			if !h.InFromSpace(v) {
				continue
			}
			if _, copied := h.forwardingPointer(v); !copied {
				next = v
			}
		}
		r = next
	}
}

// copyTarget reserves size bytes for the copy of an object with the given
// header word and returns the address and the header word of the copy.
// Objects old enough are promoted to the next generation.
func (h *Heap) copyTarget(word uint64, size int) (object.Ref, uint64) {
	c := h.cur
	age := object.Age(word) + 1
	if c.older != nil && age >= h.config.PromoteAge {
		o := c.older
		if !o.fits(size) {
			fatal(ErrOutOfMemory, "promotion of %d bytes into generation %d with %d of %d bytes in use",
				size, o.gen, o.used(), o.from.size())
		}
		q := o.next
		o.next += object.Ref(size)
		c.promoted++
		return q, object.WithAge(word, 0)
	}

	p := c.pair
	if p.copy+object.Ref(size) > p.to.end {
		fatal(ErrOutOfMemory, "to-space of generation %d overflowed", p.gen)
	}
	q := p.copy
	p.copy += object.Ref(size)
	c.copied++
	return q, object.WithAge(word, age)
}

// verify checks that no root and no field of a live object refers to a
// to-space or to unallocated memory.
func (h *Heap) verify() {
	for i, slot := range h.roots {
		if !h.validRef(*slot) {
			fatal(ErrForwarding, "root %d (%p) holds %v", i, slot, *slot)
		}
	}
	h.Walk(func(obj object.Ref, hdr object.Header) bool {
		for i := 0; i < hdr.FieldCount; i++ {
			if v := object.Ref(h.load(object.Field(obj, i))); !h.validRef(v) {
				fatal(ErrForwarding, "field %d of %v object %v holds %v", i, hdr.Tag, obj, v)
			}
		}
		return true
	})
}

// validRef reports whether v may be stored in a live slot outside a
// collection.
func (h *Heap) validRef(v object.Ref) bool {
	if v == object.Nil || v.IsNative() || object.IsStatic(v) {
		return true
	}
	g := h.generationOf(v)
	return g >= 0 && v < h.gens[g].next
}

// Walk calls fn for every object in the from-spaces, in address order, one
// generation after the other. It stops early when fn returns false. Outside
// of a collection every visited object is either live or garbage that has
// not been reclaimed yet.
func (h *Heap) Walk(fn func(obj object.Ref, hdr object.Header) bool) {
	for _, p := range h.gens {
		for addr := p.from.start; addr < p.next; {
			hdr := object.DecodeHeader(h.load(addr))
			if !fn(addr, hdr) {
				return
			}
			addr += object.Ref(object.Size(hdr.FieldCount))
		}
	}
}

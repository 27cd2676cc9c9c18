package gc

import "github.com/stella-rt/copygc/object"

// space is one fixed-size region of the arena, as a half-open address range.
type space struct {
	start, end object.Ref
}

func (s space) contains(r object.Ref) bool {
	return r >= s.start && r < s.end
}

func (s space) size() int {
	return int(s.end - s.start)
}

// spacePair is the from-space/to-space pair of one generation.
type spacePair struct {
	gen  int
	from space
	to   space

	next    object.Ref // allocation cursor in from
	objects int        // number of objects in from.start..next

	// Scavenge state, valid while this generation is being collected.
	scan object.Ref // next object in to that needs its fields forwarded
	copy object.Ref // next free address in to

	cycles uint64
}

// used returns the number of bytes in use in the from-space.
func (p *spacePair) used() int {
	return int(p.next - p.from.start)
}

// swap exchanges the roles of the two regions. Whatever was copied into the
// to-space becomes the allocated part of the new from-space.
func (p *spacePair) swap() {
	p.from, p.to = p.to, p.from
	p.next = p.copy
	p.scan = p.to.start
	p.copy = p.to.start
}

// cycle is the state of a scavenge of one generation.
type cycle struct {
	pair *spacePair

	// older is the generation that receives promoted objects, or nil.
	// Objects promoted during this cycle are appended to its from-space
	// starting at promoStart; promoScan trails behind like the scan cursor.
	older      *spacePair
	promoStart object.Ref
	promoScan  object.Ref

	copied   int
	promoted int
}

// Collecting returns the generation that is being collected, or -1 when no
// collection is in progress.
func (h *Heap) Collecting() int {
	if h.cur == nil {
		return -1
	}
	return h.cur.pair.gen
}

// InFromSpace reports whether r lies in the from-space of the generation
// being collected. Outside a collection it reports false.
func (h *Heap) InFromSpace(r object.Ref) bool {
	return h.cur != nil && h.cur.pair.from.contains(r)
}

// InToSpace reports whether r lies in the to-space of the generation being
// collected. Outside a collection it reports false.
func (h *Heap) InToSpace(r object.Ref) bool {
	return h.cur != nil && h.cur.pair.to.contains(r)
}

// inAnyToSpace reports whether r lies in an inactive region of any
// generation.
func (h *Heap) inAnyToSpace(r object.Ref) bool {
	for _, p := range h.gens {
		if p.to.contains(r) {
			return true
		}
	}
	return false
}

// generationOf returns the generation whose from-space holds r, or -1.
func (h *Heap) generationOf(r object.Ref) int {
	for _, p := range h.gens {
		if p.from.contains(r) {
			return p.gen
		}
	}
	return -1
}

// zero clears every byte of s.
func (h *Heap) zero(s space) {
	lo := s.start - object.StaticSize
	hi := s.end - object.StaticSize
	clear(h.arena[lo:hi])
}

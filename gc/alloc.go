package gc

import "github.com/stella-rt/copygc/object"

// Allocate returns a new object with the given tag and number of fields. All
// fields start out as Nil and should be set with Init. Zero-field value forms
// (zero, false, true, unit, the empty list and the empty tuple) are never
// allocated: the shared static instance is returned instead.
//
// Allocate may run a collection, so every live reference held by the caller
// must be registered with PushRoot. It never returns Nil; if the heap is
// exhausted it panics with ErrOutOfMemory.
func (h *Heap) Allocate(tag object.Tag, fieldCount int) object.Ref {
	if ref, ok := object.Singleton(tag, fieldCount); ok {
		return ref
	}
	if !tag.Valid() {
		fatal(ErrBadSize, "unknown tag %d", int(tag))
	}
	if fieldCount < 0 || fieldCount > object.MaxFields {
		fatal(ErrBadSize, "%d fields (max %d)", fieldCount, object.MaxFields)
	}
	obj := h.Alloc(object.Size(fieldCount))
	h.store(obj, object.Header{Tag: tag, FieldCount: fieldCount}.Encode())
	return obj
}

// Alloc returns size bytes of zeroed heap storage from the from-space of
// generation 0. The size must be a whole number of words, large enough for a
// header and a forwarding pointer, and no larger than the biggest object.
// The block is formatted as a tuple of Nil fields; use InitHeader to give it
// its real shape.
//
// The allocation totals and the residency maximum are updated before the
// collection that the request may trigger.
func (h *Heap) Alloc(size int) object.Ref {
	if size < object.Size(0) || size > object.Size(object.MaxFields) || size%object.WordSize != 0 {
		fatal(ErrBadSize, "%d bytes", size)
	}
	if h.cur != nil {
		fatal(ErrBadSize, "allocation during collection of generation %d", h.cur.pair.gen)
	}
	h.initArena()

	h.stats.totalAlloc += uint64(size)
	h.stats.mallocs++
	h.noteResidency(uint64(size), 1)

	young := h.gens[0]
	switch h.config.Policy {
	case CollectAlways:
		h.CollectAll()
	case CollectWhenFull:
		if !young.fits(size) {
			h.CollectAll()
		}
	}
	if !young.fits(size) {
		fatal(ErrOutOfMemory, "request of %d bytes with %d of %d bytes in use",
			size, young.used(), young.from.size())
	}

	obj := young.next
	young.next += object.Ref(size)
	young.objects++

	off := obj - object.StaticSize
	clear(h.arena[off : off+object.Ref(size)])
	fields := size/object.WordSize - 1
	h.store(obj, object.Header{Tag: object.TagTuple, FieldCount: fields}.Encode())
	return obj
}

// InitHeader replaces the header of a block returned by Alloc. The new
// header must describe an object of the same size as the block.
func (h *Heap) InitHeader(obj object.Ref, hdr object.Header) {
	old := h.Header(obj)
	if object.IsStatic(obj) {
		fatal(ErrBadRef, "header of singleton %v", obj)
	}
	if !hdr.Tag.Valid() || hdr.FieldCount < 0 || hdr.FieldCount > object.MaxFields ||
		object.Size(hdr.FieldCount) != object.Size(old.FieldCount) {
		fatal(ErrBadSize, "header %v/%d does not fit a %d byte block",
			hdr.Tag, hdr.FieldCount, object.Size(old.FieldCount))
	}
	h.store(obj, hdr.Encode())
}

// fits reports whether size more bytes can be bump-allocated in the
// from-space.
func (p *spacePair) fits(size int) bool {
	return p.next+object.Ref(size) <= p.from.end
}

// residency returns the bytes and objects currently held in all from-spaces.
func (h *Heap) residency() (bytes, objects uint64) {
	for _, p := range h.gens {
		bytes += uint64(p.used())
		objects += uint64(p.objects)
	}
	return
}

// noteResidency updates the residency maximum with the current usage plus
// the given extra amount.
func (h *Heap) noteResidency(extraBytes, extraObjects uint64) {
	bytes, objects := h.residency()
	bytes += extraBytes
	objects += extraObjects
	if bytes > h.stats.maxResBytes {
		h.stats.maxResBytes = bytes
	}
	if objects > h.stats.maxResObjects {
		h.stats.maxResObjects = objects
	}
}

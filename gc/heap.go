// Package gc implements a copying garbage collector for a small functional
// runtime.
//
// The heap is a single byte arena divided into one from-space/to-space pair
// per generation. Objects are allocated by bumping a cursor through the
// from-space of generation 0. A collection copies everything reachable from
// the root stack into the to-space, breadth first (Cheney's algorithm),
// leaving a forwarding pointer in field 0 of every object that has been
// moved. Afterwards the two spaces swap roles.
//
// All field access goes through Heap.Read, Heap.Write and Heap.Init, so the
// read and write barriers can't be bypassed.
//
// The heap is not safe for concurrent use. The mutator and the collector run
// on the same goroutine; Alloc is the only point where the mutator can be
// paused.
//
// More information:
// "A Nonrecursive List Compacting Algorithm" by C. J. Cheney (1970).
// "The Garbage Collection Handbook" by Richard Jones, Antony Hosking, Eliot
// Moss.
package gc

import (
	"encoding/binary"
	"io"
	"log/slog"
	"time"

	"github.com/stella-rt/copygc/object"
)

// Heap is the memory manager context. The zero value is not usable; create
// one with New.
type Heap struct {
	config Config
	log    *slog.Logger

	static [object.StaticWords]uint64
	arena  []byte // nil until the first allocation
	gens   []*spacePair

	cur *cycle // the collection in progress, if any

	roots []*object.Ref

	stats counters
}

// counters hold the running totals reported by ReadMemStats.
type counters struct {
	totalAlloc     uint64
	mallocs        uint64
	maxResBytes    uint64
	maxResObjects  uint64
	reads          uint64
	writes         uint64
	crossGenWrites uint64
	maxRoots       int
	promoted       uint64
	pauseTotal     time.Duration
	pauses         []time.Duration // most recent first
	lastGC         time.Time
}

// New returns a heap for the given configuration. No memory is reserved
// until the first allocation.
func New(config Config) (*Heap, error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}
	config.SpaceSize = append([]int(nil), config.SpaceSize...)
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Heap{
		config: config,
		log:    logger,
		static: object.StaticSegment(),
	}
	return h, nil
}

// Config returns the configuration the heap was created with.
func (h *Heap) Config() Config {
	c := h.config
	c.SpaceSize = append([]int(nil), c.SpaceSize...)
	return c
}

// initArena creates the backing storage of every space pair. Generation g
// occupies two adjacent regions, the first of which starts out as the
// from-space.
func (h *Heap) initArena() {
	if h.arena != nil {
		return
	}
	total := 0
	for g := 0; g < h.config.Generations; g++ {
		total += 2 * h.config.spaceSize(g)
	}
	h.arena = make([]byte, total)

	base := object.Ref(object.StaticSize)
	for g := 0; g < h.config.Generations; g++ {
		size := object.Ref(h.config.spaceSize(g))
		p := &spacePair{
			gen:  g,
			from: space{start: base, end: base + size},
			to:   space{start: base + size, end: base + 2*size},
		}
		p.next = p.from.start
		h.gens = append(h.gens, p)
		base += 2 * size
	}
	h.log.Debug("gc: arena created",
		"generations", len(h.gens),
		"bytes", total)
}

// load reads the word at address addr.
func (h *Heap) load(addr object.Ref) uint64 {
	if addr < object.StaticSize {
		return h.static[addr/object.WordSize]
	}
	off := addr - object.StaticSize
	return binary.LittleEndian.Uint64(h.arena[off : off+object.WordSize])
}

// store writes the word at address addr. The static segment is read-only.
func (h *Heap) store(addr object.Ref, v uint64) {
	if addr < object.StaticSize {
		fatal(ErrBadRef, "store to static address %v", addr)
	}
	off := addr - object.StaticSize
	binary.LittleEndian.PutUint64(h.arena[off:off+object.WordSize], v)
}

// isHeapAddr reports whether r points inside the arena.
func (h *Heap) isHeapAddr(r object.Ref) bool {
	return !r.IsNative() && r >= object.StaticSize && r < object.StaticSize+object.Ref(len(h.arena))
}

// checkObject aborts unless obj refers to an object: a singleton or an
// address inside one of the spaces.
func (h *Heap) checkObject(obj object.Ref) {
	if object.IsStatic(obj) {
		return
	}
	if !h.isHeapAddr(obj) || obj%object.WordSize != 0 {
		fatal(ErrBadRef, "%v", obj)
	}
}

// Header returns the decoded header of obj.
func (h *Heap) Header(obj object.Ref) object.Header {
	h.checkObject(obj)
	return object.DecodeHeader(h.load(obj))
}

// Tag returns the tag of obj.
func (h *Heap) Tag(obj object.Ref) object.Tag {
	return h.Header(obj).Tag
}

// FieldCount returns the number of fields of obj.
func (h *Heap) FieldCount(obj object.Ref) int {
	return h.Header(obj).FieldCount
}

// checkField aborts unless i is a valid field index of obj.
func (h *Heap) checkField(obj object.Ref, i int) {
	n := h.FieldCount(obj)
	if i < 0 || i >= n {
		fatal(ErrFieldIndex, "field %d of %v object %v with %d fields", i, h.Tag(obj), obj, n)
	}
}

// checkAccess aborts unless obj is an object the mutator may use. With
// asserts on, this includes objects left behind in a to-space.
func (h *Heap) checkAccess(obj object.Ref, op string, i int) {
	h.checkObject(obj)
	if h.config.Asserts && h.inAnyToSpace(obj) {
		fatal(ErrToSpaceAccess, "%s of field %d of %v", op, i, obj)
	}
}

// Read returns field i of obj. The read barrier runs once the access is
// known to be valid.
func (h *Heap) Read(obj object.Ref, i int) object.Ref {
	h.checkAccess(obj, "read", i)
	h.checkField(obj, i)
	h.readBarrier(obj, i)
	return object.Ref(h.load(object.Field(obj, i)))
}

// Write overwrites field i of obj. The write barrier runs once the access
// is known to be valid.
func (h *Heap) Write(obj object.Ref, i int, v object.Ref) {
	h.checkAccess(obj, "write", i)
	h.checkField(obj, i)
	h.writeBarrier(obj, i, v)
	h.store(object.Field(obj, i), uint64(v))
}

// Init sets field i of an object that was just allocated, without running
// the write barrier. Use Write for every later store.
func (h *Heap) Init(obj object.Ref, i int, v object.Ref) {
	h.checkField(obj, i)
	h.store(object.Field(obj, i), uint64(v))
}

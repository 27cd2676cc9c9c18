package gc

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/inhies/go-bytesize"

	"github.com/stella-rt/copygc/object"
)

// MemStats records statistics about the heap.
type MemStats struct {
	// Cumulative.
	TotalAlloc uint64 // bytes requested from Alloc
	Mallocs    uint64 // number of allocations (singletons excluded)
	Promoted   uint64 // objects moved to an older generation

	// Maximum residency: the largest number of bytes and objects held in the
	// from-spaces at any point, including the request being served.
	MaxResidencyBytes   uint64
	MaxResidencyObjects uint64

	// Current residency.
	LiveBytes   uint64
	LiveObjects uint64

	// Barrier triggers.
	Reads          uint64
	Writes         uint64
	CrossGenWrites uint64 // writes that stored a younger object into an older one

	// Root stack.
	Roots    int // current depth
	MaxRoots int // high-water mark

	// Collections.
	NumGC      []uint64 // per generation
	PauseTotal time.Duration

	// Sizes.
	HeapSys   uint64 // bytes reserved for all spaces
	SpaceSize []int  // bytes per region, per generation
}

// ReadMemStats populates m with statistics about the heap.
func (h *Heap) ReadMemStats(m *MemStats) {
	s := &h.stats
	m.TotalAlloc = s.totalAlloc
	m.Mallocs = s.mallocs
	m.Promoted = s.promoted
	m.MaxResidencyBytes = s.maxResBytes
	m.MaxResidencyObjects = s.maxResObjects
	m.LiveBytes, m.LiveObjects = h.residency()
	m.Reads = s.reads
	m.Writes = s.writes
	m.CrossGenWrites = s.crossGenWrites
	m.Roots = len(h.roots)
	m.MaxRoots = s.maxRoots
	m.PauseTotal = s.pauseTotal
	m.HeapSys = 0
	m.NumGC = make([]uint64, h.config.Generations)
	m.SpaceSize = make([]int, h.config.Generations)
	for g := range m.SpaceSize {
		m.SpaceSize[g] = h.config.spaceSize(g)
		m.HeapSys += 2 * uint64(m.SpaceSize[g])
	}
	for _, p := range h.gens {
		m.NumGC[p.gen] = p.cycles
	}
}

// GCStats collect information about recent collections, in the shape of
// runtime/debug.GCStats. A collection of all generations counts as one.
type GCStats struct {
	LastGC     time.Time       // time of last collection
	NumGC      int64           // number of collections
	PauseTotal time.Duration   // total pause for all collections
	Pause      []time.Duration // pause history, most recent first
}

// ReadGCStats reads statistics about garbage collection into stats.
func (h *Heap) ReadGCStats(stats *GCStats) {
	stats.LastGC = h.stats.lastGC
	stats.NumGC = 0
	for _, p := range h.gens {
		if int64(p.cycles) > stats.NumGC {
			stats.NumGC = int64(p.cycles)
		}
	}
	stats.PauseTotal = h.stats.pauseTotal
	stats.Pause = append(stats.Pause[:0], h.stats.pauses...)
}

func formatBytes(n uint64) string {
	return bytesize.New(float64(n)).String()
}

// PrintAllocStats writes the allocation statistics.
func (h *Heap) PrintAllocStats(w io.Writer) {
	var m MemStats
	h.ReadMemStats(&m)
	cycles := make([]string, len(m.NumGC))
	for g, n := range m.NumGC {
		cycles[g] = fmt.Sprintf("gen%d: %d", g, n)
	}
	fmt.Fprintf(w, "Total memory allocation: %d bytes (%d objects)\n", m.TotalAlloc, m.Mallocs)
	fmt.Fprintf(w, "Maximum residency:       %d bytes (%d objects)\n", m.MaxResidencyBytes, m.MaxResidencyObjects)
	fmt.Fprintf(w, "Current residency:       %d bytes (%d objects)\n", m.LiveBytes, m.LiveObjects)
	fmt.Fprintf(w, "Total memory use:        %d reads and %d writes\n", m.Reads, m.Writes)
	fmt.Fprintf(w, "Barrier triggers:        %d read, %d write, %d cross-generation\n", m.Reads, m.Writes, m.CrossGenWrites)
	fmt.Fprintf(w, "Max GC roots stack size: %d roots\n", m.MaxRoots)
	fmt.Fprintf(w, "Total GC cycles:         %s\n", strings.Join(cycles, ", "))
	if m.Promoted != 0 {
		fmt.Fprintf(w, "Promoted objects:        %d\n", m.Promoted)
	}
	fmt.Fprintf(w, "Heap size:               %s (%s per region)\n", formatBytes(m.HeapSys), formatSizes(m.SpaceSize))
}

func formatSizes(sizes []int) string {
	s := make([]string, len(sizes))
	for i, n := range sizes {
		s[i] = formatBytes(uint64(n))
	}
	return strings.Join(s, "/")
}

// PrintRoots writes the address of every registered root slot and the
// reference it currently holds.
func (h *Heap) PrintRoots(w io.Writer) {
	fmt.Fprint(w, "ROOTS:")
	for _, slot := range h.roots {
		fmt.Fprintf(w, " %p->%v", slot, *slot)
	}
	fmt.Fprintln(w)
}

// PrintState writes the layout of every space pair, the cursors, the roots
// and a map of the allocated words of each from-space.
func (h *Heap) PrintState(w io.Writer) {
	fmt.Fprintf(w, "heap: %d generation(s), policy %v, collecting %d\n",
		h.config.Generations, h.config.Policy, h.Collecting())
	if h.arena == nil {
		fmt.Fprintln(w, "arena: not allocated")
	}
	for _, p := range h.gens {
		fmt.Fprintf(w, "gen %d: from [%v, %v) to [%v, %v)\n", p.gen, p.from.start, p.from.end, p.to.start, p.to.end)
		fmt.Fprintf(w, "  next=%v scan=%v copy=%v cycles=%d\n", p.next, p.scan, p.copy, p.cycles)
		fmt.Fprintf(w, "  in use: %d of %d bytes (%d objects)\n", p.used(), p.from.size(), p.objects)
		h.dumpSpace(w, p)
	}
	h.PrintRoots(w)
}

// dumpSpace prints one character per word of the from-space of p: '*' for a
// header, '-' for a field and '·' for free memory.
func (h *Heap) dumpSpace(w io.Writer, p *spacePair) {
	const perLine = 64
	var b strings.Builder
	words := p.from.size() / object.WordSize
	word := 0
	emit := func(c rune) {
		if word%perLine == 0 {
			b.WriteString("  ")
		}
		b.WriteRune(c)
		word++
		if word%perLine == 0 || word == words {
			b.WriteByte('\n')
		}
	}
	for addr := p.from.start; addr < p.next; {
		hdr := object.DecodeHeader(h.load(addr))
		size := object.Size(hdr.FieldCount) / object.WordSize
		emit('*')
		for i := 1; i < size; i++ {
			emit('-')
		}
		addr += object.Ref(size * object.WordSize)
	}
	for word < words {
		emit('·')
	}
	fmt.Fprint(w, b.String())
}

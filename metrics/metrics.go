// Package metrics exposes heap statistics in the shape of runtime/metrics:
// a fixed set of named, described samples that can be read in bulk.
package metrics

import (
	"math"
	"time"

	"github.com/stella-rt/copygc/gc"
)

// Description describes a metric.
type Description struct {
	Name        string
	Description string
	Kind        ValueKind
	Cumulative  bool
}

type metric struct {
	Description
	compute func(s *snapshot, v *Value)
}

// snapshot holds the statistics shared by every metric of one Read call.
type snapshot struct {
	mem   gc.MemStats
	gcs   gc.GCStats
	sizes uint64 // bytes of all from-spaces
}

var metrics = []metric{
	{
		Description{"/gc/barrier/cross-generation-writes:calls", "Writes that stored a younger object into an older one.", KindUint64, true},
		func(s *snapshot, v *Value) { v.setUint64(s.mem.CrossGenWrites) },
	},
	{
		Description{"/gc/barrier/reads:calls", "Field reads that went through the read barrier.", KindUint64, true},
		func(s *snapshot, v *Value) { v.setUint64(s.mem.Reads) },
	},
	{
		Description{"/gc/barrier/writes:calls", "Field writes that went through the write barrier.", KindUint64, true},
		func(s *snapshot, v *Value) { v.setUint64(s.mem.Writes) },
	},
	{
		Description{"/gc/cycles/total:gc-cycles", "Scavenges of any generation.", KindUint64, true},
		func(s *snapshot, v *Value) {
			var n uint64
			for _, c := range s.mem.NumGC {
				n += c
			}
			v.setUint64(n)
		},
	},
	{
		Description{"/gc/heap/allocs:bytes", "Bytes allocated by the mutator.", KindUint64, true},
		func(s *snapshot, v *Value) { v.setUint64(s.mem.TotalAlloc) },
	},
	{
		Description{"/gc/heap/allocs:objects", "Objects allocated by the mutator. Singletons are not counted.", KindUint64, true},
		func(s *snapshot, v *Value) { v.setUint64(s.mem.Mallocs) },
	},
	{
		Description{"/gc/heap/live:bytes", "Bytes held in the from-spaces of all generations.", KindUint64, false},
		func(s *snapshot, v *Value) { v.setUint64(s.mem.LiveBytes) },
	},
	{
		Description{"/gc/heap/live:objects", "Objects held in the from-spaces of all generations.", KindUint64, false},
		func(s *snapshot, v *Value) { v.setUint64(s.mem.LiveObjects) },
	},
	{
		Description{"/gc/heap/max-residency:bytes", "Largest number of bytes held at once, counting the request being served.", KindUint64, false},
		func(s *snapshot, v *Value) { v.setUint64(s.mem.MaxResidencyBytes) },
	},
	{
		Description{"/gc/heap/max-residency:objects", "Largest number of objects held at once, counting the request being served.", KindUint64, false},
		func(s *snapshot, v *Value) { v.setUint64(s.mem.MaxResidencyObjects) },
	},
	{
		Description{"/gc/heap/occupancy:ratio", "Fraction of the from-space capacity in use.", KindFloat64, false},
		func(s *snapshot, v *Value) {
			if s.sizes == 0 {
				v.setFloat64(0)
				return
			}
			v.setFloat64(float64(s.mem.LiveBytes) / float64(s.sizes))
		},
	},
	{
		Description{"/gc/heap/promoted:objects", "Objects moved to an older generation.", KindUint64, true},
		func(s *snapshot, v *Value) { v.setUint64(s.mem.Promoted) },
	},
	{
		Description{"/gc/pauses:seconds", "Distribution of recent collection pauses.", KindFloat64Histogram, false},
		func(s *snapshot, v *Value) { v.setHistogram(pauseHistogram(s.gcs.Pause)) },
	},
	{
		Description{"/gc/roots/max-depth:slots", "Largest number of roots registered at once.", KindUint64, false},
		func(s *snapshot, v *Value) { v.setUint64(uint64(s.mem.MaxRoots)) },
	},
}

// All returns a slice containing metric descriptions for all supported
// metrics, sorted by name.
func All() []Description {
	all := make([]Description, len(metrics))
	for i, m := range metrics {
		all[i] = m.Description
	}
	return all
}

// Sample captures a single metric sample.
type Sample struct {
	Name  string
	Value Value
}

// Read populates each Value field in the given slice of metric samples from
// the statistics of h. Unknown names get a value of kind KindBad.
func Read(h *gc.Heap, samples []Sample) {
	var s snapshot
	h.ReadMemStats(&s.mem)
	h.ReadGCStats(&s.gcs)
	for _, size := range s.mem.SpaceSize {
		s.sizes += uint64(size)
	}
	for i := range samples {
		sample := &samples[i]
		sample.Value = Value{}
		for _, m := range metrics {
			if m.Name == sample.Name {
				m.compute(&s, &sample.Value)
				break
			}
		}
	}
}

// pauseBuckets are the boundaries of the pause histogram, in seconds.
var pauseBuckets = []float64{0, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 1e-1, math.Inf(1)}

func pauseHistogram(pauses []time.Duration) *Float64Histogram {
	h := &Float64Histogram{
		Counts:  make([]uint64, len(pauseBuckets)-1),
		Buckets: pauseBuckets,
	}
	for _, p := range pauses {
		sec := p.Seconds()
		for i := len(h.Counts) - 1; i >= 0; i-- {
			if sec >= h.Buckets[i] {
				h.Counts[i]++
				break
			}
		}
	}
	return h
}

// Float64Histogram represents a distribution of float64 values. Counts[i]
// is the number of values in [Buckets[i], Buckets[i+1]).
type Float64Histogram struct {
	Counts  []uint64
	Buckets []float64
}

// Value represents a metric value returned by Read.
type Value struct {
	kind    ValueKind
	scalar  uint64
	pointer *Float64Histogram
}

func (v *Value) setUint64(x uint64) {
	v.kind = KindUint64
	v.scalar = x
}

func (v *Value) setFloat64(x float64) {
	v.kind = KindFloat64
	v.scalar = math.Float64bits(x)
}

func (v *Value) setHistogram(h *Float64Histogram) {
	v.kind = KindFloat64Histogram
	v.pointer = h
}

// Kind returns the tag representing the kind of value this is.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Uint64 returns the internal uint64 value for the metric.
//
// If v.Kind() != KindUint64, this method panics.
func (v Value) Uint64() uint64 {
	if v.kind != KindUint64 {
		panic("called Uint64 on non-uint64 metric value")
	}
	return v.scalar
}

// Float64 returns the internal float64 value for the metric.
//
// If v.Kind() != KindFloat64, this method panics.
func (v Value) Float64() float64 {
	if v.kind != KindFloat64 {
		panic("called Float64 on non-float64 metric value")
	}
	return math.Float64frombits(v.scalar)
}

// Float64Histogram returns the internal *Float64Histogram value for the
// metric.
//
// If v.Kind() != KindFloat64Histogram, this method panics.
func (v Value) Float64Histogram() *Float64Histogram {
	if v.kind != KindFloat64Histogram {
		panic("called Float64Histogram on non-Float64Histogram metric value")
	}
	return v.pointer
}

// ValueKind is a tag for a metric Value which indicates its type.
type ValueKind int

const (
	KindBad ValueKind = iota
	KindUint64
	KindFloat64
	KindFloat64Histogram
)

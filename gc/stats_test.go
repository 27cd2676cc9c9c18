package gc

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stella-rt/copygc/object"
)

func TestMemStats(t *testing.T) {
	h := newHeap(t)
	l := list(h, 4)
	h.PushRoot(&l)
	h.Read(l, 0)
	h.PopRoot(&l)

	m := memStats(h)
	assert.Equal(t, uint64(8), m.Mallocs)
	assert.Equal(t, uint64(4*object.Size(1)+4*object.Size(2)), m.TotalAlloc)
	assert.Equal(t, uint64(8), m.MaxResidencyObjects)
	assert.Equal(t, m.TotalAlloc, m.MaxResidencyBytes, "nothing became garbage")
	assert.Equal(t, uint64(1), m.Reads)
	assert.Equal(t, uint64(8), m.NumGC[0], "one collection per allocation")
	assert.Equal(t, uint64(2*4096), m.HeapSys)
	// list keeps l rooted while building the next cell, and build roots
	// both fields of a cell.
	assert.Equal(t, 3, m.MaxRoots)
	assert.Zero(t, m.Roots)
}

func TestResidencyCountsRequestBeforeCollection(t *testing.T) {
	h := newHeap(t)
	for i := 0; i < 10; i++ {
		h.Allocate(object.TagSucc, 1)
	}
	m := memStats(h)
	// Each allocation sees the previous (now garbage) object plus itself.
	assert.Equal(t, uint64(2), m.MaxResidencyObjects)
	assert.Equal(t, uint64(2*object.Size(1)), m.MaxResidencyBytes)
	assert.Equal(t, uint64(1), m.LiveObjects)
}

func TestReadGCStats(t *testing.T) {
	h := newHeap(t)
	for i := 0; i < 3; i++ {
		h.Allocate(object.TagSucc, 1)
	}
	var stats GCStats
	h.ReadGCStats(&stats)
	assert.Equal(t, int64(3), stats.NumGC)
	assert.Len(t, stats.Pause, 3)
	assert.False(t, stats.LastGC.IsZero())
	assert.GreaterOrEqual(t, stats.PauseTotal, stats.Pause[0])
}

func TestPrintAllocStats(t *testing.T) {
	h := newHeap(t)
	h.Allocate(object.TagSucc, 1)
	var buf bytes.Buffer
	h.PrintAllocStats(&buf)
	out := buf.String()
	for _, want := range []string{
		"Total memory allocation: 16 bytes (1 objects)",
		"Maximum residency:       16 bytes (1 objects)",
		"Total memory use:        0 reads and 0 writes",
		"Max GC roots stack size: 0 roots",
		"Total GC cycles:         gen0: 1",
		"Heap size:               8.00KB (4.00KB per region)",
	} {
		assert.Contains(t, out, want)
	}
}

func TestPrintState(t *testing.T) {
	h := newHeap(t, withSpace(128))
	var buf bytes.Buffer
	h.PrintState(&buf)
	assert.Contains(t, buf.String(), "arena: not allocated")

	obj := build(h, object.TagSucc, object.TheZero)
	h.PushRoot(&obj)
	buf.Reset()
	h.PrintState(&buf)
	h.PopRoot(&obj)

	out := buf.String()
	assert.Contains(t, out, "gen 0: from [0x0040, 0x00c0) to [0x00c0, 0x0140)")
	assert.Contains(t, out, "in use: 16 of 128 bytes (1 objects)")
	assert.Contains(t, out, "  *-··············\n")
	assert.Contains(t, out, fmt.Sprintf("ROOTS: %p->%v", &obj, obj))
}

func TestPrintRoots(t *testing.T) {
	h := newHeap(t)
	a, b := object.TheUnit, object.TheTrue
	h.PushRoot(&a)
	h.PushRoot(&b)
	var buf bytes.Buffer
	h.PrintRoots(&buf)
	line := strings.TrimSpace(buf.String())
	require.True(t, strings.HasPrefix(line, "ROOTS:"))
	assert.Len(t, strings.Fields(line), 3)
	assert.Contains(t, line, fmt.Sprintf("%p->0x0020", &a))
}

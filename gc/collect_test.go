package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stella-rt/copygc/object"
)

func TestReachabilityPreserved(t *testing.T) {
	for _, zero := range []bool{true, false} {
		h := newHeap(t, func(c *Config) { c.ZeroFromSpace = zero })
		l := list(h, 20)
		h.PushRoot(&l)
		for i := 0; i < 7; i++ {
			before := l
			h.CollectAll()
			assert.NotEqual(t, before, l, "the root was not forwarded")
			checkList(t, h, l, 20)
		}
		h.PopRoot(&l)
		assert.Equal(t, uint64(40), memStats(h).LiveObjects)
	}
}

func TestGarbageReclaimed(t *testing.T) {
	h := newHeap(t, withPolicy(CollectWhenFull))
	keep := build(h, object.TagInl, object.TheUnit)
	h.PushRoot(&keep)
	for i := 0; i < 10; i++ {
		build(h, object.TagInr, object.TheUnit)
	}
	assert.Equal(t, uint64(11), memStats(h).LiveObjects)

	h.CollectAll()
	var tags []object.Tag
	h.Walk(func(obj object.Ref, hdr object.Header) bool {
		tags = append(tags, hdr.Tag)
		return true
	})
	assert.Equal(t, []object.Tag{object.TagInl}, tags)
	m := memStats(h)
	assert.Equal(t, uint64(1), m.LiveObjects)
	assert.Equal(t, uint64(object.Size(1)), m.LiveBytes)
	h.PopRoot(&keep)

	h.CollectAll()
	assert.Zero(t, memStats(h).LiveObjects)
}

func TestMutualCycle(t *testing.T) {
	h := newHeap(t)
	a := build(h, object.TagRef, object.TheUnit)
	h.PushRoot(&a)
	b := build(h, object.TagRef, a)
	h.Write(a, 0, b)

	for i := 0; i < 4; i++ {
		oldA := a
		h.CollectAll()
		require.NotEqual(t, oldA, a)
		b := h.Read(a, 0)
		assert.Equal(t, object.TagRef, h.Tag(b))
		assert.Equal(t, a, h.Read(b, 0), "b does not point to the new a")
		assert.True(t, h.gens[0].from.contains(b))
	}
	h.PopRoot(&a)
	assert.Equal(t, uint64(2), memStats(h).LiveObjects)
}

func TestSelfReference(t *testing.T) {
	h := newHeap(t)
	c := h.Allocate(object.TagRef, 1)
	h.Init(c, 0, c)
	h.PushRoot(&c)
	h.CollectAll()
	h.CollectAll()
	h.PopRoot(&c)
	assert.Equal(t, c, h.Read(c, 0))
	assert.Equal(t, uint64(1), memStats(h).LiveObjects, "the object was copied twice")
}

func TestLongCycle(t *testing.T) {
	// A ring of cells, each pointing to the next, with the last one pointing
	// back to the first. Chasing runs around the ring before the scan starts.
	const n = 50
	h := newHeap(t)
	first := build(h, object.TagRef, object.TheUnit)
	h.PushRoot(&first)
	last := first
	h.PushRoot(&last)
	for i := 1; i < n; i++ {
		cell := build(h, object.TagRef, object.TheUnit)
		h.Write(last, 0, cell)
		last = cell
	}
	h.Write(last, 0, first)
	h.PopRoot(&last)

	h.CollectAll()
	cell := first
	for i := 0; i < n; i++ {
		require.Equal(t, object.TagRef, h.Tag(cell))
		cell = h.Read(cell, 0)
	}
	assert.Equal(t, first, cell)
	h.PopRoot(&first)
	assert.Equal(t, uint64(n), memStats(h).LiveObjects)
}

func TestSharingPreserved(t *testing.T) {
	h := newHeap(t)
	shared := build(h, object.TagInl, object.TheTrue)
	pair := build(h, object.TagTuple, shared, shared)
	h.PushRoot(&pair)
	h.CollectAll()
	h.PopRoot(&pair)
	assert.Equal(t, h.Read(pair, 0), h.Read(pair, 1))
	assert.Equal(t, uint64(2), memStats(h).LiveObjects)
}

func TestBreadthFirstOrder(t *testing.T) {
	// The root and the object chased from it come first, then the scan
	// copies the remaining fields in field order.
	h := newHeap(t, withPolicy(CollectWhenFull))
	x := build(h, object.TagInl, object.TheUnit)
	y := build(h, object.TagInr, object.TheUnit)
	root := build(h, object.TagTuple, x, y)
	h.PushRoot(&root)
	h.CollectAll()
	h.PopRoot(&root)

	var tags []object.Tag
	h.Walk(func(_ object.Ref, hdr object.Header) bool {
		tags = append(tags, hdr.Tag)
		return true
	})
	assert.Equal(t, []object.Tag{object.TagTuple, object.TagInr, object.TagInl}, tags)
	assert.Equal(t, h.gens[0].from.start, root)
}

func TestRootsToSingletonsAndNatives(t *testing.T) {
	h := newHeap(t)
	vals := []object.Ref{object.TheZero, object.Nil, object.Native(7)}
	for i := range vals {
		h.PushRoot(&vals[i])
	}
	h.Allocate(object.TagSucc, 1)
	h.CollectAll()
	for i := len(vals) - 1; i >= 0; i-- {
		h.PopRoot(&vals[i])
	}
	assert.Equal(t, []object.Ref{object.TheZero, object.Nil, object.Native(7)}, vals)
}

func TestMembershipDuringCollection(t *testing.T) {
	h := newHeap(t, withPolicy(CollectWhenFull))
	obj := build(h, object.TagSucc, object.TheZero)
	assert.Equal(t, -1, h.Collecting())
	assert.False(t, h.InFromSpace(obj))

	p := h.gens[0]
	h.cur = &cycle{pair: p}
	assert.Equal(t, 0, h.Collecting())
	assert.True(t, h.InFromSpace(obj))
	assert.False(t, h.InToSpace(obj))
	assert.True(t, h.InToSpace(p.to.start))
	assert.False(t, h.InFromSpace(object.TheZero))
	assert.False(t, h.InToSpace(object.TheZero))
	h.cur = nil
}

func TestForwardingCheck(t *testing.T) {
	h := newHeap(t, withPolicy(CollectWhenFull))
	obj := build(h, object.TagSucc, object.TheZero)
	stale := obj
	h.PushRoot(&obj)
	h.PushRoot(&stale)
	h.CollectAll()
	require.Equal(t, obj, stale, "both roots hold the same object")

	// Point a root into the to-space behind the collector's back.
	stale = h.gens[0].to.start
	requireFatal(t, ErrForwarding, func() { h.verify() })
	stale = object.Ref(1 << 40)
	requireFatal(t, ErrForwarding, func() { h.verify() })
	stale = obj
	h.verify()
}

func TestSwap(t *testing.T) {
	h := newHeap(t, withPolicy(CollectWhenFull))
	h.Allocate(object.TagSucc, 1)
	p := h.gens[0]
	from, to := p.from, p.to
	h.CollectAll()
	assert.Equal(t, to, p.from)
	assert.Equal(t, from, p.to)
	assert.Equal(t, p.from.start, p.next)
	assert.Equal(t, p.to.start, p.scan)
	assert.Equal(t, p.to.start, p.copy)
}

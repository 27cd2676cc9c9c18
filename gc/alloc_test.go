package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stella-rt/copygc/object"
)

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no generations", func(c *Config) { c.Generations = 0 }},
		{"no size", func(c *Config) { c.SpaceSize = nil }},
		{"tiny space", func(c *Config) { c.SpaceSize = []int{8} }},
		{"unaligned space", func(c *Config) { c.SpaceSize = []int{1001} }},
		{"size count mismatch", func(c *Config) { c.Generations = 3; c.SpaceSize = []int{64, 64} }},
		{"unknown policy", func(c *Config) { c.Policy = Policy(9) }},
		{"promotion without generations", func(c *Config) { c.PromoteAge = 1 }},
		{"negative roots", func(c *Config) { c.MaxRoots = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(&config)
			_, err := New(config)
			assert.ErrorIs(t, err, ErrBadConfig)
		})
	}
}

func TestArenaIsLazy(t *testing.T) {
	h := newHeap(t)
	assert.Nil(t, h.arena)
	h.CollectAll() // nothing to do yet
	assert.Nil(t, h.arena)

	obj := h.Allocate(object.TagSucc, 1)
	require.NotNil(t, h.arena)
	assert.Len(t, h.arena, 2*4096)
	assert.Equal(t, object.Ref(object.StaticSize), h.gens[0].from.start)
	assert.True(t, h.gens[0].from.contains(obj))
}

func TestSingletonIdentity(t *testing.T) {
	h := newHeap(t)
	l := list(h, 3)
	h.PushRoot(&l)
	defer h.PopRoot(&l)

	for i := 0; i < 5; i++ {
		assert.Equal(t, object.TheEmpty, h.Allocate(object.TagEmpty, 0))
		assert.Equal(t, object.TheZero, h.Allocate(object.TagZero, 0))
		assert.Equal(t, object.TheTrue, h.Allocate(object.TagTrue, 0))
		assert.Equal(t, object.TheFalse, h.Allocate(object.TagFalse, 0))
		assert.Equal(t, object.TheUnit, h.Allocate(object.TagUnit, 0))
		assert.Equal(t, object.TheEmptyTuple, h.Allocate(object.TagTuple, 0))
		h.CollectAll()
	}
	// The list still ends in the same empty list.
	checkList(t, h, l, 3)
	assert.Equal(t, object.Header{Tag: object.TagEmpty}, h.Header(object.TheEmpty))
}

func TestSingletonsAreNotAllocated(t *testing.T) {
	h := newHeap(t)
	h.Allocate(object.TagUnit, 0)
	h.Allocate(object.TagTuple, 0)
	m := memStats(h)
	assert.Zero(t, m.Mallocs)
	assert.Zero(t, m.TotalAlloc)
}

func TestBumpMonotonicity(t *testing.T) {
	for _, policy := range []Policy{CollectNever, CollectWhenFull} {
		t.Run(policy.String(), func(t *testing.T) {
			h := newHeap(t, withPolicy(policy))
			prevEnd := object.Nil
			for i := 0; i < 40; i++ {
				n := i%4 + 1
				obj := h.Allocate(object.TagTuple, n)
				assert.GreaterOrEqual(t, obj, prevEnd, "allocation %d overlaps the previous one", i)
				prevEnd = obj + object.Ref(object.Size(n))
				assert.Equal(t, prevEnd, h.gens[0].next)
			}
			assert.Zero(t, h.gens[0].cycles, "no collection was needed")
		})
	}
}

func TestAllocZeroesMemory(t *testing.T) {
	h := newHeap(t, withPolicy(CollectWhenFull), func(c *Config) { c.ZeroFromSpace = false })
	build(h, object.TagTuple, object.TheTrue, object.TheFalse)
	h.CollectAll() // the tuple is garbage, the stale copy stays in the old space
	h.CollectAll() // the old space is the from-space again
	b := h.Allocate(object.TagTuple, 2)
	assert.Equal(t, object.Nil, h.Read(b, 0))
	assert.Equal(t, object.Nil, h.Read(b, 1))
}

func TestAllocFormatsBlock(t *testing.T) {
	h := newHeap(t)
	obj := h.Alloc(3 * object.WordSize)
	assert.Equal(t, object.Header{Tag: object.TagTuple, FieldCount: 2}, h.Header(obj))

	h.InitHeader(obj, object.Header{Tag: object.TagCons, FieldCount: 2})
	assert.Equal(t, object.TagCons, h.Tag(obj))

	requireFatal(t, ErrBadSize, func() {
		h.InitHeader(obj, object.Header{Tag: object.TagSucc, FieldCount: 1})
	})
	requireFatal(t, ErrBadRef, func() {
		h.InitHeader(object.TheUnit, object.Header{Tag: object.TagUnit})
	})
}

func TestAllocBadSize(t *testing.T) {
	h := newHeap(t)
	for _, size := range []int{0, 8, 12, 17, object.Size(object.MaxFields) + object.WordSize} {
		requireFatal(t, ErrBadSize, func() { h.Alloc(size) })
	}
	requireFatal(t, ErrBadSize, func() { h.Allocate(object.TagTuple, object.MaxFields+1) })
	requireFatal(t, ErrBadSize, func() { h.Allocate(object.Tag(14), 1) })
}

func TestZeroFieldObjectSurvives(t *testing.T) {
	h := newHeap(t)
	fn := h.Allocate(object.TagFn, 0)
	assert.Equal(t, object.Size(0), int(h.gens[0].next-fn), "room for a forwarding pointer")
	h.PushRoot(&fn)
	for i := 0; i < 3; i++ {
		h.CollectAll()
	}
	h.PopRoot(&fn)
	assert.Equal(t, object.Header{Tag: object.TagFn}, h.Header(fn))
	assert.Equal(t, uint64(1), memStats(h).LiveObjects)
}

func TestOutOfMemory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newHeap(t, withPolicy(CollectNever), withSpace(64))
		h.Allocate(object.TagSucc, 1)
		h.Allocate(object.TagSucc, 1)
		h.Allocate(object.TagSucc, 1)
		h.Allocate(object.TagSucc, 1)
		requireFatal(t, ErrOutOfMemory, func() { h.Allocate(object.TagSucc, 1) })
	})
	t.Run("live data too big", func(t *testing.T) {
		h := newHeap(t, withSpace(128))
		l := object.TheEmpty
		h.PushRoot(&l)
		requireFatal(t, ErrOutOfMemory, func() {
			for {
				l = build(h, object.TagCons, object.TheUnit, l)
			}
		})
	})
	t.Run("garbage is reclaimed", func(t *testing.T) {
		h := newHeap(t, withSpace(64))
		for i := 0; i < 1000; i++ {
			h.Allocate(object.TagSucc, 1)
		}
		assert.Equal(t, uint64(1000), memStats(h).NumGC[0])
	})
}

func TestCollectWhenFull(t *testing.T) {
	h := newHeap(t, withPolicy(CollectWhenFull), withSpace(160))
	// 160 bytes hold ten 16 byte objects.
	for i := 0; i < 10; i++ {
		h.Allocate(object.TagSucc, 1)
	}
	assert.Zero(t, h.gens[0].cycles)
	h.Allocate(object.TagSucc, 1)
	assert.Equal(t, uint64(1), h.gens[0].cycles)
	assert.Equal(t, 16, h.gens[0].used())
}

func TestCollectNeverIgnoresCollect(t *testing.T) {
	h := newHeap(t, withPolicy(CollectNever))
	obj := h.Allocate(object.TagSucc, 1)
	h.CollectAll()
	h.Collect(0)
	assert.Zero(t, h.gens[0].cycles)
	assert.Equal(t, object.TagSucc, h.Tag(obj))
	requireFatal(t, ErrNoGeneration, func() { h.Collect(1) })
	requireFatal(t, ErrNoGeneration, func() { h.Collect(-1) })
}

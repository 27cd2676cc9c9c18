package gc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stella-rt/copygc/object"
)

// newHeap returns a flat heap with 4KB regions and asserts enabled,
// adjusted by the given options.
func newHeap(t *testing.T, opts ...func(*Config)) *Heap {
	t.Helper()
	config := DefaultConfig()
	config.SpaceSize = []int{4096}
	for _, opt := range opts {
		opt(&config)
	}
	h, err := New(config)
	require.NoError(t, err)
	return h
}

func withPolicy(p Policy) func(*Config) {
	return func(c *Config) { c.Policy = p }
}

func withSpace(sizes ...int) func(*Config) {
	return func(c *Config) { c.SpaceSize = sizes }
}

// requireFatal runs fn and checks that it panics with a *FatalError that
// wraps want.
func requireFatal(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		v := recover()
		require.NotNil(t, v, "expected a panic wrapping %v", want)
		err, ok := v.(*FatalError)
		require.True(t, ok, "panic value %v is not a *FatalError", v)
		require.ErrorIs(t, err, want)
	}()
	fn()
}

// build allocates an object with the given fields, keeping them rooted
// across the allocation.
func build(h *Heap, tag object.Tag, fields ...object.Ref) object.Ref {
	for i := range fields {
		h.PushRoot(&fields[i])
	}
	obj := h.Allocate(tag, len(fields))
	for i := len(fields) - 1; i >= 0; i-- {
		h.PopRoot(&fields[i])
	}
	for i, v := range fields {
		h.Init(obj, i, v)
	}
	return obj
}

// list builds a cons list of n cells whose heads are inl(true).
func list(h *Heap, n int) object.Ref {
	l := object.TheEmpty
	h.PushRoot(&l)
	for i := 0; i < n; i++ {
		head := build(h, object.TagInl, object.TheTrue)
		l = build(h, object.TagCons, head, l)
	}
	h.PopRoot(&l)
	return l
}

// checkList verifies that l is a list of n cells built by list.
func checkList(t *testing.T, h *Heap, l object.Ref, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.Equal(t, object.TagCons, h.Tag(l), "cell %d", i)
		head := h.Read(l, 0)
		require.Equal(t, object.Header{Tag: object.TagInl, FieldCount: 1}, h.Header(head), "head %d", i)
		require.Equal(t, object.TheTrue, h.Read(head, 0))
		l = h.Read(l, 1)
	}
	require.Equal(t, object.TheEmpty, l)
}

func memStats(h *Heap) MemStats {
	var m MemStats
	h.ReadMemStats(&m)
	return m
}

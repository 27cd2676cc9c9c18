package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stella-rt/copygc/object"
)

func TestRootLIFO(t *testing.T) {
	h := newHeap(t)
	var a, b, c object.Ref
	h.PushRoot(&a)
	h.PushRoot(&b)
	h.PushRoot(&c)
	assert.Equal(t, 3, h.RootDepth())
	assert.Equal(t, []*object.Ref{&a, &b, &c}, h.Roots())

	h.PopRoot(&c)
	h.PopRoot(&b)
	h.PopRoot(&a)
	assert.Zero(t, h.RootDepth())
	assert.Equal(t, 3, memStats(h).MaxRoots)
	assert.Equal(t, 3, h.MaxRootDepth())
}

func TestRootDisciplineViolation(t *testing.T) {
	h := newHeap(t)
	var a, b object.Ref
	h.PushRoot(&a)
	h.PushRoot(&b)
	requireFatal(t, ErrRootDiscipline, func() { h.PopRoot(&a) })
}

func TestRootPopWithoutAsserts(t *testing.T) {
	h := newHeap(t, func(c *Config) { c.Asserts = false })
	var a, b object.Ref
	h.PushRoot(&a)
	h.PushRoot(&b)
	h.PopRoot(&a) // removes b: the mismatch goes unnoticed
	assert.Equal(t, []*object.Ref{&a}, h.Roots())
}

func TestRootPopEmpty(t *testing.T) {
	h := newHeap(t, func(c *Config) { c.Asserts = false })
	var a object.Ref
	requireFatal(t, ErrRootDiscipline, func() { h.PopRoot(&a) })
	requireFatal(t, ErrRootDiscipline, func() { h.PushRoot(nil) })
}

func TestRootOverflow(t *testing.T) {
	h := newHeap(t, func(c *Config) { c.MaxRoots = 2 })
	var a, b, c object.Ref
	h.PushRoot(&a)
	h.PushRoot(&b)
	requireFatal(t, ErrRootOverflow, func() { h.PushRoot(&c) })
}

func TestRootsAreRewrittenInPlace(t *testing.T) {
	h := newHeap(t)
	x := build(h, object.TagSucc, object.TheZero)
	y := x
	h.PushRoot(&x)
	h.CollectAll()
	h.PopRoot(&x)
	assert.NotEqual(t, y, x, "x moved")
	assert.Equal(t, object.TagSucc, h.Tag(x))
}

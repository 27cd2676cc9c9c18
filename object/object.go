// Package object defines the in-memory shape of every heap value.
//
// An object is a header word followed by a number of field slots. Every slot
// is one word wide and holds a Ref: a reference to another object, one of
// the static singletons, nil, or a native word that the collector never
// follows.
//
//	+--------+---------+---------+-----+
//	| header | field 0 | field 1 | ... |
//	+--------+---------+---------+-----+
//
// The header word is packed as follows (see Header.Encode):
//
//	bits 0-3   tag
//	bits 4-7   field count
//	bits 8-15  age (number of collections survived in the current generation)
//
// Objects that are allocated in the heap always have room for at least one
// field, because the collector stores the forwarding pointer in field 0 of an
// object that has already been relocated.
package object

import "fmt"

// WordSize is the size in bytes of a header and of every field slot.
const WordSize = 8

// Ref is an address in the heap address space. Addresses are byte offsets:
// the static segment starts at zero and the arena follows directly after it.
type Ref uint64

// Nil is the null reference.
const Nil Ref = 0

const nativeBit = 1 << 63

// Native wraps an opaque value (such as the index of a native function) in a
// Ref. Native values never point into the heap so the collector leaves them
// alone.
func Native(n uint64) Ref {
	return Ref(n | nativeBit)
}

// IsNative reports whether r was created by Native.
func (r Ref) IsNative() bool {
	return r&nativeBit != 0
}

// NativeIndex returns the value passed to Native.
func (r Ref) NativeIndex() uint64 {
	return uint64(r &^ nativeBit)
}

func (r Ref) String() string {
	switch {
	case r == Nil:
		return "nil"
	case r.IsNative():
		return fmt.Sprintf("native#%d", r.NativeIndex())
	default:
		return fmt.Sprintf("0x%04x", uint64(r))
	}
}

// Size returns the number of bytes an object with the given number of fields
// occupies in the heap.
func Size(fieldCount int) int {
	if fieldCount < 1 {
		fieldCount = 1
	}
	return (1 + fieldCount) * WordSize
}

// Field returns the address of field slot i of obj.
func Field(obj Ref, i int) Ref {
	return obj + Ref((1+i)*WordSize)
}

package object

// The static segment holds the zero-field singleton values. Word 0 is never
// used so that Nil can't be confused with a singleton.
const (
	TheZero       Ref = 1 * WordSize
	TheFalse      Ref = 2 * WordSize
	TheTrue       Ref = 3 * WordSize
	TheUnit       Ref = 4 * WordSize
	TheEmpty      Ref = 5 * WordSize
	TheEmptyTuple Ref = 6 * WordSize

	// StaticWords is the number of words in the static segment.
	StaticWords = 8

	// StaticSize is the size in bytes of the static segment. The arena starts
	// at this address.
	StaticSize = StaticWords * WordSize
)

var statics = [...]struct {
	ref Ref
	tag Tag
}{
	{TheZero, TagZero},
	{TheFalse, TagFalse},
	{TheTrue, TagTrue},
	{TheUnit, TagUnit},
	{TheEmpty, TagEmpty},
	{TheEmptyTuple, TagTuple},
}

// Singleton returns the shared static instance for a zero-field value form.
// Zero, false, true, unit and the empty list are always singletons; a tuple
// is one only when it has no fields.
func Singleton(tag Tag, fieldCount int) (Ref, bool) {
	switch tag {
	case TagZero:
		return TheZero, true
	case TagFalse:
		return TheFalse, true
	case TagTrue:
		return TheTrue, true
	case TagUnit:
		return TheUnit, true
	case TagEmpty:
		return TheEmpty, true
	case TagTuple:
		if fieldCount == 0 {
			return TheEmptyTuple, true
		}
	}
	return Nil, false
}

// IsStatic reports whether r is one of the singletons.
func IsStatic(r Ref) bool {
	for _, s := range statics {
		if s.ref == r {
			return true
		}
	}
	return false
}

// StaticSegment returns the initial contents of the static segment: the
// header words of every singleton at their fixed addresses.
func StaticSegment() [StaticWords]uint64 {
	var seg [StaticWords]uint64
	for _, s := range statics {
		seg[s.ref/WordSize] = Header{Tag: s.tag}.Encode()
	}
	return seg
}

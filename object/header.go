package object

// Tag identifies which value form an object represents.
type Tag uint8

const (
	TagZero  Tag = iota // 0       : Nat
	TagSucc             // succ(_) : Nat
	TagFalse            // false   : Bool
	TagTrue             // true    : Bool
	TagFn               // fn(...){ return ... }
	TagRef              // new(_)  : &T
	TagUnit             // unit    : Unit
	TagTuple            // {_, _, ..., _}
	TagInl              // inl(...)
	TagInr              // inr(...)
	TagEmpty            // []
	TagCons             // cons(..., ...)

	numTags
)

var tagNames = [numTags]string{
	TagZero:  "zero",
	TagSucc:  "succ",
	TagFalse: "false",
	TagTrue:  "true",
	TagFn:    "fn",
	TagRef:   "ref",
	TagUnit:  "unit",
	TagTuple: "tuple",
	TagInl:   "inl",
	TagInr:   "inr",
	TagEmpty: "empty",
	TagCons:  "cons",
}

func (t Tag) String() string {
	if t < numTags {
		return tagNames[t]
	}
	return "!tag"
}

// Valid reports whether t is one of the known value forms.
func (t Tag) Valid() bool {
	return t < numTags
}

// ParseTag returns the tag with the given name, as printed by Tag.String.
func ParseTag(name string) (Tag, bool) {
	for t, n := range tagNames {
		if n == name {
			return Tag(t), true
		}
	}
	return 0, false
}

const (
	tagBits   = 4
	countBits = 4
	ageBits   = 8

	tagMask    = 1<<tagBits - 1
	countShift = tagBits
	countMask  = 1<<countBits - 1
	ageShift   = tagBits + countBits
	ageMask    = 1<<ageBits - 1

	// MaxFields is the largest field count that fits in a header.
	MaxFields = countMask

	// MaxAge is the largest age that can be recorded in a header.
	MaxAge = ageMask
)

// Header is the decoded form of an object header word.
type Header struct {
	Tag        Tag
	FieldCount int
}

// Encode packs the header into a word. The age bits are left clear.
func (h Header) Encode() uint64 {
	return uint64(h.Tag)&tagMask | (uint64(h.FieldCount)&countMask)<<countShift
}

// DecodeHeader unpacks a header word. It ignores the age bits, so it returns
// the same result for an object before and after it has been copied.
func DecodeHeader(word uint64) Header {
	return Header{
		Tag:        Tag(word & tagMask),
		FieldCount: int(word >> countShift & countMask),
	}
}

// Age returns the age stored in a header word.
func Age(word uint64) int {
	return int(word >> ageShift & ageMask)
}

// WithAge returns the header word with its age replaced. Ages saturate at
// MaxAge.
func WithAge(word uint64, age int) uint64 {
	if age > MaxAge {
		age = MaxAge
	}
	if age < 0 {
		age = 0
	}
	return word&^(ageMask<<ageShift) | uint64(age)<<ageShift
}

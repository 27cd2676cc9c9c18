package stella

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/stella-rt/copygc/object"
)

// ErrNotCallable is the cause of the fatal error raised when a program
// applies something that is not a closure.
var ErrNotCallable = errors.New("not a function")

// Print writes the Stella notation of v to w. Printing reads fields through
// the heap, so it counts towards the read barrier statistics, but never
// allocates.
func (rt *Runtime) Print(w io.Writer, v object.Ref) {
	h := rt.Heap
	hdr := h.Header(v)
	switch hdr.Tag {
	case object.TagZero:
		io.WriteString(w, "0")
	case object.TagSucc:
		fmt.Fprintf(w, "%d", rt.ObjectToNat(v))
	case object.TagFalse:
		io.WriteString(w, "false")
	case object.TagTrue:
		io.WriteString(w, "true")
	case object.TagUnit:
		io.WriteString(w, "unit")
	case object.TagFn:
		fmt.Fprintf(w, "fn<%s>", rt.FuncName(h.Read(v, 0)))
	case object.TagRef:
		fmt.Fprintf(w, "ref<%v>", h.Read(v, 0))
	case object.TagInl, object.TagInr:
		fmt.Fprintf(w, "%v(", hdr.Tag)
		rt.Print(w, h.Read(v, 0))
		io.WriteString(w, ")")
	case object.TagEmpty:
		io.WriteString(w, "[]")
	case object.TagCons:
		io.WriteString(w, "[")
		rt.Print(w, h.Read(v, 0))
		for v = h.Read(v, 1); h.Tag(v) == object.TagCons; v = h.Read(v, 1) {
			io.WriteString(w, ", ")
			rt.Print(w, h.Read(v, 0))
		}
		io.WriteString(w, "]")
	case object.TagTuple:
		io.WriteString(w, "{")
		for i := 0; i < hdr.FieldCount; i++ {
			if i > 0 {
				io.WriteString(w, ", ")
			}
			rt.Print(w, h.Read(v, i))
		}
		io.WriteString(w, "}")
	}
}

// String returns the Stella notation of v.
func (rt *Runtime) String(v object.Ref) string {
	var b strings.Builder
	rt.Print(&b, v)
	return b.String()
}

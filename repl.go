package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"

	"github.com/stella-rt/copygc/diagnostics"
	"github.com/stella-rt/copygc/gc"
	"github.com/stella-rt/copygc/object"
	"github.com/stella-rt/copygc/stella"
)

var errQuit = errors.New("quit")

// shell is an interactive session on a heap. Every variable is a root slot,
// registered when the variable is first bound and released with drop, so
// variables must be dropped in reverse order of creation.
//
// Mistakes the shell can detect before calling the heap are reported and the
// session goes on. A fatal heap condition leaves the heap unusable: it ends
// the session and every later command returns it again.
type shell struct {
	rt  *stella.Runtime
	out io.Writer
	err *gc.FatalError

	vars  map[string]*object.Ref
	order []string // creation order, the root stack from the bottom
}

func newShell(rt *stella.Runtime, out io.Writer) *shell {
	return &shell{
		rt:   rt,
		out:  out,
		vars: make(map[string]*object.Ref),
	}
}

var shellCommands = []struct {
	name, args, help string
}{
	{"nat", "VAR N", "bind VAR to the encoding of N"},
	{"alloc", "VAR TAG [VALUE...]", "allocate a TAG object with the given fields"},
	{"run", "VAR PROG N", "bind VAR to the result of a built-in program"},
	{"read", "VAR OBJ I", "bind VAR to field I of OBJ"},
	{"write", "OBJ I VALUE", "store VALUE in field I of OBJ"},
	{"print", "VALUE", "print a value"},
	{"header", "VALUE", "print the header and address of a value"},
	{"drop", "VAR", "release the most recently bound variable"},
	{"vars", "", "list the bound variables"},
	{"collect", "[GEN]", "collect all generations, or only GEN"},
	{"state", "", "print the layout and contents of the spaces"},
	{"roots", "", "print the root stack"},
	{"stats", "", "print the allocation statistics"},
	{"metrics", "", "print all metrics"},
	{"help", "", "print this text"},
	{"quit", "", "leave the shell"},
}

func (s *shell) completer() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range shellCommands {
		items = append(items, readline.PcItem(cmd.name))
	}
	return readline.NewPrefixCompleter(items...)
}

// constants are the tokens that stand for a singleton or nil.
var constants = map[string]object.Ref{
	"0":     object.TheZero,
	"false": object.TheFalse,
	"true":  object.TheTrue,
	"unit":  object.TheUnit,
	"[]":    object.TheEmpty,
	"{}":    object.TheEmptyTuple,
	"nil":   object.Nil,
}

// value resolves a token to a reference: a constant or a variable name.
func (s *shell) value(tok string) (object.Ref, error) {
	if v, ok := constants[tok]; ok {
		return v, nil
	}
	if slot, ok := s.vars[tok]; ok {
		return *slot, nil
	}
	return object.Nil, fmt.Errorf("unknown variable %q", tok)
}

// bind stores v in the variable name, creating and rooting it if needed.
func (s *shell) bind(name string, v object.Ref) error {
	if _, ok := constants[name]; ok {
		return fmt.Errorf("%q is a constant", name)
	}
	if slot, ok := s.vars[name]; ok {
		*slot = v
		return nil
	}
	slot := new(object.Ref)
	*slot = v
	s.rt.Heap.PushRoot(slot)
	s.vars[name] = slot
	s.order = append(s.order, name)
	return nil
}

func (s *shell) drop(name string) error {
	slot, ok := s.vars[name]
	if !ok {
		return fmt.Errorf("unknown variable %q", name)
	}
	if last := s.order[len(s.order)-1]; last != name {
		return fmt.Errorf("cannot drop %s before %s", name, last)
	}
	s.rt.Heap.PopRoot(slot)
	delete(s.vars, name)
	s.order = s.order[:len(s.order)-1]
	return nil
}

func parseIndex(tok string) (int, error) {
	i, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("invalid field index %q", tok)
	}
	return i, nil
}

// object resolves a token that must refer to an object: a singleton or a
// heap object.
func (s *shell) object(tok string) (object.Ref, error) {
	v, err := s.value(tok)
	if err != nil {
		return object.Nil, err
	}
	if v == object.Nil || v.IsNative() {
		return object.Nil, fmt.Errorf("%w: %s is %v", gc.ErrBadRef, tok, v)
	}
	return v, nil
}

// field resolves an object token and a field index within it.
func (s *shell) field(objTok, indexTok string) (object.Ref, int, error) {
	obj, err := s.object(objTok)
	if err != nil {
		return object.Nil, 0, err
	}
	i, err := parseIndex(indexTok)
	if err != nil {
		return object.Nil, 0, err
	}
	if n := s.rt.Heap.FieldCount(obj); i < 0 || i >= n {
		return object.Nil, 0, fmt.Errorf("%w: field %d of %s with %d fields", gc.ErrFieldIndex, i, objTok, n)
	}
	return obj, i, nil
}

// exec runs one command line. A fatal heap condition is returned as a
// *gc.FatalError and ends the session.
func (s *shell) exec(line string) (err error) {
	if s.err != nil {
		return s.err
	}
	args, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.err = gc.Recover(r).(*gc.FatalError)
			err = s.err
		}
	}()
	h := s.rt.Heap
	cmd, args := args[0], args[1:]
	wantArgs := func(min, max int) error {
		if len(args) < min || len(args) > max {
			for _, c := range shellCommands {
				if c.name == cmd {
					return fmt.Errorf("usage: %s %s", c.name, c.args)
				}
			}
		}
		return nil
	}

	switch cmd {
	case "nat":
		if err := wantArgs(2, 2); err != nil {
			return err
		}
		n, err := parseNat(args[1])
		if err != nil {
			return err
		}
		return s.bind(args[0], s.rt.NatToObject(n))
	case "alloc":
		if err := wantArgs(2, 2+object.MaxFields); err != nil {
			return err
		}
		tag, ok := object.ParseTag(args[1])
		if !ok {
			return fmt.Errorf("unknown tag %q", args[1])
		}
		fields := make([]object.Ref, len(args)-2)
		for i, tok := range args[2:] {
			if fields[i], err = s.value(tok); err != nil {
				return err
			}
		}
		return s.bind(args[0], s.rt.New(tag, fields...))
	case "run":
		if err := wantArgs(3, 3); err != nil {
			return err
		}
		n, err := parseNat(args[2])
		if err != nil {
			return err
		}
		v, err := s.rt.Run(args[1], n)
		if err != nil {
			return err
		}
		return s.bind(args[0], v)
	case "read":
		if err := wantArgs(3, 3); err != nil {
			return err
		}
		obj, i, err := s.field(args[1], args[2])
		if err != nil {
			return err
		}
		return s.bind(args[0], h.Read(obj, i))
	case "write":
		if err := wantArgs(3, 3); err != nil {
			return err
		}
		obj, i, err := s.field(args[0], args[1])
		if err != nil {
			return err
		}
		v, err := s.value(args[2])
		if err != nil {
			return err
		}
		h.Write(obj, i, v)
	case "print", "header":
		if err := wantArgs(1, 1); err != nil {
			return err
		}
		if cmd == "header" {
			v, err := s.object(args[0])
			if err != nil {
				return err
			}
			hdr := h.Header(v)
			fmt.Fprintf(s.out, "%v: %v with %d fields\n", v, hdr.Tag, hdr.FieldCount)
			return nil
		}
		v, err := s.value(args[0])
		if err != nil {
			return err
		}
		s.rt.Print(s.out, v)
		fmt.Fprintln(s.out)
	case "drop":
		if err := wantArgs(1, 1); err != nil {
			return err
		}
		return s.drop(args[0])
	case "vars":
		names := make([]string, 0, len(s.vars))
		for name := range s.vars {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(s.out, "%s = %v\n", name, *s.vars[name])
		}
	case "collect":
		if err := wantArgs(0, 1); err != nil {
			return err
		}
		if len(args) == 0 {
			h.CollectAll()
			return nil
		}
		g, err := strconv.Atoi(args[0])
		if err != nil || g < 0 || g >= h.Config().Generations {
			return fmt.Errorf("no generation %q", args[0])
		}
		h.Collect(g)
	case "state":
		h.PrintState(s.out)
	case "roots":
		h.PrintRoots(s.out)
	case "stats":
		h.PrintAllocStats(s.out)
	case "metrics":
		printMetrics(s.out, h)
	case "help":
		for _, c := range shellCommands {
			fmt.Fprintf(s.out, "  %-30s %s\n", strings.TrimSpace(c.name+" "+c.args), c.help)
		}
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

// step runs one command line and reports whether the session is over.
// Errors that leave the heap intact are printed to w; a fatal heap condition
// is returned.
func (s *shell) step(line string, w io.Writer, color bool) (bool, error) {
	err := s.exec(line)
	var fatal *gc.FatalError
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, errQuit):
		return true, nil
	case errors.As(err, &fatal):
		return true, err
	}
	diagnostics.CreateDiagnostics(err).Print(w, color)
	return false, nil
}

// repl runs the interactive shell until end of input, quit, or a fatal heap
// condition.
func (c *cli) repl(rt *stella.Runtime) error {
	s := newShell(rt, c.stdout)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "copygc> ",
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           c.stdin,
		Stdout:          c.stdout,
		Stderr:          c.stderr,
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	s.out = rl.Stdout()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if done, err := s.step(line, rl.Stderr(), c.color); done {
			return err
		}
	}
}

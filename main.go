package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/stella-rt/copygc/compileopts"
	"github.com/stella-rt/copygc/diagnostics"
	"github.com/stella-rt/copygc/gc"
	"github.com/stella-rt/copygc/metrics"
	"github.com/stella-rt/copygc/object"
	"github.com/stella-rt/copygc/stella"
)

// commandError is an error that occurred while running a command. The CLI
// prints its usage along with it.
type commandError struct {
	Msg string
	Err error
}

func (e *commandError) Error() string {
	return e.Msg + " " + e.Err.Error()
}

func (e *commandError) Unwrap() error {
	return e.Err
}

var errUsage = errors.New("usage")

func usage(w io.Writer, command string) {
	switch command {
	default:
		fmt.Fprintln(w, "copygc runs small Stella programs on a copying garbage collector.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "usage:")
		fmt.Fprintln(w, "  copygc <command> [arguments]")
		fmt.Fprintln(w, "\ncommands:")
		fmt.Fprintln(w, "  nat N:       encode N as a chain of succ cells, decode it and print statistics")
		fmt.Fprintln(w, "  churn N K:   keep the encoding of N alive while allocating K garbage objects")
		fmt.Fprintln(w, "  run PROG N:  run a built-in program ("+strings.Join(stella.Programs(), ", ")+") on N")
		fmt.Fprintln(w, "  repl:        interactive heap shell")
		fmt.Fprintln(w, "  config:      print the effective configuration")
		fmt.Fprintln(w, "  help:        print this help text")
		fmt.Fprintln(w, "\nfor more details, see: copygc help <command>")
	case "nat":
		fmt.Fprintln(w, "usage: copygc nat [flags] N")
	case "churn":
		fmt.Fprintln(w, "usage: copygc churn [flags] N K")
	case "run":
		fmt.Fprintln(w, "usage: copygc run [flags] PROG N")
		fmt.Fprintln(w, "\nprograms:")
		for _, name := range stella.Programs() {
			p, _ := stella.LookupProgram(name)
			fmt.Fprintf(w, "  %-7s %s\n", name+":", p.Doc)
		}
	case "repl":
		fmt.Fprintln(w, "usage: copygc repl [flags]")
	case "config":
		fmt.Fprintln(w, "usage: copygc config [flags]")
	}
	if command != "" && command != "help" {
		fmt.Fprintln(w, "\nflags:")
		fs := newFlagSet(command, compileopts.Default(), new(flags))
		fs.SetOutput(w)
		fs.PrintDefaults()
	}
}

// flags are the command line flags that are not heap options.
type flags struct {
	config  string
	stats   bool
	metrics bool
	state   bool
}

func newFlagSet(command string, opts *compileopts.Options, f *flags) *flag.FlagSet {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.config, "config", "", "read options from this YAML file")
	fs.BoolVar(&f.stats, "stats", true, "print statistics after the command")
	fs.BoolVar(&f.metrics, "metrics", false, "print all metrics after the command")
	fs.BoolVar(&f.state, "state", false, "print the heap state after the command")
	opts.AddFlags(fs)
	return fs
}

// cli holds the process environment of one invocation.
type cli struct {
	stdin  io.ReadCloser
	stdout io.Writer
	stderr io.Writer
	color  bool
	getenv func(string) string
}

// parseOptions collects the options in order: defaults, config file,
// environment, command line.
func (c *cli) parseOptions(command string, args []string) (*compileopts.Options, *flags, []string, error) {
	// The first pass only finds the config file.
	var f flags
	if err := newFlagSet(command, compileopts.Default(), &f).Parse(args); err != nil {
		return nil, nil, nil, &commandError{"invalid flags:", err}
	}
	opts := compileopts.Default()
	if f.config != "" {
		if err := opts.Load(f.config); err != nil {
			return nil, nil, nil, err
		}
	}
	if err := opts.ApplyEnv(c.getenv(compileopts.EnvFlags)); err != nil {
		return nil, nil, nil, err
	}
	fs := newFlagSet(command, opts, &f)
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, &commandError{"invalid flags:", err}
	}
	if err := opts.Verify(); err != nil {
		return nil, nil, nil, err
	}
	return opts, &f, fs.Args(), nil
}

func (c *cli) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (c *cli) newRuntime(opts *compileopts.Options) (*stella.Runtime, error) {
	config, err := opts.GCConfig(c.logger())
	if err != nil {
		return nil, err
	}
	h, err := gc.New(config)
	if err != nil {
		return nil, err
	}
	return stella.New(h), nil
}

func (c *cli) heading(s string) {
	if c.color {
		fmt.Fprintf(c.stdout, "\033[1m%s\033[0m\n", s)
		return
	}
	fmt.Fprintln(c.stdout, s)
}

func parseNat(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, &commandError{"expected a natural number, got", errors.New(strconv.Quote(s))}
	}
	return n, nil
}

// run executes the command line and returns the exit status. Fatal heap
// conditions are reported as diagnostics with exit status 2.
func (c *cli) run(args []string) (status int) {
	if len(args) < 1 {
		fmt.Fprintln(c.stderr, "No command-line arguments supplied.")
		usage(c.stderr, "")
		return 1
	}
	command := args[0]
	if command == "help" || command == "-h" || command == "-help" || command == "--help" {
		topic := ""
		if len(args) > 1 {
			topic = args[1]
		}
		usage(c.stdout, topic)
		return 0
	}

	err := c.runCommand(command, args[1:])
	if err == nil {
		return 0
	}
	var cmdErr *commandError
	if errors.Is(err, errUsage) || errors.As(err, &cmdErr) {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(c.stderr, err)
		}
		usage(c.stderr, command)
		return 1
	}
	diags := diagnostics.CreateDiagnostics(err)
	diags.Print(c.stderr, c.color)
	if diags.Fatal() {
		return 2
	}
	return 1
}

func (c *cli) runCommand(command string, args []string) (err error) {
	switch command {
	case "nat", "churn", "run", "repl", "config":
	default:
		return &commandError{"Unknown command:", errors.New(command)}
	}
	opts, f, args, err := c.parseOptions(command, args)
	if err != nil {
		return err
	}
	if command == "config" {
		if len(args) != 0 {
			return errUsage
		}
		data, err := opts.YAML()
		if err != nil {
			return err
		}
		_, err = c.stdout.Write(data)
		return err
	}

	rt, err := c.newRuntime(opts)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = gc.Recover(r)
		}
	}()

	var result object.Ref
	switch command {
	case "nat":
		if len(args) != 1 {
			return errUsage
		}
		n, err := parseNat(args[0])
		if err != nil {
			return err
		}
		result = rt.NatToObject(n)
		rt.Heap.PushRoot(&result)
		defer rt.Heap.PopRoot(&result)
		rt.Heap.CollectAll()
		if got := rt.ObjectToNat(result); got != n {
			return fmt.Errorf("nat %d decoded as %d", n, got)
		}
	case "churn":
		if len(args) != 2 {
			return errUsage
		}
		n, err := parseNat(args[0])
		if err != nil {
			return err
		}
		k, err := parseNat(args[1])
		if err != nil {
			return err
		}
		result = churn(rt, n, k)
		rt.Heap.PushRoot(&result)
		defer rt.Heap.PopRoot(&result)
		if got := rt.ObjectToNat(result); got != n {
			return fmt.Errorf("nat %d decoded as %d after %d allocations", n, got, k)
		}
	case "run":
		if len(args) != 2 {
			return errUsage
		}
		n, err := parseNat(args[1])
		if err != nil {
			return err
		}
		if _, ok := stella.LookupProgram(args[0]); !ok {
			return &commandError{"Unknown program:", errors.New(args[0])}
		}
		result, err = rt.Run(args[0], n)
		if err != nil {
			return err
		}
		rt.Heap.PushRoot(&result)
		defer rt.Heap.PopRoot(&result)
	case "repl":
		if len(args) != 0 {
			return errUsage
		}
		return c.repl(rt)
	}

	c.heading("Result:")
	rt.Print(c.stdout, result)
	fmt.Fprintln(c.stdout)
	if f.stats {
		rt.PrintStats(c.stdout)
	}
	if f.metrics {
		fmt.Fprintln(c.stdout)
		c.heading("Metrics:")
		printMetrics(c.stdout, rt.Heap)
	}
	if f.state {
		fmt.Fprintln(c.stdout)
		c.heading("Heap state:")
		rt.Heap.PrintState(c.stdout)
	}
	return nil
}

// churn builds the encoding of n and then allocates k unreachable objects,
// each one of which may trigger a collection that moves the chain.
func churn(rt *stella.Runtime, n, k int) object.Ref {
	chain := rt.NatToObject(n)
	rt.Heap.PushRoot(&chain)
	for i := 0; i < k; i++ {
		rt.Inl(object.TheUnit)
	}
	rt.Heap.CollectAll()
	rt.Heap.PopRoot(&chain)
	return chain
}

func printMetrics(w io.Writer, h *gc.Heap) {
	descs := metrics.All()
	samples := make([]metrics.Sample, len(descs))
	for i, d := range descs {
		samples[i].Name = d.Name
	}
	metrics.Read(h, samples)
	for _, s := range samples {
		switch s.Value.Kind() {
		case metrics.KindUint64:
			fmt.Fprintf(w, "%-45s %d\n", s.Name, s.Value.Uint64())
		case metrics.KindFloat64:
			fmt.Fprintf(w, "%-45s %.4f\n", s.Name, s.Value.Float64())
		case metrics.KindFloat64Histogram:
			hist := s.Value.Float64Histogram()
			fmt.Fprintf(w, "%-45s %v\n", s.Name, hist.Counts)
		}
	}
}

func main() {
	c := &cli{
		stdin:  os.Stdin,
		stdout: colorable.NewColorableStdout(),
		stderr: colorable.NewColorableStderr(),
		color:  isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
		getenv: os.Getenv,
	}
	os.Exit(c.run(os.Args[1:]))
}

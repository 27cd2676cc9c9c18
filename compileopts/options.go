// Package compileopts collects the heap configuration from its sources
// (defaults, a YAML file, the COPYGC_FLAGS environment variable and the
// command line) and turns it into a gc.Config.
package compileopts

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"

	"github.com/stella-rt/copygc/gc"
	"github.com/stella-rt/copygc/object"
)

// EnvFlags is the environment variable holding extra flags, parsed before
// the command line.
const EnvFlags = "COPYGC_FLAGS"

var (
	validPolicyOptions = []string{"always", "full", "never"}
)

// Options contains extra options to give to the heap. These options
// can be set from a config file, the environment or the command line.
type Options struct {
	Generations   int    `yaml:"generations"`
	SpaceSize     string `yaml:"space-size"` // comma separated, one per generation
	Policy        string `yaml:"policy"`
	PromoteAge    int    `yaml:"promote-age"`
	ZeroFromSpace bool   `yaml:"zero-from-space"`
	Asserts       bool   `yaml:"asserts"`
	MaxRoots      int    `yaml:"max-roots"`
	Debug         bool   `yaml:"debug"`
}

// Default returns the options of the stock runtime: one 1600 byte semi-space
// pair collected before every allocation.
func Default() *Options {
	return &Options{
		Generations:   1,
		SpaceSize:     "1600",
		Policy:        "always",
		ZeroFromSpace: true,
		Asserts:       true,
		MaxRoots:      160,
	}
}

// Load reads a YAML config file on top of the current options. Unknown keys
// are an error.
func (o *Options) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, o); err != nil {
		return fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return nil
}

// YAML returns the options in the format read by Load.
func (o *Options) YAML() ([]byte, error) {
	return yaml.Marshal(o)
}

// AddFlags registers a flag for every option on fs.
func (o *Options) AddFlags(fs *flag.FlagSet) {
	fs.IntVar(&o.Generations, "gens", o.Generations, "number of generations (1 = flat semi-space)")
	fs.StringVar(&o.SpaceSize, "space", o.SpaceSize, "size of each semi-space, one comma separated entry per generation (e.g. 1600, 4KB or 1KB,16KB)")
	fs.StringVar(&o.Policy, "policy", o.Policy, "collection policy: "+strings.Join(validPolicyOptions, ", "))
	fs.IntVar(&o.PromoteAge, "promote", o.PromoteAge, "promote objects after surviving this many collections (0 = never)")
	fs.BoolVar(&o.ZeroFromSpace, "zero", o.ZeroFromSpace, "clear the old from-space after every collection")
	fs.BoolVar(&o.Asserts, "asserts", o.Asserts, "enable debug assertions")
	fs.IntVar(&o.MaxRoots, "max-roots", o.MaxRoots, "capacity of the root stack (0 = unbounded)")
	fs.BoolVar(&o.Debug, "debug", o.Debug, "trace collections on stderr")
}

// ApplyEnv parses flags from a string in shell syntax, as found in the
// COPYGC_FLAGS environment variable.
func (o *Options) ApplyEnv(value string) error {
	args, err := shlex.Split(value)
	if err != nil {
		return fmt.Errorf("%s: %w", EnvFlags, err)
	}
	if len(args) == 0 {
		return nil
	}
	fs := flag.NewFlagSet(EnvFlags, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", EnvFlags, err)
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("%s: unexpected argument %q", EnvFlags, fs.Arg(0))
	}
	return nil
}

// Verify performs a validation on the given options, raising an error if
// options are not valid.
func (o *Options) Verify() error {
	if o.Policy != "" {
		valid := isInArray(validPolicyOptions, strings.ToLower(o.Policy))
		if !valid {
			return fmt.Errorf(`invalid policy option '%s': valid values are %s`,
				o.Policy,
				strings.Join(validPolicyOptions, ", "))
		}
	}
	if _, err := ParseSizes(o.SpaceSize); err != nil {
		return err
	}
	config, err := o.config()
	if err != nil {
		return err
	}
	return config.Verify()
}

// GCConfig converts the options to a heap configuration. Collections are
// traced on logger when Debug is set.
func (o *Options) GCConfig(logger *slog.Logger) (gc.Config, error) {
	if err := o.Verify(); err != nil {
		return gc.Config{}, err
	}
	config, err := o.config()
	if err != nil {
		return gc.Config{}, err
	}
	if o.Debug {
		config.Logger = logger
	}
	return config, nil
}

func (o *Options) config() (gc.Config, error) {
	config := gc.DefaultConfig()
	sizes, err := ParseSizes(o.SpaceSize)
	if err != nil {
		return config, err
	}
	policy := gc.CollectAlways
	if o.Policy != "" {
		policy, err = gc.ParsePolicy(o.Policy)
		if err != nil {
			return config, err
		}
	}
	config.Generations = o.Generations
	config.SpaceSize = sizes
	config.Policy = policy
	config.PromoteAge = o.PromoteAge
	config.ZeroFromSpace = o.ZeroFromSpace
	config.Asserts = o.Asserts
	config.MaxRoots = o.MaxRoots
	return config, nil
}

// ParseSizes parses a comma separated list of byte sizes. Each entry is a
// plain number of bytes or a number with a unit ("1.5KB", "2 MB"), and is
// rounded up to a whole number of words.
func ParseSizes(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("no space size given")
	}
	var sizes []int
	for _, field := range strings.Split(s, ",") {
		n, err := parseSize(field)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

func parseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		b, perr := bytesize.Parse(s)
		if perr != nil {
			return 0, fmt.Errorf("invalid space size %q: %w", s, perr)
		}
		n = int(b)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid space size %q: must be positive", s)
	}
	const w = object.WordSize
	return (n + w - 1) / w * w, nil
}

func isInArray(arr []string, item string) bool {
	for _, i := range arr {
		if i == item {
			return true
		}
	}
	return false
}

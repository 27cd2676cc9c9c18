package gc

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/stella-rt/copygc/object"
)

// Policy decides when an allocation runs a collection.
type Policy int

const (
	// CollectAlways runs a full collection before every allocation. This
	// keeps the residency statistics exact at the cost of speed.
	CollectAlways Policy = iota

	// CollectWhenFull only collects when the youngest from-space can't hold
	// the request.
	CollectWhenFull

	// CollectNever disables the collector: allocation is a pure bump
	// allocation and nothing is ever reclaimed.
	CollectNever
)

var policyNames = map[Policy]string{
	CollectAlways:   "always",
	CollectWhenFull: "full",
	CollectNever:    "never",
}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy parses the name printed by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	for p, name := range policyNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown policy %q", ErrBadConfig, s)
}

// Config describes the shape of a heap. It is fixed for the lifetime of the
// heap.
type Config struct {
	// Generations is the number of space pairs. One gives a flat semi-space
	// collector.
	Generations int

	// SpaceSize is the size in bytes of each region, per generation. A
	// single entry is used for every generation.
	SpaceSize []int

	Policy Policy

	// PromoteAge moves an object to the next generation once it has survived
	// this many collections of its own generation. Zero never promotes, so
	// only generation 0 is ever populated.
	PromoteAge int

	// ZeroFromSpace clears the old from-space after every cycle.
	ZeroFromSpace bool

	// Asserts enables the debug checks: root pop order, to-space access in
	// the barriers, and the forwarding check after every full collection.
	Asserts bool

	// MaxRoots limits the depth of the root stack. Zero is unlimited.
	MaxRoots int

	// Logger receives a debug trace of every collection. Nil discards it.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration of the reference runtime: one
// generation of two 1600 byte regions, a collection on every allocation and
// room for 160 roots.
func DefaultConfig() Config {
	return Config{
		Generations:   1,
		SpaceSize:     []int{16 * 100},
		Policy:        CollectAlways,
		ZeroFromSpace: true,
		Asserts:       true,
		MaxRoots:      16 * 10,
	}
}

// spaceSize returns the region size of generation g.
func (c *Config) spaceSize(g int) int {
	if g < len(c.SpaceSize) {
		return c.SpaceSize[g]
	}
	return c.SpaceSize[len(c.SpaceSize)-1]
}

// Verify checks the configuration for consistency.
func (c *Config) Verify() error {
	if c.Generations < 1 {
		return fmt.Errorf("%w: need at least one generation, got %d", ErrBadConfig, c.Generations)
	}
	if len(c.SpaceSize) == 0 {
		return fmt.Errorf("%w: no space size", ErrBadConfig)
	}
	if len(c.SpaceSize) != 1 && len(c.SpaceSize) != c.Generations {
		return fmt.Errorf("%w: %d space sizes for %d generations", ErrBadConfig, len(c.SpaceSize), c.Generations)
	}
	for g := 0; g < c.Generations; g++ {
		size := c.spaceSize(g)
		if size < object.Size(1) {
			return fmt.Errorf("%w: generation %d: space size %d is smaller than the smallest object", ErrBadConfig, g, size)
		}
		if size%object.WordSize != 0 {
			return fmt.Errorf("%w: generation %d: space size %d is not a multiple of %d", ErrBadConfig, g, size, object.WordSize)
		}
	}
	if _, ok := policyNames[c.Policy]; !ok {
		return fmt.Errorf("%w: unknown policy %d", ErrBadConfig, int(c.Policy))
	}
	if c.PromoteAge < 0 || c.PromoteAge > object.MaxAge {
		return fmt.Errorf("%w: promote age %d out of range 0..%d", ErrBadConfig, c.PromoteAge, object.MaxAge)
	}
	if c.PromoteAge > 0 && c.Generations < 2 {
		return fmt.Errorf("%w: promotion needs at least two generations", ErrBadConfig)
	}
	if c.MaxRoots < 0 {
		return fmt.Errorf("%w: negative root limit", ErrBadConfig)
	}
	return nil
}

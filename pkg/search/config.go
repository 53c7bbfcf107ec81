package search

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/bch"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
)

// Config controls the layout and parameter search.
type Config struct {
	// Codec candidates
	Polys       []uint32         // Generator polynomials (default: bch catalogue)
	Ts          []int            // Correction capabilities to try (default: 2,4,8,12,16,24,32,64)
	Transforms  []nand.Transform // ECC bit-domain transforms (default: all four)
	TrySwapBits bool             // Also try LSB-first bit order (default: false)

	// Layout candidates
	Geometries  []Geometry // Page/spare pairs (default: DefaultGeometries)
	SectorSizes []int      // Sector sizes (default: 512, 1024)
	MinChunk    int        // Smallest spare chunk per sector (default: 8)
	MaxChunk    int        // Largest spare chunk per sector (default: 128)
	Offsets     []int64    // Fixed file offsets; nil derives them from the file size

	// Sampling
	LayoutPages int   // Pages sampled to score a layout (default: 64)
	ParamPages  int   // Pages sampled to evaluate parameters (default: 128)
	Seed        int64 // Sampling seed (default: 123)

	// Limits and thresholds
	MaxLayouts       int     // Layouts that get a parameter search (default: 6)
	MaxUncorrectable int64   // Stop evaluating a candidate past this many failures (default: 500, 0 disables)
	MaxCandidates    int     // Quick test candidate cap (default: 2000)
	SparseWarning    float64 // Top layout score below this logs a warning (default: 0.05)
	Leaderboard      int     // Results kept for review (default: 5)
	Workers          int     // Parallel candidate groups (default: runtime.NumCPU())

	// Filter is an optional CEL expression over candidate variables; only
	// candidates for which it evaluates to true are tested.
	Filter string

	Oracle codec.Oracle // Correction oracle (default: codec.BCH)
	Logger *slog.Logger // Default: slog.Default()

	filter *Filter
}

// DefaultTs are the capabilities most NAND controllers use.
var DefaultTs = []int{2, 4, 8, 12, 16, 24, 32, 64}

// DefaultConfig returns a Config with the stock search space.
func DefaultConfig() *Config {
	return &Config{
		Polys:            bch.Polys(),
		Ts:               append([]int(nil), DefaultTs...),
		Transforms:       nand.AllTransforms(),
		TrySwapBits:      false,
		Geometries:       DefaultGeometries(),
		SectorSizes:      append([]int(nil), DefaultSectorSizes...),
		MinChunk:         8,
		MaxChunk:         128,
		LayoutPages:      64,
		ParamPages:       128,
		Seed:             123,
		MaxLayouts:       6,
		MaxUncorrectable: 500,
		MaxCandidates:    2000,
		SparseWarning:    0.05,
		Leaderboard:      5,
		Workers:          runtime.NumCPU(),
	}
}

// Validate fills unset limits with defaults and compiles the filter.
func (c *Config) Validate() error {
	if len(c.Polys) == 0 {
		c.Polys = bch.Polys()
	}
	if len(c.Ts) == 0 {
		c.Ts = append([]int(nil), DefaultTs...)
	}
	if len(c.Transforms) == 0 {
		c.Transforms = nand.AllTransforms()
	}
	if len(c.Geometries) == 0 {
		c.Geometries = DefaultGeometries()
	}
	if len(c.SectorSizes) == 0 {
		c.SectorSizes = append([]int(nil), DefaultSectorSizes...)
	}
	if c.MinChunk < 1 {
		c.MinChunk = 1
	}
	if c.MaxChunk < c.MinChunk {
		return fmt.Errorf("search: max chunk %d below min chunk %d", c.MaxChunk, c.MinChunk)
	}
	if c.LayoutPages < 1 {
		c.LayoutPages = 1
	}
	if c.ParamPages < 1 {
		c.ParamPages = 1
	}
	if c.MaxLayouts < 1 {
		c.MaxLayouts = 1
	}
	if c.MaxUncorrectable < 0 {
		c.MaxUncorrectable = 0
	}
	if c.MaxCandidates < 1 {
		c.MaxCandidates = 1
	}
	if c.Leaderboard < 1 {
		c.Leaderboard = 1
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	for _, off := range c.Offsets {
		if off < 0 {
			return fmt.Errorf("search: negative offset %d", off)
		}
	}
	if c.Oracle == nil {
		c.Oracle = codec.BCH{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	c.filter = nil
	if c.Filter != "" {
		f, err := CompileFilter(c.Filter)
		if err != nil {
			return err
		}
		c.filter = f
	}
	return nil
}

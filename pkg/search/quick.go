package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/dump"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/sample"
)

// ErrNoSafeCandidates means no (poly, t) pair produces the layout's ECC
// length with a message that fits the code.
var ErrNoSafeCandidates = errors.New("search: no safe candidates; check that ecc length matches ceil(m*t/8) and the chunk holds the ecc")

// QuickResult is the outcome of a quick test.
type QuickResult struct {
	Best   Result   `json:"best"`
	Ranked []Result `json:"ranked"`
}

// QuickCandidates enumerates parameter sets for a fixed layout, in order:
// polynomial, t, bit order, transform and extra bytes. Empty extras means
// ExtraByteCounts(l.ECCOffset). When more than cfg.MaxCandidates remain, a
// seeded shuffle picks which ones to keep.
func QuickCandidates(l nand.Layout, offset int64, extras []int, cfg *Config) []ParamCandidate {
	if len(extras) == 0 {
		extras = ExtraByteCounts(l.ECCOffset)
	}
	swaps := []bool{false}
	if cfg.TrySwapBits {
		swaps = append(swaps, true)
	}

	var out []ParamCandidate
	for _, poly := range distinctPolys(cfg.Polys) {
		m, err := codec.DegreeFromPoly(poly)
		if err != nil {
			continue
		}
		for _, t := range distinctTs(cfg.Ts) {
			for _, swap := range swaps {
				for _, tf := range cfg.Transforms {
					for _, extra := range extras {
						p := codec.Params{Poly: poly, M: m, T: t, SwapBits: swap, Transform: tf, ExtraBytes: extra}
						if p.CheckLayout(l) != nil {
							continue
						}
						c := ParamCandidate{Layout: l, Offset: offset, Params: p}
						if !cfg.accept(c) {
							continue
						}
						out = append(out, c)
					}
				}
			}
		}
	}

	if len(out) > cfg.MaxCandidates {
		rng := rand.New(rand.NewSource(cfg.Seed ^ 0x5A17))
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		out = out[:cfg.MaxCandidates]
	}
	for i := range out {
		out[i].Index = i
	}
	return out
}

// QuickTest evaluates many parameter sets against one known layout. It
// samples cfg.ParamPages pages and returns every evaluated candidate, best
// first.
func QuickTest(ctx context.Context, path string, l nand.Layout, offset int64, extras []int, cfg *Config, progress chan<- Progress) (*QuickResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("search: invalid config: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	img, err := dump.Open(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	if _, err := l.PageCount(img.Size(), offset); err != nil {
		return nil, fmt.Errorf("search: %s at offset %d: %w", l, offset, err)
	}

	cands := QuickCandidates(l, offset, extras, cfg)
	if len(cands) == 0 {
		return nil, ErrNoSafeCandidates
	}
	cfg.Logger.Info("quick test", "layout", l.String(), "offset", offset, "candidates", len(cands))

	pages, err := sample.Pages(ctx, img, img.Size(), l.RawPageSize(), offset, cfg.ParamPages, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("search: sample: %w", err)
	}

	total := len(cands)
	results, err := evaluateAll(ctx, cands, pages, cfg, func(n int) {
		report(progress, Progress{
			Phase:   PhaseParams,
			Index:   n,
			Total:   total,
			Percent: 100 * float64(n) / float64(total),
		})
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoWorkingParameters
	}
	Rank(results)
	report(progress, Progress{Phase: PhaseDone, Index: total, Total: total, Percent: 100})
	return &QuickResult{Best: results[0], Ranked: results}, nil
}

package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/dump"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/sample"
)

// ErrNoWorkingParameters means every parameter set failed on every layout.
var ErrNoWorkingParameters = errors.New("search: no working parameter set found; the layout may be wrong, the spare area missing, or the ECC scheme unsupported")

// Outcome is the result of a full search. Best is a suggestion: the layout
// heuristic can be fooled by dense spare metadata, so confirm it before
// fixing a dump.
type Outcome struct {
	Best    Result            `json:"best"`
	Top     []Result          `json:"top"`
	Layouts []LayoutCandidate `json:"layouts"`
}

// Run searches the dump at path for its layout and codec parameters.
//
// The search:
//  1. Scores every catalogue geometry at every candidate offset by spare
//     sparsity and keeps the best MaxLayouts·3.
//  2. For each of the best MaxLayouts layouts, samples ParamPages pages and
//     evaluates every parameter candidate on them.
//  3. Ranks the per-layout winners.
//
// progress is optional and never blocks the search.
func Run(ctx context.Context, path string, cfg *Config, progress chan<- Progress) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("search: invalid config: %w", err)
	}
	img, err := dump.Open(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	size := img.Size()

	// Phase 1: layouts
	layouts, err := searchLayouts(ctx, img, size, cfg, progress)
	if err != nil {
		return nil, err
	}

	// Phase 2: parameters per layout
	tested := layouts
	if len(tested) > cfg.MaxLayouts {
		tested = tested[:cfg.MaxLayouts]
	}
	var bests []Result
	for li, lc := range tested {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		report(progress, Progress{
			Phase:   PhaseParams,
			Index:   li,
			Total:   len(tested),
			Percent: 10 + 90*float64(li)/float64(len(tested)),
			Detail:  lc.String(),
		})
		cfg.Logger.Info("testing parameters", "layout", lc.String())

		pages, err := sample.Pages(ctx, img, size, lc.RawPageSize(), lc.Offset, cfg.ParamPages, cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("search: sample %s: %w", lc, err)
		}
		best, ok, err := searchParams(ctx, lc, li, pages, cfg)
		if err != nil {
			return nil, err
		}
		if ok {
			cfg.Logger.Info("layout best", "result", best.String())
			bests = append(bests, best)
		}
	}
	if len(bests) == 0 {
		return nil, ErrNoWorkingParameters
	}

	// Phase 3: ranking
	Rank(bests)
	report(progress, Progress{Phase: PhaseDone, Index: len(tested), Total: len(tested), Percent: 100})
	return &Outcome{
		Best:    bests[0],
		Top:     Leaderboard(bests, cfg.Leaderboard),
		Layouts: layouts,
	}, nil
}

// SearchParams evaluates every parameter candidate of lc on pages and returns
// the best one. ok is false when no candidate checked a single sector.
func SearchParams(ctx context.Context, lc LayoutCandidate, pages [][]byte, cfg *Config) (best Result, ok bool, err error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, false, fmt.Errorf("search: invalid config: %w", err)
	}
	return searchParams(ctx, lc, 0, pages, cfg)
}

func searchParams(ctx context.Context, lc LayoutCandidate, layoutIndex int, pages [][]byte, cfg *Config) (Result, bool, error) {
	cands := ParamCandidates(lc, cfg)
	for i := range cands {
		cands[i].LayoutIndex = layoutIndex
	}
	cfg.Logger.Debug("parameter candidates", "layout", lc.String(), "count", len(cands))

	results, err := evaluateAll(ctx, cands, pages, cfg, nil)
	if err != nil {
		return Result{}, false, err
	}

	var best Result
	found := false
	for _, r := range results {
		if r.Score.Checked <= 0 {
			continue
		}
		if !found || Less(r, best) {
			best, found = r, true
		}
	}
	return best, found, nil
}

// group is the set of candidates sharing one codec instance.
type group struct {
	params codec.Params
	idx    []int
}

func groupCandidates(cands []ParamCandidate) []group {
	type key struct {
		m, t int
		poly uint32
		swap bool
	}
	pos := map[key]int{}
	var groups []group
	for i, c := range cands {
		k := key{c.Params.M, c.Params.T, c.Params.Poly, c.Params.SwapBits}
		gi, ok := pos[k]
		if !ok {
			gi = len(groups)
			pos[k] = gi
			groups = append(groups, group{params: c.Params})
		}
		groups[gi].idx = append(groups[gi].idx, i)
	}
	return groups
}

// evaluateAll scores cands on pages. Candidates sharing (m, t, poly, swap)
// reuse one handle; groups run on up to cfg.Workers goroutines. The returned
// slice is in candidate order and omits candidates whose codec could not be
// opened. done, when set, is called after each evaluated candidate.
func evaluateAll(ctx context.Context, cands []ParamCandidate, pages [][]byte, cfg *Config, done func(n int)) ([]Result, error) {
	slots := make([]*Result, len(cands))
	var finished atomic.Int64

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Workers)
	for _, g := range groupCandidates(cands) {
		g := g
		eg.Go(func() error {
			err := codec.With(gctx, cfg.Oracle, g.params, func(h *codec.Handle) error {
				for _, i := range g.idx {
					select {
					case <-gctx.Done():
						return gctx.Err()
					default:
					}
					c := cands[i]
					sc, err := Evaluate(gctx, h, c.Layout, c.Params, pages, cfg.MaxUncorrectable)
					if err != nil {
						return err
					}
					r := newResult(c, sc)
					slots[i] = &r
					cfg.Logger.Debug("candidate", "result", r.String())
					if done != nil {
						done(int(finished.Add(1)))
					}
				}
				return nil
			})
			if errors.Is(err, codec.ErrCodecInit) {
				cfg.Logger.Warn("codec rejected parameters", "params", g.params.String(), "err", err)
				return nil
			}
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

package search

import (
	"fmt"
	"sort"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
)

// commonECCOffsets are fixed chunk positions seen in controllers; Broadcom
// parts often use 9.
var commonECCOffsets = []int{0, 1, 2, 4, 8, 9, 10, 12, 16}

// ParamCandidate is a complete layout plus codec parameter set.
type ParamCandidate struct {
	Layout      nand.Layout  `json:"layout"`
	Offset      int64        `json:"offset"`
	Params      codec.Params `json:"params"`
	LayoutScore float64      `json:"layout_score"`

	// LayoutIndex is the rank of the layout among scored layouts and Index
	// the enumeration order within it. Both only break ranking ties.
	LayoutIndex int `json:"-"`
	Index       int `json:"-"`
}

func (c ParamCandidate) String() string {
	return fmt.Sprintf("%s offset=%d %s", c.Layout, c.Offset, c.Params)
}

// ECCOffsets lists ECC positions inside a chunk: packed against the chunk
// end, one byte before that, then the common fixed offsets that fit.
func ECCOffsets(chunk, eccLen int) []int {
	var out []int
	seen := map[int]bool{}
	add := func(v int) {
		if v >= 0 && v+eccLen <= chunk && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	end := chunk - eccLen
	add(end)
	add(end - 1)
	for _, v := range commonECCOffsets {
		add(v)
	}
	return out
}

// ExtraByteCounts lists how many leading chunk bytes to try protecting
// together with the sector: none, or everything up to the ECC minus 0-2.
func ExtraByteCounts(eccOffset int) []int {
	var out []int
	seen := map[int]bool{}
	for _, v := range []int{0, eccOffset, eccOffset - 1, eccOffset - 2} {
		if v >= 0 && v <= eccOffset && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// ParamCandidates enumerates every parameter set worth testing on lc, in a
// fixed order: t ascending, then polynomial, ECC offset, bit order,
// transform and extra bytes. cfg must have been validated.
func ParamCandidates(lc LayoutCandidate, cfg *Config) []ParamCandidate {
	swaps := []bool{false}
	if cfg.TrySwapBits {
		swaps = append(swaps, true)
	}

	var out []ParamCandidate
	for _, t := range distinctTs(cfg.Ts) {
		for _, poly := range distinctPolys(cfg.Polys) {
			m, err := codec.DegreeFromPoly(poly)
			if err != nil {
				continue
			}
			if !codec.Plausible(m, t) {
				cfg.Logger.Debug("skip implausible parameters", "m", m, "t", t, "poly", fmt.Sprintf("0x%X", poly))
				continue
			}
			eccLen := codec.ECCBytes(m, t)
			if eccLen > lc.ChunkSize {
				continue
			}
			for _, eccOfs := range ECCOffsets(lc.ChunkSize, eccLen) {
				l := lc.Layout(eccOfs, eccLen)
				if l.Validate() != nil {
					continue
				}
				for _, swap := range swaps {
					for _, tf := range cfg.Transforms {
						for _, extra := range ExtraByteCounts(eccOfs) {
							p := codec.Params{Poly: poly, M: m, T: t, SwapBits: swap, Transform: tf, ExtraBytes: extra}
							if p.CheckLayout(l) != nil {
								continue
							}
							c := ParamCandidate{Layout: l, Offset: lc.Offset, Params: p, LayoutScore: lc.Score}
							if !cfg.accept(c) {
								continue
							}
							c.Index = len(out)
							out = append(out, c)
						}
					}
				}
			}
		}
	}
	return out
}

func (c *Config) accept(pc ParamCandidate) bool {
	if c.filter == nil {
		return true
	}
	ok, err := c.filter.Match(pc)
	if err != nil {
		c.Logger.Debug("filter error, skipping candidate", "candidate", pc.String(), "err", err)
		return false
	}
	return ok
}

func distinctTs(ts []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, t := range ts {
		if t > 0 && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Ints(out)
	return out
}

func distinctPolys(polys []uint32) []uint32 {
	seen := map[uint32]bool{}
	var out []uint32
	for _, p := range polys {
		if p != 0 && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

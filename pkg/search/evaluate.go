package search

import (
	"context"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
)

// Score is the outcome of decoding sampled sectors with one candidate.
type Score struct {
	Checked       int64 `json:"checked"`
	OK            int64 `json:"ok"`
	Uncorrectable int64 `json:"uncorrectable"`
	Bitflips      int64 `json:"bitflips"`
}

// Ratio is Uncorrectable/Checked, or 1 when nothing was checked so that an
// untested candidate never outranks a tested one.
func (s Score) Ratio() float64 {
	if s.Checked <= 0 {
		return 1
	}
	return float64(s.Uncorrectable) / float64(s.Checked)
}

func (s Score) String() string {
	return fmt.Sprintf("checked=%d ok=%d uncorrectable=%d (%.1f%%) bitflips=%d",
		s.Checked, s.OK, s.Uncorrectable, 100*s.Ratio(), s.Bitflips)
}

// Evaluate decodes every non-erased step of pages with h under l and p. A
// step is erased when its sector, extra bytes and ECC are all 0xFF.
// Evaluation stops once more than limit sectors failed (limit <= 0 means no
// limit). Pages are not modified.
func Evaluate(ctx context.Context, h *codec.Handle, l nand.Layout, p codec.Params, pages [][]byte, limit int64) (Score, error) {
	return evaluate(ctx, h, l, p, pages, limit, true)
}

func evaluate(ctx context.Context, h *codec.Handle, l nand.Layout, p codec.Params, pages [][]byte, limit int64, skipErased bool) (Score, error) {
	var (
		sc      Score
		scratch codec.Scratch
	)
	raw := l.RawPageSize()
	steps := l.StepCount()
	for _, page := range pages {
		select {
		case <-ctx.Done():
			return sc, ctx.Err()
		default:
		}
		if len(page) < raw {
			continue
		}
		for s := 0; s < steps; s++ {
			sector, chunk := l.Step(page, s)
			extra := l.Extra(chunk, p.ExtraBytes)
			ecc := l.ECC(chunk)
			if skipErased && nand.IsErased(sector) && nand.IsErased(extra) && nand.IsErased(ecc) {
				continue
			}

			sc.Checked++
			n, err := h.DecodeSector(&scratch, sector, extra, ecc, p.Transform)
			if err != nil {
				sc.Uncorrectable++
				if limit > 0 && sc.Uncorrectable > limit {
					return sc, nil
				}
				continue
			}
			sc.OK++
			sc.Bitflips += int64(n)
		}
	}
	return sc, nil
}

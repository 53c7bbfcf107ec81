package search

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/bch"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/dump"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/sample"
)

// MinDetectSamples is the fewest sectors Detect accepts as evidence.
const MinDetectSamples = 50

// ErrTooFewSamples means the sampled pages held too few sectors.
var ErrTooFewSamples = errors.New("search: too few sectors sampled for detection")

// Detection is the best parameter set found by Detect.
type Detection struct {
	Params  codec.Params `json:"params"`
	Score   Score        `json:"score"`
	Penalty float64      `json:"penalty"`
	Samples int          `json:"samples"`
}

func (d Detection) String() string {
	return fmt.Sprintf("%s penalty=%.0f %s", d.Params, d.Penalty, d.Score)
}

// Penalty weighs every uncorrectable sector above any number of flips.
func Penalty(s Score) float64 {
	return float64(s.Uncorrectable)*1e6 + float64(s.Bitflips)
}

// DetectTs guesses correction capabilities for an ECC length: the value
// implied by eccLen·8/m and its neighbours, then 2, 4, 8 and 16.
func DetectTs(eccLen, m int) []int {
	guess := int(math.Round(float64(eccLen*8) / float64(m)))
	var out []int
	seen := map[int]bool{}
	for _, t := range []int{guess - 1, guess, guess + 1, 2, 4, 8, 16} {
		if t > 0 && t <= 64 && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// DetectExtras lists the extra-byte counts Detect tries.
func DetectExtras(eccOffset int) []int {
	var out []int
	seen := map[int]bool{}
	for _, v := range []int{0, min(4, eccOffset), min(8, eccOffset), eccOffset} {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Detect finds t, transform and extra bytes for a known layout and
// polynomial. poly 0 selects the Linux m=14 polynomial. The first pages
// pages of the dump are read, erased sectors included. Candidates are
// compared by Penalty; the first one wins ties.
func Detect(ctx context.Context, path string, l nand.Layout, offset int64, poly uint32, pages int, cfg *Config) (*Detection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("search: invalid config: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if poly == 0 {
		poly = bch.DefaultForM(14).Poly
	}
	m, err := codec.DegreeFromPoly(poly)
	if err != nil {
		return nil, err
	}

	img, err := dump.Open(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	total, err := l.PageCount(img.Size(), offset)
	if err != nil {
		return nil, fmt.Errorf("search: %s at offset %d: %w", l, offset, err)
	}
	n := int64(pages)
	if n > total {
		n = total
	}
	idx := make([]int64, n)
	for i := range idx {
		idx[i] = int64(i)
	}
	sampled, err := sample.ReadPages(ctx, img, l.RawPageSize(), offset, idx)
	if err != nil {
		return nil, fmt.Errorf("search: read pages: %w", err)
	}
	samples := len(sampled) * l.StepCount()
	if samples < MinDetectSamples {
		return nil, fmt.Errorf("%w: %d < %d", ErrTooFewSamples, samples, MinDetectSamples)
	}

	var (
		best  *Detection
		tried int
	)
	for _, t := range DetectTs(l.ECCLength, m) {
		if codec.ECCBytes(m, t) != l.ECCLength {
			continue
		}
		base := codec.Params{Poly: poly, M: m, T: t}
		err := codec.With(ctx, cfg.Oracle, base, func(h *codec.Handle) error {
			for _, tf := range nand.AllTransforms() {
				for _, extra := range DetectExtras(l.ECCOffset) {
					p := base
					p.Transform, p.ExtraBytes = tf, extra
					if p.CheckLayout(l) != nil {
						continue
					}
					tried++
					sc, err := evaluate(ctx, h, l, p, sampled, cfg.MaxUncorrectable, false)
					if err != nil {
						return err
					}
					d := Detection{Params: p, Score: sc, Penalty: Penalty(sc), Samples: samples}
					cfg.Logger.Debug("detect candidate", "result", d.String())
					if best == nil || d.Penalty < best.Penalty {
						best = &d
					}
				}
			}
			return nil
		})
		if errors.Is(err, codec.ErrCodecInit) || errors.Is(err, codec.ErrImplausible) {
			cfg.Logger.Warn("skip parameters", "params", base.String(), "err", err)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	if best == nil {
		return nil, ErrNoWorkingParameters
	}
	cfg.Logger.Info("detected", "result", best.String(), "tried", tried)
	return best, nil
}

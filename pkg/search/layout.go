package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/dump"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/sample"
)

// ErrNoPlausibleLayout means no geometry produced a usable score.
var ErrNoPlausibleLayout = errors.New("search: no plausible NAND layout found; the file may be too small or not a raw NAND dump")

// Geometry is a page size and the spare sizes seen with it.
type Geometry struct {
	PageSize   int
	SpareSizes []int
}

// DefaultSectorSizes are the ECC step sizes tried for every geometry.
var DefaultSectorSizes = []int{512, 1024}

// DefaultGeometries is the page/spare catalogue of common NAND parts.
func DefaultGeometries() []Geometry {
	return []Geometry{
		{PageSize: 512, SpareSizes: []int{16}},
		{PageSize: 2048, SpareSizes: []int{64, 128}},
		{PageSize: 4096, SpareSizes: []int{128, 224, 256}},
		{PageSize: 8192, SpareSizes: []int{256, 448, 640}},
		{PageSize: 16384, SpareSizes: []int{512, 1024}},
	}
}

// LayoutCandidate is a page geometry at a file offset, without ECC
// placement. Score is the spare sparsity heuristic.
type LayoutCandidate struct {
	PageSize   int     `json:"page_size"`
	SpareSize  int     `json:"spare_size"`
	SectorSize int     `json:"sector_size"`
	ChunkSize  int     `json:"chunk_size"`
	Offset     int64   `json:"offset"`
	Score      float64 `json:"score"`

	index int
}

func (c LayoutCandidate) RawPageSize() int { return c.PageSize + c.SpareSize }

func (c LayoutCandidate) Steps() int { return c.PageSize / c.SectorSize }

// Layout completes the candidate with an ECC placement.
func (c LayoutCandidate) Layout(eccOffset, eccLength int) nand.Layout {
	return nand.Layout{
		PageSize:   c.PageSize,
		SpareSize:  c.SpareSize,
		SectorSize: c.SectorSize,
		ChunkSize:  c.ChunkSize,
		ECCOffset:  eccOffset,
		ECCLength:  eccLength,
	}
}

func (c LayoutCandidate) String() string {
	return fmt.Sprintf("page=%d spare=%d sector=%d chunk=%d raw=%d offset=%d score=%.3f",
		c.PageSize, c.SpareSize, c.SectorSize, c.ChunkSize, c.RawPageSize(), c.Offset, c.Score)
}

// Geometries enumerates the page/spare/sector combinations of cfg that split
// into whole chunks of an acceptable size. Offsets and scores are zero.
func Geometries(cfg *Config) []LayoutCandidate {
	var out []LayoutCandidate
	for _, g := range cfg.Geometries {
		for _, spare := range g.SpareSizes {
			for _, sector := range cfg.SectorSizes {
				if sector <= 0 || g.PageSize%sector != 0 {
					continue
				}
				steps := g.PageSize / sector
				if steps <= 0 || spare%steps != 0 {
					continue
				}
				chunk := spare / steps
				if chunk < cfg.MinChunk || chunk > cfg.MaxChunk {
					continue
				}
				out = append(out, LayoutCandidate{
					PageSize:   g.PageSize,
					SpareSize:  spare,
					SectorSize: sector,
					ChunkSize:  chunk,
				})
			}
		}
	}
	return out
}

// CandidateOffsets lists the file offsets worth trying for a raw page size:
// zero, the size remainder (a leading header), and 512-byte steps below
// min(rawPage, 4096). Duplicates are removed, first occurrence wins.
func CandidateOffsets(fileSize int64, rawPage int) []int64 {
	if rawPage <= 0 {
		return nil
	}
	out := []int64{0}
	seen := map[int64]bool{0: true}
	add := func(off int64) {
		if !seen[off] {
			seen[off] = true
			out = append(out, off)
		}
	}
	if rem := fileSize % int64(rawPage); rem != 0 {
		add(rem)
	}
	limit := rawPage
	if limit > 4096 {
		limit = 4096
	}
	for off := 512; off < limit; off += 512 {
		add(int64(off))
	}
	return out
}

// ScoreLayout samples pages of c and returns the erased-byte ratio of the
// spare area minus that of the data area. It returns -Inf when the offset is
// invalid, the file holds no whole page, or nothing could be sampled.
func ScoreLayout(ctx context.Context, r io.ReaderAt, size int64, c LayoutCandidate, pages int, seed int64) (float64, error) {
	raw := c.RawPageSize()
	if c.Offset < 0 || raw <= 0 || size-c.Offset < int64(raw) {
		return math.Inf(-1), nil
	}
	sampled, err := sample.Pages(ctx, r, size, raw, c.Offset, pages, seed)
	if err != nil {
		return 0, err
	}

	var ffData, ffSpare, totData, totSpare int64
	for _, p := range sampled {
		ffData += int64(nand.CountErased(p[:c.PageSize]))
		totData += int64(c.PageSize)
		ffSpare += int64(nand.CountErased(p[c.PageSize:raw]))
		totSpare += int64(c.SpareSize)
	}
	if totData == 0 || totSpare == 0 {
		return math.Inf(-1), nil
	}
	return float64(ffSpare)/float64(totSpare) - float64(ffData)/float64(totData), nil
}

// SearchLayouts scores every geometry at every candidate offset of the dump
// at path and returns the best MaxLayouts·3 candidates, highest score first.
func SearchLayouts(ctx context.Context, path string, cfg *Config) ([]LayoutCandidate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("search: invalid config: %w", err)
	}
	img, err := dump.Open(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return searchLayouts(ctx, img, img.Size(), cfg, nil)
}

func searchLayouts(ctx context.Context, r io.ReaderAt, size int64, cfg *Config, progress chan<- Progress) ([]LayoutCandidate, error) {
	geoms := Geometries(cfg)
	var scored []LayoutCandidate
	n := 0
	for gi, g := range geoms {
		offsets := cfg.Offsets
		if offsets == nil {
			offsets = CandidateOffsets(size, g.RawPageSize())
		}
		for _, off := range offsets {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			c := g
			c.Offset = off
			c.index = n
			n++

			score, err := ScoreLayout(ctx, r, size, c, cfg.LayoutPages, cfg.Seed)
			if err != nil {
				return nil, fmt.Errorf("search: score %s: %w", c, err)
			}
			if math.IsInf(score, -1) {
				continue
			}
			c.Score = score
			scored = append(scored, c)
		}
		report(progress, Progress{
			Phase:   PhaseLayouts,
			Index:   gi + 1,
			Total:   len(geoms),
			Percent: 10 * float64(gi+1) / float64(len(geoms)),
			Detail:  g.String(),
		})
	}
	if len(scored) == 0 {
		return nil, ErrNoPlausibleLayout
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	keep := cfg.MaxLayouts * 3
	if keep < 2 {
		keep = 2
	}
	if len(scored) > keep {
		scored = scored[:keep]
	}

	cfg.Logger.Info("layout candidates scored", "total", n, "kept", len(scored), "top", scored[0].String())
	for _, c := range scored {
		cfg.Logger.Debug("layout candidate", "layout", c.String())
	}
	if scored[0].Score < cfg.SparseWarning {
		cfg.Logger.Warn("spare area does not look sparse; the dump may have no spare data and ECC repair may be impossible",
			"score", scored[0].Score)
	}
	return scored, nil
}

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/profile"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/search"
)

// settingsFlags are the layout and codec flags shared by commands that work
// on a known layout. A --profile supplies defaults that explicit flags
// override.
type settingsFlags struct {
	page, spare, sector, chunk int
	eccOffset, eccLength       int
	offset                     int64

	poly      string
	t         int
	extra     int
	transform string
	swap      bool

	profile     string
	profilesDir string
}

func (s *settingsFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&s.page, "page", 2048, "data bytes per page")
	fs.IntVar(&s.spare, "spare", 64, "spare (OOB) bytes per page")
	fs.IntVar(&s.sector, "sector", 512, "data bytes per ECC step")
	fs.IntVar(&s.chunk, "chunk", 16, "spare bytes per ECC step")
	fs.IntVar(&s.eccOffset, "ecc-offset", 9, "ECC offset inside a spare chunk")
	fs.IntVar(&s.eccLength, "ecc-length", 7, "ECC bytes inside a spare chunk")
	fs.Int64Var(&s.offset, "offset", 0, "bytes before the first page (header)")

	fs.StringVar(&s.poly, "poly", "0x5803", "primitive polynomial, hex or decimal")
	fs.IntVar(&s.t, "t", 4, "correctable bits per sector")
	fs.IntVar(&s.extra, "extra", 0, "spare bytes protected together with the sector")
	fs.StringVar(&s.transform, "transform", "none", "ECC bit transform (none, inv, bitrev, inv+bitrev)")
	fs.BoolVar(&s.swap, "swap", false, "LSB-first bit order")

	fs.StringVarP(&s.profile, "profile", "p", "", "start from a stored profile (see 'nandfix profiles')")
	fs.StringVar(&s.profilesDir, "profiles-dir", "", "directory of extra profile files")
}

// resolve builds the layout, parameters and offset from the profile, if
// any, and the flags the user set.
func (s *settingsFlags) resolve(fs *pflag.FlagSet) (nand.Layout, codec.Params, int64, error) {
	var (
		l      nand.Layout
		p      codec.Params
		offset int64
	)
	if s.profile != "" {
		repo, err := profile.Load(s.profilesDir)
		if err != nil {
			return l, p, 0, err
		}
		prof, err := repo.Lookup(s.profile)
		if err != nil {
			return l, p, 0, err
		}
		l, p, offset = prof.Layout, prof.Params, prof.Offset
	}
	use := func(name string) bool { return s.profile == "" || fs.Changed(name) }

	if use("page") {
		l.PageSize = s.page
	}
	if use("spare") {
		l.SpareSize = s.spare
	}
	if use("sector") {
		l.SectorSize = s.sector
	}
	if use("chunk") {
		l.ChunkSize = s.chunk
	}
	if use("ecc-offset") {
		l.ECCOffset = s.eccOffset
	}
	if use("ecc-length") {
		l.ECCLength = s.eccLength
	}
	if use("offset") {
		offset = s.offset
	}
	if err := l.Validate(); err != nil {
		return l, p, 0, err
	}

	if use("poly") {
		poly, err := parsePoly(s.poly)
		if err != nil {
			return l, p, 0, err
		}
		m, err := codec.DegreeFromPoly(poly)
		if err != nil {
			return l, p, 0, err
		}
		p.Poly, p.M = poly, m
	}
	if use("t") {
		p.T = s.t
	}
	if use("extra") {
		p.ExtraBytes = s.extra
	}
	if use("transform") {
		tf, err := nand.ParseTransform(s.transform)
		if err != nil {
			return l, p, 0, err
		}
		p.Transform = tf
	}
	if use("swap") {
		p.SwapBits = s.swap
	}
	return l, p, offset, nil
}

func parsePoly(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid polynomial %q: %w", s, err)
	}
	return uint32(v), nil
}

func parsePolys(in []string) ([]uint32, error) {
	var out []uint32
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			v, err := parsePoly(part)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func parseTransforms(in []string) ([]nand.Transform, error) {
	var out []nand.Transform
	for _, s := range in {
		tf, err := nand.ParseTransform(s)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	return out, nil
}

// parseGeometries reads "page+spare" pairs, merging spares of equal page
// sizes in first-seen order.
func parseGeometries(in []string) ([]search.Geometry, error) {
	var out []search.Geometry
	index := map[int]int{}
	for _, s := range in {
		pageStr, spareStr, ok := strings.Cut(s, "+")
		if !ok {
			return nil, fmt.Errorf("invalid geometry %q, want page+spare", s)
		}
		page, err := strconv.Atoi(strings.TrimSpace(pageStr))
		if err != nil || page <= 0 {
			return nil, fmt.Errorf("invalid page size in geometry %q", s)
		}
		spare, err := strconv.Atoi(strings.TrimSpace(spareStr))
		if err != nil || spare <= 0 {
			return nil, fmt.Errorf("invalid spare size in geometry %q", s)
		}
		i, seen := index[page]
		if !seen {
			i = len(out)
			index[page] = i
			out = append(out, search.Geometry{PageSize: page})
		}
		out[i].SpareSizes = append(out[i].SpareSizes, spare)
	}
	return out, nil
}

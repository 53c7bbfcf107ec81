// Package nandtest builds synthetic raw NAND dumps for tests.
package nandtest

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
)

// Layout is the geometry of the default dump: 2048+64 byte pages, 512 byte
// sectors, 16 byte chunks with 7 ECC bytes at offset 9.
var Layout = nand.Layout{PageSize: 2048, SpareSize: 64, SectorSize: 512, ChunkSize: 16, ECCOffset: 9, ECCLength: 7}

// Params is the code of the default dump.
var Params = codec.Params{Poly: 0x5803, M: 14, T: 4}

// Dump describes a synthetic dump.
type Dump struct {
	Layout nand.Layout
	Params codec.Params
	Pages  int
	Seed   int64
	Header int // Bytes of 0x00 before the first page

	// Erased reports whether a page is left all 0xFF.
	Erased func(page int) bool
	// Flips returns the bit positions to flip in step 0 of a page, counted
	// from the start of the sector.
	Flips func(page int) []int
}

// Default is 64 pages of the default layout, every eighth page erased and
// one flipped bit in every fifth programmed page.
func Default() Dump {
	return Dump{
		Layout: Layout,
		Params: Params,
		Pages:  64,
		Seed:   7,
		Erased: func(p int) bool { return p%8 == 7 },
		Flips: func(p int) []int {
			if p%5 == 0 {
				return []int{17*8 + 3}
			}
			return nil
		},
	}
}

// Build returns the raw bytes of d and the same dump without bit flips.
func (d Dump) Build(t testing.TB) (raw, clean []byte) {
	t.Helper()
	h, err := codec.Open(nil, d.Params)
	if err != nil {
		t.Fatalf("nandtest: open codec: %v", err)
	}
	defer h.Close()

	l := d.Layout
	rng := rand.New(rand.NewSource(d.Seed))
	clean = make([]byte, d.Header, d.Header+d.Pages*l.RawPageSize())
	var s codec.Scratch
	for p := 0; p < d.Pages; p++ {
		page := make([]byte, l.RawPageSize())
		for i := range page {
			page[i] = 0xFF
		}
		if d.Erased == nil || !d.Erased(p) {
			for step := 0; step < l.StepCount(); step++ {
				sector, chunk := l.Step(page, step)
				rng.Read(sector)
				for i := 0; i < d.Params.ExtraBytes; i++ {
					chunk[i] = byte(rng.Intn(256))
				}
				ecc, err := h.EncodeSector(&s, sector, l.Extra(chunk, d.Params.ExtraBytes), l.ECCLength, d.Params.Transform)
				if err != nil {
					t.Fatalf("nandtest: encode page %d step %d: %v", p, step, err)
				}
				copy(l.ECC(chunk), ecc)
			}
		}
		clean = append(clean, page...)
	}

	raw = append([]byte(nil), clean...)
	for p := 0; p < d.Pages; p++ {
		if d.Flips == nil || (d.Erased != nil && d.Erased(p)) {
			continue
		}
		base := d.Header + p*l.RawPageSize()
		for _, bit := range d.Flips(p) {
			raw[base+bit/8] ^= 1 << (bit % 8)
		}
	}
	return raw, clean
}

// FlipCount is the number of bits Build flips.
func (d Dump) FlipCount() int {
	n := 0
	for p := 0; p < d.Pages; p++ {
		if d.Flips == nil || (d.Erased != nil && d.Erased(p)) {
			continue
		}
		n += len(d.Flips(p))
	}
	return n
}

// ErasedCount is the number of erased pages.
func (d Dump) ErasedCount() int {
	n := 0
	for p := 0; p < d.Pages; p++ {
		if d.Erased != nil && d.Erased(p) {
			n++
		}
	}
	return n
}

// Write builds d into a file under t.TempDir and returns its path and the
// clean image.
func (d Dump) Write(t testing.TB) (path string, clean []byte) {
	t.Helper()
	raw, clean := d.Build(t)
	path = filepath.Join(t.TempDir(), "dump.bin")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("nandtest: write dump: %v", err)
	}
	return path, clean
}

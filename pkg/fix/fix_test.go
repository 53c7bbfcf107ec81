package fix

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceNAND/internal/nandtest"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

func openHandle(t *testing.T, p codec.Params) *codec.Handle {
	t.Helper()
	h, err := codec.Open(nil, p)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func outPaths(t *testing.T, input string) Paths {
	dir := t.TempDir()
	return Paths{
		Input: input,
		Data:  filepath.Join(dir, "out", "data.bin"),
		Raw:   filepath.Join(dir, "out", "raw.bin"),
	}
}

func dataOnly(l nand.Layout, raw []byte) []byte {
	var out []byte
	for off := 0; off+l.RawPageSize() <= len(raw); off += l.RawPageSize() {
		out = append(out, raw[off:off+l.PageSize]...)
	}
	return out
}

func TestFixErasedDump(t *testing.T) {
	d := nandtest.Default()
	d.Pages = 100
	d.Erased = func(int) bool { return true }
	input, clean := d.Write(t)
	paths := outPaths(t, input)

	rep, err := Run(context.Background(), openHandle(t, d.Params), d.Layout, testOptions(), paths, nil)
	require.NoError(t, err)
	require.EqualValues(t, 100, rep.TotalPages)
	require.EqualValues(t, 400, rep.ErasedSkipped)
	require.Zero(t, rep.Checked)
	require.Zero(t, rep.UncorrectableRatio())
	require.Equal(t, QualityNoData, Assess(rep, DefaultThresholds()).Level)

	data, err := os.ReadFile(paths.Data)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xFF}, 100*2048), data)
	raw, err := os.ReadFile(paths.Raw)
	require.NoError(t, err)
	require.Equal(t, clean, raw)
}

func TestFixOneFlipPerSector(t *testing.T) {
	d := nandtest.Default()
	d.Pages = 100
	d.Erased = nil
	d.Flips = func(p int) []int {
		var bits []int
		for s := 0; s < 4; s++ {
			bits = append(bits, s*512*8+(p*37+s*11)%(512*8))
		}
		return bits
	}
	input, clean := d.Write(t)
	paths := outPaths(t, input)

	progress := make(chan Progress, 16)
	f := New()
	rep, err := f.Run(context.Background(), openHandle(t, d.Params), d.Layout, testOptions(), paths, progress)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, f.State())
	require.EqualValues(t, 400, rep.Checked)
	require.EqualValues(t, 400, rep.TotalBitflips)
	require.Zero(t, rep.Uncorrectable)
	require.EqualValues(t, 100, rep.PagesTouched)
	require.Empty(t, rep.BadPageList())
	require.Equal(t, QualityClean, Assess(rep, DefaultThresholds()).Level)

	data, err := os.ReadFile(paths.Data)
	require.NoError(t, err)
	require.Equal(t, dataOnly(d.Layout, clean), data)
	raw, err := os.ReadFile(paths.Raw)
	require.NoError(t, err)
	require.Equal(t, clean, raw)

	close(progress)
	var last Progress
	for p := range progress {
		last = p
	}
	require.Equal(t, 100.0, last.Percent)

	_, err = f.Run(context.Background(), openHandle(t, d.Params), d.Layout, testOptions(), paths, nil)
	require.Error(t, err, "a fixer runs once")
}

func TestFixExtraBytesAndTransform(t *testing.T) {
	d := nandtest.Default()
	d.Params.ExtraBytes = 2
	d.Params.Transform = nand.TransformInvertBitReverse
	d.Erased = nil
	d.Flips = func(p int) []int {
		// sector bit and first extra byte of step 0
		return []int{p * 8, (2048 + 1) * 8}
	}
	input, clean := d.Write(t)
	paths := outPaths(t, input)

	rep, err := Run(context.Background(), openHandle(t, d.Params), d.Layout, testOptions(), paths, nil)
	require.NoError(t, err)
	require.Zero(t, rep.Uncorrectable)
	require.EqualValues(t, 2*d.Pages, rep.TotalBitflips)

	raw, err := os.ReadFile(paths.Raw)
	require.NoError(t, err)
	require.Equal(t, clean, raw)
}

func TestFixUncorrectableSector(t *testing.T) {
	d := nandtest.Default()
	d.Erased = nil
	d.Flips = func(p int) []int {
		if p != 3 {
			return nil
		}
		return []int{1, 100, 900, 2000, 3000, 4000}
	}
	input, _ := d.Write(t)
	corrupted, err := os.ReadFile(input)
	require.NoError(t, err)
	paths := outPaths(t, input)

	rep, err := Run(context.Background(), openHandle(t, d.Params), d.Layout, testOptions(), paths, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, rep.Uncorrectable)
	require.Equal(t, []int64{3}, rep.BadPageList())
	require.Zero(t, rep.PagesTouched)

	raw, err := os.ReadFile(paths.Raw)
	require.NoError(t, err)
	require.Equal(t, corrupted, raw, "uncorrectable sectors are copied as read")

	a := Assess(rep, DefaultThresholds())
	require.Equal(t, QualityMinor, a.Level)
	require.Contains(t, a.Format(rep), "uncorrectable sectors: 1 / 256")
}

func TestFixRewriteECC(t *testing.T) {
	d := nandtest.Default()
	d.Erased = nil
	// one bit of the stored ECC of step 2 on every page
	eccBit := (2048 + 2*16 + 9 + 3) * 8
	d.Flips = func(int) []int { return []int{eccBit + 5} }
	input, clean := d.Write(t)

	paths := outPaths(t, input)
	opts := testOptions()
	rep, err := Run(context.Background(), openHandle(t, d.Params), d.Layout, opts, paths, nil)
	require.NoError(t, err)
	require.EqualValues(t, d.Pages, rep.TotalBitflips)
	require.Zero(t, rep.PagesTouched, "ECC-only flips leave the data as read")
	raw, err := os.ReadFile(paths.Raw)
	require.NoError(t, err)
	require.NotEqual(t, clean, raw)

	paths = outPaths(t, input)
	opts.RewriteECC = true
	rep, err = Run(context.Background(), openHandle(t, d.Params), d.Layout, opts, paths, nil)
	require.NoError(t, err)
	require.EqualValues(t, d.Pages, rep.PagesTouched)
	raw, err = os.ReadFile(paths.Raw)
	require.NoError(t, err)
	require.Equal(t, clean, raw)
}

func TestFixOffset(t *testing.T) {
	d := nandtest.Default()
	d.Header = 512
	input, clean := d.Write(t)
	paths := outPaths(t, input)

	opts := testOptions()
	opts.Offset = 512
	rep, err := Run(context.Background(), openHandle(t, d.Params), d.Layout, opts, paths, nil)
	require.NoError(t, err)
	require.EqualValues(t, d.Pages, rep.TotalPages)

	raw, err := os.ReadFile(paths.Raw)
	require.NoError(t, err)
	require.Equal(t, clean[512:], raw)
}

func TestFixErrors(t *testing.T) {
	d := nandtest.Default()
	d.Pages = 3
	input, _ := d.Write(t)
	h := openHandle(t, d.Params)

	// trailing garbage
	f, err := os.OpenFile(input, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	fx := New()
	_, err = fx.Run(context.Background(), h, d.Layout, testOptions(), outPaths(t, input), nil)
	require.ErrorIs(t, err, ErrMisalignedFile)
	require.Equal(t, StateFatal, fx.State())

	_, err = Run(context.Background(), h, d.Layout, testOptions(), outPaths(t, filepath.Join(t.TempDir(), "missing.bin")), nil)
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := d.Layout
	bad.ECCOffset = 12
	_, err = Run(context.Background(), h, bad, testOptions(), outPaths(t, input), nil)
	require.ErrorIs(t, err, nand.ErrInvalidLayout)

	wide := openHandle(t, codec.Params{Poly: 0x5803, M: 14, T: 8})
	_, err = Run(context.Background(), wide, d.Layout, testOptions(), outPaths(t, input), nil)
	require.ErrorIs(t, err, codec.ErrECCLengthMismatch)
}

func TestFixCancelled(t *testing.T) {
	d := nandtest.Default()
	input, _ := d.Write(t)
	paths := outPaths(t, input)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fx := New()
	_, err := fx.Run(ctx, openHandle(t, d.Params), d.Layout, testOptions(), paths, nil)
	require.True(t, errors.Is(err, context.Canceled), "%v", err)
	require.Equal(t, StateCancelled, fx.State())

	// partial output stays on disk
	_, err = os.Stat(paths.Data)
	require.NoError(t, err)
}

func TestAssessBands(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		checked, uncorrectable int64
		want                   Level
	}{
		{0, 0, QualityNoData},
		{1000, 0, QualityClean},
		{1000, 19, QualityMinor},
		{1000, 20, QualitySuspect},
		{1000, 199, QualitySuspect},
		{1000, 200, QualityWrong},
		{10, 10, QualityWrong},
	}
	for _, c := range cases {
		r := &Report{Checked: c.checked, Uncorrectable: c.uncorrectable}
		a := Assess(r, th)
		require.Equal(t, c.want, a.Level, "%d/%d", c.uncorrectable, c.checked)
		if c.want >= QualityMinor {
			require.Equal(t, Hints, a.Hints)
		}
	}

	loose := Thresholds{Suspect: 0.5, Wrong: 0.9}
	require.Equal(t, QualityMinor, Assess(&Report{Checked: 10, Uncorrectable: 4}, loose).Level)
}

func TestReportJSON(t *testing.T) {
	d := nandtest.Default()
	d.Erased = nil
	d.Flips = func(p int) []int {
		if p == 5 || p == 9 {
			return []int{1, 100, 900, 2000, 3000, 4000}
		}
		return nil
	}
	input, _ := d.Write(t)
	rep, err := Run(context.Background(), openHandle(t, d.Params), d.Layout, testOptions(), outPaths(t, input), nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reports", "fix.json")
	require.NoError(t, rep.ExportJSON(path, DefaultThresholds()))

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	var got struct {
		RunID    string  `json:"run_id"`
		Checked  int64   `json:"checked"`
		BadPages []int64 `json:"bad_pages"`
		Quality  string  `json:"quality"`
		Params   struct {
			Poly      uint32 `json:"poly"`
			Transform string `json:"transform"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal(buf, &got))
	require.Equal(t, rep.RunID.String(), got.RunID)
	require.EqualValues(t, 256, got.Checked)
	require.Equal(t, []int64{5, 9}, got.BadPages)
	require.Equal(t, "minor", got.Quality)
	require.Equal(t, uint32(0x5803), got.Params.Poly)
	require.Equal(t, "none", got.Params.Transform)
}

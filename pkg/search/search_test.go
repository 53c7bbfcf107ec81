package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/OpenTraceLab/OpenTraceNAND/internal/nandtest"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// narrowConfig keeps the search space small enough for unit tests while
// still containing decoys: a second m=14 polynomial, a larger t, a second
// spare size and sector size.
func narrowConfig(workers int) *Config {
	cfg := DefaultConfig()
	cfg.Polys = []uint32{0x402B, 0x5803}
	cfg.Ts = []int{8, 4}
	cfg.Geometries = []Geometry{{PageSize: 2048, SpareSizes: []int{64, 128}}}
	cfg.SectorSizes = []int{512, 1024}
	cfg.LayoutPages = 32
	cfg.ParamPages = 16
	cfg.MaxLayouts = 2
	cfg.MaxUncorrectable = 8
	cfg.Workers = workers
	cfg.Logger = quietLogger()
	return cfg
}

func checkWinner(t *testing.T, r Result) {
	t.Helper()
	c := r.Candidate
	if c.Layout != nandtest.Layout {
		t.Fatalf("layout = %s, want %s", c.Layout, nandtest.Layout)
	}
	if c.Offset != 0 {
		t.Fatalf("offset = %d", c.Offset)
	}
	want := nandtest.Params
	if c.Params != want {
		t.Fatalf("params = %s, want %s", c.Params, want)
	}
	if r.Score.Checked == 0 || r.Score.Uncorrectable != 0 {
		t.Fatalf("score = %s", r.Score)
	}
}

func TestRunFindsParameters(t *testing.T) {
	path, _ := nandtest.Default().Write(t)

	progress := make(chan Progress, 256)
	out, err := Run(context.Background(), path, narrowConfig(2), progress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	checkWinner(t, out.Best)
	if !reflect.DeepEqual(out.Top[0], out.Best) {
		t.Fatalf("leaderboard head differs from best")
	}
	if len(out.Layouts) == 0 || out.Layouts[0].Offset != 0 || out.Layouts[0].SpareSize != 64 {
		t.Fatalf("top layout = %+v", out.Layouts)
	}

	close(progress)
	var last Progress
	for p := range progress {
		if p.Percent < last.Percent {
			t.Fatalf("progress went backwards: %v after %v", p.Percent, last.Percent)
		}
		last = p
	}
	if last.Phase != PhaseDone || last.Percent != 100 {
		t.Fatalf("last progress = %+v", last)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	path, _ := nandtest.Default().Write(t)

	a, err := Run(context.Background(), path, narrowConfig(1), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := Run(context.Background(), path, narrowConfig(4), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("runs differ:\n%+v\n%+v", a.Best, b.Best)
	}
}

func TestRunWithHeader(t *testing.T) {
	d := nandtest.Default()
	d.Header = 1024
	path, _ := d.Write(t)

	out, err := Run(context.Background(), path, narrowConfig(2), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Best.Candidate.Offset != 1024 {
		t.Fatalf("offset = %d, want 1024", out.Best.Candidate.Offset)
	}
	if out.Best.Candidate.Params != nandtest.Params {
		t.Fatalf("params = %s", out.Best.Candidate.Params)
	}
}

func TestRunCancelled(t *testing.T) {
	path, _ := nandtest.Default().Write(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, path, narrowConfig(2), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunCodecRejectsEverything(t *testing.T) {
	path, _ := nandtest.Default().Write(t)
	sim := codec.NewSimOracle(nil)
	sim.OnOpen = func(int, int, uint32, bool) error { return errors.New("unsupported") }

	cfg := narrowConfig(2)
	cfg.Oracle = sim
	if _, err := Run(context.Background(), path, cfg, nil); !errors.Is(err, ErrNoWorkingParameters) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunReleasesEngines(t *testing.T) {
	path, _ := nandtest.Default().Write(t)
	sim := codec.NewSimOracle(nil)
	cfg := narrowConfig(3)
	cfg.Oracle = sim
	if _, err := Run(context.Background(), path, cfg, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if opens, _ := sim.Counts(); opens == 0 {
		t.Fatalf("no engines opened")
	}
	if live := sim.Live(); live != 0 {
		t.Fatalf("%d engines leaked", live)
	}
}

func TestCandidateOffsets(t *testing.T) {
	got := CandidateOffsets(10*2112+100, 2112)
	want := []int64{0, 100, 512, 1024, 1536, 2048}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("offsets = %v, want %v", got, want)
	}
	got = CandidateOffsets(4*8640, 8640)
	if len(got) != 8 || got[len(got)-1] != 3584 {
		t.Fatalf("offsets = %v", got)
	}
	if CandidateOffsets(100, 0) != nil {
		t.Fatalf("zero raw page gave offsets")
	}
}

func TestECCOffsetsAndExtras(t *testing.T) {
	if got, want := ECCOffsets(16, 7), []int{9, 8, 0, 1, 2, 4}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ECCOffsets(16, 7) = %v, want %v", got, want)
	}
	if got := ECCOffsets(8, 13); got != nil {
		t.Fatalf("ECCOffsets(8, 13) = %v", got)
	}
	if got, want := ExtraByteCounts(9), []int{0, 9, 8, 7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtraByteCounts(9) = %v, want %v", got, want)
	}
	if got, want := ExtraByteCounts(1), []int{0, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtraByteCounts(1) = %v, want %v", got, want)
	}
}

func TestParamCandidatesOrder(t *testing.T) {
	cfg := narrowConfig(1)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	lc := LayoutCandidate{PageSize: 2048, SpareSize: 64, SectorSize: 512, ChunkSize: 16}
	cands := ParamCandidates(lc, cfg)
	if len(cands) == 0 {
		t.Fatalf("no candidates")
	}
	for i, c := range cands {
		if c.Index != i {
			t.Fatalf("candidate %d has index %d", i, c.Index)
		}
		if err := c.Params.CheckLayout(c.Layout); err != nil {
			t.Fatalf("candidate %s: %v", c, err)
		}
		if i > 0 && c.Params.T < cands[i-1].Params.T {
			t.Fatalf("t not ascending at %d", i)
		}
		if c.Params.SwapBits {
			t.Fatalf("swap candidate without TrySwapBits")
		}
	}
	if cands[0].Params.T != 4 || cands[0].Params.Poly != 0x402B {
		t.Fatalf("first candidate = %s", cands[0])
	}
}

func TestFilter(t *testing.T) {
	f, err := CompileFilter(`m == 14 && transform in ["none", "inv"] && extra <= 8`)
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	c := ParamCandidate{Layout: nandtest.Layout, Params: nandtest.Params}
	if ok, err := f.Match(c); err != nil || !ok {
		t.Fatalf("Match = %v, %v", ok, err)
	}
	c.Params.Transform = nand.TransformBitReverse
	if ok, _ := f.Match(c); ok {
		t.Fatalf("bitrev matched")
	}

	for _, bad := range []string{"m + 1", "bogus == 1", "m =="} {
		if _, err := CompileFilter(bad); err == nil {
			t.Fatalf("CompileFilter(%q) succeeded", bad)
		}
	}

	cfg := narrowConfig(1)
	cfg.Filter = "extra == 0 && !swap"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	lc := LayoutCandidate{PageSize: 2048, SpareSize: 64, SectorSize: 512, ChunkSize: 16}
	for _, c := range ParamCandidates(lc, cfg) {
		if c.Params.ExtraBytes != 0 {
			t.Fatalf("filter let %s through", c)
		}
	}
}

func TestLess(t *testing.T) {
	base := Result{Candidate: ParamCandidate{LayoutScore: 0.5}, Score: Score{Checked: 10, OK: 10}}

	worse := base
	worse.Score = Score{Checked: 10, OK: 9, Uncorrectable: 1}
	if !Less(base, worse) || Less(worse, base) {
		t.Fatalf("lower ratio must win")
	}

	sparser := base
	sparser.Candidate.LayoutScore = 0.6
	if !Less(sparser, base) {
		t.Fatalf("higher layout score must win a ratio tie")
	}

	flips := base
	flips.Score.Bitflips = 3
	if !Less(flips, base) {
		t.Fatalf("more bitflips must win a tie")
	}

	later := base
	later.Candidate.Index = 1
	if !Less(base, later) || Less(later, base) {
		t.Fatalf("enumeration order must break the final tie")
	}

	unchecked := Result{}
	if !Less(worse, unchecked) {
		t.Fatalf("unchecked result must lose")
	}

	top := Leaderboard([]Result{later, worse, base}, 2)
	if len(top) != 2 || !reflect.DeepEqual(top[0], base) || !reflect.DeepEqual(top[1], later) {
		t.Fatalf("leaderboard = %+v", top)
	}
}

func TestQuickTest(t *testing.T) {
	path, _ := nandtest.Default().Write(t)
	cfg := narrowConfig(2)
	cfg.Ts = []int{4, 8}

	res, err := QuickTest(context.Background(), path, nandtest.Layout, 0, nil, cfg, nil)
	if err != nil {
		t.Fatalf("QuickTest: %v", err)
	}
	checkWinner(t, res.Best)
	// Two polynomials, one usable t, four transforms, four extra counts.
	if len(res.Ranked) != 2*4*4 {
		t.Fatalf("ranked %d candidates", len(res.Ranked))
	}

	cfg.MaxCandidates = 5
	capped, err := QuickTest(context.Background(), path, nandtest.Layout, 0, nil, cfg, nil)
	if err != nil {
		t.Fatalf("QuickTest: %v", err)
	}
	if len(capped.Ranked) != 5 {
		t.Fatalf("capped to %d", len(capped.Ranked))
	}
	again := QuickCandidates(nandtest.Layout, 0, nil, cfg)
	if !reflect.DeepEqual(again, QuickCandidates(nandtest.Layout, 0, nil, cfg)) {
		t.Fatalf("capped candidates are not reproducible")
	}
}

func TestQuickCandidatesEmptyExtras(t *testing.T) {
	cfg := narrowConfig(1)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := QuickCandidates(nandtest.Layout, 0, nil, cfg)
	if len(want) == 0 {
		t.Fatalf("no candidates for nil extras")
	}
	got := QuickCandidates(nandtest.Layout, 0, []int{}, cfg)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("empty extras gave %d candidates, nil gave %d", len(got), len(want))
	}
}

func TestQuickTestErrors(t *testing.T) {
	path, _ := nandtest.Default().Write(t)

	cfg := narrowConfig(1)
	cfg.Ts = []int{8}
	if _, err := QuickTest(context.Background(), path, nandtest.Layout, 0, nil, cfg, nil); !errors.Is(err, ErrNoSafeCandidates) {
		t.Fatalf("err = %v", err)
	}

	cfg = narrowConfig(1)
	if _, err := QuickTest(context.Background(), path, nandtest.Layout, 1, nil, cfg, nil); !errors.Is(err, nand.ErrMisalignedFile) {
		t.Fatalf("misaligned err = %v", err)
	}
}

func TestDetect(t *testing.T) {
	d := nandtest.Default()
	path, _ := d.Write(t)

	cfg := DefaultConfig()
	cfg.Logger = quietLogger()
	det, err := Detect(context.Background(), path, nandtest.Layout, 0, 0x5803, 64, cfg)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.Params != nandtest.Params {
		t.Fatalf("params = %s", det.Params)
	}
	if det.Samples != 64*4 {
		t.Fatalf("samples = %d", det.Samples)
	}
	// Erased sectors are decoded too and count as failures.
	if det.Score.Uncorrectable > int64(4*d.ErasedCount()) || det.Score.Bitflips < int64(d.FlipCount()) {
		t.Fatalf("score = %s", det.Score)
	}

	if _, err := Detect(context.Background(), path, nandtest.Layout, 0, 0x5803, 10, cfg); !errors.Is(err, ErrTooFewSamples) {
		t.Fatalf("few pages err = %v", err)
	}
}

func TestDetectTs(t *testing.T) {
	if got, want := DetectTs(7, 14), []int{3, 4, 5, 2, 8, 16}; !reflect.DeepEqual(got, want) {
		t.Fatalf("DetectTs(7, 14) = %v, want %v", got, want)
	}
	if got, want := DetectTs(1, 14), []int{1, 2, 4, 8, 16}; !reflect.DeepEqual(got, want) {
		t.Fatalf("DetectTs(1, 14) = %v, want %v", got, want)
	}
	if got, want := DetectExtras(9), []int{0, 4, 8, 9}; !reflect.DeepEqual(got, want) {
		t.Fatalf("DetectExtras(9) = %v, want %v", got, want)
	}
	if got, want := DetectExtras(2), []int{0, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("DetectExtras(2) = %v, want %v", got, want)
	}
}

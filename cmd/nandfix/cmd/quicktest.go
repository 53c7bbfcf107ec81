package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/bch"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/search"
)

var (
	// Flags for quicktest command
	quickSettings      settingsFlags
	quickPolys         []string
	quickTs            []int
	quickTransforms    []string
	quickExtras        []int
	quickSwap          bool
	quickPages         int
	quickSeed          int64
	quickMaxCandidates int
	quickTop           int
	quickWorkers       int
	quickWhere         string
	quickOutputJSON    string
)

var quicktestCmd = &cobra.Command{
	Use:   "quicktest <dump>",
	Short: "Try many ECC parameter sets on a known layout",
	Long: `Evaluate polynomials, t values, transforms and extra byte counts against a
fixed layout and rank them by uncorrectable ratio.

The polynomials default to the catalogue plus --poly; t defaults to the
common controller values plus --t. When more than --max-candidates sets
remain, a seeded shuffle picks which ones run.

Examples:
  nandfix quicktest dump.bin --profile brcm-2k-bch4
  nandfix quicktest dump.bin --page 4096 --spare 224 --chunk 28 --ecc-offset 14 --ecc-length 14 --ts 8`,
	Args: cobra.ExactArgs(1),
	RunE: runQuicktest,
}

func init() {
	rootCmd.AddCommand(quicktestCmd)

	f := quicktestCmd.Flags()
	quickSettings.register(f)
	f.StringSliceVar(&quickPolys, "polys", nil, "polynomials to try (default: catalogue plus --poly)")
	f.IntSliceVar(&quickTs, "ts", nil, "t values to try (default: --t plus 2,4,8,12,16,24,32,64)")
	f.StringSliceVar(&quickTransforms, "transforms", nil, "transforms to try (default: all)")
	f.IntSliceVar(&quickExtras, "extras", nil, "extra byte counts to try (default: 0 and ecc offset minus 0..2)")
	f.BoolVar(&quickSwap, "try-swap", false, "also try LSB-first bit order")
	f.IntVar(&quickPages, "pages", 256, "pages sampled")
	f.Int64Var(&quickSeed, "seed", 123, "sampling seed")
	f.IntVar(&quickMaxCandidates, "max-candidates", 2000, "cap on evaluated parameter sets")
	f.IntVar(&quickTop, "top", 10, "results to show")
	f.IntVarP(&quickWorkers, "workers", "j", 0, "parallel candidate groups (default: CPU count)")
	f.StringVar(&quickWhere, "where", "", "CEL filter over candidate variables (see 'nandfix search --help')")
	f.StringVar(&quickOutputJSON, "json", "", "write the ranked results to this JSON file")
}

func runQuicktest(cmd *cobra.Command, args []string) error {
	start := time.Now()
	l, p, offset, err := quickSettings.resolve(cmd.Flags())
	if err != nil {
		return err
	}

	cfg := search.DefaultConfig()
	cfg.Polys = append(bch.Polys(), p.Poly)
	if len(quickPolys) > 0 {
		if cfg.Polys, err = parsePolys(quickPolys); err != nil {
			return err
		}
	}
	cfg.Ts = append([]int{p.T}, search.DefaultTs...)
	if len(quickTs) > 0 {
		cfg.Ts = quickTs
	}
	if len(quickTransforms) > 0 {
		if cfg.Transforms, err = parseTransforms(quickTransforms); err != nil {
			return err
		}
	}
	cfg.TrySwapBits = quickSwap
	cfg.ParamPages = quickPages
	cfg.Seed = quickSeed
	cfg.MaxCandidates = quickMaxCandidates
	if quickWorkers > 0 {
		cfg.Workers = quickWorkers
	}
	cfg.Filter = quickWhere

	ctx, cancel := commandContext()
	defer cancel()

	banner("Quick test")
	fmt.Printf("Dump:    %s\n", args[0])
	fmt.Printf("Layout:  %s offset=%d\n\n", l, offset)

	progressCh := make(chan search.Progress, 16)
	done := make(chan struct{})
	go displaySearchProgress(progressCh, done)
	res, err := search.QuickTest(ctx, args[0], l, offset, quickExtras, cfg, progressCh)
	close(progressCh)
	<-done
	if err != nil {
		return fmt.Errorf("quick test failed: %w", err)
	}

	fmt.Println()
	fmt.Printf("Evaluated %d parameter sets in %s\n\n", len(res.Ranked), time.Since(start).Round(time.Millisecond))
	for i, r := range search.Leaderboard(res.Ranked, quickTop) {
		fmt.Printf("  [%d] %s\n      %s\n", i+1, r.Candidate.Params, r.Score)
	}
	fmt.Println()
	fmt.Printf("Best: %s\n", res.Best.Candidate.Params)
	fmt.Printf("      %s\n", res.Best.Score)

	if quickOutputJSON != "" {
		if err := writeJSON(quickOutputJSON, res); err != nil {
			return err
		}
		fmt.Printf("\n✓ Results saved to: %s\n", quickOutputJSON)
	}
	return nil
}

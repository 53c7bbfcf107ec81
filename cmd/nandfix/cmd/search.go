package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/search"
)

var (
	// Flags for search command
	searchPolys        []string
	searchTs           []int
	searchTransforms   []string
	searchSwap         bool
	searchGeometries   []string
	searchNandID       string
	searchSectors      []int
	searchOffsets      []int64
	searchLayoutPages  int
	searchParamPages   int
	searchSeed         int64
	searchMaxLayouts   int
	searchMaxUncorrect int64
	searchTop          int
	searchWorkers      int
	searchWhere        string
	searchOutputJSON   string
)

var searchCmd = &cobra.Command{
	Use:   "search <dump>",
	Short: "Infer page layout and BCH parameters of a raw dump",
	Long: `Search a raw NAND dump for its page layout and ECC parameters.

The search:
  1. Scores every catalogue geometry (page, spare, sector size) at a few
     candidate file offsets by how erased (0xFF) the spare area looks
     compared with the data area
  2. Samples pages of the best layouts and decodes them with every
     plausible polynomial, t, ECC position, transform and extra byte count
  3. Ranks the winners by uncorrectable ratio

The result is a suggestion. A dump with dense spare metadata can fool the
layout heuristic, so confirm it with 'nandfix quicktest' or a fix run.

Examples:
  nandfix search dump.bin
  nandfix search dump.bin --poly 0x5803 --t 4,8 --swap
  nandfix search dump.bin --where 'm == 14 && extra == 0' --json result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	f := searchCmd.Flags()
	f.StringSliceVar(&searchPolys, "poly", nil, "polynomials to try (default: catalogue, see 'nandfix polys')")
	f.IntSliceVar(&searchTs, "t", nil, "t values to try (default: 2,4,8,12,16,24,32,64)")
	f.StringSliceVar(&searchTransforms, "transform", nil, "transforms to try (default: all)")
	f.BoolVar(&searchSwap, "swap", false, "also try LSB-first bit order")
	f.StringSliceVar(&searchGeometries, "geometry", nil, "page+spare sizes to try, e.g. 2048+64 (default: common parts)")
	f.StringVar(&searchNandID, "nand-id", "", "READ ID bytes of the chip, e.g. 'EC DA 10 95 44'; restricts the search to its geometry")
	f.IntSliceVar(&searchSectors, "sector", nil, "sector sizes to try (default: 512,1024)")
	f.Int64SliceVar(&searchOffsets, "offset", nil, "file offsets to try (default: derived from file size)")
	f.IntVar(&searchLayoutPages, "layout-pages", 64, "pages sampled per layout score")
	f.IntVar(&searchParamPages, "pages", 128, "pages sampled per parameter search")
	f.Int64Var(&searchSeed, "seed", 123, "sampling seed")
	f.IntVar(&searchMaxLayouts, "max-layouts", 6, "layouts that get a parameter search")
	f.Int64Var(&searchMaxUncorrect, "max-uncorrectable", 500, "stop a candidate after this many failures (0 = never)")
	f.IntVar(&searchTop, "top", 5, "results to show")
	f.IntVarP(&searchWorkers, "workers", "j", 0, "parallel candidate groups (default: CPU count)")
	f.StringVar(&searchWhere, "where", "", "CEL filter over m, t, poly, extra, ecc_offset, ecc_length, page, spare, sector, chunk, offset, swap, transform")
	f.StringVar(&searchOutputJSON, "json", "", "write the outcome to this JSON file")
}

func searchConfig() (*search.Config, error) {
	cfg := search.DefaultConfig()
	if len(searchPolys) > 0 {
		polys, err := parsePolys(searchPolys)
		if err != nil {
			return nil, err
		}
		cfg.Polys = polys
	}
	if len(searchTs) > 0 {
		cfg.Ts = searchTs
	}
	if len(searchTransforms) > 0 {
		tfs, err := parseTransforms(searchTransforms)
		if err != nil {
			return nil, err
		}
		cfg.Transforms = tfs
	}
	if len(searchGeometries) > 0 {
		geoms, err := parseGeometries(searchGeometries)
		if err != nil {
			return nil, err
		}
		cfg.Geometries = geoms
	}
	if searchNandID != "" {
		info, err := lookupNandID(searchNandID)
		if err != nil {
			return nil, fmt.Errorf("cannot derive geometry from --nand-id: %w", err)
		}
		g := info.Geometry
		cfg.Geometries = []search.Geometry{{PageSize: g.PageSize, SpareSizes: []int{g.SpareSize}}}
	}
	if len(searchSectors) > 0 {
		cfg.SectorSizes = searchSectors
	}
	if len(searchOffsets) > 0 {
		cfg.Offsets = searchOffsets
	}
	cfg.TrySwapBits = searchSwap
	cfg.LayoutPages = searchLayoutPages
	cfg.ParamPages = searchParamPages
	cfg.Seed = searchSeed
	cfg.MaxLayouts = searchMaxLayouts
	cfg.MaxUncorrectable = searchMaxUncorrect
	cfg.Leaderboard = searchTop
	if searchWorkers > 0 {
		cfg.Workers = searchWorkers
	}
	cfg.Filter = searchWhere
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	start := time.Now()
	cfg, err := searchConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	banner("Searching layout and ECC parameters")
	fmt.Printf("Dump:      %s\n", args[0])
	fmt.Printf("Seed:      %d, %d layout pages, %d parameter pages\n", cfg.Seed, cfg.LayoutPages, cfg.ParamPages)
	fmt.Printf("Workers:   %d\n\n", cfg.Workers)

	progressCh := make(chan search.Progress, 16)
	done := make(chan struct{})
	go displaySearchProgress(progressCh, done)
	out, err := search.Run(ctx, args[0], cfg, progressCh)
	close(progressCh)
	<-done
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Println()
	printOutcome(out, time.Since(start))

	if searchOutputJSON != "" {
		if err := writeJSON(searchOutputJSON, out); err != nil {
			return err
		}
		fmt.Printf("\n✓ Outcome saved to: %s\n", searchOutputJSON)
	}
	return nil
}

func printOutcome(out *search.Outcome, elapsed time.Duration) {
	fmt.Println("Layout candidates (top scores):")
	for _, lc := range out.Layouts {
		fmt.Printf("   %s\n", lc)
	}
	fmt.Println()

	banner("Top results")
	for i, r := range out.Top {
		c := r.Candidate
		fmt.Printf("  [%d] %s offset=%d score=%.3f\n", i+1, c.Layout, c.Offset, c.LayoutScore)
		fmt.Printf("      %s\n", c.Params)
		fmt.Printf("      %s\n", r.Score)
	}
	fmt.Println()

	best := out.Best.Candidate
	fmt.Println("Suggested settings:")
	fmt.Printf("  layout:  %s\n", best.Layout)
	fmt.Printf("  params:  %s\n", best.Params)
	fmt.Printf("  stats:   %s\n", out.Best.Score)
	if best.Offset == 0 {
		fmt.Println("  offset:  aligned (0)")
	} else {
		fmt.Printf("  offset:  %d bytes (header or trailer?), pass --offset %d to fix\n", best.Offset, best.Offset)
	}
	fmt.Printf("  elapsed: %s\n\n", elapsed.Round(time.Millisecond))

	fmt.Println("To correct the dump:")
	fmt.Printf("  nandfix fix <dump> --page %d --spare %d --sector %d --chunk %d --ecc-offset %d --ecc-length %d \\\n",
		best.Layout.PageSize, best.Layout.SpareSize, best.Layout.SectorSize, best.Layout.ChunkSize,
		best.Layout.ECCOffset, best.Layout.ECCLength)
	fmt.Printf("    --poly 0x%X --t %d --extra %d --transform %s", best.Params.Poly, best.Params.T, best.Params.ExtraBytes, best.Params.Transform)
	if best.Params.SwapBits {
		fmt.Print(" --swap")
	}
	if best.Offset != 0 {
		fmt.Printf(" --offset %d", best.Offset)
	}
	fmt.Println(" -o data.bin")
}

// writeJSON saves v as indented JSON, creating the directory if needed.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	return nil
}

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/fix"
)

var (
	// Flags for fix command
	fixSettings      settingsFlags
	fixOutput        string
	fixOutputRaw     string
	fixSkipErased    bool
	fixRewriteECC    bool
	fixDirectIO      bool
	fixReportJSON    string
	fixSuspect       float64
	fixWrong         float64
	fixProgressEvery int
)

var fixCmd = &cobra.Command{
	Use:   "fix <dump>",
	Short: "Correct bit errors across a whole dump",
	Long: `Stream the dump page by page, decode every ECC step and write the corrected
data area. Erased (all 0xFF) sectors are skipped by default. With --out-raw
the corrected data is also written back into a copy of the full raw image,
and --rewrite-ecc replaces the stored ECC with freshly computed bytes.

The run ends with a quality verdict based on the share of uncorrectable
sectors; a high share usually means the settings are wrong.

Examples:
  nandfix fix dump.bin --profile brcm-2k-bch4 -o data.bin
  nandfix fix dump.bin --poly 0x402B --t 8 --ecc-length 14 --chunk 28 --ecc-offset 14 \
      --out-raw fixed_raw.bin --rewrite-ecc --report report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runFix,
}

func init() {
	rootCmd.AddCommand(fixCmd)

	f := fixCmd.Flags()
	fixSettings.register(f)
	f.StringVarP(&fixOutput, "output", "o", "", "corrected data output (default: <dump>_data.bin)")
	f.StringVar(&fixOutputRaw, "out-raw", "", "also write the corrected raw image here")
	f.BoolVar(&fixSkipErased, "skip-erased", true, "do not decode all-0xFF sectors")
	f.BoolVar(&fixRewriteECC, "rewrite-ecc", false, "replace stored ECC with the ECC of the corrected data")
	f.BoolVar(&fixDirectIO, "direct-io", false, "read the dump with O_DIRECT where supported")
	f.StringVar(&fixReportJSON, "report", "", "write the run report to this JSON file")
	f.Float64Var(&fixSuspect, "suspect", fix.DefaultThresholds().Suspect, "uncorrectable ratio that makes the result suspect")
	f.Float64Var(&fixWrong, "wrong", fix.DefaultThresholds().Wrong, "uncorrectable ratio that marks the settings as wrong")
	f.IntVar(&fixProgressEvery, "progress-every", 64, "pages between progress updates")
}

func defaultDataPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + "_data.bin"
}

func runFix(cmd *cobra.Command, args []string) error {
	l, p, offset, err := fixSettings.resolve(cmd.Flags())
	if err != nil {
		return err
	}
	th := fix.Thresholds{Suspect: fixSuspect, Wrong: fixWrong}
	if th.Suspect < 0 || th.Wrong < th.Suspect {
		return fmt.Errorf("invalid thresholds: suspect=%g wrong=%g", th.Suspect, th.Wrong)
	}

	paths := fix.Paths{Input: args[0], Data: fixOutput, Raw: fixOutputRaw}
	if paths.Data == "" {
		paths.Data = defaultDataPath(args[0])
	}
	opts := fix.DefaultOptions()
	opts.Offset = offset
	opts.SkipErased = fixSkipErased
	opts.RewriteECC = fixRewriteECC
	opts.DirectIO = fixDirectIO
	if fixProgressEvery > 0 {
		opts.ProgressEvery = fixProgressEvery
	}

	h, err := codec.Open(codec.BCH{}, p)
	if err != nil {
		return fmt.Errorf("failed to open codec: %w", err)
	}
	defer h.Close()

	ctx, cancel := commandContext()
	defer cancel()

	banner("Correcting dump")
	fmt.Printf("Dump:    %s\n", paths.Input)
	fmt.Printf("Layout:  %s offset=%d\n", l, offset)
	fmt.Printf("Params:  %s\n", p)
	fmt.Printf("Output:  %s\n", paths.Data)
	if paths.Raw != "" {
		fmt.Printf("Raw:     %s (rewrite ecc: %v)\n", paths.Raw, opts.RewriteECC)
	}
	fmt.Println()

	progressCh := make(chan fix.Progress, 16)
	done := make(chan struct{})
	go displayFixProgress(progressCh, done)
	rep, err := fix.Run(ctx, h, l, opts, paths, progressCh)
	close(progressCh)
	<-done
	if err != nil {
		return fmt.Errorf("fix failed: %w", err)
	}

	fmt.Println()
	fmt.Printf("Run %s finished in %s\n", rep.RunID, rep.Finished.Sub(rep.Started).Round(time.Millisecond))
	fmt.Printf("  pages:          %d\n", rep.TotalPages)
	fmt.Printf("  erased skipped: %d sectors\n", rep.ErasedSkipped)
	fmt.Printf("  checked:        %d sectors\n", rep.Checked)
	if bad := rep.BadPageList(); len(bad) > 0 {
		fmt.Printf("  bad pages:      %s\n", formatPages(bad, 16))
	}
	fmt.Println()
	fmt.Print(fix.Assess(rep, th).Format(rep))

	if fixReportJSON != "" {
		if err := rep.ExportJSON(fixReportJSON, th); err != nil {
			return err
		}
		fmt.Printf("\n✓ Report saved to: %s\n", fixReportJSON)
	}
	return nil
}

// formatPages lists up to limit page indices.
func formatPages(pages []int64, limit int) string {
	var b strings.Builder
	for i, pg := range pages {
		if i == limit {
			fmt.Fprintf(&b, " ... (%d more)", len(pages)-limit)
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", pg)
	}
	return b.String()
}

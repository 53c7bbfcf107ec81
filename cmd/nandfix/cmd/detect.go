package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/search"
)

var (
	// Flags for detect command
	detectSettings settingsFlags
	detectPages    int
)

var detectCmd = &cobra.Command{
	Use:   "detect <dump>",
	Short: "Guess t, transform and extra bytes for a known layout and polynomial",
	Long: `Read the first pages of the dump and find the t, ECC transform and extra
byte count that leave the fewest uncorrectable sectors. Layout and polynomial
come from the flags or a profile; --poly 0 selects the Linux m=14 polynomial.

Examples:
  nandfix detect dump.bin --poly 0x5803
  nandfix detect dump.bin --profile linux-4k-bch8 --pages 512`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectSettings.register(detectCmd.Flags())
	detectCmd.Flags().IntVar(&detectPages, "pages", 256, "leading pages to read")
}

func runDetect(cmd *cobra.Command, args []string) error {
	poly, err := parsePoly(detectSettings.poly)
	if err != nil {
		return err
	}
	if poly == 0 {
		// resolve wants a real polynomial; Detect picks the default itself
		detectSettings.poly = "0x402B"
	}
	l, p, offset, err := detectSettings.resolve(cmd.Flags())
	if err != nil {
		return err
	}
	if poly == 0 {
		p.Poly = 0
	}

	ctx, cancel := commandContext()
	defer cancel()

	banner("Auto-detect")
	fmt.Printf("Dump:    %s\n", args[0])
	fmt.Printf("Layout:  %s offset=%d\n\n", l, offset)

	det, err := search.Detect(ctx, args[0], l, offset, p.Poly, detectPages, search.DefaultConfig())
	if err != nil {
		return fmt.Errorf("detect failed: %w", err)
	}

	fmt.Printf("Detected: %s\n", det.Params)
	fmt.Printf("Score:    %s\n", det.Score)
	fmt.Printf("Samples:  %d sectors\n", det.Samples)
	if det.Score.Uncorrectable > 0 {
		fmt.Println("\n⚠ Some sectors failed; erased pages are decoded too and always count as failures here.")
	}
	return nil
}

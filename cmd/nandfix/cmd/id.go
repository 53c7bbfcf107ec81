package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/chipid"
)

var idCmd = &cobra.Command{
	Use:   "id <bytes>...",
	Short: "Decode NAND READ ID bytes into a page geometry",
	Long: `Decode the bytes returned by the NAND READ ID (0x90) command. The page and
spare sizes can seed 'nandfix search --nand-id' or the --page/--spare flags.

Examples:
  nandfix id EC DA 10 95 44
  nandfix id 2c:dc:90:95:56`,
	Args: cobra.MinimumNArgs(1),
	RunE: runID,
}

func init() {
	rootCmd.AddCommand(idCmd)
}

func lookupNandID(s string) (chipid.DeviceInfo, error) {
	id, err := chipid.ParseIDString(s)
	if err != nil {
		return chipid.DeviceInfo{}, err
	}
	return chipid.Lookup(id.Raw)
}

func runID(cmd *cobra.Command, args []string) error {
	info, err := lookupNandID(strings.Join(args, " "))
	if err != nil {
		if info.ID.Raw != nil {
			fmt.Printf("Manufacturer: %s\n", info.Manufacturer.Name)
		}
		return err
	}

	g := info.Geometry
	fmt.Printf("ID:           %s\n", info.ID)
	fmt.Printf("Manufacturer: %s\n", info.Manufacturer.Name)
	fmt.Printf("Device:       %s\n", info.Name)
	fmt.Printf("Page:         %d + %d spare (%d raw)\n", g.PageSize, g.SpareSize, g.RawPageSize())
	fmt.Printf("Block:        %d KiB\n", g.BlockSize/1024)
	fmt.Printf("Bus:          x%d\n", g.BusWidth)
	fmt.Printf("\nnandfix search <dump> --geometry %d+%d\n", g.PageSize, g.SpareSize)
	return nil
}

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/bch"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
)

var polysCmd = &cobra.Command{
	Use:   "polys",
	Short: "List the polynomial catalogue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "POLY\tM\tN\tNAME\tNOTES")
		for _, p := range bch.Presets {
			fmt.Fprintf(w, "0x%X\t%d\t%d\t%s\t%s\n", p.Poly, p.M, codec.CodeLength(p.M), p.Name, p.Notes)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(polysCmd)
}

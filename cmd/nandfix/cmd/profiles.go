package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/profile"
)

var (
	// Flags for profiles command
	profilesDir  string
	profilesShow string
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List stored layout and ECC profiles",
	Long: `List the built-in profiles and those found in --dir. Profiles are text
files with the .nand extension; a profile in --dir replaces a built-in one
with the same name.

Example profile:
  profile "brcm-2k-bch4" {
    description = "Broadcom 2K page, BCH-4"
    page = 2048
    spare = 64
    sector = 512
    chunk = 16
    ecc_offset = 9
    ecc_length = 7
    poly = 0x5803
    t = 4
  }`,
	Args: cobra.NoArgs,
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.Flags().StringVar(&profilesDir, "dir", "", "directory of extra profile files")
	profilesCmd.Flags().StringVar(&profilesShow, "show", "", "print one profile in file syntax")
}

func runProfiles(cmd *cobra.Command, args []string) error {
	repo, err := profile.Load(profilesDir)
	if err != nil {
		return err
	}

	if profilesShow != "" {
		p, err := repo.Lookup(profilesShow)
		if err != nil {
			return err
		}
		fmt.Print(profile.Format(p))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLAYOUT\tPARAMS\tSOURCE")
	for _, p := range repo.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Layout, p.Params, p.Source)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d profiles\n", repo.Len())
	return nil
}

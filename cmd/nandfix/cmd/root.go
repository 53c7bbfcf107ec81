package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceNAND/internal/logging"
)

var (
	// Global flags
	verbose  bool
	logLevel string
	timeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "nandfix",
	Short: "Raw NAND dump ECC inference and correction",
	Long: `Find the page layout and BCH parameters of a raw NAND dump (data + spare)
and use them to correct bit errors across the whole image.

Examples:
  nandfix search dump.bin                                  # Guess layout and ECC parameters
  nandfix quicktest dump.bin --profile brcm-2k-bch4        # Try many parameters on a known layout
  nandfix detect dump.bin --page 2048 --spare 64 ...       # Guess t, transform and extra bytes
  nandfix fix dump.bin --profile brcm-2k-bch4 -o data.bin  # Correct the dump
  nandfix profiles                                         # List stored settings
  nandfix id EC DA 10 95 44                                # Page geometry from chip ID bytes`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Configure(os.Stderr)
		if logLevel != "" {
			lvl, ok := logging.ParseLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}
			logging.SetLevel(lvl)
		}
		if verbose {
			logging.SetLevel(slog.LevelDebug)
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides "+logging.EnvLevel)
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "abort after this long (0 = no timeout)")
}

// commandContext is cancelled by SIGINT and, when set, --timeout.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}

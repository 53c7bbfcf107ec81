package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/OpenTraceLab/OpenTraceNAND/internal/nandtest"
)

// resetFlags restores every flag of c and its subcommands to its default so
// values do not leak between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the CLI with args and returns what it printed to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// Read in background so a full pipe cannot block the command
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		buf.ReadFrom(r)
		close(done)
	}()

	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	w.Close()
	os.Stdout = old
	<-done
	return buf.String(), err
}

func TestCommandsE2E(t *testing.T) {
	d := nandtest.Default()
	dump, _ := d.Write(t)

	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name: "search",
			args: []string{"search", dump, "--geometry", "2048+64", "--sector", "512", "--offset", "0",
				"--poly", "0x5803,0x402B", "--t", "4,8", "--layout-pages", "32", "--pages", "16", "--max-layouts", "1"},
			wantContain: []string{
				"Layout candidates",
				"Suggested settings:",
				"m=14 t=4 poly=0x5803 none extra=0",
				"offset:  aligned (0)",
				"nandfix fix <dump> --page 2048 --spare 64 --sector 512 --chunk 16 --ecc-offset 9 --ecc-length 7",
			},
		},
		{
			name: "search with chip id",
			args: []string{"search", dump, "--nand-id", "EC F1 00 95 40", "--sector", "512", "--offset", "0",
				"--poly", "0x5803", "--t", "4", "--layout-pages", "32", "--pages", "16", "--max-layouts", "1"},
			wantContain: []string{"layout:  page=2048 spare=64 sector=512 chunk=16 ecc=9+7"},
		},
		{
			name:    "search bad filter",
			args:    []string{"search", dump, "--where", "m ==="},
			wantErr: true,
		},
		{
			name: "quicktest",
			args: []string{"quicktest", dump, "--polys", "0x5803,0x402B", "--ts", "4,8", "--pages", "16"},
			wantContain: []string{
				"Quick test",
				"Best: m=14 t=4 poly=0x5803 none extra=0",
			},
		},
		{
			name:    "quicktest without safe candidates",
			args:    []string{"quicktest", dump, "--ts", "8", "--polys", "0x5803"},
			wantErr: true,
		},
		{
			name: "detect",
			args: []string{"detect", dump, "--pages", "64"},
			wantContain: []string{
				"Auto-detect",
				"Detected: m=14 t=4 poly=0x5803 none extra=0",
				"Samples:  256 sectors",
			},
		},
		{
			name:    "detect too few pages",
			args:    []string{"detect", dump, "--pages", "4"},
			wantErr: true,
		},
		{
			name: "profiles",
			args: []string{"profiles"},
			wantContain: []string{
				"brcm-2k-bch4",
				"linux-8k-bch24",
				"profiles",
			},
		},
		{
			name:        "profiles show",
			args:        []string{"profiles", "--show", "BRCM-2K-BCH4"},
			wantContain: []string{`profile "brcm-2k-bch4" {`, "poly = 0x5803"},
		},
		{
			name:    "unknown profile",
			args:    []string{"fix", dump, "--profile", "no-such-part"},
			wantErr: true,
		},
		{
			name:        "polys",
			args:        []string{"polys"},
			wantContain: []string{"0x5803", "0x402B", "Broadcom"},
		},
		{
			name: "id",
			args: []string{"id", "EC", "DA", "10", "95", "44"},
			wantContain: []string{
				"Samsung Electronics",
				"NAND 256MiB 3,3V 8-bit",
				"2048 + 64 spare (2112 raw)",
				"--geometry 2048+64",
			},
		},
		{
			name:    "id unknown device",
			args:    []string{"id", "EC", "01"},
			wantErr: true,
		},
		{
			name:    "bad polynomial",
			args:    []string{"fix", dump, "--poly", "0x10"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, tt.args...)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v\nOutput: %s", err, output)
				return
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}

func TestFixE2E(t *testing.T) {
	d := nandtest.Default()
	dump, clean := d.Write(t)
	out := t.TempDir()
	data := filepath.Join(out, "data.bin")
	raw := filepath.Join(out, "raw.bin")
	report := filepath.Join(out, "reports", "run.json")

	output, err := execute(t, "fix", dump, "--profile", "brcm-2k-bch4",
		"-o", data, "--out-raw", raw, "--report", report)
	if err != nil {
		t.Fatalf("fix: %v\nOutput: %s", err, output)
	}
	for _, want := range []string{
		"Correcting dump",
		"fix completed [clean]",
		"uncorrectable sectors: 0 / 224",
		"Report saved to:",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Output missing %q\nGot:\n%s", want, output)
		}
	}

	gotRaw, err := os.ReadFile(raw)
	if err != nil {
		t.Fatalf("read raw output: %v", err)
	}
	if !bytes.Equal(gotRaw, clean) {
		t.Errorf("raw output differs from clean image")
	}

	gotData, err := os.ReadFile(data)
	if err != nil {
		t.Fatalf("read data output: %v", err)
	}
	l := nandtest.Layout
	if len(gotData) != d.Pages*l.PageSize {
		t.Fatalf("data output is %d bytes, want %d", len(gotData), d.Pages*l.PageSize)
	}
	for p := 0; p < d.Pages; p++ {
		want := clean[p*l.RawPageSize() : p*l.RawPageSize()+l.PageSize]
		if !bytes.Equal(gotData[p*l.PageSize:(p+1)*l.PageSize], want) {
			t.Fatalf("page %d data differs", p)
		}
	}

	js, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(js), `"quality": "clean"`) {
		t.Errorf("report quality missing:\n%s", js)
	}
}

func TestFixThresholdFlags(t *testing.T) {
	dump, _ := nandtest.Default().Write(t)
	_, err := execute(t, "fix", dump, "-o", filepath.Join(t.TempDir(), "d.bin"), "--suspect", "0.5", "--wrong", "0.1")
	if err == nil {
		t.Fatalf("expected error for wrong < suspect")
	}
}

func TestParseGeometries(t *testing.T) {
	geoms, err := parseGeometries([]string{"2048+64", "4096+224", "2048+128"})
	if err != nil {
		t.Fatalf("parseGeometries: %v", err)
	}
	if len(geoms) != 2 || geoms[0].PageSize != 2048 || len(geoms[0].SpareSizes) != 2 || geoms[0].SpareSizes[1] != 128 {
		t.Fatalf("geometries = %+v", geoms)
	}
	for _, bad := range []string{"2048", "x+64", "2048+0"} {
		if _, err := parseGeometries([]string{bad}); err == nil {
			t.Errorf("parseGeometries(%q) succeeded", bad)
		}
	}
}

func TestDefaultDataPath(t *testing.T) {
	if got := defaultDataPath("dir/dump.bin"); got != "dir/dump_data.bin" {
		t.Fatalf("defaultDataPath = %q", got)
	}
}

package fix

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/weaviate/sroar"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
)

// Report summarises one pipeline run. Sector counters cover every step of
// every page; Checked excludes ErasedSkipped.
type Report struct {
	RunID    uuid.UUID
	Layout   nand.Layout
	Params   codec.Params
	Started  time.Time
	Finished time.Time

	TotalPages    int64
	ErasedSkipped int64
	Checked       int64
	Uncorrectable int64
	PagesTouched  int64
	TotalBitflips int64

	// BadPages holds the index of every page with at least one
	// uncorrectable sector.
	BadPages *sroar.Bitmap
}

func newReport(l nand.Layout, p codec.Params, total int64) *Report {
	return &Report{
		RunID:      uuid.New(),
		Layout:     l,
		Params:     p,
		Started:    time.Now().UTC(),
		TotalPages: total,
		BadPages:   sroar.NewBitmap(),
	}
}

// UncorrectableRatio is Uncorrectable/Checked, 0 when nothing was checked.
func (r *Report) UncorrectableRatio() float64 {
	if r.Checked <= 0 {
		return 0
	}
	return float64(r.Uncorrectable) / float64(r.Checked)
}

// BadPageList returns the bad page indices in ascending order.
func (r *Report) BadPageList() []int64 {
	if r.BadPages == nil {
		return nil
	}
	arr := r.BadPages.ToArray()
	out := make([]int64, len(arr))
	for i, v := range arr {
		out[i] = int64(v)
	}
	return out
}

func (r *Report) String() string {
	return fmt.Sprintf("pages=%d erased=%d checked=%d uncorrectable=%d (%.2f%%) touched=%d bitflips=%d",
		r.TotalPages, r.ErasedSkipped, r.Checked, r.Uncorrectable, 100*r.UncorrectableRatio(),
		r.PagesTouched, r.TotalBitflips)
}

type reportJSON struct {
	RunID              string       `json:"run_id"`
	Layout             nand.Layout  `json:"layout"`
	Params             codec.Params `json:"params"`
	Started            time.Time    `json:"started"`
	Finished           time.Time    `json:"finished"`
	TotalPages         int64        `json:"total_pages"`
	ErasedSkipped      int64        `json:"erased_skipped"`
	Checked            int64        `json:"checked"`
	Uncorrectable      int64        `json:"uncorrectable"`
	UncorrectableRatio float64      `json:"uncorrectable_ratio"`
	PagesTouched       int64        `json:"pages_touched"`
	TotalBitflips      int64        `json:"total_bitflips"`
	BadPages           []int64      `json:"bad_pages"`
	Quality            Level        `json:"quality"`
}

// WriteJSON writes the report, its bad page list and quality level as
// indented JSON.
func (r *Report) WriteJSON(w io.Writer, th Thresholds) error {
	bad := r.BadPageList()
	if bad == nil {
		bad = []int64{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reportJSON{
		RunID:              r.RunID.String(),
		Layout:             r.Layout,
		Params:             r.Params,
		Started:            r.Started,
		Finished:           r.Finished,
		TotalPages:         r.TotalPages,
		ErasedSkipped:      r.ErasedSkipped,
		Checked:            r.Checked,
		Uncorrectable:      r.Uncorrectable,
		UncorrectableRatio: r.UncorrectableRatio(),
		PagesTouched:       r.PagesTouched,
		TotalBitflips:      r.TotalBitflips,
		BadPages:           bad,
		Quality:            Assess(r, th).Level,
	})
}

// ExportJSON writes the report to path, creating parent directories.
func (r *Report) ExportJSON(path string, th Thresholds) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("fix: create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("fix: create report: %w", err)
	}
	if err := r.WriteJSON(f, th); err != nil {
		_ = f.Close()
		return fmt.Errorf("fix: write report: %w", err)
	}
	return f.Close()
}

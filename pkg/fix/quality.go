package fix

import (
	"fmt"
	"strings"
)

// Thresholds are the uncorrectable ratios that separate quality levels.
// They are empirical and meant to be overridden.
type Thresholds struct {
	Suspect float64 // At or above: some sectors failed, parameters may be off
	Wrong   float64 // At or above: parameters are very likely wrong
}

// DefaultThresholds are 2% and 20%.
func DefaultThresholds() Thresholds {
	return Thresholds{Suspect: 0.02, Wrong: 0.20}
}

// Level grades a finished run.
type Level int

const (
	QualityNoData Level = iota
	QualityClean
	QualityMinor
	QualitySuspect
	QualityWrong
)

var levelNames = map[Level]string{
	QualityNoData:  "no-data",
	QualityClean:   "clean",
	QualityMinor:   "minor",
	QualitySuspect: "suspect",
	QualityWrong:   "wrong",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// Assessment is the informational verdict on a run.
type Assessment struct {
	Level   Level
	Title   string
	Summary string
	Hints   []string
}

// Hints are the checks suggested whenever sectors failed.
var Hints = []string{
	"verify the NAND layout (page/spare sizes, sector size, chunk size, ECC offset and length)",
	"verify the transform (none, inv, bitrev, inv+bitrev)",
	"try a different primitive polynomial (for example 0x5803 vs 0x402B)",
	"if the dump is physically noisy some sectors may be genuinely uncorrectable",
}

// Assess grades r against th.
func Assess(r *Report, th Thresholds) Assessment {
	if r.Checked <= 0 {
		return Assessment{
			Level:   QualityNoData,
			Title:   "no data",
			Summary: "no non-erased sectors were processed; the dump may be blank or the layout wrong",
			Hints:   []string{Hints[0]},
		}
	}
	if r.Uncorrectable == 0 {
		return Assessment{Level: QualityClean, Title: "fix completed", Summary: r.String()}
	}

	ratio := r.UncorrectableRatio()
	a := Assessment{Hints: Hints}
	switch {
	case ratio >= th.Wrong:
		a.Level = QualityWrong
		a.Title = "fix may have failed"
		a.Summary = "high uncorrectable ratio; the parameters are most likely wrong or the dump quality is very poor"
	case ratio >= th.Suspect:
		a.Level = QualitySuspect
		a.Title = "fix may have failed"
		a.Summary = "some sectors could not be corrected; the output may be usable but this can indicate a parameter mismatch"
	default:
		a.Level = QualityMinor
		a.Title = "fix completed with minor issues"
		a.Summary = "only a few sectors were uncorrectable; watch for filesystem extraction errors"
	}
	return a
}

// Format renders the assessment for a terminal.
func (a Assessment) Format(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", a.Title, a.Level)
	if r != nil && r.Checked > 0 {
		fmt.Fprintf(&b, "  uncorrectable sectors: %d / %d (%.1f%%)\n", r.Uncorrectable, r.Checked, 100*r.UncorrectableRatio())
		fmt.Fprintf(&b, "  corrected bitflips:    %d\n", r.TotalBitflips)
		fmt.Fprintf(&b, "  modified pages:        %d\n", r.PagesTouched)
	}
	if a.Level != QualityClean {
		fmt.Fprintf(&b, "  %s\n", a.Summary)
	}
	if len(a.Hints) > 0 {
		b.WriteString("  suggestions:\n")
		for _, h := range a.Hints {
			fmt.Fprintf(&b, "   - %s\n", h)
		}
	}
	return b.String()
}

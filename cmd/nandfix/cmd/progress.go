package cmd

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/fix"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/search"
)

const barWidth = 40

type progressBar struct {
	last int
}

// update redraws the bar when the whole percentage changes.
func (b *progressBar) update(percent float64, detail string) {
	p := int(percent)
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if p == b.last {
		return
	}
	b.last = p
	filled := p * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	if len(detail) > 48 {
		detail = detail[:45] + "..."
	}
	fmt.Printf("\r[%s] %3d%% %-48s", bar, p, detail)
}

func (b *progressBar) finish() {
	if b.last >= 0 {
		fmt.Println()
	}
}

// displaySearchProgress draws search updates until ch is closed, then
// closes done.
func displaySearchProgress(ch <-chan search.Progress, done chan<- struct{}) {
	defer close(done)
	b := &progressBar{last: -1}
	for p := range ch {
		detail := p.Phase
		if p.Detail != "" {
			detail = p.Phase + " " + p.Detail
		}
		b.update(p.Percent, detail)
	}
	b.finish()
}

func displayFixProgress(ch <-chan fix.Progress, done chan<- struct{}) {
	defer close(done)
	b := &progressBar{last: -1}
	for p := range ch {
		b.update(p.Percent, fmt.Sprintf("page %d/%d", p.Page, p.Total))
	}
	b.finish()
}

func banner(title string) {
	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║ %-62s ║\n", title)
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
}

package search

// Progress phases.
const (
	PhaseLayouts = "layouts"
	PhaseParams  = "params"
	PhaseDone    = "done"
)

// Progress reports how far a search has come.
type Progress struct {
	Phase   string  // PhaseLayouts, PhaseParams or PhaseDone
	Index   int     // Items finished in this phase
	Total   int     // Items in this phase
	Percent float64 // Overall completion, 0-100
	Detail  string  // Current layout or candidate
}

// report never blocks: a slow reader loses intermediate updates.
func report(ch chan<- Progress, p Progress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}

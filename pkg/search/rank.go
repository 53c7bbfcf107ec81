package search

import "sort"

// Result pairs a candidate with its score.
type Result struct {
	Candidate ParamCandidate `json:"candidate"`
	Score     Score          `json:"score"`
	Ratio     float64        `json:"uncorrectable_ratio"`
}

func newResult(c ParamCandidate, s Score) Result {
	return Result{Candidate: c, Score: s, Ratio: s.Ratio()}
}

func (r Result) String() string {
	return r.Candidate.String() + " => " + r.Score.String()
}

// Less orders results best first: lower uncorrectable ratio, then higher
// layout score, more corrected sectors, more corrected bits, and finally
// enumeration order.
func Less(a, b Result) bool {
	if ra, rb := a.Score.Ratio(), b.Score.Ratio(); ra != rb {
		return ra < rb
	}
	if a.Candidate.LayoutScore != b.Candidate.LayoutScore {
		return a.Candidate.LayoutScore > b.Candidate.LayoutScore
	}
	if a.Score.OK != b.Score.OK {
		return a.Score.OK > b.Score.OK
	}
	if a.Score.Bitflips != b.Score.Bitflips {
		return a.Score.Bitflips > b.Score.Bitflips
	}
	if a.Candidate.LayoutIndex != b.Candidate.LayoutIndex {
		return a.Candidate.LayoutIndex < b.Candidate.LayoutIndex
	}
	return a.Candidate.Index < b.Candidate.Index
}

// Rank sorts results in place, best first.
func Rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool { return Less(results[i], results[j]) })
}

// Leaderboard returns a ranked copy of the best n results.
func Leaderboard(results []Result, n int) []Result {
	out := append([]Result(nil), results...)
	Rank(out)
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Package ranking orders selection expansion candidates by size.
package ranking

import (
	"sort"

	"github.com/phobologic/saccade/internal/model"
)

// Source names where a candidate range came from.
type Source string

const (
	Syntax   Source = "syntax"
	Implicit Source = "implicit"
	Explicit Source = "explicit"
)

// Candidate is one range a selection could grow to.
type Candidate struct {
	Source Source      `json:"source"`
	Range  model.Range `json:"range"`
}

// Rank returns the candidates sorted from smallest to largest. Equal sizes
// keep their input order.
func Rank(cands []Candidate) []Candidate {
	out := make([]Candidate, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].Range.LargerThan(out[i].Range)
	})
	return out
}

// Next picks the smallest candidate strictly larger than current.
func Next(cands []Candidate, current model.Range) (Candidate, bool) {
	for _, c := range Rank(cands) {
		if c.Range.LargerThan(current) {
			return c, true
		}
	}
	return Candidate{}, false
}

// Chain returns every candidate strictly larger than current, smallest
// first, with each entry strictly larger than the one before it.
func Chain(cands []Candidate, current model.Range) []Candidate {
	var out []Candidate
	prev := current
	for _, c := range Rank(cands) {
		if c.Range.LargerThan(prev) {
			out = append(out, c)
			prev = c.Range
		}
	}
	return out
}

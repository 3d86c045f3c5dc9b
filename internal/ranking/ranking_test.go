package ranking

import (
	"testing"

	"github.com/phobologic/saccade/internal/model"
)

func rng(sl, sc, el, ec int) model.Range {
	return model.Range{
		Start: model.Position{Line: sl, Character: sc},
		End:   model.Position{Line: el, Character: ec},
	}
}

func makeCandidates() []Candidate {
	return []Candidate{
		{Source: Explicit, Range: rng(0, 0, 9, 0)},
		{Source: Syntax, Range: rng(2, 4, 2, 9)},
		{Source: Implicit, Range: rng(1, 0, 3, 5)},
	}
}

func TestRankOrdersBySize(t *testing.T) {
	t.Parallel()

	got := Rank(makeCandidates())
	want := []Source{Syntax, Implicit, Explicit}
	for i, s := range want {
		if got[i].Source != s {
			t.Errorf("Rank()[%d] = %q, want %q", i, got[i].Source, s)
		}
	}
}

func TestRankDoesNotModifyInput(t *testing.T) {
	t.Parallel()

	in := makeCandidates()
	_ = Rank(in)
	if in[0].Source != Explicit {
		t.Error("Rank should not reorder its input")
	}
}

func TestRankTieKeepsOrder(t *testing.T) {
	t.Parallel()

	got := Rank([]Candidate{
		{Source: Implicit, Range: rng(0, 0, 1, 4)},
		{Source: Syntax, Range: rng(5, 0, 6, 4)},
	})
	if got[0].Source != Implicit {
		t.Errorf("equal sizes should keep input order, got %q first", got[0].Source)
	}
}

func TestRankSameLineSpanUsesColumns(t *testing.T) {
	t.Parallel()

	got := Rank([]Candidate{
		{Source: Implicit, Range: rng(0, 0, 2, 10)},
		{Source: Syntax, Range: rng(0, 4, 2, 6)},
	})
	if got[0].Source != Syntax {
		t.Errorf("smaller column span should sort first, got %q", got[0].Source)
	}
}

func TestNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		current model.Range
		want    Source
		ok      bool
	}{
		{"from caret", rng(2, 5, 2, 5), Syntax, true},
		{"from syntax node", rng(2, 4, 2, 9), Implicit, true},
		{"from implicit cell", rng(1, 0, 3, 5), Explicit, true},
		{"nothing larger", rng(0, 0, 20, 0), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Next(makeCandidates(), tt.current)
			if ok != tt.ok || got.Source != tt.want {
				t.Errorf("Next() = %q, %v; want %q, %v", got.Source, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestChain(t *testing.T) {
	t.Parallel()

	cands := append(makeCandidates(), Candidate{Source: Syntax, Range: rng(4, 0, 6, 5)})
	got := Chain(cands, rng(2, 5, 2, 5))
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Range.LargerThan(got[i-1].Range) {
			t.Errorf("Chain()[%d] is not larger than its predecessor", i)
		}
	}
}

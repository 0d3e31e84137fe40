package opt

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestSpacingBoundaryIsNotConflict(t *testing.T) {
	tbl, err := NewTable([]Candidate{
		validCandidate("a", 0, 0),
		validCandidate("b", 50, 0),  // exactly dMin away
		validCandidate("c", 49.999, 100000),
	})
	if err != nil {
		t.Fatal(err)
	}
	edges := BuildSpacingEdges(tbl, 50)
	if len(edges) != 0 {
		t.Fatalf("exact-distance pair must not conflict, got %v", edges)
	}
	tbl2, _ := NewTable([]Candidate{validCandidate("a", 0, 0), validCandidate("b", 49.999, 0)})
	edges = BuildSpacingEdges(tbl2, 50)
	if len(edges) != 1 || edges[0].I != 0 || edges[0].J != 1 {
		t.Fatalf("strictly-closer pair must conflict, got %v", edges)
	}
}

func TestSpacingZeroMinSpacing(t *testing.T) {
	tbl, _ := NewTable([]Candidate{validCandidate("a", 0, 0), validCandidate("b", 0, 0)})
	if edges := BuildSpacingEdges(tbl, 0); edges != nil {
		t.Fatalf("dMin=0 must produce no edges, got %v", edges)
	}
}

// The grid-bucketed builder must agree with a naive pairwise scan.
func TestSpacingGridMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var cands []Candidate
	for i := 0; i < 300; i++ {
		cands = append(cands, validCandidate(fmt.Sprintf("c%03d", i), rng.Float64()*10000, rng.Float64()*10000))
	}
	tbl, err := NewTable(cands)
	if err != nil {
		t.Fatal(err)
	}
	const dMin = 750.0
	got := BuildSpacingEdges(tbl, dMin)

	want := map[[2]int]bool{}
	for i := 0; i < tbl.Len(); i++ {
		for j := i + 1; j < tbl.Len(); j++ {
			a, b := tbl.At(i), tbl.At(j)
			if dist(a.X, a.Y, b.X, b.Y) < dMin {
				want[[2]int{i, j}] = true
			}
		}
	}
	if len(got) != len(want) {
		t.Fatalf("edge count: grid=%d naive=%d", len(got), len(want))
	}
	for _, e := range got {
		if !want[[2]int{e.I, e.J}] {
			t.Fatalf("grid produced edge (%d,%d) the naive scan did not", e.I, e.J)
		}
		if e.I >= e.J {
			t.Fatalf("edge (%d,%d) not normalized", e.I, e.J)
		}
	}
}

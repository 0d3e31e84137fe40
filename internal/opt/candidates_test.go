package opt

import (
	"errors"
	"math"
	"testing"
)

func validCandidate(id string, x, y float64) Candidate {
	return Candidate{
		ID: id, X: x, Y: y,
		DemandScore: 1, EquityScore: 0.5,
		FixedSiteCost: 1000, CostPerPort: 100, CostPerKWPV: 10,
		CostPerKWhStorage: 5, InterconnectionBase: 200, InterconnectionPerKW: 1,
	}
}

func TestNewTableValid(t *testing.T) {
	tbl, err := NewTable([]Candidate{validCandidate("a", 0, 0), validCandidate("b", 100, 0)})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("len: got %d", tbl.Len())
	}
	if tbl.IndexOf("b") != 1 || tbl.IndexOf("zzz") != -1 {
		t.Fatalf("IndexOf mismatch")
	}
}

func TestNewTableRejectsBadRows(t *testing.T) {
	nan := validCandidate("n", 0, 0)
	nan.DemandScore = math.NaN()
	inf := validCandidate("i", 0, 0)
	inf.X = math.Inf(1)
	neg := validCandidate("g", 0, 0)
	neg.FixedSiteCost = -1

	cases := map[string][]Candidate{
		"duplicate id":   {validCandidate("a", 0, 0), validCandidate("a", 1, 1)},
		"empty id":       {validCandidate("", 0, 0)},
		"nan score":      {nan},
		"infinite coord": {inf},
		"negative cost":  {neg},
	}
	for name, rows := range cases {
		_, err := NewTable(rows)
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("%s: want DataError, got %v", name, err)
		}
	}
}

package opt

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestBuildModelCoefficients(t *testing.T) {
	tbl, err := NewTable([]Candidate{{
		ID: "a", X: 0, Y: 0,
		DemandScore: 2, EquityScore: 1, SafetyPenalty: 0.5, GridConflictScore: 0.25,
		FixedSiteCost: 1000, CostPerPort: 100, CostPerKWPV: 10,
		CostPerKWhStorage: 5, InterconnectionBase: 200, InterconnectionPerKW: 1,
	}})
	if err != nil {
		t.Fatal(err)
	}
	cfg := Config{
		Budget: 1e6, MaxSites: 1, MaxDetour: 100,
		PortsMin: 2, PortsMax: 8, PVKWMin: 10, PVKWMax: 100, StorageKWhMax: 50,
		Weights:        Weights{Util: 1, Equity: 2, SafetyPenalty: 3, GridPenalty: 4, NPCCost: 5},
		CostNormalizer: 1e6,
	}
	m, err := BuildModel(tbl, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	// fixed + ports_min*port + pv_min*pv + base + pv_min*per_kw
	wantCost := 1000.0 + 2*100 + 10*10 + 200 + 10*1
	if m.MinSiteCost[0] != wantCost {
		t.Fatalf("min site cost: got %g want %g", m.MinSiteCost[0], wantCost)
	}
	wantScore := 1*2.0 + 2*1 - 3*0.5 - 4*0.25 - 5*wantCost/1e6
	if math.Abs(m.OpenScore[0]-wantScore) > 1e-12 {
		t.Fatalf("open score: got %g want %g", m.OpenScore[0], wantScore)
	}
}

func TestBuildModelRejectsBadConfig(t *testing.T) {
	tbl, _ := NewTable([]Candidate{validCandidate("a", 0, 0)})
	cfg := validConfig()
	cfg.PortsMin = cfg.PortsMax + 1
	if _, err := BuildModel(tbl, nil, cfg); err == nil {
		t.Fatal("min>max must be rejected before any solve")
	}
}

func TestEmptyTableIsInfeasible(t *testing.T) {
	tbl, err := NewTable(nil)
	if err != nil {
		t.Fatal(err)
	}
	m, err := BuildModel(tbl, nil, validConfig())
	if err != nil {
		t.Fatal(err)
	}
	s, _ := NewSolver("bnb")
	raw, err := s.Solve(context.Background(), m, SolverConfig{TimeLimit: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if raw.Outcome != OutcomeInfeasible {
		t.Fatalf("outcome: got %s", raw.Outcome)
	}
}

func TestDenseConflictGraphStaysFeasible(t *testing.T) {
	// Spacing so large that no two sites can coexist: the builder emits a
	// dense exclusion graph and the solve still opens one site.
	tbl, err := NewTable([]Candidate{
		validCandidate("a", 0, 0),
		validCandidate("b", 100, 0),
		validCandidate("c", 0, 100),
	})
	if err != nil {
		t.Fatal(err)
	}
	cfg := validConfig()
	cfg.MinSpacing = 1e6
	m, err := BuildModel(tbl, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Edges) != 3 {
		t.Fatalf("want dense conflict graph, got %d edges", len(m.Edges))
	}
	s, _ := NewSolver("")
	raw, err := s.Solve(context.Background(), m, SolverConfig{TimeLimit: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	sel, err := Extract(m, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Sites) != 1 {
		t.Fatalf("want exactly one opened site, got %+v", sel.Sites)
	}
}

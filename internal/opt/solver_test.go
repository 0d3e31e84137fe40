package opt

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// Four sites on a line at 0, 10, 60, 70 km with 50 km minimum spacing: the
// only conflicts are (0,10) and (60,70) — 10 km vs 60 km is exactly 50 km
// apart, which is allowed.
func lineScenario() Request {
	mk := func(id string, xKM float64) Candidate {
		return Candidate{
			ID: id, X: xKM * 1000, Y: 0,
			DemandScore:   1,
			FixedSiteCost: 1000, CostPerPort: 100, CostPerKWPV: 10,
		}
	}
	return Request{
		Candidates: []Candidate{mk("s0", 0), mk("s10", 10), mk("s60", 60), mk("s70", 70)},
		Config: Config{
			Budget: 1e9, MaxSites: 4,
			MinSpacing: 50000, MaxDetour: 15000,
			PortsMin: 4, PortsMax: 4,
			PVKWMin: 50, PVKWMax: 50, StorageKWhMax: 0,
			Weights:        Weights{Util: 1},
			CostNormalizer: 1e6,
		},
		Solver: SolverConfig{Name: "bnb", TimeLimit: 5 * time.Second},
	}
}

func TestLineScenarioOptimal(t *testing.T) {
	sel, err := Optimize(context.Background(), lineScenario(), nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if sel.Outcome != OutcomeOptimal {
		t.Fatalf("outcome: got %s", sel.Outcome)
	}
	if len(sel.Sites) != 2 {
		t.Fatalf("want 2 opened sites, got %+v", sel.Sites)
	}
	if got := sel.Objective.Total; got != 2 {
		t.Fatalf("objective: got %g want 2", got)
	}
	left := map[string]bool{"s0": true, "s10": true}
	right := map[string]bool{"s60": true, "s70": true}
	if !left[sel.Sites[0].ID] && !right[sel.Sites[0].ID] {
		t.Fatalf("unknown site %s", sel.Sites[0].ID)
	}
	if left[sel.Sites[0].ID] == left[sel.Sites[1].ID] {
		t.Fatalf("both opened sites from the same conflicting pair: %+v", sel.Sites)
	}
	for _, s := range sel.Sites {
		if s.Ports != 4 || s.PVKW != 50 || s.StorageKWh != 0 {
			t.Fatalf("build out of bounds: %+v", s)
		}
	}
	// Each opened site costs 1000 + 4*100 + 50*10 = 1900.
	if sel.TotalCost != 3800 {
		t.Fatalf("total cost: got %g want 3800", sel.TotalCost)
	}
}

func TestLineScenarioDeterminism(t *testing.T) {
	a, err := Optimize(context.Background(), lineScenario(), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Optimize(context.Background(), lineScenario(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.Objective.Total != b.Objective.Total {
		t.Fatalf("objective differs across identical runs: %g vs %g", a.Objective.Total, b.Objective.Total)
	}
	for i := range a.Sites {
		if a.Sites[i] != b.Sites[i] {
			t.Fatalf("site set differs: %+v vs %+v", a.Sites, b.Sites)
		}
	}
}

func TestInfeasibleBudgetAdvisory(t *testing.T) {
	req := lineScenario()
	req.Config.Budget = 100 // below the 1900 minimum build of every site
	_, err := Optimize(context.Background(), req, nil)
	var inf *InfeasibleError
	if !errors.As(err, &inf) {
		t.Fatalf("want InfeasibleError, got %v", err)
	}
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("errors.Is(ErrInfeasible) = false")
	}
	if inf.Advisories == nil || !inf.Advisories.BudgetBelowCheapestSite {
		t.Fatalf("budget advisory not set: %+v", inf.Advisories)
	}
	if inf.Advisories.CheapestSiteCost != 1900 {
		t.Fatalf("cheapest site cost: got %g want 1900", inf.Advisories.CheapestSiteCost)
	}
}

func TestBudgetForcesCheaperPair(t *testing.T) {
	mk := func(id string, x, demand, fixed float64) Candidate {
		return Candidate{ID: id, X: x, Y: 0, DemandScore: demand, FixedSiteCost: fixed, CostPerPort: 100}
	}
	req := Request{
		// A alone scores 10 at cost 1900; B+C score 12 at cost 1800.
		Candidates: []Candidate{
			mk("a", 0, 10, 1500),
			mk("b", 100000, 6, 500),
			mk("c", 200000, 6, 500),
		},
		Config: Config{
			Budget: 1900, MaxSites: 2,
			MinSpacing: 50000, MaxDetour: 1000,
			PortsMin: 4, PortsMax: 4, PVKWMax: 0,
			Weights:        Weights{Util: 1},
			CostNormalizer: 1e6,
		},
		Solver: SolverConfig{TimeLimit: 5 * time.Second},
	}
	sel, err := Optimize(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Outcome != OutcomeOptimal || sel.Objective.Total != 12 {
		t.Fatalf("outcome=%s objective=%g, want optimal 12", sel.Outcome, sel.Objective.Total)
	}
	if sel.TotalCost != 1800 {
		t.Fatalf("total cost: got %g", sel.TotalCost)
	}
}

func TestMIPGapStop(t *testing.T) {
	// Two conflicting sites: optimum is 5, the root relaxation sees 9.
	mk := func(id string, demand float64) Candidate {
		return Candidate{ID: id, X: 0, Y: 0, DemandScore: demand, FixedSiteCost: 10}
	}
	req := Request{
		Candidates: []Candidate{mk("hi", 5), mk("lo", 4)},
		Config: Config{
			Budget: 1e6, MaxSites: 2,
			MinSpacing: 100, MaxDetour: 100,
			PortsMax: 4, PVKWMax: 0,
			Weights:        Weights{Util: 1},
			CostNormalizer: 1e6,
		},
		Solver: SolverConfig{TimeLimit: 5 * time.Second, MIPGap: 0.9},
	}
	sel, err := Optimize(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Outcome != OutcomeFeasibleWithinGap {
		t.Fatalf("outcome: got %s want feasible_within_gap", sel.Outcome)
	}
	if sel.Objective.Total != 5 || len(sel.Sites) != 1 || sel.Sites[0].ID != "hi" {
		t.Fatalf("selection: %+v", sel)
	}

	req.Solver.MIPGap = 0
	sel, err = Optimize(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Outcome != OutcomeOptimal || sel.Objective.Total != 5 {
		t.Fatalf("exact solve: outcome=%s objective=%g", sel.Outcome, sel.Objective.Total)
	}
}

func TestTimeLimitReturnsTaggedSolution(t *testing.T) {
	var cands []Candidate
	for i := 0; i < 80; i++ {
		cands = append(cands, Candidate{
			ID: fmt.Sprintf("c%02d", i), X: float64(i) * 100000, Y: 0,
			DemandScore:   float64(1 + i%7),
			FixedSiteCost: float64(100 + 10*(i%5)),
		})
	}
	req := Request{
		Candidates: cands,
		Config: Config{
			Budget: 1e4, MaxSites: 10,
			MinSpacing: 0, MaxDetour: 0,
			PortsMax: 4, PVKWMax: 0,
			Weights:        Weights{Util: 1},
			CostNormalizer: 1e6,
		},
		Solver: SolverConfig{TimeLimit: time.Nanosecond},
	}
	sel, err := Optimize(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("time-limited solve must still return a solution: %v", err)
	}
	if sel.Outcome != OutcomeFeasibleTimeLimit {
		t.Fatalf("outcome: got %s", sel.Outcome)
	}
	if len(sel.Sites) == 0 || len(sel.Sites) > 10 {
		t.Fatalf("site count out of bounds: %d", len(sel.Sites))
	}
}

func TestCardinalityBindsSelection(t *testing.T) {
	req := lineScenario()
	req.Config.MaxSites = 1
	sel, err := Optimize(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Sites) != 1 || sel.Objective.Total != 1 {
		t.Fatalf("max_sites=1: got %d sites, objective %g", len(sel.Sites), sel.Objective.Total)
	}
}

func TestObserverLifecycle(t *testing.T) {
	var states []State
	_, err := Optimize(context.Background(), lineScenario(), func(s State) { states = append(states, s) })
	if err != nil {
		t.Fatal(err)
	}
	want := []State{StateBuilt, StateSubmitted, StateExtracted}
	if len(states) != len(want) {
		t.Fatalf("states: %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states: %v", states)
		}
	}

	states = nil
	bad := lineScenario()
	bad.Config.Budget = 1 // infeasible
	if _, err := Optimize(context.Background(), bad, func(s State) { states = append(states, s) }); err == nil {
		t.Fatal("want error")
	}
	if len(states) == 0 || states[len(states)-1] != StateFailed {
		t.Fatalf("terminal state: %v", states)
	}
}

package opt

import (
	"context"
	"sort"
)

// Outcome is the normalized termination vocabulary. Solver-specific
// status strings stay behind the adapter; callers branch on this enum only.
type Outcome int

const (
	OutcomeOptimal Outcome = iota
	OutcomeFeasibleWithinGap
	OutcomeFeasibleTimeLimit
	OutcomeInfeasible
	OutcomeUnbounded
	OutcomeSolverError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOptimal:
		return "optimal"
	case OutcomeFeasibleWithinGap:
		return "feasible_within_gap"
	case OutcomeFeasibleTimeLimit:
		return "feasible_time_limit"
	case OutcomeInfeasible:
		return "infeasible"
	case OutcomeUnbounded:
		return "unbounded"
	default:
		return "solver_error"
	}
}

// Feasible reports whether the outcome carries a usable solution.
func (o Outcome) Feasible() bool {
	return o == OutcomeOptimal || o == OutcomeFeasibleWithinGap || o == OutcomeFeasibleTimeLimit
}

// Advisories are structural facts attached to an infeasible outcome. They are
// diagnostics, never a guess at root cause, and nothing is retried on their
// account.
type Advisories struct {
	// BudgetBelowCheapestSite: the budget cannot afford even the cheapest
	// candidate's minimum viable build.
	BudgetBelowCheapestSite bool    `json:"budget_below_cheapest_site"`
	CheapestSiteCost        float64 `json:"cheapest_site_cost"`
	// SpacingLimitsMaxSites: an upper bound on the spacing graph's maximum
	// independent set is below max_sites, so the requested count can never
	// coexist.
	SpacingLimitsMaxSites    bool `json:"spacing_limits_max_sites"`
	IndependentSetUpperBound int  `json:"independent_set_upper_bound"`
}

// RawResult is what a solver hands back before extraction. Variable values
// are raw floats on purpose: the extractor owns epsilon snapping and
// revalidation.
type RawResult struct {
	Outcome Outcome

	Open       []float64
	Ports      []float64
	PVKW       []float64
	StorageKWh []float64
	// Assign holds one value per model link, parallel to Model.Links.
	Assign []float64

	Objective   float64
	Bound       float64 // best proven objective bound
	Gap         float64 // relative gap at termination
	SearchNodes int64

	RawStatus  string // backend status verbatim, for diagnosis
	Advisories *Advisories
}

// Solver is the contract the engine requires of any MILP backend.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *Model, cfg SolverConfig) (RawResult, error)
}

// NewSolver resolves a solver by configured name. The built-in
// branch-and-bound backend answers to "bnb" and the empty name; unknown names
// fail fast as configuration errors.
func NewSolver(name string) (Solver, error) {
	switch name {
	case "", "bnb", "branch-and-bound":
		return &branchBound{}, nil
	default:
		return nil, &ConfigurationError{Field: "solver_name", Reason: "unknown solver " + name}
	}
}

// diagnoseInfeasible computes the two structural advisories: the budget floor
// and a cheap independent-set upper bound on the spacing graph.
func diagnoseInfeasible(m *Model) *Advisories {
	a := &Advisories{}
	cheapest := 0.0
	for i, c := range m.MinSiteCost {
		if i == 0 || c < cheapest {
			cheapest = c
		}
	}
	if m.Table.Len() > 0 {
		a.CheapestSiteCost = cheapest
		a.BudgetBelowCheapestSite = m.Cfg.Budget < cheapest
	}
	a.IndependentSetUpperBound = independentSetUpperBound(m.Table.Len(), m.Edges)
	a.SpacingLimitsMaxSites = m.Cfg.MaxSites > 0 && a.IndependentSetUpperBound < m.Cfg.MaxSites
	return a
}

// independentSetUpperBound bounds the maximum number of mutually compatible
// sites via a greedy maximal matching: every matching edge forces at least
// one endpoint closed, so alpha <= n - |M|.
func independentSetUpperBound(n int, edges []SpacingEdge) int {
	sorted := append([]SpacingEdge(nil), edges...)
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].I != sorted[b].I {
			return sorted[a].I < sorted[b].I
		}
		return sorted[a].J < sorted[b].J
	})
	used := make([]bool, n)
	matched := 0
	for _, e := range sorted {
		if !used[e.I] && !used[e.J] {
			used[e.I] = true
			used[e.J] = true
			matched++
		}
	}
	return n - matched
}

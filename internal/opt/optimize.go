package opt

import (
	"context"
	"errors"
)

// State tracks the solve lifecycle of one run.
type State int

const (
	StateBuilt State = iota
	StateSubmitted
	StateExtracted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSubmitted:
		return "submitted"
	case StateExtracted:
		return "extracted"
	default:
		return "failed"
	}
}

// ErrInfeasible wraps an infeasible outcome; the Selection-free details
// (advisories, raw status) ride on InfeasibleError.
var ErrInfeasible = errors.New("model is infeasible")

// ErrUnbounded marks a modeling defect surfaced by the solver.
var ErrUnbounded = errors.New("model is unbounded")

// InfeasibleError carries the structural advisories of the infeasibility
// diagnosis.
type InfeasibleError struct {
	Advisories *Advisories
	RawStatus  string
}

func (e *InfeasibleError) Error() string { return "model is infeasible (" + e.RawStatus + ")" }
func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }

// SolverFailure carries an unrecognized or crashed solver status verbatim.
type SolverFailure struct {
	RawStatus string
	Err       error
}

func (e *SolverFailure) Error() string {
	if e.Err != nil {
		return "solver error: " + e.Err.Error() + " (" + e.RawStatus + ")"
	}
	return "solver error: " + e.RawStatus
}

// Request bundles the immutable inputs of one optimization run. Independent
// runs share nothing and may execute concurrently.
type Request struct {
	Candidates []Candidate
	Nodes      []DemandNode // nil: candidates double as demand nodes
	Config     Config
	Solver     SolverConfig
}

// Observer receives lifecycle transitions; nil callbacks are skipped.
type Observer func(state State)

// Optimize runs one complete solve: validate, build, solve, extract,
// revalidate. Feasible outcomes (including time-limited and within-gap stops)
// return a Selection; Infeasible/Unbounded/SolverError return an error and no
// Selection.
func Optimize(ctx context.Context, req Request, observe Observer) (*Selection, error) {
	notify := func(s State) {
		if observe != nil {
			observe(s)
		}
	}
	table, err := NewTable(req.Candidates)
	if err != nil {
		notify(StateFailed)
		return nil, err
	}
	solver, err := NewSolver(req.Solver.Name)
	if err != nil {
		notify(StateFailed)
		return nil, err
	}
	model, err := BuildModel(table, req.Nodes, req.Config)
	if err != nil {
		notify(StateFailed)
		return nil, err
	}
	notify(StateBuilt)

	notify(StateSubmitted)
	raw, err := solver.Solve(ctx, model, req.Solver)
	if err != nil {
		notify(StateFailed)
		return nil, err
	}
	switch raw.Outcome {
	case OutcomeInfeasible:
		notify(StateFailed)
		return nil, &InfeasibleError{Advisories: raw.Advisories, RawStatus: raw.RawStatus}
	case OutcomeUnbounded:
		notify(StateFailed)
		return nil, &SolverFailure{RawStatus: raw.RawStatus, Err: ErrUnbounded}
	case OutcomeSolverError:
		notify(StateFailed)
		return nil, &SolverFailure{RawStatus: raw.RawStatus}
	}
	sel, err := Extract(model, raw)
	if err != nil {
		notify(StateFailed)
		return nil, err
	}
	notify(StateExtracted)
	return sel, nil
}

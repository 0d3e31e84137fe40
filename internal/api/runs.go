package api

import (
	"context"
	"errors"
	"time"

	"sitevolt/internal/metrics"
	"sitevolt/internal/model"
	"sitevolt/internal/opt"
)

// defaultTimeLimit applies when neither the request nor the baseline sets one.
const defaultTimeLimit = 10 * time.Second

// runOptimize executes one solve, keeps the stored run current through every
// transition, and fans out broker events plus webhooks on completion. The
// returned error is the engine error, already reflected in the run record.
func (s *Server) runOptimize(ctx context.Context, run *model.Run, req model.OptimizeRequest) error {
	run.Status = "running"
	_ = s.Store.UpdateRun(ctx, *run)
	s.Broker.Publish(run.ID, SSEEvent{Type: "run.state", Data: map[string]any{"runId": run.ID, "status": "running"}})

	observe := func(st opt.State) {
		s.Broker.Publish(run.ID, SSEEvent{Type: "run.state", Data: map[string]any{"runId": run.ID, "status": "running", "phase": st.String()}})
	}
	start := time.Now()
	sel, err := opt.Optimize(ctx, toOptRequest(req), observe)
	elapsed := time.Since(start)

	if err != nil {
		var infe *opt.InfeasibleError
		if errors.As(err, &infe) {
			// Infeasibility is a legitimate solve outcome, not a failure.
			run.Status = "completed"
			run.Outcome = "infeasible"
			run.Advisories = advisoriesOut(infe.Advisories)
			metrics.OptimizeRuns.WithLabelValues("infeasible").Inc()
			metrics.SolveDuration.WithLabelValues("infeasible").Observe(elapsed.Seconds())
		} else {
			run.Status = "failed"
			run.Error = err.Error()
			metrics.OptimizeRuns.WithLabelValues("error").Inc()
		}
		_ = s.Store.UpdateRun(ctx, *run)
		evt := "run.failed"
		if run.Status == "completed" {
			evt = "run.completed"
		}
		s.Broker.Publish(run.ID, SSEEvent{Type: evt, Data: map[string]any{"runId": run.ID, "status": run.Status, "outcome": run.Outcome, "error": run.Error}})
		s.Pub.Emit(ctx, run.TenantID, evt, map[string]any{"runId": run.ID, "status": run.Status, "outcome": run.Outcome, "error": run.Error})
		return err
	}

	run.Status = "completed"
	run.Outcome = sel.Outcome.String()
	run.Selection = selectionOut(sel)
	run.Advisories = advisoriesOut(sel.Advisories)
	_ = s.Store.UpdateRun(ctx, *run)
	metrics.OptimizeRuns.WithLabelValues(run.Outcome).Inc()
	metrics.SolveDuration.WithLabelValues(run.Outcome).Observe(elapsed.Seconds())
	metrics.SearchNodes.Add(float64(sel.SearchNodes))
	data := map[string]any{"runId": run.ID, "status": run.Status, "outcome": run.Outcome, "sites": len(sel.Sites), "objective": sel.Objective.Total}
	s.Broker.Publish(run.ID, SSEEvent{Type: "run.completed", Data: data})
	s.Pub.Emit(ctx, run.TenantID, "run.completed", data)
	return nil
}

func toOptRequest(req model.OptimizeRequest) opt.Request {
	out := opt.Request{
		Config: toOptConfig(req.Config),
		Solver: toOptSolver(req.Solver),
	}
	for _, c := range req.Candidates {
		out.Candidates = append(out.Candidates, opt.Candidate{
			ID: c.ID, X: c.X, Y: c.Y,
			DemandScore: c.DemandScore, EquityScore: c.EquityScore,
			SafetyPenalty: c.SafetyPenalty, GridConflictScore: c.GridConflictScore,
			FixedSiteCost: c.FixedSiteCost, CostPerPort: c.CostPerPort,
			CostPerKWPV: c.CostPerKWPV, CostPerKWhStorage: c.CostPerKWhStorage,
			InterconnectionBase: c.InterconnectionBase, InterconnectionPerKW: c.InterconnectionPerKW,
		})
	}
	for _, n := range req.DemandNodes {
		out.Nodes = append(out.Nodes, opt.DemandNode{ID: n.ID, X: n.X, Y: n.Y})
	}
	return out
}

func toOptConfig(c *model.OptimizeConfig) opt.Config {
	if c == nil {
		return opt.Config{}
	}
	return opt.Config{
		Budget: c.Budget, MaxSites: c.MaxSites,
		MinSpacing: c.MinSpacing, MaxDetour: c.MaxDetour,
		PortsMin: c.PortsMin, PortsMax: c.PortsMax,
		PVKWMin: c.PVKWMin, PVKWMax: c.PVKWMax, StorageKWhMax: c.StorageKWhMax,
		Weights: opt.Weights{
			Util: c.Weights.Util, Equity: c.Weights.Equity,
			SafetyPenalty: c.Weights.SafetyPenalty, GridPenalty: c.Weights.GridPenalty,
			NPCCost: c.Weights.NPCCost,
		},
		CostNormalizer: c.CostNormalizer,
	}
}

func toOptSolver(c model.SolverConfigIn) opt.SolverConfig {
	limit := defaultTimeLimit
	if c.TimeLimitMs > 0 {
		limit = time.Duration(c.TimeLimitMs) * time.Millisecond
	}
	return opt.SolverConfig{Name: c.SolverName, TimeLimit: limit, MIPGap: c.MIPGap, Seed: c.Seed}
}

func selectionOut(sel *opt.Selection) *model.SelectionOut {
	out := &model.SelectionOut{
		Outcome:     sel.Outcome.String(),
		TotalCost:   sel.TotalCost,
		Gap:         sel.Gap,
		SearchNodes: sel.SearchNodes,
		RawStatus:   sel.RawStatus,
		Objective: model.ObjectiveOut{
			Utilization:   sel.Objective.Utilization,
			Equity:        sel.Objective.Equity,
			SafetyPenalty: sel.Objective.SafetyPenalty,
			GridPenalty:   sel.Objective.GridPenalty,
			CostTerm:      sel.Objective.CostTerm,
			Total:         sel.Objective.Total,
		},
	}
	for _, b := range sel.Sites {
		out.Sites = append(out.Sites, model.SiteBuildOut{ID: b.ID, Ports: b.Ports, PVKW: b.PVKW, StorageKWh: b.StorageKWh})
	}
	for _, a := range sel.Assignments {
		out.Assignments = append(out.Assignments, model.AssignmentOut{NodeID: a.NodeID, CandidateID: a.CandidateID, Distance: a.Distance})
	}
	return out
}

func advisoriesOut(a *opt.Advisories) *model.AdvisoriesOut {
	if a == nil {
		return nil
	}
	return &model.AdvisoriesOut{
		BudgetBelowCheapestSite:  a.BudgetBelowCheapestSite,
		CheapestSiteCost:         a.CheapestSiteCost,
		SpacingLimitsMaxSites:    a.SpacingLimitsMaxSites,
		IndependentSetUpperBound: a.IndependentSetUpperBound,
	}
}

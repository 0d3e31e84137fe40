package opt

import (
	"fmt"
	"math"
	"sort"
)

// Epsilon used when snapping binaries/integers and when re-checking
// constraints against extracted values.
const eps = 1e-6

// SiteBuild is one opened candidate with its decided build.
type SiteBuild struct {
	ID         string  `json:"id"`
	Ports      int     `json:"ports"`
	PVKW       float64 `json:"pv_kw"`
	StorageKWh float64 `json:"storage_kwh"`
}

// Assignment maps one demand node to the open site serving it.
type Assignment struct {
	NodeID      string  `json:"node_id"`
	CandidateID string  `json:"candidate_id"`
	Distance    float64 `json:"distance_m"`
}

// ObjectiveBreakdown exposes the per-term contributions for explainability.
// Total = util + equity - safety - grid - cost.
type ObjectiveBreakdown struct {
	Utilization   float64 `json:"utilization"`
	Equity        float64 `json:"equity"`
	SafetyPenalty float64 `json:"safety_penalty"`
	GridPenalty   float64 `json:"grid_penalty"`
	CostTerm      float64 `json:"cost_term"`
	Total         float64 `json:"total"`
}

// Selection is the immutable result of one optimization run.
type Selection struct {
	Outcome     Outcome            `json:"-"`
	Sites       []SiteBuild        `json:"sites"`
	Assignments []Assignment       `json:"assignments"`
	Objective   ObjectiveBreakdown `json:"objective"`
	TotalCost   float64            `json:"total_cost"`
	Gap         float64            `json:"gap"`
	Bound       float64            `json:"bound"`
	SearchNodes int64              `json:"search_nodes"`
	RawStatus   string             `json:"raw_status"`
	Advisories  *Advisories        `json:"advisories,omitempty"`
}

// Extract converts raw solver values into a typed Selection, snapping
// binaries/integers within eps and independently re-checking every constraint
// class. A violation is a ConsistencyError: the solver and the model builder
// disagree, which is never the caller's fault.
func Extract(m *Model, raw RawResult) (*Selection, error) {
	if !raw.Outcome.Feasible() {
		return nil, &ConsistencyError{Constraint: "outcome", Detail: "extraction on non-feasible outcome " + raw.Outcome.String()}
	}
	n := m.Table.Len()
	open := make([]bool, n)
	ports := make([]int, n)
	for i := 0; i < n; i++ {
		b, err := snapBinary(raw.Open[i], fmt.Sprintf("open[%s]", m.Table.At(i).ID))
		if err != nil {
			return nil, err
		}
		open[i] = b
		p, err := snapInt(raw.Ports[i], fmt.Sprintf("ports[%s]", m.Table.At(i).ID))
		if err != nil {
			return nil, err
		}
		ports[i] = p
	}
	assign := make([]bool, len(m.Links))
	for li, v := range raw.Assign {
		b, err := snapBinary(v, fmt.Sprintf("assign[%d]", li))
		if err != nil {
			return nil, err
		}
		assign[li] = b
	}

	sel := &Selection{
		Outcome:     raw.Outcome,
		Gap:         raw.Gap,
		Bound:       raw.Bound,
		SearchNodes: raw.SearchNodes,
		RawStatus:   raw.RawStatus,
		Advisories:  raw.Advisories,
	}
	cfg := m.Cfg
	var util, equity, safety, grid float64
	opened := 0
	for i := 0; i < n; i++ {
		c := m.Table.At(i)
		pv, st := raw.PVKW[i], raw.StorageKWh[i]
		if !open[i] {
			if ports[i] != 0 || pv > eps || st > eps {
				return nil, &ConsistencyError{Constraint: "linkage", Detail: "closed site " + c.ID + " has nonzero build"}
			}
			continue
		}
		opened++
		if ports[i] < cfg.PortsMin || ports[i] > cfg.PortsMax {
			return nil, &ConsistencyError{Constraint: "ports_bounds", Detail: fmt.Sprintf("site %s ports=%d outside [%d,%d]", c.ID, ports[i], cfg.PortsMin, cfg.PortsMax)}
		}
		if pv < cfg.PVKWMin-eps || pv > cfg.PVKWMax+eps {
			return nil, &ConsistencyError{Constraint: "pv_bounds", Detail: fmt.Sprintf("site %s pv_kw=%g outside [%g,%g]", c.ID, pv, cfg.PVKWMin, cfg.PVKWMax)}
		}
		if st < -eps || st > cfg.StorageKWhMax+eps {
			return nil, &ConsistencyError{Constraint: "storage_bounds", Detail: fmt.Sprintf("site %s storage_kwh=%g outside [0,%g]", c.ID, st, cfg.StorageKWhMax)}
		}
		sel.TotalCost += m.siteCost(i, ports[i], pv, st)
		util += c.DemandScore
		equity += c.EquityScore
		safety += c.SafetyPenalty
		grid += c.GridConflictScore
		sel.Sites = append(sel.Sites, SiteBuild{ID: c.ID, Ports: ports[i], PVKW: pv, StorageKWh: st})
	}
	if opened == 0 {
		return nil, &ConsistencyError{Constraint: "site_floor", Detail: "no site opened in a feasible outcome"}
	}
	if opened > cfg.MaxSites {
		return nil, &ConsistencyError{Constraint: "cardinality", Detail: fmt.Sprintf("%d sites opened, max_sites=%d", opened, cfg.MaxSites)}
	}
	if sel.TotalCost > cfg.Budget*(1+eps)+eps {
		return nil, &ConsistencyError{Constraint: "budget", Detail: fmt.Sprintf("total cost %.2f exceeds budget %.2f", sel.TotalCost, cfg.Budget)}
	}
	// Spacing re-check from coordinates, not from the edge set, so a broken
	// edge builder cannot hide a violation.
	for a := 0; a < n; a++ {
		if !open[a] {
			continue
		}
		for b := a + 1; b < n; b++ {
			if !open[b] {
				continue
			}
			ca, cb := m.Table.At(a), m.Table.At(b)
			if d := dist(ca.X, ca.Y, cb.X, cb.Y); d < cfg.MinSpacing-eps {
				return nil, &ConsistencyError{Constraint: "spacing", Detail: fmt.Sprintf("open pair %s/%s at %.1fm < %.1fm", ca.ID, cb.ID, d, cfg.MinSpacing)}
			}
		}
	}
	perNode := make([]int, len(m.Nodes))
	for li, on := range assign {
		if !on {
			continue
		}
		l := m.Links[li]
		if !open[l.Cand] {
			return nil, &ConsistencyError{Constraint: "coverage_link", Detail: fmt.Sprintf("node %s assigned to closed site %s", m.Nodes[l.Node].ID, m.Table.At(l.Cand).ID)}
		}
		if l.Distance > cfg.MaxDetour+eps {
			return nil, &ConsistencyError{Constraint: "coverage_detour", Detail: fmt.Sprintf("assignment %s->%s at %.1fm exceeds max_detour %.1fm", m.Nodes[l.Node].ID, m.Table.At(l.Cand).ID, l.Distance, cfg.MaxDetour)}
		}
		perNode[l.Node]++
		if perNode[l.Node] > 1 {
			return nil, &ConsistencyError{Constraint: "coverage_single", Detail: "node " + m.Nodes[l.Node].ID + " assigned to multiple sites"}
		}
		sel.Assignments = append(sel.Assignments, Assignment{
			NodeID:      m.Nodes[l.Node].ID,
			CandidateID: m.Table.At(l.Cand).ID,
			Distance:    l.Distance,
		})
	}
	sort.Slice(sel.Assignments, func(a, b int) bool { return sel.Assignments[a].NodeID < sel.Assignments[b].NodeID })

	w := cfg.Weights
	sel.Objective = ObjectiveBreakdown{
		Utilization:   w.Util * util,
		Equity:        w.Equity * equity,
		SafetyPenalty: w.SafetyPenalty * safety,
		GridPenalty:   w.GridPenalty * grid,
		CostTerm:      w.NPCCost * sel.TotalCost / cfg.CostNormalizer,
	}
	sel.Objective.Total = sel.Objective.Utilization + sel.Objective.Equity -
		sel.Objective.SafetyPenalty - sel.Objective.GridPenalty - sel.Objective.CostTerm
	if math.Abs(sel.Objective.Total-raw.Objective) > 1e-4*math.Max(1, math.Abs(raw.Objective)) {
		return nil, &ConsistencyError{Constraint: "objective", Detail: fmt.Sprintf("recomputed %.6f vs solver %.6f", sel.Objective.Total, raw.Objective)}
	}
	return sel, nil
}

func snapBinary(v float64, what string) (bool, error) {
	switch {
	case math.Abs(v) <= eps:
		return false, nil
	case math.Abs(v-1) <= eps:
		return true, nil
	default:
		return false, &ConsistencyError{Constraint: "binary", Detail: fmt.Sprintf("%s=%g is not within eps of 0/1", what, v)}
	}
}

func snapInt(v float64, what string) (int, error) {
	r := math.Round(v)
	if math.Abs(v-r) > eps {
		return 0, &ConsistencyError{Constraint: "integer", Detail: fmt.Sprintf("%s=%g is not within eps of an integer", what, v)}
	}
	return int(r), nil
}

package model

// Core domain types for the siting API. Candidate fields use the external
// column names of the input contract.

type CandidateIn struct {
	ID                   string  `json:"id"`
	X                    float64 `json:"x"`
	Y                    float64 `json:"y"`
	DemandScore          float64 `json:"demand_score"`
	EquityScore          float64 `json:"equity_score"`
	SafetyPenalty        float64 `json:"safety_penalty"`
	GridConflictScore    float64 `json:"grid_conflict_score"`
	FixedSiteCost        float64 `json:"fixed_site_cost"`
	CostPerPort          float64 `json:"cost_per_port"`
	CostPerKWPV          float64 `json:"cost_per_kw_pv"`
	CostPerKWhStorage    float64 `json:"cost_per_kwh_storage"`
	InterconnectionBase  float64 `json:"interconnection_base"`
	InterconnectionPerKW float64 `json:"interconnection_per_kw"`
}

type DemandNodeIn struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type CandidateSet struct {
	ID         string        `json:"id"`
	TenantID   string        `json:"tenantId"`
	Name       string        `json:"name,omitempty"`
	Candidates []CandidateIn `json:"candidates,omitempty"`
	Count      int           `json:"count"`
	CreatedAt  string        `json:"createdAt,omitempty"`
}

type WeightsIn struct {
	Util          float64 `json:"util"`
	Equity        float64 `json:"equity"`
	SafetyPenalty float64 `json:"safety_penalty"`
	GridPenalty   float64 `json:"grid_penalty"`
	NPCCost       float64 `json:"npc_cost"`
}

type OptimizeConfig struct {
	Budget         float64   `json:"budget"`
	MaxSites       int       `json:"max_sites"`
	MinSpacing     float64   `json:"min_spacing"`
	MaxDetour      float64   `json:"max_detour"`
	PortsMin       int       `json:"ports_min"`
	PortsMax       int       `json:"ports_max"`
	PVKWMin        float64   `json:"pv_kw_min"`
	PVKWMax        float64   `json:"pv_kw_max"`
	StorageKWhMax  float64   `json:"storage_kwh_max"`
	Weights        WeightsIn `json:"weights"`
	CostNormalizer float64   `json:"cost_normalizer"`
}

type SolverConfigIn struct {
	SolverName  string  `json:"solver_name,omitempty"`
	TimeLimitMs int     `json:"time_limit_ms,omitempty"`
	MIPGap      float64 `json:"mip_gap,omitempty"`
	Seed        int64   `json:"seed,omitempty"`
}

type OptimizeRequest struct {
	TenantID       string          `json:"tenantId"`
	CandidateSetID string          `json:"candidateSetId,omitempty"`
	Candidates     []CandidateIn   `json:"candidates,omitempty"`
	DemandNodes    []DemandNodeIn  `json:"demand_nodes,omitempty"`
	Config         *OptimizeConfig `json:"config"`
	Solver         SolverConfigIn  `json:"solver"`
	Async          bool            `json:"async,omitempty"`
}

type SiteBuildOut struct {
	ID         string  `json:"id"`
	Ports      int     `json:"ports"`
	PVKW       float64 `json:"pv_kw"`
	StorageKWh float64 `json:"storage_kwh"`
}

type AssignmentOut struct {
	NodeID      string  `json:"node_id"`
	CandidateID string  `json:"candidate_id"`
	Distance    float64 `json:"distance_m"`
}

type ObjectiveOut struct {
	Utilization   float64 `json:"utilization"`
	Equity        float64 `json:"equity"`
	SafetyPenalty float64 `json:"safety_penalty"`
	GridPenalty   float64 `json:"grid_penalty"`
	CostTerm      float64 `json:"cost_term"`
	Total         float64 `json:"total"`
}

type AdvisoriesOut struct {
	BudgetBelowCheapestSite  bool    `json:"budget_below_cheapest_site"`
	CheapestSiteCost         float64 `json:"cheapest_site_cost"`
	SpacingLimitsMaxSites    bool    `json:"spacing_limits_max_sites"`
	IndependentSetUpperBound int     `json:"independent_set_upper_bound"`
}

type SelectionOut struct {
	Outcome     string          `json:"outcome"`
	Sites       []SiteBuildOut  `json:"sites"`
	Assignments []AssignmentOut `json:"assignments,omitempty"`
	Objective   ObjectiveOut    `json:"objective"`
	TotalCost   float64         `json:"total_cost"`
	Gap         float64         `json:"gap"`
	SearchNodes int64           `json:"search_nodes,omitempty"`
	RawStatus   string          `json:"raw_status,omitempty"`
}

// Run is one optimization run: request, lifecycle status, result.
type Run struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenantId"`
	Status      string          `json:"status"` // pending, running, completed, failed
	Outcome     string          `json:"outcome,omitempty"`
	Error       string          `json:"error,omitempty"`
	Advisories  *AdvisoriesOut  `json:"advisories,omitempty"`
	Config      *OptimizeConfig `json:"config,omitempty"`
	Solver      SolverConfigIn  `json:"solver"`
	Selection   *SelectionOut   `json:"selection,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	CompletedAt string          `json:"completedAt,omitempty"`
}

type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}

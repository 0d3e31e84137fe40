package opt

import (
	"fmt"
	"time"
)

// Weights holds the multi-objective weights. All must be non-negative; a zero
// weight disables its term.
type Weights struct {
	Util          float64
	Equity        float64
	SafetyPenalty float64
	GridPenalty   float64
	NPCCost       float64
}

// Config is the caller-supplied optimization configuration. It is threaded
// through model construction as one immutable value; the engine never reads
// process-wide state and never substitutes defaults for invalid fields.
type Config struct {
	Budget   float64
	MaxSites int

	MinSpacing float64 // meters; pairs strictly closer conflict
	MaxDetour  float64 // meters; max demand-node-to-site distance

	PortsMin      int
	PortsMax      int
	PVKWMin       float64
	PVKWMax       float64
	StorageKWhMax float64

	Weights        Weights
	CostNormalizer float64
}

// Validate fails fast on malformed bounds before any model is built.
func (c Config) Validate() error {
	if !isFinite(c.Budget) || c.Budget < 0 {
		return &ConfigurationError{Field: "budget", Reason: "must be finite and >= 0"}
	}
	if c.MaxSites < 1 {
		return &ConfigurationError{Field: "max_sites", Reason: "must be >= 1"}
	}
	if !isFinite(c.MinSpacing) || c.MinSpacing < 0 {
		return &ConfigurationError{Field: "min_spacing", Reason: "must be finite and >= 0"}
	}
	if !isFinite(c.MaxDetour) || c.MaxDetour < 0 {
		return &ConfigurationError{Field: "max_detour", Reason: "must be finite and >= 0"}
	}
	if c.PortsMin < 0 {
		return &ConfigurationError{Field: "ports_min", Reason: "must be >= 0"}
	}
	if c.PortsMin > c.PortsMax {
		return &ConfigurationError{Field: "ports_min", Reason: fmt.Sprintf("min %d > max %d", c.PortsMin, c.PortsMax)}
	}
	if !isFinite(c.PVKWMin) || c.PVKWMin < 0 {
		return &ConfigurationError{Field: "pv_kw_min", Reason: "must be finite and >= 0"}
	}
	if !isFinite(c.PVKWMax) || c.PVKWMin > c.PVKWMax {
		return &ConfigurationError{Field: "pv_kw_min", Reason: fmt.Sprintf("min %g > max %g", c.PVKWMin, c.PVKWMax)}
	}
	if !isFinite(c.StorageKWhMax) || c.StorageKWhMax < 0 {
		return &ConfigurationError{Field: "storage_kwh_max", Reason: "must be finite and >= 0"}
	}
	for _, w := range []struct {
		name string
		val  float64
	}{
		{"weights.util", c.Weights.Util},
		{"weights.equity", c.Weights.Equity},
		{"weights.safety_penalty", c.Weights.SafetyPenalty},
		{"weights.grid_penalty", c.Weights.GridPenalty},
		{"weights.npc_cost", c.Weights.NPCCost},
	} {
		if !isFinite(w.val) || w.val < 0 {
			return &ConfigurationError{Field: w.name, Reason: "must be finite and >= 0"}
		}
	}
	if !isFinite(c.CostNormalizer) || c.CostNormalizer <= 0 {
		return &ConfigurationError{Field: "cost_normalizer", Reason: "must be finite and > 0"}
	}
	return nil
}

// SolverConfig selects and bounds the external solver call.
type SolverConfig struct {
	Name      string
	TimeLimit time.Duration
	MIPGap    float64
	Seed      int64 // deterministic tie-breaking; 0 means fixed default ordering
}

func (c SolverConfig) Validate() error {
	if c.TimeLimit <= 0 {
		return &ConfigurationError{Field: "time_limit", Reason: "must be > 0"}
	}
	if !isFinite(c.MIPGap) || c.MIPGap < 0 {
		return &ConfigurationError{Field: "mip_gap", Reason: "must be finite and >= 0"}
	}
	return nil
}

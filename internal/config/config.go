// Package config loads baseline optimizer settings from a YAML file. Request
// payloads override the baseline field by field.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"sitevolt/internal/model"
)

type weightsYAML struct {
	Util          float64 `yaml:"util"`
	Equity        float64 `yaml:"equity"`
	SafetyPenalty float64 `yaml:"safety_penalty"`
	GridPenalty   float64 `yaml:"grid_penalty"`
	NPCCost       float64 `yaml:"npc_cost"`
}

type optimizeYAML struct {
	Budget         float64      `yaml:"budget"`
	MaxSites       int          `yaml:"max_sites"`
	MinSpacing     float64      `yaml:"min_spacing"`
	MaxDetour      float64      `yaml:"max_detour"`
	PortsMin       int          `yaml:"ports_min"`
	PortsMax       int          `yaml:"ports_max"`
	PVKWMin        float64      `yaml:"pv_kw_min"`
	PVKWMax        float64      `yaml:"pv_kw_max"`
	StorageKWhMax  float64      `yaml:"storage_kwh_max"`
	Weights        *weightsYAML `yaml:"weights"`
	CostNormalizer float64      `yaml:"cost_normalizer"`
}

type solverYAML struct {
	Name        string  `yaml:"name"`
	TimeLimitMs int     `yaml:"time_limit_ms"`
	MIPGap      float64 `yaml:"mip_gap"`
	Seed        int64   `yaml:"seed"`
}

type fileYAML struct {
	Optimize *optimizeYAML `yaml:"optimize"`
	Solver   *solverYAML   `yaml:"solver"`
}

// Baseline holds tenant-independent defaults applied beneath each request.
type Baseline struct {
	Optimize *model.OptimizeConfig
	Solver   model.SolverConfigIn
}

// Load parses the YAML baseline at path.
func Load(path string) (*Baseline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes YAML bytes into a Baseline.
func Parse(raw []byte) (*Baseline, error) {
	var f fileYAML
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	b := &Baseline{}
	if f.Optimize != nil {
		o := f.Optimize
		cfg := model.OptimizeConfig{
			Budget: o.Budget, MaxSites: o.MaxSites,
			MinSpacing: o.MinSpacing, MaxDetour: o.MaxDetour,
			PortsMin: o.PortsMin, PortsMax: o.PortsMax,
			PVKWMin: o.PVKWMin, PVKWMax: o.PVKWMax, StorageKWhMax: o.StorageKWhMax,
			CostNormalizer: o.CostNormalizer,
		}
		if o.Weights != nil {
			cfg.Weights = model.WeightsIn{
				Util: o.Weights.Util, Equity: o.Weights.Equity,
				SafetyPenalty: o.Weights.SafetyPenalty, GridPenalty: o.Weights.GridPenalty,
				NPCCost: o.Weights.NPCCost,
			}
		}
		b.Optimize = &cfg
	}
	if f.Solver != nil {
		b.Solver = model.SolverConfigIn{
			SolverName: f.Solver.Name, TimeLimitMs: f.Solver.TimeLimitMs,
			MIPGap: f.Solver.MIPGap, Seed: f.Solver.Seed,
		}
	}
	return b, nil
}

// FromEnv loads the baseline named by OPTIMIZER_CONFIG, or nil when unset.
// A broken file is treated as absent so a bad deploy cannot take the API down.
func FromEnv() *Baseline {
	path := os.Getenv("OPTIMIZER_CONFIG")
	if path == "" {
		return nil
	}
	b, err := Load(path)
	if err != nil {
		return nil
	}
	return b
}

// MergeOptimize fills a request config from the baseline. A nil request config
// takes the baseline wholesale; otherwise the request wins as-is.
func (b *Baseline) MergeOptimize(req *model.OptimizeConfig) *model.OptimizeConfig {
	if b == nil || b.Optimize == nil {
		return req
	}
	if req == nil {
		cp := *b.Optimize
		return &cp
	}
	return req
}

// MergeSolver fills zero-valued solver fields from the baseline.
func (b *Baseline) MergeSolver(req model.SolverConfigIn) model.SolverConfigIn {
	if b == nil {
		return req
	}
	if req.SolverName == "" {
		req.SolverName = b.Solver.SolverName
	}
	if req.TimeLimitMs == 0 {
		req.TimeLimitMs = b.Solver.TimeLimitMs
	}
	if req.MIPGap == 0 {
		req.MIPGap = b.Solver.MIPGap
	}
	if req.Seed == 0 {
		req.Seed = b.Solver.Seed
	}
	return req
}

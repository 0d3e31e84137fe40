package opt

import (
	"errors"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Budget: 1e6, MaxSites: 3,
		MinSpacing: 500, MaxDetour: 2000,
		PortsMin: 2, PortsMax: 8,
		PVKWMin: 10, PVKWMax: 100, StorageKWhMax: 50,
		Weights:        Weights{Util: 1, Equity: 0.5, SafetyPenalty: 0.2, GridPenalty: 0.2, NPCCost: 1},
		CostNormalizer: 1e6,
	}
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	mutations := map[string]func(*Config){
		"ports min>max":    func(c *Config) { c.PortsMin = 9 },
		"pv min>max":       func(c *Config) { c.PVKWMin = 200 },
		"negative budget":  func(c *Config) { c.Budget = -1 },
		"zero max sites":   func(c *Config) { c.MaxSites = 0 },
		"negative weight":  func(c *Config) { c.Weights.Equity = -0.1 },
		"zero normalizer":  func(c *Config) { c.CostNormalizer = 0 },
		"negative detour":  func(c *Config) { c.MaxDetour = -5 },
		"negative storage": func(c *Config) { c.StorageKWhMax = -1 },
	}
	for name, mutate := range mutations {
		cfg := validConfig()
		mutate(&cfg)
		var ce *ConfigurationError
		if err := cfg.Validate(); !errors.As(err, &ce) {
			t.Fatalf("%s: want ConfigurationError, got %v", name, err)
		}
	}

	// Zero weights disable terms, they are not errors.
	cfg := validConfig()
	cfg.Weights = Weights{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("all-zero weights rejected: %v", err)
	}
}

func TestSolverConfigValidate(t *testing.T) {
	ok := SolverConfig{Name: "bnb", TimeLimit: time.Second, MIPGap: 0.01}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid solver config rejected: %v", err)
	}
	var ce *ConfigurationError
	if err := (SolverConfig{TimeLimit: 0}).Validate(); !errors.As(err, &ce) {
		t.Fatalf("zero time limit: want ConfigurationError, got %v", err)
	}
	if err := (SolverConfig{TimeLimit: time.Second, MIPGap: -0.1}).Validate(); !errors.As(err, &ce) {
		t.Fatalf("negative gap: want ConfigurationError, got %v", err)
	}
}

func TestNewSolverUnknownName(t *testing.T) {
	var ce *ConfigurationError
	if _, err := NewSolver("gurobi"); !errors.As(err, &ce) {
		t.Fatalf("unknown solver: want ConfigurationError, got %v", err)
	}
	if s, err := NewSolver(""); err != nil || s.Name() != "bnb" {
		t.Fatalf("default solver: %v %v", s, err)
	}
}

package api

import (
	"fmt"

	"sitevolt/internal/model"
)

// validateOptimizeRequest checks request shape before the engine sees it.
// Numeric bounds on the config itself are the engine's job; failures there
// come back as typed configuration/data errors.
func validateOptimizeRequest(req *model.OptimizeRequest) error {
	if len(req.Candidates) == 0 && req.CandidateSetID == "" {
		return fmt.Errorf("either candidates or candidateSetId is required")
	}
	if len(req.Candidates) > 0 && req.CandidateSetID != "" {
		return fmt.Errorf("candidates and candidateSetId are mutually exclusive")
	}
	if req.Config == nil {
		return fmt.Errorf("config is required (no baseline configured)")
	}
	if req.Solver.TimeLimitMs < 0 {
		return fmt.Errorf("solver.time_limit_ms must be >= 0")
	}
	if req.Solver.MIPGap < 0 {
		return fmt.Errorf("solver.mip_gap must be >= 0")
	}
	return nil
}

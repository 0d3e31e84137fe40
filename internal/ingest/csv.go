// Package ingest parses candidate uploads in CSV form.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"sitevolt/internal/model"
)

// candidateColumns are the recognized header names. id, x, y are required;
// numeric columns default to zero when absent.
var candidateColumns = map[string]struct{}{
	"id": {}, "x": {}, "y": {},
	"demand_score": {}, "equity_score": {}, "safety_penalty": {}, "grid_conflict_score": {},
	"fixed_site_cost": {}, "cost_per_port": {}, "cost_per_kw_pv": {}, "cost_per_kwh_storage": {},
	"interconnection_base": {}, "interconnection_per_kw": {},
}

// ParseCandidates reads a CSV with a header row into candidate records.
// Errors carry the 1-based data row number.
func ParseCandidates(r io.Reader) ([]model.CandidateIn, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(header))
	seen := map[string]bool{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, ok := candidateColumns[name]; !ok {
			return nil, fmt.Errorf("unknown column %q", h)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[name] = true
		cols[i] = name
	}
	for _, req := range []string{"id", "x", "y"} {
		if !seen[req] {
			return nil, fmt.Errorf("missing required column %q", req)
		}
	}

	var out []model.CandidateIn
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		var c model.CandidateIn
		for i, raw := range rec {
			raw = strings.TrimSpace(raw)
			if cols[i] == "id" {
				c.ID = raw
				continue
			}
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: column %s: %q is not a number", row, cols[i], raw)
			}
			switch cols[i] {
			case "x":
				c.X = v
			case "y":
				c.Y = v
			case "demand_score":
				c.DemandScore = v
			case "equity_score":
				c.EquityScore = v
			case "safety_penalty":
				c.SafetyPenalty = v
			case "grid_conflict_score":
				c.GridConflictScore = v
			case "fixed_site_cost":
				c.FixedSiteCost = v
			case "cost_per_port":
				c.CostPerPort = v
			case "cost_per_kw_pv":
				c.CostPerKWPV = v
			case "cost_per_kwh_storage":
				c.CostPerKWhStorage = v
			case "interconnection_base":
				c.InterconnectionBase = v
			case "interconnection_per_kw":
				c.InterconnectionPerKW = v
			}
		}
		if c.ID == "" {
			return nil, fmt.Errorf("row %d: empty id", row)
		}
		out = append(out, c)
	}
	return out, nil
}

// ParseDemandNodes reads a CSV with id,x,y columns into demand nodes.
func ParseDemandNodes(r io.Reader) ([]model.DemandNodeIn, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range []string{"id", "x", "y"} {
		if _, ok := idx[req]; !ok {
			return nil, fmt.Errorf("missing required column %q", req)
		}
	}
	var out []model.DemandNodeIn
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		id := strings.TrimSpace(rec[idx["id"]])
		if id == "" {
			return nil, fmt.Errorf("row %d: empty id", row)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["x"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: column x: %w", row, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["y"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: column y: %w", row, err)
		}
		out = append(out, model.DemandNodeIn{ID: id, X: x, Y: y})
	}
	return out, nil
}

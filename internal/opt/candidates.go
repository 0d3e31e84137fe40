package opt

import (
	"fmt"
	"math"
)

// Candidate is one siteable location with externally computed scores and cost
// coefficients. Coordinates are projected meters. All scores and costs are
// non-negative; validation happens in NewTable, so code downstream of a Table
// never re-checks.
type Candidate struct {
	ID string
	X  float64
	Y  float64

	DemandScore       float64
	EquityScore       float64
	SafetyPenalty     float64
	GridConflictScore float64

	FixedSiteCost        float64
	CostPerPort          float64
	CostPerKWPV          float64
	CostPerKWhStorage    float64
	InterconnectionBase  float64
	InterconnectionPerKW float64
}

// Table is an immutable, validated candidate table.
type Table struct {
	cands []Candidate
	byID  map[string]int
}

// NewTable validates rows and builds the table. The slice is copied.
func NewTable(cands []Candidate) (*Table, error) {
	t := &Table{
		cands: append([]Candidate(nil), cands...),
		byID:  make(map[string]int, len(cands)),
	}
	for i, c := range t.cands {
		if c.ID == "" {
			return nil, &DataError{Row: i, Reason: "empty id"}
		}
		if prev, dup := t.byID[c.ID]; dup {
			return nil, &DataError{ID: c.ID, Row: i, Reason: fmt.Sprintf("duplicate id (first at row %d)", prev)}
		}
		if !isFinite(c.X) || !isFinite(c.Y) {
			return nil, &DataError{ID: c.ID, Row: i, Reason: "non-finite coordinate"}
		}
		for _, f := range []struct {
			name string
			val  float64
		}{
			{"demand_score", c.DemandScore},
			{"equity_score", c.EquityScore},
			{"safety_penalty", c.SafetyPenalty},
			{"grid_conflict_score", c.GridConflictScore},
			{"fixed_site_cost", c.FixedSiteCost},
			{"cost_per_port", c.CostPerPort},
			{"cost_per_kw_pv", c.CostPerKWPV},
			{"cost_per_kwh_storage", c.CostPerKWhStorage},
			{"interconnection_base", c.InterconnectionBase},
			{"interconnection_per_kw", c.InterconnectionPerKW},
		} {
			if !isFinite(f.val) {
				return nil, &DataError{ID: c.ID, Row: i, Reason: f.name + " is missing or NaN"}
			}
			if f.val < 0 {
				return nil, &DataError{ID: c.ID, Row: i, Reason: f.name + " is negative"}
			}
		}
		t.byID[c.ID] = i
	}
	return t, nil
}

func (t *Table) Len() int           { return len(t.cands) }
func (t *Table) At(i int) Candidate { return t.cands[i] }

// IndexOf returns the row index for a candidate id, or -1.
func (t *Table) IndexOf(id string) int {
	if i, ok := t.byID[id]; ok {
		return i
	}
	return -1
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func dist(ax, ay, bx, by float64) float64 {
	return math.Hypot(ax-bx, ay-by)
}

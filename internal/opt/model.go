package opt

// Model is the assembled siting model handed to a solver. It is declarative:
// variables, bounds, and constraint structure are implied by the candidate
// table, the edge/link sets, and the configuration, so any MILP backend can
// map it onto its own API.
//
// Variables per candidate i: open_i in {0,1}, ports_i integer, pv_kw_i and
// storage_kwh_i continuous. Variables per coverage link (n,i): assign_{n,i}
// in {0,1}.
//
// Constraints:
//   - TotalCost <= Budget
//   - 1 <= sum(open_i) <= MaxSites (the engine requires at least one opened
//     site; a run that cannot build anything is infeasible, not empty)
//   - open_i + open_j <= 1 per spacing edge
//   - PortsMin*open_i <= ports_i <= PortsMax*open_i
//   - PVKWMin*open_i <= pv_kw_i <= PVKWMax*open_i
//   - 0 <= storage_kwh_i <= StorageKWhMax*open_i
//   - sum_i(assign_{n,i}) <= 1 per node; assign_{n,i} <= open_i per link
type Model struct {
	Table *Table
	Nodes []DemandNode
	Edges []SpacingEdge
	Links []CoverageLink
	Cfg   Config

	// OpenScore[i] is the objective delta of opening candidate i at its
	// minimum viable build. Ports, PV, and storage enter the objective only
	// through the cost term with non-negative weight, so in any optimal
	// solution an open site carries ports_min, pv_kw_min, and zero storage;
	// precomputing the per-site score reduces the search to the open vector.
	OpenScore []float64
	// MinSiteCost[i] is the total cost of that minimum viable build.
	MinSiteCost []float64

	linksByNode [][]int
}

// BuildModel validates the configuration, derives spacing edges and coverage
// links, and assembles the model. It never touches a solver.
func BuildModel(t *Table, nodes []DemandNode, cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = DemandNodesFromTable(t)
	}
	m := &Model{
		Table: t,
		Nodes: nodes,
		Edges: BuildSpacingEdges(t, cfg.MinSpacing),
		Links: BuildCoverageLinks(nodes, t, cfg.MaxDetour),
		Cfg:   cfg,
	}
	m.OpenScore = make([]float64, t.Len())
	m.MinSiteCost = make([]float64, t.Len())
	w := cfg.Weights
	for i := 0; i < t.Len(); i++ {
		c := t.At(i)
		m.MinSiteCost[i] = minBuildCost(c, cfg)
		m.OpenScore[i] = w.Util*c.DemandScore +
			w.Equity*c.EquityScore -
			w.SafetyPenalty*c.SafetyPenalty -
			w.GridPenalty*c.GridConflictScore -
			w.NPCCost*m.MinSiteCost[i]/cfg.CostNormalizer
	}
	m.linksByNode = make([][]int, len(nodes))
	for li, l := range m.Links {
		m.linksByNode[l.Node] = append(m.linksByNode[l.Node], li)
	}
	return m, nil
}

// minBuildCost is the cheapest configuration of an opened site: minimum
// ports, minimum PV, no storage.
func minBuildCost(c Candidate, cfg Config) float64 {
	return c.FixedSiteCost +
		float64(cfg.PortsMin)*c.CostPerPort +
		cfg.PVKWMin*c.CostPerKWPV +
		c.InterconnectionBase +
		cfg.PVKWMin*c.InterconnectionPerKW
}

// siteCost prices an arbitrary build at candidate i.
func (m *Model) siteCost(i int, ports int, pvKW, storageKWh float64) float64 {
	c := m.Table.At(i)
	return c.FixedSiteCost +
		float64(ports)*c.CostPerPort +
		pvKW*c.CostPerKWPV +
		storageKWh*c.CostPerKWhStorage +
		c.InterconnectionBase +
		pvKW*c.InterconnectionPerKW
}

// LinksForNode returns indices into Links for one demand node.
func (m *Model) LinksForNode(n int) []int { return m.linksByNode[n] }

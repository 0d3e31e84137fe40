package opt

// DemandNode is a point whose service requirement can be met by at most one
// opened candidate within the detour limit.
type DemandNode struct {
	ID string
	X  float64
	Y  float64
}

// CoverageLink says candidate Cand can serve demand node Node. Links exist
// only for distances within maxDetour; a node with no links simply cannot be
// served, which is a modeling fact rather than an error.
type CoverageLink struct {
	Node     int // index into the demand node slice
	Cand     int // index into the candidate table
	Distance float64
}

// DemandNodesFromTable uses the candidates themselves as demand nodes, the
// default when the caller supplies no separate demand table.
func DemandNodesFromTable(t *Table) []DemandNode {
	nodes := make([]DemandNode, t.Len())
	for i := 0; i < t.Len(); i++ {
		c := t.At(i)
		nodes[i] = DemandNode{ID: c.ID, X: c.X, Y: c.Y}
	}
	return nodes
}

// BuildCoverageLinks emits one link per (node, candidate) pair with distance
// <= maxDetour. Boundary distance is included.
func BuildCoverageLinks(nodes []DemandNode, t *Table, maxDetour float64) []CoverageLink {
	if maxDetour < 0 {
		return nil
	}
	var links []CoverageLink
	for ni, n := range nodes {
		for ci := 0; ci < t.Len(); ci++ {
			c := t.At(ci)
			if d := dist(n.X, n.Y, c.X, c.Y); d <= maxDetour {
				links = append(links, CoverageLink{Node: ni, Cand: ci, Distance: d})
			}
		}
	}
	return links
}

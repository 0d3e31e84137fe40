package opt

import (
	"math"
	"sort"
)

// SpacingEdge is an unordered candidate pair closer than the minimum spacing.
// Indices are table rows with I < J; the pair produces the mutual-exclusion
// constraint open_I + open_J <= 1.
type SpacingEdge struct {
	I, J     int
	Distance float64
}

// BuildSpacingEdges finds every candidate pair strictly closer than dMin.
// A pair at exactly dMin is not in conflict.
//
// Candidates are hashed into a grid with cell size dMin so only pairs in the
// same or adjacent cells are tested; this changes the constant factor, never
// the edge set.
func BuildSpacingEdges(t *Table, dMin float64) []SpacingEdge {
	if dMin <= 0 || t.Len() < 2 {
		return nil
	}
	type cell struct{ cx, cy int }
	grid := make(map[cell][]int, t.Len())
	for i := 0; i < t.Len(); i++ {
		c := t.At(i)
		k := cell{int(math.Floor(c.X / dMin)), int(math.Floor(c.Y / dMin))}
		grid[k] = append(grid[k], i)
	}
	var edges []SpacingEdge
	for i := 0; i < t.Len(); i++ {
		a := t.At(i)
		cx := int(math.Floor(a.X / dMin))
		cy := int(math.Floor(a.Y / dMin))
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for _, j := range grid[cell{cx + dx, cy + dy}] {
					if j <= i {
						continue
					}
					b := t.At(j)
					if d := dist(a.X, a.Y, b.X, b.Y); d < dMin {
						edges = append(edges, SpacingEdge{I: i, J: j, Distance: d})
					}
				}
			}
		}
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].I != edges[b].I {
			return edges[a].I < edges[b].I
		}
		return edges[a].J < edges[b].J
	})
	return edges
}

// adjacency builds per-candidate conflict lists from the edge set.
func adjacency(n int, edges []SpacingEdge) [][]int {
	adj := make([][]int, n)
	for _, e := range edges {
		adj[e.I] = append(adj[e.I], e.J)
		adj[e.J] = append(adj[e.J], e.I)
	}
	return adj
}

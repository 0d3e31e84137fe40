package opt

import "testing"

func TestCoverageLinks(t *testing.T) {
	tbl, err := NewTable([]Candidate{
		validCandidate("a", 0, 0),
		validCandidate("b", 3000, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	nodes := []DemandNode{
		{ID: "n1", X: 500, Y: 0},    // within 2000 of a only
		{ID: "n2", X: 1000, Y: 0},   // within 2000 of both
		{ID: "n3", X: 90000, Y: 0},  // covered by nothing
		{ID: "n4", X: 2000, Y: 0},   // exactly at the boundary of a
	}
	links := BuildCoverageLinks(nodes, tbl, 2000)

	count := map[int]int{}
	for _, l := range links {
		count[l.Node]++
	}
	if count[0] != 1 || count[1] != 2 || count[2] != 0 {
		t.Fatalf("link counts per node: %v", count)
	}
	// Boundary distance is included (<=).
	if count[3] != 2 {
		t.Fatalf("boundary node: want links to both sites, got %d", count[3])
	}
}

func TestDemandNodesFromTable(t *testing.T) {
	tbl, _ := NewTable([]Candidate{validCandidate("a", 1, 2), validCandidate("b", 3, 4)})
	nodes := DemandNodesFromTable(tbl)
	if len(nodes) != 2 || nodes[0].ID != "a" || nodes[1].X != 3 {
		t.Fatalf("nodes: %+v", nodes)
	}
}

package ingest

import (
	"strings"
	"testing"
)

func TestParseCandidates(t *testing.T) {
	in := strings.NewReader(
		"id,x,y,demand_score,equity_score,fixed_site_cost,cost_per_port,cost_per_kw_pv\n" +
			"s1,0,0,2.5,0.8,1500,120,9.5\n" +
			"s2,100,250,1.0,,500,80,\n")
	cands, err := ParseCandidates(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("got %d candidates", len(cands))
	}
	if cands[0].ID != "s1" || cands[0].DemandScore != 2.5 || cands[0].CostPerKWPV != 9.5 {
		t.Fatalf("s1: %+v", cands[0])
	}
	// empty cells default to zero
	if cands[1].EquityScore != 0 || cands[1].CostPerKWPV != 0 {
		t.Fatalf("s2 defaults: %+v", cands[1])
	}
}

func TestParseCandidatesRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown column":  "id,x,y,bogus\ns1,0,0,1\n",
		"missing id col":  "x,y\n0,0\n",
		"bad number":      "id,x,y\ns1,abc,0\n",
		"empty id":        "id,x,y\n,0,0\n",
		"duplicate column": "id,x,x,y\ns1,0,0,0\n",
	}
	for name, in := range cases {
		if _, err := ParseCandidates(strings.NewReader(in)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseCandidatesRowNumberInError(t *testing.T) {
	in := "id,x,y\ns1,0,0\ns2,oops,0\n"
	_, err := ParseCandidates(strings.NewReader(in))
	if err == nil || !strings.Contains(err.Error(), "row 2") {
		t.Fatalf("want row 2 in error, got %v", err)
	}
}

func TestParseDemandNodes(t *testing.T) {
	in := strings.NewReader("id,x,y\nn1,10,20\nn2,30,40\n")
	nodes, err := ParseDemandNodes(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(nodes) != 2 || nodes[1].X != 30 {
		t.Fatalf("nodes: %+v", nodes)
	}
}

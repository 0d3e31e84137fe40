package opt

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"sort"
	"time"
)

// branchBound is the built-in exact backend. It searches over the binary open
// vector only: ports, PV, and storage collapse to their linkage bounds (see
// Model.OpenScore), and assignment variables never enter the objective, so a
// best-first branch-and-bound over site subsets with a relaxation bound is an
// exact MILP solve for this model family.
type branchBound struct{}

func (b *branchBound) Name() string { return "bnb" }

type bbNode struct {
	idx      int   // next position in the branching order
	chosen   []int // table indices opened so far (immutable after push)
	conflict []uint64
	score    float64
	cost     float64
	bound    float64
	seq      int64
}

type bbHeap []*bbNode

func (h bbHeap) Len() int { return len(h) }
func (h bbHeap) Less(a, b int) bool {
	if h[a].bound != h[b].bound {
		return h[a].bound > h[b].bound
	}
	return h[a].seq < h[b].seq
}
func (h bbHeap) Swap(a, b int)   { h[a], h[b] = h[b], h[a] }
func (h *bbHeap) Push(x any)     { *h = append(*h, x.(*bbNode)) }
func (h *bbHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

func (b *branchBound) Solve(ctx context.Context, m *Model, cfg SolverConfig) (RawResult, error) {
	if err := cfg.Validate(); err != nil {
		return RawResult{}, err
	}
	n := m.Table.Len()
	if n == 0 {
		res := RawResult{Outcome: OutcomeInfeasible, RawStatus: "bnb: empty candidate table"}
		res.Advisories = diagnoseInfeasible(m)
		return res, nil
	}

	// Feasibility floor: at least one site must open, singletons never
	// violate spacing, so the run is feasible iff some candidate's minimum
	// build fits the budget.
	feasible := false
	for i := 0; i < n; i++ {
		if m.MinSiteCost[i] <= m.Cfg.Budget {
			feasible = true
			break
		}
	}
	if !feasible {
		res := RawResult{Outcome: OutcomeInfeasible, RawStatus: "bnb: no affordable candidate"}
		res.Advisories = diagnoseInfeasible(m)
		return res, nil
	}

	order := branchOrder(m, cfg.Seed)
	adj := adjacency(n, m.Edges)
	deadline := time.Now().Add(cfg.TimeLimit)

	// Greedy warm start guarantees an incumbent even if the deadline is
	// already tight.
	incumbent, incScore := greedyIncumbent(m, order, adj)

	words := (n + 63) / 64
	root := &bbNode{idx: 0, conflict: make([]uint64, words)}
	root.bound = relaxBound(m, order, root)
	var (
		pq      = bbHeap{root}
		seq     int64
		pops    int64
		outcome = OutcomeOptimal
		ub      = root.bound
	)
	heap.Init(&pq)

	for pq.Len() > 0 {
		pops++
		select {
		case <-ctx.Done():
			outcome = OutcomeFeasibleTimeLimit
		default:
			if time.Now().After(deadline) {
				outcome = OutcomeFeasibleTimeLimit
			}
		}
		if outcome == OutcomeFeasibleTimeLimit {
			ub = math.Max(pq[0].bound, incScore)
			break
		}
		node := heap.Pop(&pq).(*bbNode)
		ub = math.Max(node.bound, incScore)
		if node.bound <= incScore+1e-9 {
			// Best outstanding bound cannot beat the incumbent.
			outcome = OutcomeOptimal
			ub = incScore
			break
		}
		if cfg.MIPGap > 0 {
			gap := (ub - incScore) / math.Max(1e-9, math.Abs(incScore))
			if gap <= cfg.MIPGap {
				outcome = OutcomeFeasibleWithinGap
				break
			}
		}
		if node.idx >= n {
			continue
		}
		ci := order[node.idx]

		// Exclude branch shares the parent's state; only the bound changes.
		excl := &bbNode{
			idx:      node.idx + 1,
			chosen:   node.chosen,
			conflict: node.conflict,
			score:    node.score,
			cost:     node.cost,
		}
		excl.bound = relaxBound(m, order, excl)
		if excl.bound > incScore+1e-9 {
			seq++
			excl.seq = seq
			heap.Push(&pq, excl)
		}

		// Include branch, when candidate ci is compatible and affordable.
		if bitGet(node.conflict, ci) || len(node.chosen) >= m.Cfg.MaxSites ||
			node.cost+m.MinSiteCost[ci] > m.Cfg.Budget {
			continue
		}
		incl := &bbNode{
			idx:      node.idx + 1,
			chosen:   append(append([]int(nil), node.chosen...), ci),
			conflict: append([]uint64(nil), node.conflict...),
			score:    node.score + m.OpenScore[ci],
			cost:     node.cost + m.MinSiteCost[ci],
		}
		for _, nb := range adj[ci] {
			bitSet(incl.conflict, nb)
		}
		// Every partial selection is itself feasible (all constraints are
		// one-sided), so incumbents update on inclusion.
		if incl.score > incScore+1e-12 {
			incScore = incl.score
			incumbent = incl.chosen
		}
		incl.bound = relaxBound(m, order, incl)
		if incl.bound > incScore+1e-9 {
			seq++
			incl.seq = seq
			heap.Push(&pq, incl)
		}
	}
	if pq.Len() == 0 {
		outcome = OutcomeOptimal
		ub = incScore
	}

	res := assemble(m, incumbent, incScore)
	res.Outcome = outcome
	res.Bound = ub
	res.Gap = (ub - incScore) / math.Max(1e-9, math.Abs(incScore))
	if res.Gap < 0 {
		res.Gap = 0
	}
	res.SearchNodes = pops
	res.RawStatus = "bnb: " + outcome.String()
	return res, nil
}

// branchOrder sorts candidates by opening score, best first. A nonzero seed
// shuffles before the stable sort so exact-score ties explore in a
// seed-deterministic order.
func branchOrder(m *Model, seed int64) []int {
	n := m.Table.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if seed != 0 {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := m.OpenScore[order[a]], m.OpenScore[order[b]]
		if sa != sb {
			return sa > sb
		}
		if seed == 0 {
			return m.Table.At(order[a]).ID < m.Table.At(order[b]).ID
		}
		return false
	})
	return order
}

// greedyIncumbent opens compatible positive-score sites in order; if none
// qualifies it falls back to the best single affordable site so the floor
// constraint holds.
func greedyIncumbent(m *Model, order []int, adj [][]int) ([]int, float64) {
	var chosen []int
	score, cost := 0.0, 0.0
	blocked := make([]bool, m.Table.Len())
	for _, ci := range order {
		if m.OpenScore[ci] <= 0 {
			break
		}
		if blocked[ci] || len(chosen) >= m.Cfg.MaxSites || cost+m.MinSiteCost[ci] > m.Cfg.Budget {
			continue
		}
		chosen = append(chosen, ci)
		score += m.OpenScore[ci]
		cost += m.MinSiteCost[ci]
		for _, nb := range adj[ci] {
			blocked[nb] = true
		}
	}
	if len(chosen) > 0 {
		return chosen, score
	}
	best := -1
	for _, ci := range order {
		if m.MinSiteCost[ci] <= m.Cfg.Budget {
			best = ci
			break // order is score-descending
		}
	}
	return []int{best}, m.OpenScore[best]
}

// relaxBound is an admissible completion bound: current score plus the better
// of two relaxations over the unbranched suffix — top-k by cardinality and a
// fractional knapsack on the remaining budget. Both ignore pairwise
// conflicts among suffix items, so neither underestimates.
func relaxBound(m *Model, order []int, node *bbNode) float64 {
	slots := m.Cfg.MaxSites - len(node.chosen)
	budget := m.Cfg.Budget - node.cost
	if slots <= 0 || budget < 0 {
		return node.score
	}
	type item struct{ score, cost float64 }
	var items []item
	for _, ci := range order[node.idx:] {
		if m.OpenScore[ci] <= 0 || bitGet(node.conflict, ci) {
			continue
		}
		items = append(items, item{m.OpenScore[ci], m.MinSiteCost[ci]})
	}
	// Cardinality relaxation: order is score-descending already.
	byCard := 0.0
	for i := 0; i < len(items) && i < slots; i++ {
		byCard += items[i].score
	}
	// Budget relaxation: fractional knapsack by density.
	sort.Slice(items, func(a, b int) bool {
		da := density(items[a].score, items[a].cost)
		db := density(items[b].score, items[b].cost)
		if da != db {
			return da > db
		}
		return items[a].score > items[b].score
	})
	byBudget, rem := 0.0, budget
	for _, it := range items {
		if it.cost <= rem {
			byBudget += it.score
			rem -= it.cost
			continue
		}
		if it.cost > 0 {
			byBudget += it.score * rem / it.cost
		}
		break
	}
	return node.score + math.Min(byCard, byBudget)
}

func density(score, cost float64) float64 {
	if cost <= 0 {
		return math.Inf(1)
	}
	return score / cost
}

// assemble materializes raw variable values for the chosen open set: minimum
// viable builds, and each demand node assigned to its nearest open in-range
// site.
func assemble(m *Model, chosen []int, score float64) RawResult {
	n := m.Table.Len()
	res := RawResult{
		Open:       make([]float64, n),
		Ports:      make([]float64, n),
		PVKW:       make([]float64, n),
		StorageKWh: make([]float64, n),
		Assign:     make([]float64, len(m.Links)),
		Objective:  score,
	}
	open := make([]bool, n)
	for _, ci := range chosen {
		open[ci] = true
		res.Open[ci] = 1
		res.Ports[ci] = float64(m.Cfg.PortsMin)
		res.PVKW[ci] = m.Cfg.PVKWMin
	}
	for ni := range m.Nodes {
		best := -1
		for _, li := range m.LinksForNode(ni) {
			l := m.Links[li]
			if !open[l.Cand] {
				continue
			}
			if best < 0 || l.Distance < m.Links[best].Distance {
				best = li
			}
		}
		if best >= 0 {
			res.Assign[best] = 1
		}
	}
	return res
}

func bitGet(bits []uint64, i int) bool { return bits[i/64]&(1<<(uint(i)%64)) != 0 }
func bitSet(bits []uint64, i int)      { bits[i/64] |= 1 << (uint(i) % 64) }

package solver

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrInfeasible is returned when no assignment satisfies every dimension
// bound with the given fleet.
var ErrInfeasible = errors.New("no solution found for the given constraints")

// Assignment is a feasible solution: one visit order per vehicle, node
// indices into the model's location list, depot excluded. Every non-depot
// node appears in exactly one route, exactly once.
type Assignment struct {
	Routes [][]int
}

// Solve searches for a near-optimal assignment: cheapest-arc construction
// followed by local search (2-opt, Or-opt relocation, randomized
// removal/reinsertion) bounded by the time budget. Perturbation is seeded;
// the deadline decides how many improvement rounds run. No global optimality
// guarantee.
func Solve(m Model, budget time.Duration, seed int64) (Assignment, error) {
	n := len(m.Matrix)
	if n < 2 {
		return Assignment{}, fmt.Errorf("solve: need at least 2 locations, got %d", n)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// A node whose single demand exceeds every vehicle cap can never be
	// placed; fail fast with the reason instead of burning the budget.
	for node := 1; node < n; node++ {
		if !nodeEverFeasible(m, node) {
			return Assignment{}, fmt.Errorf("%w: location %d exceeds every vehicle bound", ErrInfeasible, node)
		}
	}

	asg, ok := construct(m)
	if !ok {
		return Assignment{}, ErrInfeasible
	}
	asg = improve(m, asg, budget, rand.New(rand.NewSource(seed)))
	return asg, nil
}

func nodeEverFeasible(m Model, node int) bool {
	for v := 0; v < m.NumVehicles; v++ {
		if routeFeasible(m, v, []int{node}) {
			return true
		}
	}
	return false
}

// routeFeasible checks every cumulative dimension prefix against the
// vehicle's cap. Arc-cost cumulation starts at the depot arc.
func routeFeasible(m Model, vehicle int, order []int) bool {
	for _, d := range m.Dimensions {
		limit := d.VehicleCaps[vehicle]
		var cum int64
		prev := m.Depot
		for _, node := range order {
			if d.ArcCost {
				cum += m.Matrix[prev][node]
			} else {
				cum += d.Transit[node]
			}
			if cum > limit {
				return false
			}
			prev = node
		}
	}
	return true
}

func routeCost(m Model, order []int) int64 {
	var total int64
	prev := m.Depot
	for _, node := range order {
		total += m.Matrix[prev][node]
		prev = node
	}
	return total
}

func totalCost(m Model, asg Assignment) int64 {
	var total int64
	for _, r := range asg.Routes {
		total += routeCost(m, r)
	}
	return total
}

// construct builds a seed solution by repeatedly taking the globally
// cheapest feasible arc extension, then falls back to cheapest insertion for
// stragglers.
func construct(m Model) (Assignment, bool) {
	n := len(m.Matrix)
	asg := Assignment{Routes: make([][]int, m.NumVehicles)}
	used := make([]bool, n)
	used[m.Depot] = true
	remaining := n - 1

	for remaining > 0 {
		bestV, bestNode := -1, -1
		bestCost := int64(math.MaxInt64)
		for v := 0; v < m.NumVehicles; v++ {
			end := m.Depot
			if len(asg.Routes[v]) > 0 {
				end = asg.Routes[v][len(asg.Routes[v])-1]
			}
			for node := 1; node < n; node++ {
				if used[node] {
					continue
				}
				c := m.Matrix[end][node]
				if c >= bestCost {
					continue
				}
				cand := append(append([]int(nil), asg.Routes[v]...), node)
				if !routeFeasible(m, v, cand) {
					continue
				}
				bestCost = c
				bestV = v
				bestNode = node
			}
		}
		if bestNode < 0 {
			break
		}
		asg.Routes[bestV] = append(asg.Routes[bestV], bestNode)
		used[bestNode] = true
		remaining--
	}

	// Cheapest feasible insertion for anything the greedy pass left behind.
	for node := 1; node < n; node++ {
		if used[node] {
			continue
		}
		v, pos, ok := cheapestInsertion(m, asg, node)
		if !ok {
			return Assignment{}, false
		}
		asg.Routes[v] = insertAt(asg.Routes[v], pos, node)
		used[node] = true
		remaining--
	}
	return asg, remaining == 0
}

// cheapestInsertion finds the feasible position with minimal cost delta
// across all vehicles.
func cheapestInsertion(m Model, asg Assignment, node int) (vehicle, pos int, ok bool) {
	bestDelta := int64(math.MaxInt64)
	for v := 0; v < m.NumVehicles; v++ {
		route := asg.Routes[v]
		base := routeCost(m, route)
		for p := 0; p <= len(route); p++ {
			cand := insertAt(append([]int(nil), route...), p, node)
			if !routeFeasible(m, v, cand) {
				continue
			}
			delta := routeCost(m, cand) - base
			if delta < bestDelta {
				bestDelta = delta
				vehicle = v
				pos = p
				ok = true
			}
		}
	}
	return vehicle, pos, ok
}

func insertAt(route []int, pos, node int) []int {
	route = append(route, 0)
	copy(route[pos+1:], route[pos:])
	route[pos] = node
	return route
}

// improve runs the local-search loop until the deadline: intra-route 2-opt,
// Or-opt relocations, and randomized removal with cheapest reinsertion to
// escape local minima.
func improve(m Model, asg Assignment, budget time.Duration, rng *rand.Rand) Assignment {
	best := cloneAssignment(asg)
	bestCost := totalCost(m, best)
	curr := cloneAssignment(asg)
	deadline := time.Now().Add(budget)

	for time.Now().Before(deadline) {
		improved := false
		if twoOptPass(m, curr) {
			improved = true
		}
		if orOptPass(m, curr) {
			improved = true
		}
		c := totalCost(m, curr)
		if c < bestCost {
			best = cloneAssignment(curr)
			bestCost = c
		}
		if improved {
			continue
		}
		// Local minimum: perturb by removing a few random nodes and
		// reinserting them at their cheapest feasible positions.
		if !perturb(m, &curr, rng) {
			break
		}
	}
	return best
}

// twoOptPass reverses intra-route segments when that lowers cost and stays
// feasible. First-improvement per route.
func twoOptPass(m Model, asg Assignment) bool {
	improved := false
	for v := range asg.Routes {
		route := asg.Routes[v]
		n := len(route)
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := append([]int(nil), route...)
				for a, b := i, k; a < b; a, b = a+1, b-1 {
					cand[a], cand[b] = cand[b], cand[a]
				}
				if routeCost(m, cand) >= routeCost(m, route) {
					continue
				}
				if !routeFeasible(m, v, cand) {
					continue
				}
				copy(route, cand)
				improved = true
			}
		}
	}
	return improved
}

// orOptPass relocates segments of one or two consecutive nodes to a cheaper
// feasible position, within or across routes.
func orOptPass(m Model, asg Assignment) bool {
	improved := false
	for v := range asg.Routes {
		for segLen := 1; segLen <= 2; segLen++ {
			route := asg.Routes[v]
			for i := 0; i+segLen <= len(route); i++ {
				seg := append([]int(nil), route[i:i+segLen]...)
				rest := append(append([]int(nil), route[:i]...), route[i+segLen:]...)
				beforeV := routeCost(m, route)

				bestW, bestPos := -1, -1
				var bestGain int64
				for w := range asg.Routes {
					target := rest
					beforeW := beforeV
					if w != v {
						target = asg.Routes[w]
						beforeW = routeCost(m, target)
					}
					for p := 0; p <= len(target); p++ {
						cand := append([]int(nil), target...)
						for si := len(seg) - 1; si >= 0; si-- {
							cand = insertAt(cand, p, seg[si])
						}
						if !routeFeasible(m, w, cand) {
							continue
						}
						var gain int64
						if w == v {
							gain = beforeV - routeCost(m, cand)
						} else {
							if !routeFeasible(m, v, rest) {
								continue
							}
							gain = (beforeV - routeCost(m, rest)) + (beforeW - routeCost(m, cand))
						}
						if gain > bestGain {
							bestGain = gain
							bestW = w
							bestPos = p
						}
					}
				}
				if bestW < 0 {
					continue
				}
				if bestW == v {
					cand := append([]int(nil), rest...)
					for si := len(seg) - 1; si >= 0; si-- {
						cand = insertAt(cand, bestPos, seg[si])
					}
					asg.Routes[v] = cand
				} else {
					asg.Routes[v] = rest
					cand := append([]int(nil), asg.Routes[bestW]...)
					for si := len(seg) - 1; si >= 0; si-- {
						cand = insertAt(cand, bestPos, seg[si])
					}
					asg.Routes[bestW] = cand
				}
				improved = true
				route = asg.Routes[v]
				i = -1 // restart scan for this route after a move
			}
		}
	}
	return improved
}

// perturb removes 1-3 random nodes and reinserts each at its cheapest
// feasible position. Returns false when reinsertion fails, which leaves the
// current solution untouched.
func perturb(m Model, asg *Assignment, rng *rand.Rand) bool {
	var present []int
	for _, r := range asg.Routes {
		present = append(present, r...)
	}
	if len(present) < 2 {
		return false
	}
	k := 1 + rng.Intn(3)
	if k > len(present) {
		k = len(present)
	}
	rng.Shuffle(len(present), func(i, j int) { present[i], present[j] = present[j], present[i] })
	removed := present[:k]

	cand := cloneAssignment(*asg)
	rm := map[int]bool{}
	for _, node := range removed {
		rm[node] = true
	}
	for v := range cand.Routes {
		kept := cand.Routes[v][:0]
		for _, node := range cand.Routes[v] {
			if !rm[node] {
				kept = append(kept, node)
			}
		}
		cand.Routes[v] = kept
	}
	for _, node := range removed {
		v, pos, ok := cheapestInsertion(m, cand, node)
		if !ok {
			return false
		}
		cand.Routes[v] = insertAt(cand.Routes[v], pos, node)
	}
	*asg = cand
	return true
}

func cloneAssignment(asg Assignment) Assignment {
	out := Assignment{Routes: make([][]int, len(asg.Routes))}
	for i, r := range asg.Routes {
		out.Routes[i] = append([]int(nil), r...)
	}
	return out
}

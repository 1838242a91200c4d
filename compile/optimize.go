package compile

import (
	"math/rand/v2"

	"github.com/korpling/graphannis-go/query"
)

// optimizerSeed fixes the join-order optimizer's pseudorandom generator so
// that two calls against the same conjunction and graph produce the same
// plan, per §4.4's determinism requirement.
const optimizerSeed1, optimizerSeed2 = 0x4a9f1c2d5b7e3081, 0x1d4e6f8a2c9b5037

// Optimize searches for a cheaper operator order than initialOrder by
// random local search, returning the best order found and the plan it
// builds. initialOrder is always included as a candidate, so Optimize
// never returns a plan worse than Build(conj, g, initialOrder) would.
//
// The search uses a fixed-seed generator: the same conjunction, graph, and
// initial order always explore the same sequence of neighbour orders.
func Optimize(conj query.Conjunction, g Graph, initialOrder []int) ([]int, *Node, error) {
	best, err := Build(conj, g, initialOrder)
	if err != nil {
		return nil, nil, err
	}
	bestOrder := append([]int(nil), initialOrder...)
	bestCost := best.Cost.IntermediateSum

	numOperators := len(initialOrder)
	if numOperators < 2 {
		return bestOrder, best, nil
	}

	rng := rand.New(rand.NewPCG(optimizerSeed1, optimizerSeed2))
	maxUnsuccessful := 5 * numOperators

	for unsuccessful := 0; unsuccessful < maxUnsuccessful; unsuccessful++ {
		improved := false
		for neighbour := 0; neighbour < 4; neighbour++ {
			candidate := neighbourOrder(bestOrder, rng)
			plan, err := Build(conj, g, candidate)
			if err != nil {
				continue
			}
			if plan.Cost.IntermediateSum < bestCost {
				bestCost = plan.Cost.IntermediateSum
				bestOrder = candidate
				best = plan
				improved = true
			}
		}
		if improved {
			unsuccessful = -1
		}
	}

	return bestOrder, best, nil
}

// neighbourOrder returns a copy of order with two randomly chosen
// positions swapped.
func neighbourOrder(order []int, rng *rand.Rand) []int {
	n := len(order)
	out := append([]int(nil), order...)
	i := rng.IntN(n)
	j := rng.IntN(n)
	out[i], out[j] = out[j], out[i]
	return out
}

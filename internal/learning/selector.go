package learning

import (
	"math/rand"
	"sync"
)

// defaultEpsilon is the exploration rate (0.1 = 10% explore, 90% exploit).
const defaultEpsilon = 0.1

// EpsilonGreedy chooses among ranked recommendations with ε-greedy
// exploration: with probability ε a random candidate, otherwise the top one.
//
// The recommender itself never explores; this selector is for callers that
// want the configured exploration rate applied at the point of choice.
type EpsilonGreedy struct {
	mu      sync.Mutex
	epsilon float64
	rng     *rand.Rand
}

// NewEpsilonGreedy creates a selector with the given exploration rate; rates
// outside [0,1] fall back to the default.
func NewEpsilonGreedy(epsilon float64, seed int64) *EpsilonGreedy {
	if epsilon < 0 || epsilon > 1 {
		epsilon = defaultEpsilon
	}
	return &EpsilonGreedy{
		epsilon: epsilon,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Choose returns the selected tool name and whether the pick was exploration.
func (e *EpsilonGreedy) Choose(recommendations []Recommendation) (string, bool) {
	if len(recommendations) == 0 {
		return "", false
	}
	if len(recommendations) == 1 {
		return recommendations[0].ToolName, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rng.Float64() < e.epsilon {
		idx := e.rng.Intn(len(recommendations))
		return recommendations[idx].ToolName, true
	}

	return recommendations[0].ToolName, false
}

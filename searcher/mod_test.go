package searcher

import (
	"testing"

	"planner/mdp"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// chain is S0 -> S2 by "fast" or S0 -> S1 -> S2 by "slow" then "forward".
type chain struct {
	fastCost float64
}

const (
	s0 = iota
	s1
	s2
)

func (c chain) Actions(s int) []string {
	switch s {
	case s0:
		return []string{"fast", "slow"}
	case s1:
		return []string{"forward"}
	}
	return nil
}

func (c chain) Next(s int, a string, _ *rand.Rand) int {
	if s == s0 && a == "slow" {
		return s1
	}
	return s2
}

func (c chain) IsTerminal(s int) bool { return s == s2 }

func (c chain) Cost(s int, a string, _ int) float64 {
	if s == s0 && a == "fast" {
		return c.fastCost
	}
	return 1
}

// maze is a small random graph where successors repeat often.
type maze struct{}

func (maze) Actions(s int) []int { return []int{0, 1, 2} }

func (maze) Next(s, a int, rng *rand.Rand) int {
	return min(s+a+rng.Intn(3), 5)
}

func (maze) IsTerminal(s int) bool { return s == 5 }

func (maze) Cost(_, a, _ int) float64 { return 1 + 0.1*float64(a) }

// endless never terminates and never samples a state twice.
type endless struct{}

func (endless) Actions(int) []int { return []int{0, 1} }

func (endless) Next(_, _ int, rng *rand.Rand) int { return int(rng.Int63()) }

func (endless) IsTerminal(int) bool { return false }

func (endless) Cost(int, int, int) float64 { return 1 }

// stuck is not terminal at 0 but offers no action there.
type stuck struct{}

func (stuck) Actions(int) []string { return nil }

func (stuck) Next(s int, _ string, _ *rand.Rand) int { return s }

func (stuck) IsTerminal(int) bool { return false }

func (stuck) Cost(int, string, int) float64 { return 1 }

type discounted struct {
	chain
}

func (discounted) Discount() float64 { return 0.5 }

// lastAction is a policy picking the last admissible action.
type lastAction[S, A comparable] struct {
	model mdp.Model[S, A]
}

func (p lastAction[S, A]) Action(s S, _ *rand.Rand) A {
	actions := p.model.Actions(s)
	return actions[len(actions)-1]
}

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func zeroBaseline[S, A comparable](model mdp.Model[S, A]) mdp.Baseline[S, A] {
	return mdp.NewBaseline[S, A](lastAction[S, A]{model: model}, nil)
}

// requireVisitsConsistent checks that every visited node below h was visited
// once more than its branches together.
func requireVisitsConsistent[S, A comparable](t *testing.T, m *MCTS[S, A], h Handle) {
	t.Helper()
	node := m.pool.Get(h)
	if node.Visits == 0 {
		return
	}
	sum := 0
	for _, b := range node.branches {
		sum += b.Visits
		for _, child := range b.children {
			requireVisitsConsistent(t, m, child)
		}
	}
	require.Equal(t, node.Visits, sum+1, "node %d at state %v", h, node.state)
}

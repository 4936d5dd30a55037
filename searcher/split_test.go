package searcher

import (
	"fmt"
	"testing"

	"planner/mdp"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

type joint struct {
	domain  string
	message string
}

// signals is a one-step factored model: moving "near" is cheaper than "far"
// and shouting adds a small cost on top of either.
type signals struct {
	steps int // steps before termination
}

func (m signals) Actions(s int) []joint {
	var actions []joint
	for _, d := range m.DomainActions(s) {
		for _, msg := range m.Messages(s) {
			actions = append(actions, joint{d, msg})
		}
	}
	return actions
}

func (signals) DomainActions(int) []string { return []string{"far", "near"} }

func (signals) Messages(int) []string { return []string{"shout", "quiet"} }

func (signals) Join(d, m string) joint { return joint{d, m} }

func (signals) Split(a joint) (string, string) { return a.domain, a.message }

func (signals) Next(s int, _ joint, rng *rand.Rand) int {
	if rng.Float64() < 0.5 {
		return s + 1
	}
	return s + 1 + 100 // same depth, different outcome
}

func (m signals) IsTerminal(s int) bool { return s%100 >= m.steps }

func (signals) Cost(_ int, a joint, _ int) float64 {
	cost := 1.0
	if a.domain == "far" {
		cost = 2
	}
	if a.message == "shout" {
		cost += 0.25
	}
	return cost
}

// requireSplitVisitsConsistent checks that every visited state node below h
// was visited once more than its intermediates together, and that every
// intermediate was visited exactly as often as its messages together.
func requireSplitVisitsConsistent[S, A, D, M comparable](t *testing.T, m *Split[S, A, D, M], h Handle) {
	t.Helper()
	node := m.pool.Get(h)
	if node.Visits == 0 {
		return
	}
	sum := 0
	for _, inter := range node.branches {
		messages := 0
		for _, b := range inter.branches {
			messages += b.Visits
			for _, child := range b.children {
				requireSplitVisitsConsistent(t, m, child)
			}
		}
		require.Equal(t, inter.Visits, messages, "intermediate %v at state %v", inter.domain, node.state)
		sum += inter.Visits
	}
	require.Equal(t, node.Visits, sum+1, "node %d at state %v", h, node.state)
}

func TestSplitGrow(t *testing.T) {
	t.Run("first grow expands a domain action and its first message", func(t *testing.T) {
		model := signals{steps: 1}
		m := NewSplit[int, joint, string, string](model, zeroBaseline[int, joint](model))
		root := m.Root(0)

		require.NoError(t, m.Grow(root, newRNG()))

		node := m.pool.Get(root)
		require.Equal(t, 2, node.Visits)
		require.Len(t, node.branches, 1)
		inter := node.branches[0]
		require.Equal(t, "far", inter.domain)
		require.Equal(t, 1, inter.Visits, "Intermediate should count the simulation once")
		require.InDelta(t, -2.25, inter.Value, 1e-9)
		require.Len(t, inter.branches, 1)
		require.Equal(t, "shout", inter.branches[0].action)
		require.InDelta(t, -2.25, inter.branches[0].Value, 1e-9)
		require.Equal(t, 2, m.NodeCount())
		requireSplitVisitsConsistent(t, m, root)
	})

	t.Run("domain action values are the mean of their returns", func(t *testing.T) {
		model := signals{steps: 2}
		m := NewSplit[int, joint, string, string](model, zeroBaseline[int, joint](model), WithExploration(1))
		root := m.Root(0)
		rng := newRNG()

		for i := 0; i < 200; i++ {
			require.NoError(t, m.Grow(root, rng))
		}

		// Every return credited to a domain action is also credited to exactly
		// one of its messages, whose values are the means of those returns.
		for _, inter := range m.pool.Get(root).branches {
			total, visits := 0.0, 0
			for _, b := range inter.branches {
				total += b.Value * float64(b.Visits)
				visits += b.Visits
			}
			require.Equal(t, visits, inter.Visits)
			require.InDelta(t, total/float64(visits), inter.Value, 1e-9, "domain action %v", inter.domain)
		}
	})

	for _, backup := range []Backup{MonteCarlo{}, Max{}} {
		t.Run(fmt.Sprintf("visits stay consistent with %v backup", backup), func(t *testing.T) {
			model := signals{steps: 3}
			m := NewSplit[int, joint, string, string](model, zeroBaseline[int, joint](model), WithBackup(backup), WithExploration(1))
			root := m.Root(0)
			rng := newRNG()

			for i := 0; i < 400; i++ {
				before := m.NodeCount()
				require.NoError(t, m.Grow(root, rng))
				require.LessOrEqual(t, m.NodeCount()-before, 1)
			}
			requireSplitVisitsConsistent(t, m, root)
		})
	}

	t.Run("domain choice converges regardless of message exploration", func(t *testing.T) {
		model := signals{steps: 1}
		m := NewSplit[int, joint, string, string](model, zeroBaseline[int, joint](model), WithExploration(0.5))
		root := m.Root(0)
		rng := newRNG()

		for i := 0; i < 300; i++ {
			require.NoError(t, m.Grow(root, rng))
		}

		best, ok := m.Best(root)
		require.True(t, ok)
		require.Equal(t, joint{"near", "quiet"}, best)

		node := m.pool.Get(root)
		far, near := node.branch("far"), node.branch("near")
		require.Greater(t, near.Visits, far.Visits)
		require.InDelta(t, -1.0, near.branch("quiet").Value, 1e-9)
		require.InDelta(t, -1.25, near.branch("shout").Value, 1e-9)
		require.Greater(t, near.Value, far.Value)
	})

	t.Run("child follows both parts of the joint action", func(t *testing.T) {
		model := signals{steps: 2}
		m := NewSplit[int, joint, string, string](model, zeroBaseline[int, joint](model))
		root := m.Root(0)
		rng := newRNG()
		for i := 0; i < 20; i++ {
			require.NoError(t, m.Grow(root, rng))
		}

		inter := m.pool.Get(root).branch("far")
		next := inter.branch("shout").outcomes[0]
		child, ok := m.Child(root, joint{"far", "shout"}, next)
		require.True(t, ok)
		require.Equal(t, next, m.State(child))

		_, ok = m.Child(root, joint{"far", "whisper"}, next)
		require.False(t, ok)
		_, ok = m.Child(root, joint{"stay", "shout"}, next)
		require.False(t, ok)
	})

	t.Run("no message at a non-terminal state", func(t *testing.T) {
		model := silent{signals{steps: 1}}
		m := NewSplit[int, joint, string, string](model, zeroBaseline[int, joint](model.signals))
		root := m.Root(0)

		require.ErrorIs(t, m.Grow(root, newRNG()), ErrNoActions)
	})
}

type silent struct {
	signals
}

func (silent) Messages(int) []string { return nil }

func TestSplitEpisode(t *testing.T) {
	t.Run("episode plays the cheapest joint actions", func(t *testing.T) {
		model := signals{steps: 2}
		costToGo := mdp.Heuristic[int](func(s int) float64 { return -float64(model.steps - s%100) })
		baseline := mdp.NewBaseline[int, joint](lastAction[int, joint]{model}, costToGo)
		m := NewSplit[int, joint, string, string](model, baseline, WithIterations(500), WithMetrics())
		episode := m.Episode(0, newRNG())

		var steps []Step[int, joint]
		for step := range episode.All() {
			steps = append(steps, step)
			require.Equal(t, "near", step.Action.domain)
		}

		require.NoError(t, episode.Err())
		require.Len(t, steps, 2)
		require.Equal(t, joint{"near", "quiet"}, steps[1].Action)
		require.True(t, steps[1].Search.IsTreeReused)
	})

	t.Run("zero budget falls back to the baseline policy", func(t *testing.T) {
		model := signals{steps: 1}
		policy := mdp.CandidatesPolicy[int](joint{"far", "shout"})
		m := NewSplit[int, joint, string, string](model, mdp.NewBaseline(policy, nil), WithIterations(0))

		cost, err := m.Eval(0, newRNG())

		require.NoError(t, err)
		require.Equal(t, 2.25, cost)
		require.Equal(t, 0, m.NodeCount())
	})

	t.Run("bootstrap pairs domain actions with the baseline message", func(t *testing.T) {
		model := signals{steps: 1}
		baseline := &jointEvaluator{policy: mdp.CandidatesPolicy[int](joint{"near", "quiet"})}
		m := NewSplit[int, joint, string, string](model, baseline)
		root := m.Root(0)

		require.NoError(t, m.Grow(root, newRNG()))

		inter := m.pool.Get(root).branch("far")
		require.Equal(t, -2.0, inter.bootstrap, "far should be estimated with the quiet message")
		require.Equal(t, -2.25, inter.branch("shout").bootstrap)
		require.Equal(t, 1, inter.Visits)
		require.Equal(t, -2.25, inter.Value, "The first return should replace the bootstrap")
	})
}

// jointEvaluator estimates every joint action by its exact cost.
type jointEvaluator struct {
	policy mdp.Policy[int, joint]
}

func (e *jointEvaluator) Action(s int, rng *rand.Rand) joint { return e.policy.Action(s, rng) }

func (e *jointEvaluator) Value(int, *rand.Rand) float64 { return 0 }

func (e *jointEvaluator) ActionValue(s int, a joint, _ *rand.Rand) float64 {
	return -signals{}.Cost(s, a, s)
}

package searcher

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"planner/mdp"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestMCTSGrow(t *testing.T) {
	t.Run("first grow visits the root and expands the first action", func(t *testing.T) {
		model := chain{fastCost: 1}
		m := NewMCTS[int, string](model, zeroBaseline[int, string](model))
		root := m.Root(s0)

		err := m.Grow(root, newRNG())

		require.NoError(t, err)
		require.Equal(t, 2, m.NodeCount(), "Grow should allocate the sampled successor")
		node := m.pool.Get(root)
		require.Equal(t, 2, node.Visits, "Root should count its creation visit and the simulation")
		require.Len(t, node.branches, 1)
		require.Equal(t, "fast", node.branches[0].action)
		require.Equal(t, Stats{Visits: 1, Value: -1}, node.branches[0].Stats)
	})

	t.Run("every action is expanded before any is revisited", func(t *testing.T) {
		model := maze{}
		m := NewMCTS[int, int](model, zeroBaseline[int, int](model), WithExploration(0))
		root := m.Root(0)
		rng := newRNG()

		for i := 0; i < 3; i++ {
			require.NoError(t, m.Grow(root, rng))
		}

		node := m.pool.Get(root)
		require.Len(t, node.branches, 3)
		for _, b := range node.branches {
			require.Equal(t, 1, b.Visits, "Branch %d should be visited exactly once", b.action)
		}
	})

	t.Run("a terminal root only records its creation visit", func(t *testing.T) {
		model := chain{fastCost: 1}
		m := NewMCTS[int, string](model, zeroBaseline[int, string](model))
		root := m.Root(s2)

		for i := 0; i < 3; i++ {
			require.NoError(t, m.Grow(root, newRNG()))
		}

		require.Equal(t, Stats{Visits: 1, Value: 0}, m.Stats(root))
		require.Equal(t, 1, m.NodeCount())
	})

	t.Run("growing adds one node per simulation without transpositions", func(t *testing.T) {
		model := endless{}
		m := NewMCTS[int, int](model, zeroBaseline[int, int](model))
		root := m.Root(0)
		rng := newRNG()

		for i := 0; i < 50; i++ {
			require.NoError(t, m.Grow(root, rng))
		}

		require.Equal(t, 51, m.NodeCount())
	})

	t.Run("growing adds at most one node per simulation", func(t *testing.T) {
		model := maze{}
		m := NewMCTS[int, int](model, zeroBaseline[int, int](model))
		root := m.Root(0)
		rng := newRNG()

		for i := 0; i < 200; i++ {
			before := m.NodeCount()
			require.NoError(t, m.Grow(root, rng))
			require.LessOrEqual(t, m.NodeCount()-before, 1)
		}
	})

	t.Run("successors are never duplicated within a branch", func(t *testing.T) {
		model := maze{}
		m := NewMCTS[int, int](model, zeroBaseline[int, int](model))
		root := m.Root(0)
		rng := newRNG()

		for i := 0; i < 300; i++ {
			require.NoError(t, m.Grow(root, rng))
		}

		for h := Handle(0); int(h) < m.NodeCount(); h++ {
			for _, b := range m.pool.Get(h).branches {
				seen := map[int]bool{}
				for _, s := range b.outcomes {
					require.False(t, seen[s], "State %d should appear once under branch %d", s, b.action)
					seen[s] = true
				}
				require.Len(t, b.children, len(b.outcomes))
			}
		}
	})

	t.Run("no admissible action at a non-terminal state", func(t *testing.T) {
		model := stuck{}
		m := NewMCTS[int, string](model, mdp.NewBaseline[int, string](mdp.CandidatesPolicy[int]("wait"), nil))
		root := m.Root(0)

		err := m.Grow(root, newRNG())

		require.ErrorIs(t, err, ErrNoActions)
	})
}

func TestMCTSVisitCounts(t *testing.T) {
	backups := []Backup{MonteCarlo{}, Max{}}

	for _, backup := range backups {
		t.Run(fmt.Sprintf("visits stay consistent with %v backup", backup), func(t *testing.T) {
			model := maze{}
			m := NewMCTS[int, int](model, zeroBaseline[int, int](model), WithBackup(backup), WithExploration(1))
			root := m.Root(0)
			rng := newRNG()

			for i := 0; i < 500; i++ {
				require.NoError(t, m.Grow(root, rng))
				if i%50 == 0 {
					requireVisitsConsistent(t, m, root)
				}
			}
			requireVisitsConsistent(t, m, root)
		})
	}

	t.Run("bootstrap values stay fixed", func(t *testing.T) {
		model := maze{}
		baseline := &rolloutBaseline{Rollout: mdp.NewRollout[int, int](model, mdp.RandomPolicy[int, int](model), 2, 3)}
		m := NewMCTS[int, int](model, baseline)
		root := m.Root(0)
		rng := newRNG()

		require.NoError(t, m.Grow(root, rng))
		bootstrap := m.pool.Get(root).branches[0].bootstrap
		for i := 0; i < 50; i++ {
			require.NoError(t, m.Grow(root, rng))
		}

		require.Equal(t, bootstrap, m.pool.Get(root).branches[0].bootstrap)
		require.Positive(t, baseline.calls)
	})
}

// rolloutBaseline counts the action estimates it hands out.
type rolloutBaseline struct {
	*mdp.Rollout[int, int]
	calls int
}

func (b *rolloutBaseline) ActionValue(s, a int, rng *rand.Rand) float64 {
	b.calls++
	return b.Rollout.ActionValue(s, a, rng)
}

func TestMCTSChain(t *testing.T) {
	t.Run("max backup converges on the fast action", func(t *testing.T) {
		model := chain{fastCost: 1}
		m := NewMCTS[int, string](model, zeroBaseline[int, string](model), WithBackup(Max{}), WithExploration(1))
		root := m.Root(s0)
		rng := newRNG()

		for i := 0; i < 50; i++ {
			require.NoError(t, m.Grow(root, rng))
		}

		node := m.pool.Get(root)
		require.InDelta(t, -1.0, node.branch("fast").Value, 1e-9)
		require.InDelta(t, -2.0, node.branch("slow").Value, 1e-9)
		require.Equal(t, 51, node.Visits)
		requireVisitsConsistent(t, m, root)

		best, ok := m.Best(root)
		require.True(t, ok)
		require.Equal(t, "fast", best)
	})

	t.Run("monte carlo backup prefers the cheaper path", func(t *testing.T) {
		model := chain{fastCost: 3}
		exact := mdp.Heuristic[int](func(s int) float64 {
			if s == s1 {
				return -1
			}
			return 0
		})
		m := NewMCTS[int, string](model, mdp.NewBaseline[int, string](lastAction[int, string]{model}, exact), WithExploration(1))
		root := m.Root(s0)
		rng := newRNG()

		for i := 0; i < 50; i++ {
			require.NoError(t, m.Grow(root, rng))
		}

		node := m.pool.Get(root)
		require.InDelta(t, -3.0, node.branch("fast").Value, 1e-9)
		require.InDelta(t, -2.0, node.branch("slow").Value, 1e-9)
		best, _ := m.Best(root)
		require.Equal(t, "slow", best)
	})

	t.Run("discount applies to the future", func(t *testing.T) {
		model := discounted{chain{fastCost: 3}}
		m := NewMCTS[int, string](model, zeroBaseline[int, string](model), WithBackup(Max{}), WithExploration(1))
		root := m.Root(s0)
		rng := newRNG()

		for i := 0; i < 20; i++ {
			require.NoError(t, m.Grow(root, rng))
		}

		require.InDelta(t, -1.5, m.pool.Get(root).branch("slow").Value, 1e-9)
	})

	t.Run("nothing to pick before the first grow", func(t *testing.T) {
		model := chain{fastCost: 1}
		m := NewMCTS[int, string](model, zeroBaseline[int, string](model))
		root := m.Root(s0)

		_, ok := m.Best(root)

		require.False(t, ok)
	})
}

func TestMCTSTree(t *testing.T) {
	t.Run("child follows an action and a sampled successor", func(t *testing.T) {
		model := chain{fastCost: 1}
		m := NewMCTS[int, string](model, zeroBaseline[int, string](model))
		root := m.Root(s0)
		rng := newRNG()
		for i := 0; i < 2; i++ {
			require.NoError(t, m.Grow(root, rng))
		}

		child, ok := m.Child(root, "slow", s1)
		require.True(t, ok)
		require.Equal(t, s1, m.State(child))

		_, ok = m.Child(root, "slow", s2)
		require.False(t, ok, "Successor was never sampled")
		_, ok = m.Child(root, "jump", s1)
		require.False(t, ok, "Action was never expanded")
	})

	t.Run("dumping the tree", func(t *testing.T) {
		model := chain{fastCost: 1}
		m := NewMCTS[int, string](model, zeroBaseline[int, string](model))
		root := m.Root(s0)
		rng := newRNG()
		for i := 0; i < 4; i++ {
			require.NoError(t, m.Grow(root, rng))
		}

		var buf bytes.Buffer
		m.Dump(&buf, root, 0)

		require.Contains(t, buf.String(), "fast: visits=")
		require.Contains(t, buf.String(), "slow: visits=")
		require.NotContains(t, buf.String(), "forward", "Depth should be limited")
	})

	t.Run("clearing drops the tree", func(t *testing.T) {
		model := chain{fastCost: 1}
		m := NewMCTS[int, string](model, zeroBaseline[int, string](model))
		root := m.Root(s0)
		require.NoError(t, m.Grow(root, newRNG()))

		m.Clear()

		require.Equal(t, 0, m.NodeCount())
	})
}

func TestMCTSEval(t *testing.T) {
	t.Run("eval sums the episode cost and clears the tree", func(t *testing.T) {
		model := chain{fastCost: 3}
		m := NewMCTS[int, string](model, zeroBaseline[int, string](model), WithIterations(50), WithExploration(1))

		cost, err := m.Eval(s0, newRNG())

		require.NoError(t, err)
		require.Equal(t, 2.0, cost)
		require.Equal(t, 0, m.NodeCount())
	})

	t.Run("eval reports contract violations", func(t *testing.T) {
		model := stuck{}
		m := NewMCTS[int, string](model, mdp.NewBaseline[int, string](mdp.CandidatesPolicy[int]("wait"), nil), WithIterations(5))

		_, err := m.Eval(0, newRNG())

		require.True(t, errors.Is(err, ErrNoActions))
	})
}

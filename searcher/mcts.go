package searcher

import (
	"fmt"
	"io"
	"strings"

	"planner/mdp"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

// MCTS grows a search tree over a model one simulation at a time. The tree is
// kept across real steps; Clear drops it.
type MCTS[S, A comparable] struct {
	model    mdp.Model[S, A]
	baseline mdp.Baseline[S, A]
	pool     Pool[decision[S, A]]
	discount float64
	settings
}

func NewMCTS[S, A comparable](model mdp.Model[S, A], baseline mdp.Baseline[S, A], options ...Option) *MCTS[S, A] {
	return &MCTS[S, A]{
		model:    model,
		baseline: baseline,
		discount: mdp.DiscountOf(model),
		settings: newSettings(options),
	}
}

// Root allocates a node for state. The node records its first visit on the
// next Grow call that starts from it. Callers that plan from the node count it
// themselves; only nodes added by Grow reach the collector.
func (m *MCTS[S, A]) Root(state S) Handle {
	return m.pool.Allocate(newDecision[S, A](state))
}

func (m *MCTS[S, A]) leaf(state S) Handle {
	m.metrics.AddNode()
	return m.Root(state)
}

// Grow runs one simulation from root: selection down to a new action or a new
// successor, a single node allocation, and backup along the path.
func (m *MCTS[S, A]) Grow(root Handle, rng *rand.Rand) error {
	_, err := m.simulate(root, rng)
	return err
}

func (m *MCTS[S, A]) simulate(id Handle, rng *rand.Rand) (float64, error) {
	node := m.pool.Get(id)
	if m.model.IsTerminal(node.state) {
		return m.visit(node, rng), nil
	}
	if node.Visits == 0 { // Fresh root
		m.visit(node, rng)
	}

	branch, err := m.selectOrExpand(node, rng)
	if err != nil {
		return 0, err
	}

	next := m.model.Next(node.state, branch.action, rng)
	sample := Sample{
		Reward:   -m.model.Cost(node.state, branch.action, next),
		Discount: m.discount,
	}
	if child, ok := branch.child(next); ok {
		sample.Future, err = m.simulate(child, rng)
		if err != nil {
			return 0, err
		}
		branch.record(next)
	} else {
		child := m.leaf(next)
		sample.Future = m.visit(m.pool.Get(child), rng)
		branch.add(next, child)
	}

	m.backup.Branch(&branch.Stats, sample, branch.outcomeStats(m.stats))
	ret := sample.Return()
	m.backup.Node(&node.Stats, ret, node.branchStats())
	return ret, nil
}

// visit records the first visit of a node and returns its value. Terminal
// nodes keep that single visit and a value of 0.
func (m *MCTS[S, A]) visit(node *decision[S, A], rng *rand.Rand) float64 {
	if node.Visits > 0 {
		return node.Value
	}
	node.Visits = 1
	if m.model.IsTerminal(node.state) {
		node.Value = 0
	} else {
		node.Value = m.baseline.Value(node.state, rng)
	}
	return node.Value
}

func (m *MCTS[S, A]) selectOrExpand(node *decision[S, A], rng *rand.Rand) (*chance[S, A], error) {
	if node.actions == nil {
		node.actions = m.model.Actions(node.state)
		if len(node.actions) == 0 {
			return nil, fmt.Errorf("state %v: %w", node.state, ErrNoActions)
		}
	}

	if len(node.actions) > len(node.branches) { // Expandable node
		action := node.actions[len(node.branches)]
		branch := newChance[S, A](action, m.bootstrap(node.state, action, rng))
		node.branches = append(node.branches, branch)
		return branch, nil
	}

	i := pickUCB(len(node.branches), func(i int) Stats { return node.branches[i].Stats }, node.Visits, m.c)
	return node.branches[i], nil
}

func (m *MCTS[S, A]) bootstrap(state S, action A, rng *rand.Rand) float64 {
	if e, ok := m.baseline.(mdp.ActionEvaluator[S, A]); ok {
		return e.ActionValue(state, action, rng)
	}
	return 0
}

func (m *MCTS[S, A]) stats(h Handle) Stats {
	return m.pool.Get(h).Stats
}

// Best returns the visited action with the highest value at h.
func (m *MCTS[S, A]) Best(h Handle) (A, bool) {
	node := m.pool.Get(h)
	i := pickGreedy(len(node.branches), func(i int) Stats { return node.branches[i].Stats })
	if i < 0 {
		var zero A
		return zero, false
	}
	return node.branches[i].action, true
}

// Child returns the node reached from h by action when it sampled next.
func (m *MCTS[S, A]) Child(h Handle, action A, next S) (Handle, bool) {
	branch := m.pool.Get(h).branch(action)
	if branch == nil {
		return NoHandle, false
	}
	return branch.child(next)
}

func (m *MCTS[S, A]) State(h Handle) S {
	return m.pool.Get(h).state
}

func (m *MCTS[S, A]) Stats(h Handle) Stats {
	return m.stats(h)
}

func (m *MCTS[S, A]) NodeCount() int {
	return m.pool.Len()
}

// Clear drops the whole tree. Handles issued before are invalid afterwards.
func (m *MCTS[S, A]) Clear() {
	log.Debug().Int("nodes", m.pool.Len()).Msg("clearing search tree")
	m.pool.Clear()
}

// Episode plans and acts from start until the model reaches a terminal state.
func (m *MCTS[S, A]) Episode(start S, rng *rand.Rand) *Episode[S, A] {
	return newEpisode[S, A](m, m.model, m.baseline, m.settings, start, rng)
}

// Eval runs one episode from start, clears the tree and returns the total
// cost incurred.
func (m *MCTS[S, A]) Eval(start S, rng *rand.Rand) (float64, error) {
	defer m.Clear()
	return totalCost(m.Episode(start, rng))
}

// Dump writes the tree below h down to maxDepth decision levels.
func (m *MCTS[S, A]) Dump(w io.Writer, h Handle, maxDepth int) {
	m.dump(w, h, 0, maxDepth)
}

func (m *MCTS[S, A]) dump(w io.Writer, h Handle, depth, maxDepth int) {
	if depth > maxDepth {
		return
	}
	node := m.pool.Get(h)
	indent := strings.Repeat("  ", 2*depth)
	fmt.Fprintf(w, "%s%d %v: visits=%d value=%.4f\n", indent, h, node.state, node.Visits, node.Value)
	for _, b := range node.branches {
		fmt.Fprintf(w, "%s  %v: visits=%d value=%.4f\n", indent, b.action, b.Visits, b.Value)
		for _, child := range b.children {
			m.dump(w, child, depth+1, maxDepth)
		}
	}
}

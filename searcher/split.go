package searcher

import (
	"fmt"
	"io"
	"strings"

	"planner/mdp"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

// Split searches a factored action space. Every real step is two decisions:
// a domain action chosen among intermediate nodes, then a message chosen among
// that node's branches. Both are credited with the same sampled return but
// explore with their own visit counts, so an intermediate is visited exactly
// as often as its messages together.
type Split[S, A, D, M comparable] struct {
	model    mdp.FactoredModel[S, A, D, M]
	baseline mdp.Baseline[S, A]
	pool     Pool[stateNode[S, D, M]]
	discount float64
	settings
}

func NewSplit[S, A, D, M comparable](model mdp.FactoredModel[S, A, D, M], baseline mdp.Baseline[S, A], options ...Option) *Split[S, A, D, M] {
	return &Split[S, A, D, M]{
		model:    model,
		baseline: baseline,
		discount: mdp.DiscountOf(model),
		settings: newSettings(options),
	}
}

func (m *Split[S, A, D, M]) Root(state S) Handle {
	return m.pool.Allocate(&stateNode[S, D, M]{state: state})
}

func (m *Split[S, A, D, M]) leaf(state S) Handle {
	m.metrics.AddNode()
	return m.Root(state)
}

// Grow runs one simulation from root.
func (m *Split[S, A, D, M]) Grow(root Handle, rng *rand.Rand) error {
	_, err := m.simulateState(root, rng)
	return err
}

func (m *Split[S, A, D, M]) simulateState(id Handle, rng *rand.Rand) (float64, error) {
	node := m.pool.Get(id)
	if m.model.IsTerminal(node.state) {
		return m.visit(node, rng), nil
	}
	if node.Visits == 0 { // Fresh root
		m.visit(node, rng)
	}

	inter, err := m.selectDomain(node, rng)
	if err != nil {
		return 0, err
	}
	ret, err := m.simulateDomain(node.state, inter, rng)
	if err != nil {
		return 0, err
	}

	m.backup.Node(&node.Stats, ret, node.branchStats())
	return ret, nil
}

func (m *Split[S, A, D, M]) simulateDomain(state S, inter *intermediate[S, D, M], rng *rand.Rand) (float64, error) {
	branch, err := m.selectMessage(state, inter, rng)
	if err != nil {
		return 0, err
	}

	a := m.model.Join(inter.domain, branch.action)
	next := m.model.Next(state, a, rng)
	sample := Sample{
		Reward:   -m.model.Cost(state, a, next),
		Discount: m.discount,
	}
	if child, ok := branch.child(next); ok {
		sample.Future, err = m.simulateState(child, rng)
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
	m.backup.Node(&inter.Stats, ret, inter.branchStats())
	return ret, nil
}

func (m *Split[S, A, D, M]) visit(node *stateNode[S, D, M], rng *rand.Rand) float64 {
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

func (m *Split[S, A, D, M]) selectDomain(node *stateNode[S, D, M], rng *rand.Rand) (*intermediate[S, D, M], error) {
	if node.domains == nil {
		node.domains = m.model.DomainActions(node.state)
		if len(node.domains) == 0 {
			return nil, fmt.Errorf("state %v has no domain action: %w", node.state, ErrNoActions)
		}
	}

	if len(node.domains) > len(node.branches) { // Expandable node
		domain := node.domains[len(node.branches)]
		inter := newIntermediate[S, D, M](domain, m.domainBootstrap(node.state, domain, rng))
		node.branches = append(node.branches, inter)
		return inter, nil
	}

	i := pickUCB(len(node.branches), func(i int) Stats { return node.branches[i].Stats }, node.Visits, m.c)
	return node.branches[i], nil
}

func (m *Split[S, A, D, M]) selectMessage(state S, inter *intermediate[S, D, M], rng *rand.Rand) (*chance[S, M], error) {
	if inter.messages == nil {
		inter.messages = m.model.Messages(state)
		if len(inter.messages) == 0 {
			return nil, fmt.Errorf("state %v has no message: %w", state, ErrNoActions)
		}
	}

	if len(inter.messages) > len(inter.branches) { // Expandable node
		message := inter.messages[len(inter.branches)]
		branch := newChance[S, M](message, m.bootstrap(state, m.model.Join(inter.domain, message), rng))
		inter.branches = append(inter.branches, branch)
		return branch, nil
	}

	i := pickUCB(len(inter.branches), func(i int) Stats { return inter.branches[i].Stats }, inter.Visits, m.c)
	return inter.branches[i], nil
}

func (m *Split[S, A, D, M]) bootstrap(state S, a A, rng *rand.Rand) float64 {
	if e, ok := m.baseline.(mdp.ActionEvaluator[S, A]); ok {
		return e.ActionValue(state, a, rng)
	}
	return 0
}

// domainBootstrap estimates a domain action paired with the message the
// baseline policy would send.
func (m *Split[S, A, D, M]) domainBootstrap(state S, domain D, rng *rand.Rand) float64 {
	if _, ok := m.baseline.(mdp.ActionEvaluator[S, A]); !ok {
		return 0
	}
	_, message := m.model.Split(m.baseline.Action(state, rng))
	return m.bootstrap(state, m.model.Join(domain, message), rng)
}

func (m *Split[S, A, D, M]) stats(h Handle) Stats {
	return m.pool.Get(h).Stats
}

// Best returns the joint action of the highest valued visited domain action
// and its highest valued visited message.
func (m *Split[S, A, D, M]) Best(h Handle) (A, bool) {
	node := m.pool.Get(h)
	var best *intermediate[S, D, M]
	var message M
	for _, inter := range node.branches {
		if inter.Visits == 0 {
			continue
		}
		j := pickGreedy(len(inter.branches), func(j int) Stats { return inter.branches[j].Stats })
		if j < 0 {
			continue
		}
		if best == nil || inter.Value > best.Value {
			best = inter
			message = inter.branches[j].action
		}
	}
	if best == nil {
		var zero A
		return zero, false
	}
	return m.model.Join(best.domain, message), true
}

func (m *Split[S, A, D, M]) Child(h Handle, action A, next S) (Handle, bool) {
	domain, message := m.model.Split(action)
	inter := m.pool.Get(h).branch(domain)
	if inter == nil {
		return NoHandle, false
	}
	branch := inter.branch(message)
	if branch == nil {
		return NoHandle, false
	}
	return branch.child(next)
}

func (m *Split[S, A, D, M]) State(h Handle) S {
	return m.pool.Get(h).state
}

func (m *Split[S, A, D, M]) Stats(h Handle) Stats {
	return m.stats(h)
}

func (m *Split[S, A, D, M]) NodeCount() int {
	return m.pool.Len()
}

func (m *Split[S, A, D, M]) Clear() {
	log.Debug().Int("nodes", m.pool.Len()).Msg("clearing factored search tree")
	m.pool.Clear()
}

func (m *Split[S, A, D, M]) Episode(start S, rng *rand.Rand) *Episode[S, A] {
	return newEpisode[S, A](m, m.model, m.baseline, m.settings, start, rng)
}

func (m *Split[S, A, D, M]) Eval(start S, rng *rand.Rand) (float64, error) {
	defer m.Clear()
	return totalCost(m.Episode(start, rng))
}

func (m *Split[S, A, D, M]) Dump(w io.Writer, h Handle, maxDepth int) {
	m.dump(w, h, 0, maxDepth)
}

func (m *Split[S, A, D, M]) dump(w io.Writer, h Handle, depth, maxDepth int) {
	if depth > maxDepth {
		return
	}
	node := m.pool.Get(h)
	indent := strings.Repeat("  ", 3*depth)
	fmt.Fprintf(w, "%s%d %v: visits=%d value=%.4f\n", indent, h, node.state, node.Visits, node.Value)
	for _, inter := range node.branches {
		fmt.Fprintf(w, "%s  %v: visits=%d value=%.4f\n", indent, inter.domain, inter.Visits, inter.Value)
		for _, b := range inter.branches {
			fmt.Fprintf(w, "%s    %v: visits=%d value=%.4f\n", indent, b.action, b.Visits, b.Value)
			for _, child := range b.children {
				m.dump(w, child, depth+1, maxDepth)
			}
		}
	}
}

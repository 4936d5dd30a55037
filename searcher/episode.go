package searcher

import (
	"iter"
	"time"

	"planner/experiments/metrics"
	"planner/mdp"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

// Step is one real transition taken by an episode.
type Step[S, A comparable] struct {
	State  S
	Action A
	Next   S
	Cost   float64
	Search metrics.SearchMetric
}

// tree is what an episode needs from a search engine.
type tree[S, A comparable] interface {
	Root(state S) Handle
	Grow(root Handle, rng *rand.Rand) error
	Best(h Handle) (A, bool)
	Child(h Handle, action A, next S) (Handle, bool)
}

// Episode interleaves planning and acting. Each call to Next grows the tree
// at the current state within the budget, commits the greedy action, samples
// the real successor and moves the root there, keeping the subtree when the
// successor was already in the tree.
type Episode[S, A comparable] struct {
	tree    tree[S, A]
	model   mdp.Model[S, A]
	policy  mdp.Policy[S, A]
	budget  Budget
	metrics metrics.Collector
	rng     *rand.Rand

	state  S
	root   Handle // NoHandle until the tree is grown at state
	steps  int
	reused bool
	done   bool
	err    error
}

func newEpisode[S, A comparable](t tree[S, A], model mdp.Model[S, A], policy mdp.Policy[S, A], s settings, start S, rng *rand.Rand) *Episode[S, A] {
	return &Episode[S, A]{
		tree:    t,
		model:   model,
		policy:  policy,
		budget:  s.budget,
		metrics: s.metrics,
		rng:     rng,
		state:   start,
		root:    NoHandle,
	}
}

// Next returns the next step, or false once the episode reached a terminal
// state or failed. Err tells the two apart.
func (e *Episode[S, A]) Next() (Step[S, A], bool) {
	if e.done {
		return Step[S, A]{}, false
	}

	s := e.state
	if e.model.IsTerminal(s) {
		log.Info().Msgf("episode reached terminal state %v after %d steps", s, e.steps)
		e.done = true
		return Step[S, A]{}, false
	}

	e.metrics.Start()
	e.metrics.SetTreeReused(e.reused)

	iterations, err := e.plan()
	if err != nil {
		log.Error().Err(err).Msgf("planning failed at step %d", e.steps)
		e.err = err
		e.done = true
		return Step[S, A]{}, false
	}
	log.Debug().Int("iterations", iterations).Msgf("planned at state %v", s)

	var a A
	found := false
	if e.root != NoHandle {
		a, found = e.tree.Best(e.root)
	}
	if !found {
		log.Debug().Msgf("no visited action at state %v, falling back to baseline policy", s)
		a = e.policy.Action(s, e.rng)
		e.metrics.SetFallback(true)
	}

	next := e.model.Next(s, a, e.rng)
	cost := e.model.Cost(s, a, next)

	e.relocate(found, a, next)
	e.state = next
	e.steps++

	log.Info().Msgf("step %d: state=%v action=%v next=%v cost=%g", e.steps, s, a, next, cost)

	return Step[S, A]{
		State:  s,
		Action: a,
		Next:   next,
		Cost:   cost,
		Search: e.metrics.Complete(),
	}, true
}

// plan grows the tree at the current state until the budget is exhausted.
// The root is only allocated once a grow call is actually going to run.
func (e *Episode[S, A]) plan() (int, error) {
	start := time.Now()
	n := 0
	for ; !e.budget.Exhausted(n, time.Since(start)); n++ {
		if e.root == NoHandle {
			e.root = e.tree.Root(e.state)
			e.metrics.AddNode()
		}
		if err := e.tree.Grow(e.root, e.rng); err != nil {
			return n, err
		}
		e.metrics.AddIteration()
	}
	return n, nil
}

func (e *Episode[S, A]) relocate(searched bool, a A, next S) {
	e.reused = false
	if searched {
		if child, ok := e.tree.Child(e.root, a, next); ok {
			e.root = child
			e.reused = true
			return
		}
	}
	e.root = NoHandle
}

func (e *Episode[S, A]) Err() error {
	return e.err
}

// State is the current real state.
func (e *Episode[S, A]) State() S {
	return e.state
}

// Root is the node for the current real state, or NoHandle when the tree has
// not been grown there yet.
func (e *Episode[S, A]) Root() Handle {
	return e.root
}

// All yields the remaining steps. An episode can be consumed only once.
func (e *Episode[S, A]) All() iter.Seq[Step[S, A]] {
	return func(yield func(Step[S, A]) bool) {
		for {
			step, ok := e.Next()
			if !ok || !yield(step) {
				return
			}
		}
	}
}

func totalCost[S, A comparable](e *Episode[S, A]) (float64, error) {
	sum := 0.0
	for step := range e.All() {
		sum += step.Cost
	}
	return sum, e.Err()
}

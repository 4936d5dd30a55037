package searcher

import (
	"iter"

	"planner/utils"
)

// decision is a state reached during search.
type decision[S, A comparable] struct {
	Stats
	state    S
	actions  []A // admissible actions, cached on first expansion
	branches []*chance[S, A]
}

func newDecision[S, A comparable](state S) *decision[S, A] {
	return &decision[S, A]{state: state}
}

func (d *decision[S, A]) branch(action A) *chance[S, A] {
	for _, b := range d.branches {
		if b.action == action {
			return b
		}
	}
	return nil
}

func (d *decision[S, A]) branchStats() iter.Seq[Stats] {
	return utils.Map(d.branches, func(b *chance[S, A]) Stats { return b.Stats })
}

// chance is an action taken from a node. Its successors are kept once per
// distinct state, in the order they were first sampled.
type chance[S, A comparable] struct {
	Stats
	action    A
	bootstrap float64
	outcomes  []S
	children  []Handle
	counts    []int
}

func newChance[S, A comparable](action A, bootstrap float64) *chance[S, A] {
	return &chance[S, A]{
		Stats:     Stats{Value: bootstrap},
		action:    action,
		bootstrap: bootstrap,
	}
}

// child returns the successor node for state, if it has been sampled before.
func (c *chance[S, A]) child(state S) (Handle, bool) {
	i := utils.FindIndex(c.outcomes, state)
	if i < 0 {
		return NoHandle, false
	}
	return c.children[i], true
}

// record counts one more sample of state, which must already be a successor.
func (c *chance[S, A]) record(state S) {
	c.counts[utils.FindIndex(c.outcomes, state)]++
}

func (c *chance[S, A]) add(state S, h Handle) {
	c.outcomes = append(c.outcomes, state)
	c.children = append(c.children, h)
	c.counts = append(c.counts, 1)
}

// outcomeStats pairs every successor's statistics with its sample count.
func (c *chance[S, A]) outcomeStats(stats func(Handle) Stats) iter.Seq[Outcome] {
	return func(yield func(Outcome) bool) {
		for i, h := range c.children {
			if !yield(Outcome{Stats: stats(h), Count: c.counts[i]}) {
				return
			}
		}
	}
}

package searcher

import (
	"iter"

	"planner/utils"
)

// stateNode is a decision node of the factored tree. Its branches choose the
// domain part of the action.
type stateNode[S, D, M comparable] struct {
	Stats
	state    S
	domains  []D
	branches []*intermediate[S, D, M]
}

func (n *stateNode[S, D, M]) branch(domain D) *intermediate[S, D, M] {
	for _, b := range n.branches {
		if b.domain == domain {
			return b
		}
	}
	return nil
}

func (n *stateNode[S, D, M]) branchStats() iter.Seq[Stats] {
	return utils.Map(n.branches, func(b *intermediate[S, D, M]) Stats { return b.Stats })
}

// intermediate is a node for one domain action at a state. Its branches
// choose the message that completes the joint action. Like a chance branch it
// holds its bootstrap until the first realized return replaces it.
type intermediate[S, D, M comparable] struct {
	Stats
	domain    D
	bootstrap float64
	messages  []M
	branches  []*chance[S, M]
}

func newIntermediate[S, D, M comparable](domain D, bootstrap float64) *intermediate[S, D, M] {
	return &intermediate[S, D, M]{
		Stats:     Stats{Value: bootstrap},
		domain:    domain,
		bootstrap: bootstrap,
	}
}

func (n *intermediate[S, D, M]) branch(message M) *chance[S, M] {
	for _, b := range n.branches {
		if b.action == message {
			return b
		}
	}
	return nil
}

func (n *intermediate[S, D, M]) branchStats() iter.Seq[Stats] {
	return utils.Map(n.branches, func(b *chance[S, M]) Stats { return b.Stats })
}

package mdp

import "golang.org/x/exp/rand"

// Model is the stochastic transition and cost oracle a planner searches over.
// States and actions are plain values compared with ==.
type Model[S comparable, A comparable] interface {
	// Actions lists the admissible actions at s. A non-terminal state must
	// have at least one.
	Actions(s S) []A
	// Next samples one successor of taking a at s.
	Next(s S, a A, rng *rand.Rand) S
	IsTerminal(s S) bool
	// Cost of the transition s -a-> next. Planners maximize -Cost.
	Cost(s S, a A, next S) float64
}

// Discounted is implemented by models with a discount factor other than 1.
type Discounted interface {
	Discount() float64
}

// FactoredModel is a model whose actions are pairs of a domain action and a
// message.
type FactoredModel[S, A, D, M comparable] interface {
	Model[S, A]
	DomainActions(s S) []D
	Messages(s S) []M
	Join(d D, m M) A
	Split(a A) (D, M)
}

// DiscountOf returns the model's discount factor, 1 if it has none.
func DiscountOf(model any) float64 {
	if d, ok := model.(Discounted); ok {
		return d.Discount()
	}
	return 1
}

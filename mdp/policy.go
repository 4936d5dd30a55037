package mdp

import "golang.org/x/exp/rand"

// Policy picks a concrete action at a state.
type Policy[S, A comparable] interface {
	Action(s S, rng *rand.Rand) A
}

// Evaluator estimates the value of a state (reward-style, higher is better).
type Evaluator[S comparable] interface {
	Value(s S, rng *rand.Rand) float64
}

// ActionEvaluator estimates the value of taking a at s. Planners use it to
// seed new action branches when the baseline provides it.
type ActionEvaluator[S, A comparable] interface {
	ActionValue(s S, a A, rng *rand.Rand) float64
}

// Baseline bootstraps search: value estimates for new nodes and a fallback
// action when search has nothing to offer.
type Baseline[S, A comparable] interface {
	Policy[S, A]
	Evaluator[S]
}

type baseline[S, A comparable] struct {
	Policy[S, A]
	Evaluator[S]
}

// NewBaseline combines a fallback policy and a state evaluator.
func NewBaseline[S, A comparable](policy Policy[S, A], evaluator Evaluator[S]) Baseline[S, A] {
	if evaluator == nil {
		evaluator = Zero[S]{}
	}
	return baseline[S, A]{Policy: policy, Evaluator: evaluator}
}

// Zero estimates every state at 0.
type Zero[S comparable] struct{}

func (Zero[S]) Value(S, *rand.Rand) float64 { return 0 }

// Heuristic adapts a plain function to an Evaluator.
type Heuristic[S comparable] func(s S) float64

func (h Heuristic[S]) Value(s S, _ *rand.Rand) float64 { return h(s) }

type randomPolicy[S, A comparable] struct {
	model Model[S, A]
}

// RandomPolicy picks uniformly among the model's admissible actions.
func RandomPolicy[S, A comparable](model Model[S, A]) Policy[S, A] {
	return randomPolicy[S, A]{model: model}
}

func (p randomPolicy[S, A]) Action(s S, rng *rand.Rand) A {
	actions := p.model.Actions(s)
	if len(actions) == 0 {
		panic("random policy: no admissible actions")
	}
	return actions[rng.Intn(len(actions))]
}

type candidatesPolicy[S, A comparable] struct {
	candidates []A
}

// CandidatesPolicy picks uniformly among a fixed set of actions regardless of
// the state.
func CandidatesPolicy[S, A comparable](candidates ...A) Policy[S, A] {
	if len(candidates) == 0 {
		panic("candidates policy: no candidates")
	}
	return candidatesPolicy[S, A]{candidates: candidates}
}

func (p candidatesPolicy[S, A]) Action(_ S, rng *rand.Rand) A {
	return p.candidates[rng.Intn(len(p.candidates))]
}

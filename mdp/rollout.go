package mdp

import "golang.org/x/exp/rand"

// Rollout estimates values by playing a policy forward in the model and
// averaging the negated discounted cost over a number of runs.
type Rollout[S, A comparable] struct {
	model    Model[S, A]
	policy   Policy[S, A]
	rollouts int
	horizon  int // 0 plays until a terminal state
}

// NewRollout returns a rollout evaluator that plays policy rollouts times per
// estimate, stopping each run after horizon steps when horizon > 0.
func NewRollout[S, A comparable](model Model[S, A], policy Policy[S, A], rollouts, horizon int) *Rollout[S, A] {
	if rollouts <= 0 {
		panic("rollout: number of rollouts must be positive")
	}
	return &Rollout[S, A]{
		model:    model,
		policy:   policy,
		rollouts: rollouts,
		horizon:  horizon,
	}
}

// Action defers to the rollout policy so a Rollout is a complete Baseline.
func (r *Rollout[S, A]) Action(s S, rng *rand.Rand) A {
	return r.policy.Action(s, rng)
}

func (r *Rollout[S, A]) Value(s S, rng *rand.Rand) float64 {
	total := 0.0
	for i := 0; i < r.rollouts; i++ {
		total += r.play(s, rng)
	}
	return -total / float64(r.rollouts)
}

// ActionValue takes a first, then follows the policy.
func (r *Rollout[S, A]) ActionValue(s S, a A, rng *rand.Rand) float64 {
	discount := DiscountOf(r.model)
	total := 0.0
	for i := 0; i < r.rollouts; i++ {
		next := r.model.Next(s, a, rng)
		total += r.model.Cost(s, a, next) + discount*r.play(next, rng)
	}
	return -total / float64(r.rollouts)
}

// play runs one episode from s and returns its discounted cost.
func (r *Rollout[S, A]) play(s S, rng *rand.Rand) float64 {
	discount := DiscountOf(r.model)
	cost, weight := 0.0, 1.0
	for depth := 0; !r.model.IsTerminal(s); depth++ {
		if r.horizon > 0 && depth >= r.horizon {
			break
		}
		a := r.policy.Action(s, rng)
		next := r.model.Next(s, a, rng)
		cost += weight * r.model.Cost(s, a, next)
		weight *= discount
		s = next
	}
	return cost
}

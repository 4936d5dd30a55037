package searcher

import (
	"iter"
	"math"
)

// Stats are the running statistics every node and branch carries. Value is
// reward-style: a step cost c counts as -c.
type Stats struct {
	Visits int
	Value  float64
}

// Sample is what one simulation observed below a branch.
type Sample struct {
	Reward   float64 // -cost of the sampled step
	Future   float64 // return realized from the sampled successor on
	Discount float64
}

func (s Sample) Return() float64 {
	return s.Reward + s.Discount*s.Future
}

// Outcome is a successor seen under a branch together with the number of
// times the branch sampled it.
type Outcome struct {
	Stats
	Count int
}

// Backup turns the result of one simulation into updated statistics.
type Backup interface {
	// Branch updates an action branch the simulation passed through.
	// outcomes yields the branch's successors after the sample was recorded.
	Branch(branch *Stats, sample Sample, outcomes iter.Seq[Outcome])
	// Node updates a node whose selected branch produced ret. branches yields
	// the node's branches after that branch was updated.
	Node(node *Stats, ret float64, branches iter.Seq[Stats])
}

// MonteCarlo keeps the running mean of realized returns.
type MonteCarlo struct{}

func (MonteCarlo) Branch(branch *Stats, sample Sample, _ iter.Seq[Outcome]) {
	mean(branch, sample.Return())
}

func (MonteCarlo) Node(node *Stats, ret float64, _ iter.Seq[Stats]) {
	mean(node, ret)
}

func (MonteCarlo) String() string { return "monte-carlo" }

func mean(s *Stats, ret float64) {
	s.Visits++
	s.Value += (ret - s.Value) / float64(s.Visits)
}

// Max is the empirical Bellman backup: a branch is worth its immediate reward
// plus the sample-weighted value of its successors, a node is worth its best
// visited branch. Successors are weighted by how often the branch sampled
// them rather than by their own visit counts, which differ only for terminal
// successors since those keep a single visit.
type Max struct{}

func (Max) Branch(branch *Stats, sample Sample, outcomes iter.Seq[Outcome]) {
	future, total := 0.0, 0
	for o := range outcomes {
		if o.Visits == 0 || o.Count == 0 {
			continue
		}
		future += o.Value * float64(o.Count)
		total += o.Count
	}
	if total == 0 {
		panic("max backup: branch has no visited successor")
	}

	branch.Visits++
	branch.Value = sample.Reward + sample.Discount*future/float64(total)
}

func (Max) Node(node *Stats, _ float64, branches iter.Seq[Stats]) {
	best := math.Inf(-1)
	for b := range branches {
		if b.Visits > 0 && b.Value > best {
			best = b.Value
		}
	}
	if math.IsInf(best, -1) {
		panic("max backup: node has no visited branch")
	}

	node.Visits++
	node.Value = best
}

func (Max) String() string { return "max" }

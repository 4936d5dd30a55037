package grid

import (
	"fmt"

	"golang.org/x/exp/rand"
)

type Signal int

const (
	Quiet Signal = iota
	Announce
)

var signals = []Signal{Quiet, Announce}

func (s Signal) String() string {
	if s == Announce {
		return "announce"
	}
	return "quiet"
}

// Joint is a move paired with a signal to an observer.
type Joint struct {
	Move   Direction
	Signal Signal
}

func (j Joint) String() string {
	return fmt.Sprintf("%v+%v", j.Move, j.Signal)
}

// Signalling is a World where the agent may announce its move. An announced
// move succeeds more often because the observer keeps out of the way, at an
// extra communication cost.
type Signalling struct {
	*World
	AnnouncedSuccess float64
	SignalCost       float64
}

func NewSignalling(w *World, announcedSuccess, signalCost float64) *Signalling {
	return &Signalling{World: w, AnnouncedSuccess: announcedSuccess, SignalCost: signalCost}
}

func (s *Signalling) Actions(c Cell) []Joint {
	joint := make([]Joint, 0, len(directions)*len(signals))
	for _, d := range directions {
		for _, m := range signals {
			joint = append(joint, Joint{Move: d, Signal: m})
		}
	}
	return joint
}

func (s *Signalling) DomainActions(Cell) []Direction {
	return directions
}

func (s *Signalling) Messages(Cell) []Signal {
	return signals
}

func (s *Signalling) Join(d Direction, m Signal) Joint {
	return Joint{Move: d, Signal: m}
}

func (s *Signalling) Split(a Joint) (Direction, Signal) {
	return a.Move, a.Signal
}

func (s *Signalling) Next(c Cell, a Joint, rng *rand.Rand) Cell {
	if a.Signal == Announce {
		return s.next(c, a.Move, s.AnnouncedSuccess, rng)
	}
	return s.next(c, a.Move, Success, rng)
}

func (s *Signalling) Cost(c Cell, a Joint, next Cell) float64 {
	cost := s.World.Cost(c, a.Move, next)
	if a.Signal == Announce && !s.IsTerminal(c) {
		cost += s.SignalCost
	}
	return cost
}

package searcher

import (
	"errors"
	"time"

	"planner/experiments/metrics"
)

// ErrNoActions is returned when the model offers no action at a state it
// does not consider terminal.
var ErrNoActions = errors.New("no admissible actions at non-terminal state")

type Option func(s *settings)

type settings struct {
	c       float64
	budget  Budget
	backup  Backup
	metrics metrics.Collector
}

func defaultSettings() settings {
	return settings{
		c:       DefaultExploration,
		budget:  Iterations(1000),
		backup:  MonteCarlo{},
		metrics: metrics.NewDummyCollector(),
	}
}

func WithExploration(c float64) Option {
	return func(s *settings) {
		if c >= 0 {
			s.c = c
		}
	}
}

func WithBudget(budget Budget) Option {
	return func(s *settings) {
		s.budget = budget
	}
}

func WithDuration(duration time.Duration) Option {
	return func(s *settings) {
		if duration > 0 {
			s.budget = Duration(duration)
		}
	}
}

func WithIterations(iterations int) Option {
	return func(s *settings) {
		if iterations >= 0 {
			s.budget = Iterations(iterations)
		}
	}
}

func WithBackup(backup Backup) Option {
	return func(s *settings) {
		if backup != nil {
			s.backup = backup
		}
	}
}

func WithMetrics() Option {
	return func(s *settings) {
		s.metrics = metrics.NewCollector()
	}
}

func WithCollector(collector metrics.Collector) Option {
	return func(s *settings) {
		if collector != nil {
			s.metrics = collector
		}
	}
}

func newSettings(options []Option) settings {
	s := defaultSettings()
	for _, option := range options {
		option(&s)
	}
	return s
}

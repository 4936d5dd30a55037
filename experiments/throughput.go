package experiments

import (
	"time"

	"planner/config"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// ThroughputRecord is the search speed measured under one time budget.
type ThroughputRecord struct {
	Budget              time.Duration
	Steps               int
	MeanIterations      float64 // grow calls per step
	IterationsPerSecond float64
}

// Throughput plays one episode per time budget and measures how many grow
// calls the planner fits into each step.
func Throughput(cfg config.Config, budgets []time.Duration) ([]ThroughputRecord, error) {
	records := make([]ThroughputRecord, 0, len(budgets))

	log.Info().Msgf("starting throughput experiment over %d budgets...", len(budgets))

	for i, budget := range budgets {
		c := cfg
		c.Episodes = 1
		c.Output = ""
		c.Planner.Duration = budget
		c.Planner.Iterations = 0

		result, err := Run(c)
		if err != nil {
			return nil, err
		}

		iterations := make([]float64, len(result.Steps))
		seconds := 0.0
		for j, step := range result.Steps {
			iterations[j] = float64(step.Iterations)
			seconds += step.Duration.Seconds()
		}
		record := ThroughputRecord{Budget: budget, Steps: len(result.Steps)}
		if len(iterations) > 0 {
			record.MeanIterations = stat.Mean(iterations, nil)
		}
		if seconds > 0 {
			record.IterationsPerSecond = record.MeanIterations * float64(len(iterations)) / seconds
		}
		records = append(records, record)

		log.Info().Msgf("completed budget %d of %d (%v): %.0f iterations/s", i+1, len(budgets), budget, record.IterationsPerSecond)
	}

	return records, nil
}

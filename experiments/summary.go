package experiments

import (
	"planner/experiments/metrics"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the episodes of a run.
type Summary struct {
	Episodes       int
	MeanCost       float64
	StdCost        float64
	MinCost        float64
	MaxCost        float64
	MeanSteps      float64
	MeanIterations float64 // grow calls per step
	ReuseRate      float64 // share of steps planned on a kept subtree
	FallbackRate   float64 // share of steps acted by the baseline policy
}

func summarize(result Result) Summary {
	n := len(result.Episodes)
	if n == 0 {
		return Summary{}
	}

	costs := make([]float64, n)
	steps := make([]float64, n)
	for i, e := range result.Episodes {
		costs[i] = e.TotalCost
		steps[i] = float64(e.Steps)
	}
	s := Summary{
		Episodes:  n,
		MinCost:   floats.Min(costs),
		MaxCost:   floats.Max(costs),
		MeanSteps: stat.Mean(steps, nil),
	}
	if n > 1 {
		s.MeanCost, s.StdCost = stat.MeanStdDev(costs, nil)
	} else {
		s.MeanCost = costs[0]
	}

	if len(result.Steps) == 0 {
		return s
	}
	iterations := make([]float64, len(result.Steps))
	reused := make([]float64, len(result.Steps))
	fallback := make([]float64, len(result.Steps))
	for i, step := range result.Steps {
		iterations[i] = float64(step.Iterations)
		if step.IsTreeReused {
			reused[i] = 1
		}
		if step.IsFallback {
			fallback[i] = 1
		}
	}
	s.MeanIterations = stat.Mean(iterations, nil)
	s.ReuseRate = stat.Mean(reused, nil)
	s.FallbackRate = stat.Mean(fallback, nil)
	return s
}

func (s Summary) Records() []metrics.SummaryRecord {
	return []metrics.SummaryRecord{
		{Name: "episodes", Value: float64(s.Episodes)},
		{Name: "mean_cost", Value: s.MeanCost},
		{Name: "std_cost", Value: s.StdCost},
		{Name: "min_cost", Value: s.MinCost},
		{Name: "max_cost", Value: s.MaxCost},
		{Name: "mean_steps", Value: s.MeanSteps},
		{Name: "mean_iterations", Value: s.MeanIterations},
		{Name: "reuse_rate", Value: s.ReuseRate},
		{Name: "fallback_rate", Value: s.FallbackRate},
	}
}

package experiments

import (
	"fmt"
	"slices"
	"time"

	"planner/config"
	"planner/domains/grid"
	"planner/experiments/metrics"
	"planner/mdp"
	"planner/searcher"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

// Result holds every record of an experiment run.
type Result struct {
	Dir      string // empty when nothing was written
	Episodes []metrics.EpisodeRecord
	Steps    []metrics.StepRecord
	Summary  Summary
}

type Option func(r *runner)

// WithRegistry exports search metrics of the run to reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(r *runner) {
		r.registry = reg
	}
}

type runner struct {
	registry prometheus.Registerer
}

// planner is what a run needs from a search engine.
type planner[A comparable] interface {
	Episode(start grid.Cell, rng *rand.Rand) *searcher.Episode[grid.Cell, A]
	Clear()
}

// Run plays cfg.Episodes seeded episodes with the configured planner and
// stores the records below cfg.Output. Episodes run on up to cfg.Workers
// goroutines, each with a planner of its own.
func Run(cfg config.Config, options ...Option) (Result, error) {
	r := &runner{}
	for _, option := range options {
		option(r)
	}

	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	plannerOptions, err := cfg.Planner.Options()
	if err != nil {
		return Result{}, err
	}
	newCollector, err := r.collectors()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	log.Info().Msgf("starting %s experiment with %d %s episodes on %d workers...", cfg.Name, cfg.Episodes, cfg.Planner.Variant, cfg.Workers)

	var result Result
	switch cfg.Planner.Variant {
	case config.Flat:
		w, err := cfg.Grid.World()
		if err != nil {
			return Result{}, err
		}
		rollout := mdp.NewRollout[grid.Cell, grid.Direction](w, mdp.RandomPolicy[grid.Cell, grid.Direction](w), cfg.Baseline.Rollouts, cfg.Baseline.Lookahead)
		newPlanner := func() planner[grid.Direction] {
			return searcher.NewMCTS[grid.Cell, grid.Direction](w, rollout, withCollector(plannerOptions, newCollector())...)
		}
		result, err = play(cfg, newPlanner, w.Start)
		if err != nil {
			return Result{}, err
		}
	case config.Factored:
		s, err := cfg.Grid.Signalling()
		if err != nil {
			return Result{}, err
		}
		rollout := mdp.NewRollout[grid.Cell, grid.Joint](s, mdp.RandomPolicy[grid.Cell, grid.Joint](s), cfg.Baseline.Rollouts, cfg.Baseline.Lookahead)
		newPlanner := func() planner[grid.Joint] {
			return searcher.NewSplit[grid.Cell, grid.Joint, grid.Direction, grid.Signal](s, rollout, withCollector(plannerOptions, newCollector())...)
		}
		result, err = play(cfg, newPlanner, s.Start)
		if err != nil {
			return Result{}, err
		}
	}

	log.Info().Msgf("completed %s experiment: mean cost %.3f (std %.3f)", cfg.Name, result.Summary.MeanCost, result.Summary.StdCost)

	if cfg.Output == "" {
		return result, nil
	}
	dir, err := store(cfg, result)
	if err != nil {
		return Result{}, err
	}
	result.Dir = dir
	return result, nil
}

// collectors returns a constructor of per-planner metric collectors.
func (r *runner) collectors() (func() metrics.Collector, error) {
	if r.registry == nil {
		return metrics.NewCollector, nil
	}
	exporter, err := metrics.NewExporter(r.registry)
	if err != nil {
		return nil, err
	}
	return exporter.Collector, nil
}

func withCollector(options []searcher.Option, c metrics.Collector) []searcher.Option {
	return append(slices.Clone(options), searcher.WithCollector(c))
}

func play[A comparable](cfg config.Config, newPlanner func() planner[A], start grid.Cell) (Result, error) {
	workers := min(cfg.Workers, cfg.Episodes)
	planners := make(chan planner[A], workers)
	for range workers {
		planners <- newPlanner()
	}

	episodes := make([]metrics.EpisodeRecord, cfg.Episodes)
	steps := make([][]metrics.StepRecord, cfg.Episodes)

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := 0; i < cfg.Episodes; i++ {
		g.Go(func() error {
			p := <-planners
			defer func() { planners <- p }()

			id := i + 1
			seed := cfg.Seed + uint64(i)
			log.Info().Msgf("starting episode %d of %d with seed %d...", id, cfg.Episodes, seed)

			episodeMetric, records, err := runEpisode(cfg, p, start, seed)
			if err != nil {
				return fmt.Errorf("episode %d: %w", id, err)
			}
			for j := range records {
				records[j].Episode = id
			}
			episodes[i] = metrics.EpisodeRecord{
				ID:            id,
				Seed:          seed,
				EpisodeMetric: episodeMetric,
			}
			steps[i] = records

			log.Info().Msgf("completed episode %d of %d in %d steps with cost %g", id, cfg.Episodes, episodeMetric.Steps, episodeMetric.TotalCost)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	result := Result{Episodes: episodes}
	for _, records := range steps {
		result.Steps = append(result.Steps, records...)
	}
	result.Summary = summarize(result)
	return result, nil
}

// runEpisode plays one episode on a fresh tree.
func runEpisode[A comparable](cfg config.Config, p planner[A], start grid.Cell, seed uint64) (metrics.EpisodeMetric, []metrics.StepRecord, error) {
	defer p.Clear()

	m := metrics.EpisodeMetric{StartTime: time.Now()}
	steps := []metrics.StepRecord{}
	episode := p.Episode(start, rand.New(rand.NewSource(seed)))
	for step := range episode.All() {
		m.Steps++
		m.TotalCost += step.Cost
		steps = append(steps, metrics.StepRecord{
			State:  step.State.String(),
			Action: fmt.Sprint(step.Action),
			StepMetric: metrics.StepMetric{
				Step:         m.Steps,
				Cost:         step.Cost,
				SearchMetric: step.Search,
			},
		})
		if m.Steps >= cfg.MaxSteps {
			log.Warn().Msgf("episode cut off after %d steps at %v", m.Steps, episode.State())
			break
		}
	}
	if err := episode.Err(); err != nil {
		return metrics.EpisodeMetric{}, nil, err
	}

	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	return m, steps, nil
}

func store(cfg config.Config, result Result) (string, error) {
	writer, err := metrics.NewWriter(cfg.Output, cfg.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create experiment writer: %w", err)
	}

	err = writer.WriteEpisodeRecords(result.Episodes)
	if err != nil {
		return "", fmt.Errorf("failed to write episode records: %w", err)
	}
	log.Info().Msg("stored episode records")

	err = writer.WriteStepRecords(result.Steps)
	if err != nil {
		return "", fmt.Errorf("failed to write step records: %w", err)
	}
	log.Info().Msg("stored step records")

	err = writer.WriteSummary(result.Summary.Records())
	if err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	log.Info().Msgf("stored summary in %s", writer.Dir())

	return writer.Dir(), nil
}

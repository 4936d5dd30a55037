package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"planner/domains/grid"
	"planner/searcher"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults of an experiment.
const (
	DefaultEpisodes    = 20
	DefaultMaxSteps    = 300
	DefaultIterations  = 200
	DefaultRollouts    = 4
	DefaultLookahead   = 20
	DefaultOutput      = "results"
	DefaultExploration = searcher.DefaultExploration
)

// Planner variants.
const (
	Flat     = "flat"
	Factored = "factored"
)

var validate = newValidator()

// newValidator reports fields by their yaml names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

var backups = map[string]searcher.Backup{
	"monte-carlo": searcher.MonteCarlo{},
	"max":         searcher.Max{},
}

// Config describes one experiment: a grid world, a planner and how many
// seeded episodes to play with it.
type Config struct {
	Name     string   `yaml:"name" validate:"required"`
	Episodes int      `yaml:"episodes" validate:"gt=0"`
	Seed     uint64   `yaml:"seed"`
	MaxSteps int      `yaml:"max_steps" validate:"gt=0"`
	Workers  int      `yaml:"workers" validate:"gt=0"` // episodes played in parallel
	Output   string   `yaml:"output"`                  // empty disables result files
	Planner  Planner  `yaml:"planner"`
	Baseline Baseline `yaml:"baseline"`
	Grid     Grid     `yaml:"grid"`
}

type Planner struct {
	Variant     string        `yaml:"variant" validate:"oneof=flat factored"`
	Exploration float64       `yaml:"exploration" validate:"gte=0"`
	Iterations  int           `yaml:"iterations" validate:"gte=0"`
	Duration    time.Duration `yaml:"duration" validate:"gte=0"`
	Backup      string        `yaml:"backup" validate:"oneof=monte-carlo max"`
}

// Baseline configures the rollout evaluator bootstrapping new nodes.
type Baseline struct {
	Rollouts  int `yaml:"rollouts" validate:"gt=0"`
	Lookahead int `yaml:"lookahead" validate:"gte=0"` // 0 rolls out until the goal
}

type Grid struct {
	Width  int      `yaml:"width" validate:"gt=0"`
	Height int      `yaml:"height" validate:"gt=0"`
	Start  [2]int   `yaml:"start"`
	Goal   [2]int   `yaml:"goal"`
	Watery [][2]int `yaml:"watery"`
	Walls  [][2]int `yaml:"walls"`

	// Factored variant only
	AnnouncedSuccess float64 `yaml:"announced_success"`
	SignalCost       float64 `yaml:"signal_cost"`
}

func Default() Config {
	return Config{
		Name:     "grid",
		Episodes: DefaultEpisodes,
		Seed:     1,
		MaxSteps: DefaultMaxSteps,
		Workers:  1,
		Output:   DefaultOutput,
		Planner: Planner{
			Variant:     Flat,
			Exploration: DefaultExploration,
			Backup:      "monte-carlo",
		},
		Baseline: Baseline{
			Rollouts:  DefaultRollouts,
			Lookahead: DefaultLookahead,
		},
		Grid: Grid{
			Width:            4,
			Height:           4,
			Start:            [2]int{0, 0},
			Goal:             [2]int{3, 3},
			Watery:           [][2]int{{1, 1}, {2, 1}, {1, 2}},
			AnnouncedSuccess: 0.95,
			SignalCost:       0.3,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, e := range fieldErrs {
			errs = append(errs, fieldError(e))
		}
	}
	if _, err := c.Planner.Budget(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Grid.World(); err != nil {
		errs = append(errs, err)
	}
	if c.Planner.Variant == Factored {
		if c.Grid.AnnouncedSuccess <= 0 || c.Grid.AnnouncedSuccess > 1 {
			errs = append(errs, fmt.Errorf("announced_success must be in (0, 1], got %g", c.Grid.AnnouncedSuccess))
		}
		if c.Grid.SignalCost < 0 {
			errs = append(errs, fmt.Errorf("signal_cost must not be negative, got %g", c.Grid.SignalCost))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func fieldError(e validator.FieldError) error {
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "oneof":
		return fmt.Errorf("%s must be one of %s, got %q", field, e.Param(), e.Value())
	default:
		return fmt.Errorf("%s must be %s %s, got %v", field, e.Tag(), e.Param(), e.Value())
	}
}

// Budget is the per-step planning budget. Without a duration or a number of
// iterations the default number of iterations applies.
func (p Planner) Budget() (searcher.Budget, error) {
	if p.Duration == 0 && p.Iterations == 0 {
		return searcher.Iterations(DefaultIterations), nil
	}
	return searcher.NewBudget(p.Duration, p.Iterations)
}

// Options translates the planner settings into searcher options.
func (p Planner) Options() ([]searcher.Option, error) {
	budget, err := p.Budget()
	if err != nil {
		return nil, err
	}
	backup, ok := backups[p.Backup]
	if !ok {
		return nil, fmt.Errorf("unknown backup %q", p.Backup)
	}
	return []searcher.Option{
		searcher.WithExploration(p.Exploration),
		searcher.WithBudget(budget),
		searcher.WithBackup(backup),
	}, nil
}

func (g Grid) World() (*grid.World, error) {
	return grid.NewWorld(g.Width, g.Height, cell(g.Start), cell(g.Goal), cells(g.Watery), cells(g.Walls))
}

func (g Grid) Signalling() (*grid.Signalling, error) {
	w, err := g.World()
	if err != nil {
		return nil, err
	}
	return grid.NewSignalling(w, g.AnnouncedSuccess, g.SignalCost), nil
}

func cell(p [2]int) grid.Cell {
	return grid.Cell{X: p[0], Y: p[1]}
}

func cells(ps [][2]int) []grid.Cell {
	cs := make([]grid.Cell, len(ps))
	for i, p := range ps {
		cs[i] = cell(p)
	}
	return cs
}

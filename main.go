package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"planner/config"
	"planner/experiments"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	logLevel    string
	pretty      bool
	metricsAddr string
	budgets     []time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "planner",
	Short: "Online MCTS planning experiments on stochastic grid worlds",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		zerolog.SetGlobalLevel(level)
		if pretty {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		}
		return nil
	},
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play seeded episodes with a planner and store the records",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var options []experiments.Option
		if metricsAddr != "" {
			reg := prometheus.NewRegistry()
			serveMetrics(reg)
			options = append(options, experiments.WithRegistry(reg))
		}

		result, err := experiments.Run(cfg, options...)
		if err != nil {
			return err
		}

		s := result.Summary
		fmt.Printf("episodes:       %d\n", s.Episodes)
		fmt.Printf("cost:           %.3f ± %.3f (min %.3f, max %.3f)\n", s.MeanCost, s.StdCost, s.MinCost, s.MaxCost)
		fmt.Printf("steps:          %.1f\n", s.MeanSteps)
		fmt.Printf("iterations:     %.1f per step\n", s.MeanIterations)
		fmt.Printf("tree reuse:     %.1f%%\n", 100*s.ReuseRate)
		fmt.Printf("fallbacks:      %.1f%%\n", 100*s.FallbackRate)
		if result.Dir != "" {
			fmt.Printf("results:        %s\n", result.Dir)
		}
		return nil
	},
}

var throughputCmd = &cobra.Command{
	Use:   "throughput",
	Short: "Measure grow calls per second under a range of time budgets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(budgets) == 0 {
			return errors.New("at least one budget is required")
		}

		records, err := experiments.Throughput(cfg, budgets)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Printf("%-10v %6d steps %10.1f iterations/step %12.0f iterations/s\n", r.Budget, r.Steps, r.MeanIterations, r.IterationsPerSecond)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML experiment config (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Human readable console logs")

	rootCmd.PersistentFlags().Int("episodes", 0, "Number of episodes")
	rootCmd.PersistentFlags().Uint64("seed", 0, "Seed of the first episode")
	rootCmd.PersistentFlags().Int("workers", 0, "Episodes played in parallel")
	rootCmd.PersistentFlags().String("variant", "", "Planner variant (flat, factored)")
	rootCmd.PersistentFlags().String("backup", "", "Backup operator (monte-carlo, max)")
	rootCmd.PersistentFlags().Float64("exploration", 0, "Exploration constant")
	rootCmd.PersistentFlags().Int("iterations", 0, "Grow calls per step")
	rootCmd.PersistentFlags().Duration("duration", 0, "Planning time per step")
	rootCmd.PersistentFlags().String("output", "", "Directory for result files")

	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	throughputCmd.Flags().DurationSliceVar(&budgets, "budgets", []time.Duration{time.Millisecond, 5 * time.Millisecond, 25 * time.Millisecond}, "Time budgets to measure")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(throughputCmd)
}

// loadConfig reads the config file and applies the flags set on the command
// line over it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("episodes") {
		cfg.Episodes, _ = flags.GetInt("episodes")
	}
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("variant") {
		cfg.Planner.Variant, _ = flags.GetString("variant")
	}
	if flags.Changed("backup") {
		cfg.Planner.Backup, _ = flags.GetString("backup")
	}
	if flags.Changed("exploration") {
		cfg.Planner.Exploration, _ = flags.GetFloat64("exploration")
	}
	// A budget flag replaces the configured budget
	if flags.Changed("iterations") {
		cfg.Planner.Iterations, _ = flags.GetInt("iterations")
		cfg.Planner.Duration = 0
	}
	if flags.Changed("duration") {
		cfg.Planner.Duration, _ = flags.GetDuration("duration")
		cfg.Planner.Iterations = 0
	}
	if flags.Changed("output") {
		cfg.Output, _ = flags.GetString("output")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		log.Info().Msgf("serving metrics on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

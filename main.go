package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/pthm-cable/broth/config"
	"github.com/pthm-cable/broth/sim"
	"github.com/pthm-cable/broth/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxSteps := flag.Int("max-steps", 0, "Stop after N steps (0 = unlimited)")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Use config stats window if not overridden by CLI
	statsWindowSec := cfg.Telemetry.StatsWindow
	if *statsWindow > 0 {
		statsWindowSec = *statsWindow
	}

	output, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	defer output.Close()

	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
		os.Exit(1)
	}

	s, err := sim.New(cfg, sim.Options{Seed: rngSeed})
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	names := make([]string, s.Table().Len())
	for i := range names {
		names[i] = s.Table().Species(i).Name
	}

	slog.Info("starting simulation",
		"seed", rngSeed,
		"particles", s.Store().Len(),
		"species", s.Table().Len(),
		"stats_window", statsWindowSec,
		"max_steps", *maxSteps,
	)

	dt := cfg.Derived.DT32
	statsEvery := int64(statsWindowSec / cfg.Physics.DT)
	if statsEvery < 1 {
		statsEvery = 1
	}

	for {
		s.Step(dt)

		if s.StepCount()%statsEvery == 0 {
			stats := s.Stats()
			if *logStats {
				stats.LogStats(names, s.Counts())
				s.Perf().Stats().LogStats()
			}
			if err := output.WriteStats(stats); err != nil {
				slog.Error("failed to write stats", "error", err)
			}
			if err := output.WritePerf(s.Perf().Stats(), s.StepCount()); err != nil {
				slog.Error("failed to write perf", "error", err)
			}
		}

		if *maxSteps > 0 && int(s.StepCount()) >= *maxSteps {
			slog.Info("max steps reached", "step", s.StepCount())
			return
		}
	}
}

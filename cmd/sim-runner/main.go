// Package main runs batches of simulated matches and prints win rates per
// rule profile.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"gopkg.in/yaml.v3"

	"github.com/overtimegame/server/internal/ai"
	"github.com/overtimegame/server/internal/catalog"
	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/platform/logger"
	"github.com/overtimegame/server/internal/simulation"
)

func main() {
	profile := flag.String("profile", "all", "Rules profile: simple, extended or all")
	matches := flag.Int("matches", 200, "Matches per profile")
	rounds := flag.Int("rounds", 3, "Rounds per match")
	seed := flag.Uint64("seed", 1, "Base seed, 0 for a random one")
	workers := flag.Int("workers", 0, "Concurrent matches, 0 for one per CPU")
	format := flag.String("format", "text", "Output format: text, json or yaml")
	catalogPath := flag.String("catalog", "", "Card catalog YAML, empty for the built-in one")
	verbose := flag.Bool("v", false, "Log every engine transition")
	flag.Parse()

	appLogger := logger.NewLogger()
	if *verbose {
		appLogger = logger.NewDevelopment()
	}
	defer appLogger.Sync()

	cat, err := catalog.Default()
	if *catalogPath != "" {
		cat, err = catalog.Load(*catalogPath)
	}
	if err != nil {
		appLogger.Error("Failed to load catalog", "error", err)
		os.Exit(1)
	}

	profiles := []ai.Profile{ai.ProfileSimple, ai.ProfileExtended}
	if *profile != "all" {
		profiles = []ai.Profile{ai.Profile(*profile)}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engineLog := logger.NewNop()
	if *verbose {
		engineLog = appLogger
	}
	runner := simulation.NewRunner(cat, engineLog, nil)

	reports := make([]simulation.Report, 0, len(profiles))
	for _, p := range profiles {
		rules, err := config.RulesFor(p)
		if err != nil {
			appLogger.Error("Unknown profile", "profile", p, "error", err)
			os.Exit(2)
		}
		rep, err := runner.Run(ctx, simulation.Config{
			Rules:   rules,
			Matches: *matches,
			Rounds:  *rounds,
			Seed:    *seed,
			Workers: *workers,
		})
		if err != nil {
			appLogger.Error("Simulation failed", "profile", p, "error", err)
			os.Exit(1)
		}
		reports = append(reports, rep)
	}

	if err := write(reports, *format); err != nil {
		appLogger.Error("Failed to write report", "error", err)
		os.Exit(1)
	}
}

func write(reports []simulation.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(reports)
	case "text":
		for _, r := range reports {
			r.Print(os.Stdout)
		}
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}

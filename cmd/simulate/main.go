// Package main provides a batch simulator that runs many seeded
// computer-versus-computer battles and prints per-species win rates.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokebattle/internal/config"
	"github.com/cory-johannsen/pokebattle/internal/game/dice"
	"github.com/cory-johannsen/pokebattle/internal/game/element"
	"github.com/cory-johannsen/pokebattle/internal/game/simulate"
	"github.com/cory-johannsen/pokebattle/internal/game/species"
	"github.com/cory-johannsen/pokebattle/internal/observability"
	"github.com/cory-johannsen/pokebattle/internal/scripting"
)

type flags struct {
	speciesDir string
	chartFile  string
	scriptDir  string
	battles    int
	seed       uint64
	workers    int
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run seeded computer-versus-computer battles and report win rates",
		Long: `simulate fights many battles between randomly drawn species. Player moves
are chosen uniformly at random; opponent moves come from the Lua scripts in
--scripts, or uniformly at random when none are given.

The same --seed and -n always produce the same report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
		SilenceUsage: true,
	}
	fl := cmd.Flags()
	fl.StringVar(&f.speciesDir, "species", "", "species YAML directory; empty uses the embedded table")
	fl.StringVar(&f.chartFile, "chart", "", "effectiveness chart YAML; empty uses the default chart")
	fl.StringVar(&f.scriptDir, "scripts", "", "opponent Lua script directory; empty picks opponent moves at random")
	fl.IntVarP(&f.battles, "battles", "n", 1000, "number of battles to simulate")
	fl.Uint64Var(&f.seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	fl.IntVar(&f.workers, "workers", runtime.NumCPU(), "concurrent battles")
	fl.StringVar(&f.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	return cmd
}

func run(ctx context.Context, f flags) error {
	start := time.Now()

	logger, err := observability.NewLogger(config.LoggingConfig{Level: f.logLevel, Format: "console"}, "simulate")
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	var list []*species.Species
	if f.speciesDir != "" {
		list, err = species.LoadDir(f.speciesDir)
	} else {
		list, err = species.Embedded()
	}
	if err != nil {
		return fmt.Errorf("loading species: %w", err)
	}
	reg, err := species.NewRegistry(list)
	if err != nil {
		return fmt.Errorf("indexing species: %w", err)
	}

	chart := element.DefaultChart()
	if f.chartFile != "" {
		if chart, err = element.LoadChart(f.chartFile); err != nil {
			return fmt.Errorf("loading effectiveness chart: %w", err)
		}
	}

	opts := simulate.Options{
		Battles: f.battles,
		Seed:    f.seed,
		Workers: f.workers,
		Chart:   chart,
		Logger:  logger,
	}
	if f.scriptDir != "" {
		// Selector serializes calls into its single Lua state.
		sel, err := scripting.NewSelector(f.scriptDir, 0, chart, dice.NewSeededSource(f.seed), logger)
		if err != nil {
			return fmt.Errorf("loading opponent scripts: %w", err)
		}
		defer sel.Close()
		opts.Opponent = sel
	}

	rep, err := simulate.Run(ctx, reg, opts)
	if err != nil {
		logger.Error("simulation failed", zap.Error(err))
		return err
	}

	fmt.Fprintf(os.Stdout, "%d battles, seed %d, player won %d, average %.2f rounds [%s]\n",
		rep.Battles, f.seed, rep.PlayerWins, rep.AverageRounds(), time.Since(start))
	for _, t := range rep.Tallies {
		fmt.Fprintf(os.Stdout, "  %-12s played %5d  won %5d  %5.1f%%\n", t.Species, t.Played, t.Wins, 100*t.WinRate())
	}
	return nil
}

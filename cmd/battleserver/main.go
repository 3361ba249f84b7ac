// Package main provides the battle server binary: a Telnet frontend where each
// connected client fights one-on-one elemental battles against a scripted
// opponent.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokebattle/internal/config"
	"github.com/cory-johannsen/pokebattle/internal/frontend/handlers"
	"github.com/cory-johannsen/pokebattle/internal/frontend/telnet"
	"github.com/cory-johannsen/pokebattle/internal/game/battle"
	"github.com/cory-johannsen/pokebattle/internal/game/dice"
	"github.com/cory-johannsen/pokebattle/internal/game/element"
	"github.com/cory-johannsen/pokebattle/internal/game/species"
	"github.com/cory-johannsen/pokebattle/internal/observability"
	"github.com/cory-johannsen/pokebattle/internal/scripting"
	"github.com/cory-johannsen/pokebattle/internal/server"
	"github.com/cory-johannsen/pokebattle/internal/storage/postgres"
)

const healthInterval = 30 * time.Second

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty uses built-in defaults")
	flag.Parse()

	// A local .env may carry BATTLE_* overrides for development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("loading .env: %v", err)
	}

	ctx := context.Background()

	var (
		cfg config.Config
		err error
	)
	if *configPath == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(*configPath)
	}
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "battleserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting battle server",
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.Bool("persistence", cfg.Database.Enabled),
	)

	// Load content
	contentStart := time.Now()
	var list []*species.Species
	if cfg.Battle.SpeciesDir != "" {
		list, err = species.LoadDir(cfg.Battle.SpeciesDir)
	} else {
		list, err = species.Embedded()
	}
	if err != nil {
		logger.Fatal("loading species", zap.Error(err))
	}
	registry, err := species.NewRegistry(list)
	if err != nil {
		logger.Fatal("indexing species", zap.Error(err))
	}

	chart := element.DefaultChart()
	if cfg.Battle.ChartFile != "" {
		if chart, err = element.LoadChart(cfg.Battle.ChartFile); err != nil {
			logger.Fatal("loading effectiveness chart", zap.Error(err))
		}
	}
	logger.Info("content loaded",
		zap.Int("species", registry.Len()),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	src := dice.NewLoggedSource(dice.NewCryptoSource(), logger)

	var selector battle.MoveSelector
	if cfg.Battle.ScriptDir != "" {
		sel, err := scripting.NewSelector(cfg.Battle.ScriptDir, cfg.Battle.InstructionLimit, chart, src, logger)
		if err != nil {
			logger.Fatal("loading opponent scripts", zap.Error(err))
		}
		defer sel.Close()
		selector = sel
		logger.Info("opponent scripts loaded", zap.String("dir", cfg.Battle.ScriptDir))
	}

	lifecycle := server.NewLifecycle(logger)

	// Connect to PostgreSQL for battle history
	var store handlers.BattleStore
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("database", cfg.Database.Name),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		store = postgres.NewBattleRepository(pool.DB())

		done := make(chan struct{})
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				ticker := time.NewTicker(healthInterval)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return nil
					case <-ticker.C:
						st := pool.Stats()
						if err := pool.Health(ctx, 5*time.Second); err != nil {
							logger.Warn("database health check failed",
								zap.Int32("total_conns", st.Total),
								zap.Error(err),
							)
							continue
						}
						logger.Debug("database healthy",
							zap.Int32("total_conns", st.Total),
							zap.Int32("idle_conns", st.Idle),
							zap.Int32("acquired_conns", st.Acquired),
						)
					}
				}
			},
			StopFn: func() {
				close(done)
				pool.Close()
			},
		})
	}

	handler := handlers.NewBattleHandler(handlers.Deps{
		Species:      registry,
		Battles:      battle.NewManager(),
		Chart:        chart,
		Selector:     selector,
		Source:       src,
		Store:        store,
		HistoryLimit: cfg.Battle.HistoryLimit,
		Logger:       logger,
	})
	acceptor := telnet.NewAcceptor(cfg.Telnet, handler, logger)
	lifecycle.Add("telnet", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	logger.Info("battle server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

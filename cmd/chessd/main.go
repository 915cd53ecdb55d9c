// Package main provides the chessd binary: the WebSocket session
// coordination server with its snapshot API.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/chessd/internal/broadcast"
	"github.com/cory-johannsen/chessd/internal/chessserver"
	"github.com/cory-johannsen/chessd/internal/config"
	"github.com/cory-johannsen/chessd/internal/game/match"
	"github.com/cory-johannsen/chessd/internal/observability"
	"github.com/cory-johannsen/chessd/internal/server"
	"github.com/cory-johannsen/chessd/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting chessd",
		zap.String("http_addr", cfg.Server.Addr()),
		zap.Bool("archive", cfg.Archive.Enabled),
	)

	lifecycle := server.NewLifecycle(logger)

	// Connect to PostgreSQL only when the completed-game archive is on.
	var archiver chessserver.Archiver
	if cfg.Archive.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		archiver = postgres.NewGameRepository(pool.DB())

		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				for {
					time.Sleep(30 * time.Second)
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			},
			StopFn: func() {
				pool.Close()
			},
		})
	}

	registry := match.NewRegistry(logger)
	router := broadcast.NewRouter(logger)
	service := chessserver.NewService(
		logger, registry, router,
		match.NewTimerScheduler(),
		cfg.Game.TeardownGrace,
		archiver,
	)

	gateway := chessserver.NewGateway(logger, service, cfg.Game.OutboxBuffer)
	httpServer := chessserver.NewHTTPServer(logger, cfg.Server, service, gateway)
	lifecycle.Add("http", httpServer)

	if cfg.Game.SweepInterval > 0 {
		sweeper := chessserver.NewSweeper(logger, service, cfg.Game.SweepInterval, cfg.Game.WaitingTTL)
		lifecycle.Add("sweeper", sweeper)
	}

	lifecycle.Add("broadcast", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  router.Close,
	})

	logger.Info("chessd initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("http_addr", cfg.Server.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

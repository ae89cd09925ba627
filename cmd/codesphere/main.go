package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/zohaib704-ai/Code-sphere/internal/api"
	"github.com/zohaib704-ai/Code-sphere/internal/catalog"
	"github.com/zohaib704-ai/Code-sphere/internal/config"
	"github.com/zohaib704-ai/Code-sphere/internal/executor"
	"github.com/zohaib704-ai/Code-sphere/internal/ratelimit"
	"github.com/zohaib704-ai/Code-sphere/internal/store"
	"github.com/zohaib704-ai/Code-sphere/internal/telemetry"
	"github.com/zohaib704-ai/Code-sphere/internal/upstream"
)

const serviceName = "codesphere"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("codesphere: starting",
		"listen_addr", cfg.ListenAddr,
		"backend_url", cfg.BackendURL,
		"db_path", cfg.DBPath,
	)

	shutdownTracer := telemetry.InitTracer(serviceName, cfg.TracingEnabled, os.Stderr, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Warn("tracer shutdown", "error", err)
		}
	}()

	var clientOpts []upstream.Option
	if cfg.BackendToken != "" {
		clientOpts = append(clientOpts, upstream.WithToken(cfg.BackendToken))
	}
	client := upstream.NewClient(cfg.BackendURL, clientOpts...)

	var (
		srvOpts  []api.Option
		execOpts []executor.Option
	)

	if cfg.DBPath != "" {
		db, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
		srvOpts = append(srvOpts, api.WithStore(db))
		execOpts = append(execOpts, executor.WithRecorder(db))
	}

	if cfg.RedisURL != "" {
		rdb, err := ratelimit.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		srvOpts = append(srvOpts, api.WithRateLimiter(ratelimit.NewRedisLimiter(rdb, cfg.RateLimitMax, cfg.RateLimitWindow)))
	} else {
		srvOpts = append(srvOpts, api.WithRateLimiter(ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)))
	}

	if cfg.StaticDir != "" {
		srvOpts = append(srvOpts, api.WithStaticDir(cfg.StaticDir))
	}

	cat := catalog.New(client, logger)
	if cfg.PrimeCatalog {
		cat.Prime(context.Background())
	}

	exec := executor.New(client, logger, execOpts...)
	srv := api.NewServer(cfg.ListenAddr, cat, exec, logger, srvOpts...)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

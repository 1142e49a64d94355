// Command hlstatsd is the real-time stats daemon: it ingests Half-Life
// engine log packets over UDP, runs them through the parsing and scoring
// pipeline, and persists results to Postgres/ClickHouse with live updates
// published over Redis.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chdriver "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/hlstats/daemon/internal/config"
	"github.com/hlstats/daemon/internal/engine"
	"github.com/hlstats/daemon/internal/httpapi"
	"github.com/hlstats/daemon/internal/identity"
	"github.com/hlstats/daemon/internal/listener"
	"github.com/hlstats/daemon/internal/metrics"
	"github.com/hlstats/daemon/internal/publish"
	"github.com/hlstats/daemon/internal/ratelimit"
	"github.com/hlstats/daemon/internal/registry"
	"github.com/hlstats/daemon/internal/storage/clickhouse"
	"github.com/hlstats/daemon/internal/storage/postgres"
	redisadapter "github.com/hlstats/daemon/internal/storage/redis"
)

const metricsInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hlstatsd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgPool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgPool.Close()

	chOpts, err := chdriver.ParseDSN(cfg.ClickHouseURL)
	if err != nil {
		return fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	chConn, err := chdriver.Open(chOpts)
	if err != nil {
		return fmt.Errorf("connect clickhouse: %w", err)
	}
	defer chConn.Close()

	redisOpts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := goredis.NewClient(redisOpts)
	defer redisClient.Close()

	// Preflight: a dead backend at startup is fatal, not degraded.
	probeCtx, cancelProbe := context.WithTimeout(ctx, 10*time.Second)
	defer cancelProbe()
	if err := pgPool.Ping(probeCtx); err != nil {
		return fmt.Errorf("postgres preflight: %w", err)
	}
	if err := chConn.Ping(probeCtx); err != nil {
		return fmt.Errorf("clickhouse preflight: %w", err)
	}
	if err := redisClient.Ping(probeCtx).Err(); err != nil {
		return fmt.Errorf("redis preflight: %w", err)
	}

	pgStore := postgres.New(pgPool)
	events := clickhouse.New(chConn)
	redisStore := redisadapter.New(redisClient)

	fanout := publish.NewFanout(redisStore, log)
	resolver := identity.New(pgStore, redisStore)
	reg := registry.New(pgStore, redisStore, cfg.SkipAuth, log)

	playerHandler := engine.NewPlayerHandler(pgStore, log)
	weaponHandler := engine.NewWeaponHandler(pgStore)
	actionHandler := engine.NewActionHandler(pgStore, events)
	rankingHandler := engine.NewRankingHandler(pgStore)
	matchHandler := engine.NewMatchHandler(pgStore, pgStore, rankingHandler, log)
	serverStatsHandler := engine.NewServerStatsHandler(pgStore, fanout, log)

	eng := engine.New(resolver, events, playerHandler, weaponHandler, actionHandler, matchHandler, serverStatsHandler, log)

	shards := engine.NewShardPool(cfg.ShardCount, cfg.ShardQueue, log)
	shards.Start(ctx)

	limiter := ratelimit.New(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	udp := listener.New(cfg.ListenHost, cfg.ListenPort, cfg.MaxPacketBytes, cfg.LogBots, limiter, reg, shards, eng, log)
	if err := udp.Start(ctx); err != nil {
		return fmt.Errorf("start udp listener: %w", err)
	}

	api := httpapi.New(httpapi.Config{
		Registry:   reg,
		Postgres:   pgPool,
		ClickHouse: chConn,
		Redis:      pingerFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		Players:    pgStore,
		Weapons:    events,
		Logger:     log,
	})
	httpServer := &http.Server{
		Addr:    net.JoinHostPort("", strconv.Itoa(cfg.HTTPPort)),
		Handler: api.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("http surface listening", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		flushLoop(gctx, events, cfg.FlushInterval, log)
		return nil
	})
	g.Go(func() error {
		metricsLoop(gctx, pgStore, log)
		return nil
	})

	log.Infow("hlstatsd running",
		"udpPort", cfg.ListenPort, "skipAuth", cfg.SkipAuth, "shards", cfg.ShardCount)

	<-ctx.Done()
	log.Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	udp.Stop(shutdownCtx)
	if err := events.Flush(shutdownCtx); err != nil {
		log.Warnw("final event flush failed", "err", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http shutdown failed", "err", err)
	}
	if err := g.Wait(); err != nil {
		log.Warnw("background loop exited with error", "err", err)
	}

	log.Infow("hlstatsd stopped")
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// flushLoop periodically drains the buffered ClickHouse event batches.
func flushLoop(ctx context.Context, events *clickhouse.Writer, interval time.Duration, log *zap.SugaredLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := events.Flush(ctx); err != nil {
				log.Warnw("event batch flush failed", "err", err)
			}
		}
	}
}

// metricsLoop refreshes the active-players gauge from storage every 15s.
func metricsLoop(ctx context.Context, store *postgres.Store, log *zap.SugaredLogger) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total, err := store.SumActivePlayers(ctx)
			if err != nil {
				log.Debugw("active players refresh failed", "err", err)
				continue
			}
			metrics.ActivePlayersCount.Set(float64(total))
		}
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

package engine

import (
	"context"
	"time"

	"github.com/hlstats/daemon/internal/identity"
	"github.com/hlstats/daemon/internal/metrics"
	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/storage"
	"go.uber.org/zap"
)

// Engine wires the identity resolver, event persister, and handler set
// into a fixed pipeline order: identity resolution, persist, server-stats,
// then the kind-specific handler fan-out.
type Engine struct {
	resolver *identity.Resolver
	events   storage.EventWriter

	player      *PlayerHandler
	weapon      *WeaponHandler
	action      *ActionHandler
	match       *MatchHandler
	serverStats *ServerStatsHandler

	logger *zap.SugaredLogger
}

// New constructs an Engine from its handlers.
func New(resolver *identity.Resolver, events storage.EventWriter, player *PlayerHandler, weapon *WeaponHandler, action *ActionHandler, match *MatchHandler, serverStats *ServerStatsHandler, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		resolver:    resolver,
		events:      events,
		player:      player,
		weapon:      weapon,
		action:      action,
		match:       match,
		serverStats: serverStats,
		logger:      logger,
	}
}

// Process runs one parsed event through the full pipeline. It is called
// from within a ShardPool task, so it is already serialized with respect
// to other events on the same serverId.
func (e *Engine) Process(ctx context.Context, ev *models.Event, game string) error {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	re, err := resolveIdentities(ctx, e.resolver, game, ev)
	if err != nil {
		metrics.EventsFailed.WithLabelValues("identity").Inc()
		metrics.IdentityResolutions.WithLabelValues("error").Inc()
		return err
	}

	if err := persist(ctx, e.events, re); err != nil {
		metrics.EventsFailed.WithLabelValues("persist").Inc()
		return err
	}

	if err := e.serverStats.Handle(ctx, re); err != nil {
		metrics.EventsFailed.WithLabelValues("server_stats").Inc()
		return err
	}

	if err := e.player.Handle(ctx, re); err != nil {
		metrics.EventsFailed.WithLabelValues("player").Inc()
		return err
	}
	if err := e.weapon.Handle(ctx, re); err != nil {
		metrics.EventsFailed.WithLabelValues("weapon").Inc()
		return err
	}
	if err := e.action.Handle(ctx, re); err != nil {
		metrics.EventsFailed.WithLabelValues("action").Inc()
		return err
	}
	if err := e.match.Handle(ctx, re); err != nil {
		metrics.EventsFailed.WithLabelValues("match").Inc()
		return err
	}

	metrics.EventsProcessed.WithLabelValues(string(ev.Kind)).Inc()
	return nil
}

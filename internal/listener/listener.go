// Package listener implements the daemon's UDP ingress: binding a single
// UDP socket, gating packets through the rate limiter and server registry,
// normalizing and parsing them, and handing the resulting event off to the
// engine's ShardPool.
package listener

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hlstats/daemon/internal/engine"
	"github.com/hlstats/daemon/internal/identity"
	"github.com/hlstats/daemon/internal/metrics"
	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/parser"
	"github.com/hlstats/daemon/internal/ratelimit"
	"github.com/hlstats/daemon/internal/registry"
	"github.com/hlstats/daemon/internal/wire"
)

const evictInterval = 5 * time.Minute

// Listener owns the UDP socket and the gating pipeline in front of the
// engine's ShardPool.
type Listener struct {
	conn    *net.UDPConn
	addr    string
	maxLen  int
	logBots bool

	limiter  *ratelimit.Limiter
	registry *registry.Registry
	shards   *engine.ShardPool
	engine   *engine.Engine

	logger *zap.SugaredLogger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New constructs a Listener bound to host:port once Start is called. When
// logBots is false, events whose every participant is an engine bot are
// dropped before they reach the pipeline.
func New(host string, port, maxLen int, logBots bool, limiter *ratelimit.Limiter, reg *registry.Registry, shards *engine.ShardPool, eng *engine.Engine, logger *zap.SugaredLogger) *Listener {
	return &Listener{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		maxLen:   maxLen,
		logBots:  logBots,
		limiter:  limiter,
		registry: reg,
		shards:   shards,
		engine:   eng,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start binds the UDP socket and launches the receive loop plus the
// rate-limiter eviction maintenance loop. It returns once the socket is
// bound; both loops run in background goroutines until Stop is called.
func (l *Listener) Start(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	l.conn = conn
	l.logger.Infow("udp listener bound", "address", conn.LocalAddr().String())

	l.wg.Add(2)
	go l.receiveLoop()
	go l.evictLoop()
	return nil
}

// Stop closes the UDP socket, signals both background loops to exit, and
// drains the ShardPool. ctx bounds the drain: when it expires, still-pending
// pipeline tasks are abandoned and logged. Calling Stop a second time is a
// no-op.
func (l *Listener) Stop(ctx context.Context) {
	l.stopOnce.Do(func() {
		close(l.done)
		if l.conn != nil {
			l.conn.Close()
		}
		l.wg.Wait()
		l.shards.Stop(ctx)
	})
}

func (l *Listener) receiveLoop() {
	defer l.wg.Done()
	// One byte of headroom so an oversized datagram is detectable instead of
	// silently truncated.
	buf := make([]byte, l.maxLen+1)
	for {
		select {
		case <-l.done:
			return
		default:
		}

		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.done:
				return
			default:
				l.logger.Warnw("udp read error", "err", err)
				continue
			}
		}
		metrics.EventsIngested.Inc()

		if n > l.maxLen {
			l.logger.Warnw("oversized packet dropped", "source", addr.String(), "bytes", n)
			metrics.EventsDropped.WithLabelValues("oversized").Inc()
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		l.handlePacket(addr, payload)
	}
}

func (l *Listener) handlePacket(addr *net.UDPAddr, payload []byte) {
	src, ok := netip.AddrFromSlice(addr.IP)
	if !ok {
		metrics.EventsDropped.WithLabelValues("bad_source").Inc()
		return
	}
	addrPort := netip.AddrPortFrom(src, uint16(addr.Port))

	now := time.Now()
	allowed, firstSeen := l.limiter.Allow(addrPort, now)
	if firstSeen {
		l.logger.Infow("new packet source", "source", addrPort.String())
	}
	if !allowed {
		metrics.RateLimitedPackets.Inc()
		return
	}

	serverID, game, forward, err := l.registry.Resolve(context.Background(), addr.IP.String(), addr.Port)
	if err != nil {
		l.logger.Warnw("server resolution failed", "address", addr.String(), "err", err)
		metrics.EventsDropped.WithLabelValues("resolve_error").Inc()
		return
	}
	if serverID == 0 {
		metrics.EventsDropped.WithLabelValues("unknown_server").Inc()
		return
	}
	if !forward {
		// First sight of a known server in prod mode: this packet only
		// authenticated the registry cache entry.
		return
	}

	line := wire.Normalize(string(payload))
	p, err := parser.ForGame(game)
	if err != nil {
		l.logger.Warnw("unsupported game", "game", game, "serverId", serverID)
		metrics.EventsDropped.WithLabelValues("unsupported_game").Inc()
		return
	}
	if !p.CanParse(line) {
		metrics.EventsDropped.WithLabelValues("unparseable").Inc()
		return
	}

	ev, err := p.Parse(line, serverID, now)
	if err != nil {
		if pe, ok := err.(*models.ParseError); ok {
			l.logger.Debugw("line rejected by parser", "serverId", serverID, "outcome", pe.Outcome)
		}
		metrics.EventsDropped.WithLabelValues("parse_error").Inc()
		return
	}
	if !l.logBots && botOnlyEvent(ev) {
		metrics.EventsDropped.WithLabelValues("bot").Inc()
		return
	}

	l.shards.Submit(engine.Task{
		ServerID: serverID,
		Run: func(ctx context.Context) {
			if err := l.engine.Process(ctx, ev, game); err != nil {
				l.logger.Warnw("pipeline processing failed", "serverId", serverID, "kind", ev.Kind, "err", err)
			}
		},
	})
}

func (l *Listener) evictLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case t := <-ticker.C:
			evicted := l.limiter.EvictStale(t)
			if evicted > 0 {
				l.logger.Infow("evicted stale rate-limit sources", "count", evicted)
			}
		}
	}
}

// botOnlyEvent reports whether every participant on ev is an engine bot.
// Events with no participants are never bot-only.
func botOnlyEvent(ev *models.Event) bool {
	if ev.Player != nil {
		return identity.IsBotToken(ev.Player.SteamID)
	}
	if ev.Dual != nil {
		return identity.IsBotToken(ev.Dual.Actor.SteamID) && identity.IsBotToken(ev.Dual.Target.SteamID)
	}
	return false
}

// Package registry resolves a UDP source address to a serverId/game pair,
// with dev-mode auto-registration and an in-memory cache for the process
// lifetime.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// defaultDevGame is assigned to servers auto-created in dev mode.
const defaultDevGame = "cstrike"

// cacheTTL is the shared-cache lifetime for address resolutions.
const cacheTTL = 5 * time.Minute

type cacheEntry struct {
	serverID int64
	game     string
}

// Registry resolves (address, port) to a server identity, caching
// resolutions in memory for the process lifetime and, when shared is
// non-nil, in Redis so that multiple daemon instances behind the same
// Postgres converge on one auth decision per address.
type Registry struct {
	store    storage.ServerRegistry
	shared   storage.Cache // nil disables the cross-process cache
	skipAuth bool
	logger   *zap.SugaredLogger

	mu    sync.RWMutex
	cache map[string]cacheEntry
	sf    singleflight.Group
}

// resolution is the singleflight-shared result of one slow-path lookup.
type resolution struct {
	serverID int64
	game     string
	forward  bool
}

// New constructs a Registry over store. skipAuth enables dev-mode
// auto-registration of unknown servers. shared may be nil.
func New(store storage.ServerRegistry, shared storage.Cache, skipAuth bool, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		store:    store,
		shared:   shared,
		skipAuth: skipAuth,
		logger:   logger,
		cache:    make(map[string]cacheEntry),
	}
}

func cacheKey(address string, port int) string {
	return address + ":" + strconv.Itoa(port)
}

// Resolve maps a UDP source to (serverId, game, forward). Sources already in
// the local or shared cache always forward. In prod mode forward is false for
// the packet whose storage lookup first resolves a registered server (it only
// performs auth resolution and is not handed to the parser), and for every
// packet from an unregistered source, which resolves to serverId 0. In dev
// mode the first packet is processed like any other.
func (r *Registry) Resolve(ctx context.Context, address string, port int) (serverID int64, game string, forward bool, err error) {
	key := cacheKey(address, port)

	r.mu.RLock()
	entry, hit := r.cache[key]
	r.mu.RUnlock()
	if hit {
		return entry.serverID, entry.game, true, nil
	}
	if entry, ok := r.sharedLookup(ctx, key); ok {
		r.storeLocal(key, entry)
		return entry.serverID, entry.game, true, nil
	}

	// A burst of packets from a still-unresolved source collapses into one
	// storage lookup; every waiter shares its result.
	v, err, _ := r.sf.Do(key, func() (any, error) {
		id, g, fwd, rerr := r.resolveSlow(ctx, key, address, port)
		if rerr != nil {
			return nil, rerr
		}
		return resolution{serverID: id, game: g, forward: fwd}, nil
	})
	if err != nil {
		return 0, "", false, err
	}
	res := v.(resolution)
	return res.serverID, res.game, res.forward, nil
}

func (r *Registry) resolveSlow(ctx context.Context, key, address string, port int) (serverID int64, game string, forward bool, err error) {
	srv, err := r.store.FindServerByAddress(ctx, address, port)
	if errors.Is(err, storage.ErrNotFound) {
		if !r.skipAuth {
			r.logger.Warnw("unknown server, packet dropped", "address", address, "port", port)
			return 0, "", false, nil
		}
		srv, err = r.store.CreateServer(ctx, address, port, defaultDevGame)
		if err != nil {
			return 0, "", false, fmt.Errorf("registry: auto-register %s:%d: %w", address, port, err)
		}
		r.cacheServer(ctx, key, srv)
		return srv.ServerID, srv.Game, true, nil
	}
	if err != nil {
		return 0, "", false, fmt.Errorf("registry: resolve %s:%d: %w", address, port, err)
	}

	r.cacheServer(ctx, key, srv)
	if r.skipAuth {
		return srv.ServerID, srv.Game, true, nil
	}
	// First sight of a server that was already registered: this packet
	// authenticates the cache entry only.
	return srv.ServerID, srv.Game, false, nil
}

// Register pre-registers a server for prod-mode deployments (invoked from
// the HTTP registration endpoint), caching the result immediately so the
// server's very next packet forwards.
func (r *Registry) Register(ctx context.Context, address string, port int, game string) (int64, error) {
	srv, err := r.store.CreateServer(ctx, address, port, game)
	if err != nil {
		return 0, fmt.Errorf("registry: register %s:%d: %w", address, port, err)
	}
	r.cacheServer(ctx, cacheKey(address, port), srv)
	return srv.ServerID, nil
}

func (r *Registry) cacheServer(ctx context.Context, key string, srv *models.Server) {
	entry := cacheEntry{serverID: srv.ServerID, game: srv.Game}
	r.storeLocal(key, entry)
	r.sharedStore(ctx, key, entry)
}

func (r *Registry) storeLocal(key string, entry cacheEntry) {
	r.mu.Lock()
	r.cache[key] = entry
	r.mu.Unlock()
}

func encodeCacheEntry(entry cacheEntry) string {
	return strconv.FormatInt(entry.serverID, 10) + ":" + entry.game
}

func decodeCacheEntry(value string) (cacheEntry, bool) {
	idStr, game, ok := strings.Cut(value, ":")
	if !ok {
		return cacheEntry{}, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return cacheEntry{}, false
	}
	return cacheEntry{serverID: id, game: game}, true
}

func (r *Registry) sharedLookup(ctx context.Context, key string) (cacheEntry, bool) {
	if r.shared == nil {
		return cacheEntry{}, false
	}
	value, err := r.shared.Get(ctx, key)
	if err != nil {
		return cacheEntry{}, false
	}
	return decodeCacheEntry(value)
}

func (r *Registry) sharedStore(ctx context.Context, key string, entry cacheEntry) {
	if r.shared == nil {
		return
	}
	_ = r.shared.Set(ctx, key, encodeCacheEntry(entry), cacheTTL)
}

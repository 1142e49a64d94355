package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hlstats/daemon/internal/metrics"
	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/storage"
)

// cacheTTL is the shared-cache lifetime for resolved identities.
const cacheTTL = 5 * time.Minute

// PlayerStore is the narrow persistence surface the resolver depends on.
type PlayerStore interface {
	FindPlayerUniqueID(ctx context.Context, uniqueID, game string) (int64, error)
	CreatePlayerWithUniqueID(ctx context.Context, uniqueID, game, name string) (int64, error)
}

// ErrNotFound is returned by PlayerStore.FindPlayerUniqueID when no player
// is registered under the given unique ID yet.
var ErrNotFound = errors.New("identity: player not found")

// ErrUniqueConflict is returned by PlayerStore.CreatePlayerWithUniqueID when
// a concurrent insert already created the row.
var ErrUniqueConflict = errors.New("identity: unique constraint race")

// Resolver maps the identity carried on a parsed event to a durable player
// row, creating one on first sight. An optional shared cache absorbs
// lookups across daemon instances sharing one Postgres.
type Resolver struct {
	store PlayerStore
	cache storage.Cache // nil disables the shared cache
}

// New constructs a Resolver backed by store. cache may be nil.
func New(store PlayerStore, cache storage.Cache) *Resolver {
	return &Resolver{store: store, cache: cache}
}

func identityCacheKey(uniqueID, game string) string {
	return "hlstats:identity:" + game + ":" + uniqueID
}

// Resolve returns the playerId for meta under game, creating a new player
// row on first sight. A get-or-create race (two packets for a brand new
// SteamID arriving on different shards before either commit lands) is
// recovered by re-reading the row the losing insert collided with.
func (r *Resolver) Resolve(ctx context.Context, meta models.PlayerMeta, game string) (int64, error) {
	uniqueID, _, err := Canonicalize(meta.SteamID, meta.Name)
	if err != nil {
		return 0, fmt.Errorf("identity: resolve: %w", err)
	}
	key := identityCacheKey(uniqueID, game)

	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, key); err == nil {
			if id, perr := strconv.ParseInt(cached, 10, 64); perr == nil {
				metrics.IdentityResolutions.WithLabelValues("hit").Inc()
				return id, nil
			}
		}
	}

	id, err := r.store.FindPlayerUniqueID(ctx, uniqueID, game)
	if err == nil {
		metrics.IdentityResolutions.WithLabelValues("hit").Inc()
		r.cacheID(ctx, key, id)
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("identity: lookup %q: %w", uniqueID, err)
	}

	id, err = r.store.CreatePlayerWithUniqueID(ctx, uniqueID, game, meta.Name)
	if err == nil {
		metrics.IdentityResolutions.WithLabelValues("created").Inc()
		r.cacheID(ctx, key, id)
		return id, nil
	}
	if errors.Is(err, ErrUniqueConflict) {
		id, rerr := r.store.FindPlayerUniqueID(ctx, uniqueID, game)
		if rerr != nil {
			return 0, fmt.Errorf("identity: post-conflict re-read %q: %w", uniqueID, rerr)
		}
		metrics.IdentityResolutions.WithLabelValues("conflict").Inc()
		r.cacheID(ctx, key, id)
		return id, nil
	}
	return 0, fmt.Errorf("identity: create %q: %w", uniqueID, err)
}

func (r *Resolver) cacheID(ctx context.Context, key string, id int64) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Set(ctx, key, strconv.FormatInt(id, 10), cacheTTL)
}

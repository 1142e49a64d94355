package engine

import (
	"context"
	"fmt"

	"github.com/hlstats/daemon/internal/identity"
	"github.com/hlstats/daemon/internal/models"
)

// ResolvedEvent carries the parsed event plus the player IDs resolved from
// any PlayerMeta/DualPlayerMeta it holds.
type ResolvedEvent struct {
	*models.Event
	Game     string // the server's game, needed by handlers keying rows on (game, code)
	PlayerID int64  // valid when Event.Player != nil
	KillerID int64  // valid when Event.Dual != nil
	VictimID int64  // valid when Event.Dual != nil
}

// resolveIdentities runs the identity-resolution pipeline stage: every
// PlayerMeta/DualPlayerMeta on ev is turned into a durable playerId.
func resolveIdentities(ctx context.Context, resolver *identity.Resolver, game string, ev *models.Event) (*ResolvedEvent, error) {
	re := &ResolvedEvent{Event: ev, Game: game}

	if ev.Player != nil {
		id, err := resolver.Resolve(ctx, *ev.Player, game)
		if err != nil {
			return nil, fmt.Errorf("engine: resolve player identity: %w", err)
		}
		re.PlayerID = id
	}

	if ev.Dual != nil {
		killerID, err := resolver.Resolve(ctx, ev.Dual.Actor, game)
		if err != nil {
			return nil, fmt.Errorf("engine: resolve killer identity: %w", err)
		}
		re.KillerID = killerID

		victimID, err := resolver.Resolve(ctx, ev.Dual.Target, game)
		if err != nil {
			return nil, fmt.Errorf("engine: resolve victim identity: %w", err)
		}
		re.VictimID = victimID
	}

	return re, nil
}

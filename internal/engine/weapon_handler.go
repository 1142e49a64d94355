package engine

import (
	"context"
	"fmt"

	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/storage"
)

// WeaponHandler consumes PLAYER_KILL and maintains the per-game weapon
// catalog. It does not touch Player.kills/Player.deaths; the Player Handler
// is the sole owner of those fields. The catalog is a rollup of the frag
// log and can be rebuilt from it, so the upsert does not share a
// transaction with the frag row write.
type WeaponHandler struct {
	weapons storage.WeaponRepository
}

// NewWeaponHandler constructs a Weapon Handler over the given repository.
func NewWeaponHandler(weapons storage.WeaponRepository) *WeaponHandler {
	return &WeaponHandler{weapons: weapons}
}

// Handle upserts the weapon row for a PLAYER_KILL; all other kinds are a
// no-op. The frag row itself is written by the Event Persister.
func (h *WeaponHandler) Handle(ctx context.Context, re *ResolvedEvent) error {
	if re.Event.Kind != models.EventPlayerKill {
		return nil
	}
	ev := re.Event

	headshots := int64(0)
	if ev.Headshot {
		headshots = 1
	}
	w := models.Weapon{
		Game:      re.Game,
		Code:      ev.Weapon,
		Modifier:  1.0, // default for a newly-created weapon row; ignored on conflict
		Kills:     1,
		Headshots: headshots,
	}
	if err := h.weapons.UpsertWeapon(ctx, w); err != nil {
		return fmt.Errorf("engine: weapon handler: upsert %s: %w", ev.Weapon, err)
	}
	return nil
}

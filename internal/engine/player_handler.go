package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/ranking"
	"github.com/hlstats/daemon/internal/storage"
	"go.uber.org/zap"
)

// PlayerHandler owns Player.kills/deaths/skill and the rest of the
// per-player rollup counters. It is the sole writer of these fields; the
// Weapon Handler does not duplicate them, so each kill counts exactly once.
type PlayerHandler struct {
	players storage.PlayerRepository
	logger  *zap.SugaredLogger
}

// NewPlayerHandler constructs a Player Handler over the given repository.
func NewPlayerHandler(players storage.PlayerRepository, logger *zap.SugaredLogger) *PlayerHandler {
	return &PlayerHandler{players: players, logger: logger}
}

// Handle dispatches re to the player-mutating operation for its kind. Kinds
// it does not consume are a no-op.
func (h *PlayerHandler) Handle(ctx context.Context, re *ResolvedEvent) error {
	ev := re.Event
	switch ev.Kind {
	case models.EventPlayerKill:
		return h.handleKill(ctx, re)
	case models.EventPlayerSuicide:
		return h.handleSuicide(ctx, re)
	case models.EventPlayerTeamkill:
		return h.handleTeamkill(ctx, re)
	case models.EventPlayerConnect:
		if err := h.touch(ctx, re.PlayerID, ev.Time, true); err != nil {
			h.logger.Warnw("connect for unknown player ignored", "playerId", re.PlayerID, "err", err)
		}
		return nil
	case models.EventPlayerEntry,
		models.EventPlayerChangeTeam, models.EventPlayerChangeRole:
		return h.touch(ctx, re.PlayerID, ev.Time, false)
	case models.EventPlayerChangeName:
		return h.handleNameChange(ctx, re)
	case models.EventPlayerDisconnect:
		if err := h.touch(ctx, re.PlayerID, ev.Time, false); err != nil {
			h.logger.Warnw("disconnect for unknown player ignored", "playerId", re.PlayerID, "err", err)
		}
		return nil
	}
	return nil
}

func (h *PlayerHandler) handleKill(ctx context.Context, re *ResolvedEvent) error {
	ev := re.Event

	killer, err := h.players.GetPlayer(ctx, re.KillerID)
	if err != nil {
		return fmt.Errorf("engine: player handler: load killer %d: %w", re.KillerID, err)
	}
	victim, err := h.players.GetPlayer(ctx, re.VictimID)
	if err != nil {
		return fmt.Errorf("engine: player handler: load victim %d: %w", re.VictimID, err)
	}

	// Weapon modifier defaults to 1.0; the weapon catalog's write path is
	// owned by the Weapon Handler.
	dk, dv := ranking.KillDelta(killer.Skill, victim.Skill, killer.GamesPlayed, victim.GamesPlayed, ev.Headshot, 1.0)

	killer.Kills++
	killer.KillStreak++
	killer.DeathStreak = 0
	if ev.Headshot {
		killer.Headshots++
	}
	killer.Skill = ranking.ClampSkill(killer.Skill + dk)
	killer.LastEvent = ev.Time.Unix()

	// Killer update must precede victim update so a killer-side failure
	// aborts before mutating the victim.
	if err := h.players.UpdatePlayer(ctx, killer); err != nil {
		return fmt.Errorf("engine: player handler: update killer %d: %w", re.KillerID, err)
	}

	victim.Deaths++
	victim.DeathStreak++
	victim.KillStreak = 0
	victim.Skill = ranking.ClampSkill(victim.Skill + dv)
	victim.LastEvent = ev.Time.Unix()

	if err := h.players.UpdatePlayer(ctx, victim); err != nil {
		return fmt.Errorf("engine: player handler: update victim %d: %w", re.VictimID, err)
	}
	return nil
}

func (h *PlayerHandler) handleSuicide(ctx context.Context, re *ResolvedEvent) error {
	ev := re.Event
	p, err := h.players.GetPlayer(ctx, re.PlayerID)
	if err != nil {
		return fmt.Errorf("engine: player handler: load suicide player %d: %w", re.PlayerID, err)
	}
	p.Suicides++
	p.Deaths++
	p.DeathStreak++
	p.KillStreak = 0
	p.Skill = ranking.ClampSkill(p.Skill - 5)
	p.LastEvent = ev.Time.Unix()
	return h.players.UpdatePlayer(ctx, p)
}

func (h *PlayerHandler) handleTeamkill(ctx context.Context, re *ResolvedEvent) error {
	ev := re.Event

	killer, err := h.players.GetPlayer(ctx, re.KillerID)
	if err != nil {
		return fmt.Errorf("engine: player handler: load teamkiller %d: %w", re.KillerID, err)
	}
	victim, err := h.players.GetPlayer(ctx, re.VictimID)
	if err != nil {
		return fmt.Errorf("engine: player handler: load teamkill victim %d: %w", re.VictimID, err)
	}

	killer.Teamkills++
	killer.KillStreak = 0
	killer.Skill = ranking.ClampSkill(killer.Skill - 10)
	killer.LastEvent = ev.Time.Unix()
	if err := h.players.UpdatePlayer(ctx, killer); err != nil {
		return fmt.Errorf("engine: player handler: update teamkiller %d: %w", re.KillerID, err)
	}

	victim.Deaths++
	victim.DeathStreak++
	victim.KillStreak = 0
	victim.LastEvent = ev.Time.Unix()
	if err := h.players.UpdatePlayer(ctx, victim); err != nil {
		return fmt.Errorf("engine: player handler: update teamkill victim %d: %w", re.VictimID, err)
	}
	return nil
}

func (h *PlayerHandler) handleNameChange(ctx context.Context, re *ResolvedEvent) error {
	p, err := h.players.GetPlayer(ctx, re.PlayerID)
	if err != nil {
		h.logger.Warnw("name change for unknown player ignored", "playerId", re.PlayerID, "err", err)
		return nil
	}
	p.LastName = re.Event.NewValue
	p.LastEvent = re.Event.Time.Unix()
	return h.players.UpdatePlayer(ctx, p)
}

func (h *PlayerHandler) touch(ctx context.Context, playerID int64, at time.Time, resetConnection bool) error {
	p, err := h.players.GetPlayer(ctx, playerID)
	if err != nil {
		return fmt.Errorf("engine: player handler: load player %d: %w", playerID, err)
	}
	p.LastEvent = at.Unix()
	if resetConnection {
		p.ConnectionTime = 0
	}
	return h.players.UpdatePlayer(ctx, p)
}

package engine

import (
	"context"
	"fmt"

	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/storage"
)

// ActionHandler owns the action-family events: it appends their event rows
// and bumps the per-game action catalog count for each occurrence. The
// generic event persister forwards these kinds here so the row write and the
// catalog upsert stay in one place.
type ActionHandler struct {
	actions storage.ActionRepository
	events  storage.EventWriter
}

// NewActionHandler constructs an Action Handler.
func NewActionHandler(actions storage.ActionRepository, events storage.EventWriter) *ActionHandler {
	return &ActionHandler{actions: actions, events: events}
}

// Handle persists an ACTION_* event row and increments its catalog entry.
// All other kinds are a no-op.
func (h *ActionHandler) Handle(ctx context.Context, re *ResolvedEvent) error {
	ev := re.Event
	action := models.Action{
		Game:  re.Game,
		Code:  ev.Code,
		Count: 1,
	}

	switch ev.Kind {
	case models.EventActionPlayer:
		action.ForPlayerAction = true
		if err := h.events.WritePlayerAction(ctx, models.PlayerActionRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			PlayerID: re.PlayerID, Code: ev.Code, Team: playerTeam(ev),
			Bonus: ev.Bonus, Pos: ev.ActorPos,
		}); err != nil {
			return fmt.Errorf("engine: action handler: write player action %q: %w", ev.Code, err)
		}

	case models.EventActionPlayerPlayer:
		action.ForPlayerPlayerAction = true
		if err := h.events.WritePlayerPlayerAction(ctx, models.PlayerPlayerActionRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			ActorID: re.KillerID, TargetID: re.VictimID, Code: ev.Code, Bonus: ev.Bonus,
		}); err != nil {
			return fmt.Errorf("engine: action handler: write player-player action %q: %w", ev.Code, err)
		}

	case models.EventActionTeam:
		action.Team = ev.Team
		action.ForTeamAction = true
		if err := h.events.WriteTeamAction(ctx, models.TeamActionRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			Team: ev.Team, Code: ev.Code, Bonus: ev.Bonus,
		}); err != nil {
			return fmt.Errorf("engine: action handler: write team action %q: %w", ev.Code, err)
		}

	case models.EventActionWorld:
		action.ForWorldAction = true
		if err := h.events.WriteWorldAction(ctx, models.WorldActionRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			Code: ev.Code, Bonus: ev.Bonus,
		}); err != nil {
			return fmt.Errorf("engine: action handler: write world action %q: %w", ev.Code, err)
		}

	default:
		return nil
	}

	if err := h.actions.UpsertAction(ctx, action); err != nil {
		return fmt.Errorf("engine: action handler: upsert action %q: %w", ev.Code, err)
	}
	return nil
}

func playerTeam(ev *models.Event) string {
	if ev.Player != nil {
		return ev.Player.Team
	}
	return ""
}

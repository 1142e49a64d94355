package engine

import (
	"context"

	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/storage"
)

// persist appends the row for a single resolved event to its per-kind
// table. ROUND_*, TEAM_WIN, MAP_CHANGE, and SERVER_STATS_UPDATE never write
// event rows; they drive state only. ACTION_* rows are written by the
// Action Handler, not here, so the row write and the catalog count bump
// stay together.
func persist(ctx context.Context, w storage.EventWriter, re *ResolvedEvent) error {
	ev := re.Event
	switch ev.Kind {
	case models.EventPlayerConnect:
		return w.WriteConnect(ctx, models.ConnectRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			PlayerID: re.PlayerID, Address: ev.Address,
		})
	case models.EventPlayerDisconnect:
		return w.WriteDisconnect(ctx, models.DisconnectRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			PlayerID: re.PlayerID, Reason: ev.Reason,
		})
	case models.EventPlayerEntry:
		return w.WriteEntry(ctx, models.EntryRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map, PlayerID: re.PlayerID,
		})
	case models.EventPlayerChangeTeam:
		return w.WriteChangeTeam(ctx, models.ChangeTeamRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			PlayerID: re.PlayerID, OldTeam: ev.OldValue, NewTeam: ev.NewValue,
		})
	case models.EventPlayerChangeRole:
		return w.WriteChangeRole(ctx, models.ChangeRoleRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			PlayerID: re.PlayerID, OldRole: ev.OldValue, NewRole: ev.NewValue,
		})
	case models.EventPlayerChangeName:
		return w.WriteChangeName(ctx, models.ChangeNameRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			PlayerID: re.PlayerID, OldName: ev.OldValue, NewName: ev.NewValue,
		})
	case models.EventPlayerKill:
		return w.WriteFrag(ctx, models.FragRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			KillerID: re.KillerID, VictimID: re.VictimID, Weapon: ev.Weapon, Headshot: ev.Headshot,
			KillerTeam: ev.Dual.Actor.Team, VictimTeam: ev.Dual.Target.Team,
			KillerPos: ev.ActorPos, VictimPos: ev.TargetPos,
		})
	case models.EventPlayerSuicide:
		return w.WriteSuicide(ctx, models.SuicideRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			PlayerID: re.PlayerID, Weapon: ev.Weapon, Pos: ev.ActorPos,
		})
	case models.EventPlayerTeamkill:
		return w.WriteTeamkill(ctx, models.TeamkillRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			KillerID: re.KillerID, VictimID: re.VictimID, Weapon: ev.Weapon, Team: ev.Dual.Actor.Team,
			KillerPos: ev.ActorPos, VictimPos: ev.TargetPos,
		})
	case models.EventChat:
		return w.WriteChat(ctx, models.ChatRow{
			EventTime: ev.Time, ServerID: ev.ServerID, Map: ev.Map,
			PlayerID: re.PlayerID, Message: ev.Message, Dead: ev.IsDead,
		})
	case models.EventRoundStart, models.EventRoundEnd, models.EventTeamWin, models.EventMapChange,
		models.EventServerStatsUpdate,
		models.EventActionPlayer, models.EventActionPlayerPlayer, models.EventActionTeam, models.EventActionWorld:
		return nil
	default:
		// Objective and weapon-fire/hit events carry no player-identifying
		// row of their own in this schema; they flow only into the Match
		// and Server-Stats handlers.
		return nil
	}
}

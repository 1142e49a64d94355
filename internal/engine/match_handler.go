package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/storage"
	"go.uber.org/zap"
)

// objectivePoints awards per-player points for objective events.
var objectivePoints = map[models.EventKind]int{
	models.EventBombPlant:    3,
	models.EventBombDefuse:   3,
	models.EventBombExplode:  0,
	models.EventHostageRescu: 2,
	models.EventHostageTouch: 1,
	models.EventFlagCapture:  5,
	models.EventFlagDefend:   3,
	models.EventFlagPickup:   1,
	models.EventFlagDrop:     0,
	models.EventCPCapture:    4,
	models.EventCPDefend:     2,
}

// MatchHandler runs the per-server round/match state machine. It owns
// PlayerRoundStats accumulation and map finalization; it does not touch
// Server.actMap/mapStarted/mapChanges, which the Server-Stats Handler owns
// on the same MAP_CHANGE event.
type MatchHandler struct {
	mu     sync.Mutex
	states map[int64]*models.MatchState

	servers     storage.ServerRegistry
	matchWriter storage.MatchReportWriter
	ranking     *RankingHandler
	logger      *zap.SugaredLogger
}

// NewMatchHandler constructs a Match Handler.
func NewMatchHandler(servers storage.ServerRegistry, matchWriter storage.MatchReportWriter, ranking *RankingHandler, logger *zap.SugaredLogger) *MatchHandler {
	return &MatchHandler{
		states:      make(map[int64]*models.MatchState),
		servers:     servers,
		matchWriter: matchWriter,
		ranking:     ranking,
		logger:      logger,
	}
}

// stateFor returns the in-memory match state for serverID, lazily creating
// one if an event arrives before any ROUND_START was seen.
func (h *MatchHandler) stateFor(serverID int64, now time.Time) *models.MatchState {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.states[serverID]
	if !ok {
		s = models.NewMatchState(now)
		h.states[serverID] = s
		h.logger.Warnw("match state missing, lazily initialized", "serverId", serverID)
	}
	return s
}

func (h *MatchHandler) dropState(serverID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.states, serverID)
}

// Handle dispatches re to the match state machine. Callers must still
// invoke Handle for every event kind the Match Handler consumes; kinds it
// does not recognize are a no-op.
func (h *MatchHandler) Handle(ctx context.Context, re *ResolvedEvent) error {
	ev := re.Event
	switch {
	case ev.Kind == models.EventRoundStart:
		h.mu.Lock()
		h.states[ev.ServerID] = models.NewMatchState(ev.Time)
		h.mu.Unlock()
		return nil

	case ev.Kind == models.EventRoundEnd:
		return h.handleRoundEnd(ctx, re)

	case ev.Kind == models.EventTeamWin:
		state := h.stateFor(ev.ServerID, ev.Time)
		state.TotalRounds++
		state.TeamScores[ev.Team]++
		return nil

	case ev.Kind == models.EventMapChange:
		return h.handleMapChange(ctx, re)

	case models.IsObjective(ev.Kind):
		state := h.stateFor(ev.ServerID, ev.Time)
		stats := state.StatsFor(re.PlayerID)
		stats.ObjectiveScore += objectivePoints[ev.Kind]
		return nil

	case ev.Kind == models.EventPlayerKill:
		state := h.stateFor(ev.ServerID, ev.Time)
		ks := state.StatsFor(re.KillerID)
		ks.Kills++
		if ev.Headshot {
			ks.Headshots++
		}
		state.StatsFor(re.VictimID).Deaths++
		return nil

	case ev.Kind == models.EventPlayerSuicide:
		state := h.stateFor(ev.ServerID, ev.Time)
		stats := state.StatsFor(re.PlayerID)
		stats.Suicides++
		stats.Deaths++
		return nil

	case ev.Kind == models.EventPlayerTeamkill:
		state := h.stateFor(ev.ServerID, ev.Time)
		state.StatsFor(re.KillerID).Teamkills++
		state.StatsFor(re.VictimID).Deaths++
		return nil
	}
	return nil
}

func (h *MatchHandler) handleRoundEnd(ctx context.Context, re *ResolvedEvent) error {
	ev := re.Event
	state := h.stateFor(ev.ServerID, ev.Time)
	state.TotalRounds++
	if ev.HasDuration {
		state.Duration += ev.Duration
	}
	if ev.HasWinningTeam {
		state.TeamScores[ev.WinningTeam]++
	}
	if ev.HasDuration && ev.HasWinningTeam {
		if err := h.ranking.ApplyRoundEnd(ctx, state, ev.Duration); err != nil {
			return fmt.Errorf("engine: match handler: round rating bonus: %w", err)
		}
	}
	return nil
}

func (h *MatchHandler) handleMapChange(ctx context.Context, re *ResolvedEvent) error {
	ev := re.Event
	if ev.PreviousMap == "" {
		// First map seen on this server: nothing to finalize.
		h.dropState(ev.ServerID)
		return nil
	}

	h.mu.Lock()
	state, ok := h.states[ev.ServerID]
	delete(h.states, ev.ServerID)
	h.mu.Unlock()
	if !ok || len(state.PlayerStats) == 0 {
		return nil
	}

	if err := h.finalize(ctx, re.Game, ev.ServerID, ev.PreviousMap, state); err != nil {
		return fmt.Errorf("engine: match handler: finalize map %s: %w", ev.PreviousMap, err)
	}
	return nil
}

func mvpScore(s *models.PlayerRoundStats) int {
	return 2*s.Kills - s.Deaths + s.Assists + 3*s.ObjectiveScore + 5*s.ClutchWins
}

func (h *MatchHandler) finalize(ctx context.Context, game string, serverID int64, finishedMap string, state *models.MatchState) error {
	var mvpID int64
	var mvpStats *models.PlayerRoundStats
	for id, stats := range state.PlayerStats {
		if mvpStats == nil ||
			mvpScore(stats) > mvpScore(mvpStats) ||
			(mvpScore(stats) == mvpScore(mvpStats) && stats.FirstSeen < mvpStats.FirstSeen) {
			mvpID, mvpStats = id, stats
		}
	}

	now := time.Now()
	rows := make([]models.PlayerHistory, 0, len(state.PlayerStats))
	var totalKills, totalHeadshots int64
	for id, stats := range state.PlayerStats {
		rows = append(rows, models.PlayerHistory{
			MatchID:        state.MatchID,
			PlayerID:       id,
			ServerID:       serverID,
			Map:            finishedMap,
			Kills:          stats.Kills,
			Deaths:         stats.Deaths,
			Assists:        stats.Assists,
			Headshots:      stats.Headshots,
			Shots:          stats.Shots,
			Hits:           stats.Hits,
			Suicides:       stats.Suicides,
			Teamkills:      stats.Teamkills,
			ObjectiveScore: stats.ObjectiveScore,
			ClutchWins:     stats.ClutchWins,
			MVP:            id == mvpID,
			RecordedAt:     now,
		})
		totalKills += int64(stats.Kills)
		totalHeadshots += int64(stats.Headshots)
	}

	if err := h.matchWriter.RecordPlayerHistory(ctx, rows); err != nil {
		return fmt.Errorf("record player history: %w", err)
	}
	if err := h.matchWriter.UpsertMapCount(ctx, models.MapCount{
		Game: game, Map: finishedMap, Kills: totalKills, Headshots: totalHeadshots,
	}); err != nil {
		return fmt.Errorf("upsert map count: %w", err)
	}

	srv, err := h.servers.GetServer(ctx, serverID)
	if err != nil {
		return fmt.Errorf("load server %d: %w", serverID, err)
	}
	srv.MapKills, srv.MapRounds, srv.MapSuicides, srv.MapHeadshots = 0, 0, 0, 0
	srv.MapBombsPlanted, srv.MapBombsDefused = 0, 0
	srv.MapCTWins, srv.MapTSWins = 0, 0
	srv.MapCTShots, srv.MapCTHits, srv.MapTSShots, srv.MapTSHits = 0, 0, 0, 0
	if err := h.servers.UpdateServer(ctx, srv); err != nil {
		return fmt.Errorf("reset map aggregates for server %d: %w", serverID, err)
	}
	return nil
}

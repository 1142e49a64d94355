package engine

import (
	"context"
	"fmt"

	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/ranking"
	"github.com/hlstats/daemon/internal/storage"
)

// RankingHandler applies the round-end rating bonus and answers
// confidence-model queries. The kill-rating formula itself
// is invoked inline by the Player Handler, which owns Player.skill on the
// kill path; this handler only ever touches skill on ROUND_END.
type RankingHandler struct {
	players storage.PlayerRepository
}

// NewRankingHandler constructs a Ranking Handler over the given repository.
func NewRankingHandler(players storage.PlayerRepository) *RankingHandler {
	return &RankingHandler{players: players}
}

// ApplyRoundEnd bumps the skill of every round participant. state is the
// match's in-memory round stats; duration/winningTeam are read from the
// ROUND_END event by the caller and must both be present.
func (h *RankingHandler) ApplyRoundEnd(ctx context.Context, state *models.MatchState, duration float64) error {
	for playerID, stats := range state.PlayerStats {
		p, err := h.players.GetPlayer(ctx, playerID)
		if err != nil {
			// A participant who has since vanished from storage should not
			// abort the round bonus for everyone else.
			continue
		}
		bonus := ranking.RoundRatingBonus(duration, stats.Teamkills)
		p.Skill = ranking.ClampSkill(p.Skill + bonus)
		p.GamesPlayed++
		if err := h.players.UpdatePlayer(ctx, p); err != nil {
			return fmt.Errorf("engine: ranking handler: update player %d: %w", playerID, err)
		}
	}
	return nil
}

// ConfidenceFor returns the confidence-model snapshot for playerID, or the
// default snapshot if the player is unknown.
func (h *RankingHandler) ConfidenceFor(ctx context.Context, playerID int64) ranking.Confidence {
	p, err := h.players.GetPlayer(ctx, playerID)
	if err != nil {
		return ranking.DefaultConfidence
	}
	return ranking.ConfidenceFor(p.Skill, p.Kills)
}

// Package postgres adapts storage.PgPool to the repository contracts used
// by the identity resolver, server registry, and player rollups.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/hlstats/daemon/internal/identity"
	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store implements storage.ServerRegistry, storage.PlayerRepository,
// storage.WeaponRepository, storage.ActionRepository, and
// identity.PlayerStore over a single pgxpool.Pool.
type Store struct {
	pool storage.PgPool
}

// New constructs a Store backed by pool.
func New(pool storage.PgPool) *Store {
	return &Store{pool: pool}
}

const serverColumns = `server_id, address, port, game,
	kills, rounds, suicides, headshots, bombs_planted, bombs_defused, ct_wins, ts_wins,
	ct_shots, ct_hits, ts_shots, ts_hits,
	map_kills, map_rounds, map_suicides, map_headshots, map_bombs_planted, map_bombs_defused,
	map_ct_wins, map_ts_wins, map_ct_shots, map_ct_hits, map_ts_shots, map_ts_hits,
	act_map, act_players, max_players, map_started, map_changes, seen_weapon_events`

func scanServer(row pgx.Row) (*models.Server, error) {
	var srv models.Server
	err := row.Scan(&srv.ServerID, &srv.Address, &srv.Port, &srv.Game,
		&srv.Kills, &srv.Rounds, &srv.Suicides, &srv.Headshots, &srv.BombsPlanted, &srv.BombsDefused,
		&srv.CTWins, &srv.TSWins, &srv.CTShots, &srv.CTHits, &srv.TSShots, &srv.TSHits,
		&srv.MapKills, &srv.MapRounds, &srv.MapSuicides, &srv.MapHeadshots,
		&srv.MapBombsPlanted, &srv.MapBombsDefused, &srv.MapCTWins, &srv.MapTSWins,
		&srv.MapCTShots, &srv.MapCTHits, &srv.MapTSShots, &srv.MapTSHits,
		&srv.ActMap, &srv.ActPlayers, &srv.MaxPlayers, &srv.MapStarted, &srv.MapChanges,
		&srv.SeenWeaponEvents)
	return &srv, err
}

func (s *Store) FindServerByAddress(ctx context.Context, address string, port int) (*models.Server, error) {
	srv, err := scanServer(s.pool.QueryRow(ctx, `SELECT `+serverColumns+`
		FROM servers WHERE address = $1 AND port = $2`, address, port))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find server %s:%d: %w", address, port, err)
	}
	return srv, nil
}

// GetServer loads a server by its primary key, used by the Match Handler to
// read and reset map_* aggregates on finalization and by the Server-Stats
// Handler to apply per-event deltas.
func (s *Store) GetServer(ctx context.Context, serverID int64) (*models.Server, error) {
	srv, err := scanServer(s.pool.QueryRow(ctx, `SELECT `+serverColumns+`
		FROM servers WHERE server_id = $1`, serverID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get server %d: %w", serverID, err)
	}
	return srv, nil
}

func (s *Store) CreateServer(ctx context.Context, address string, port int, game string) (*models.Server, error) {
	srv, err := scanServer(s.pool.QueryRow(ctx, `
		INSERT INTO servers (address, port, game)
		VALUES ($1, $2, $3)
		ON CONFLICT (address, port) DO UPDATE SET address = EXCLUDED.address
		RETURNING `+serverColumns, address, port, game))
	if err != nil {
		return nil, fmt.Errorf("postgres: create server %s:%d: %w", address, port, err)
	}
	return srv, nil
}

func (s *Store) UpdateServer(ctx context.Context, srv *models.Server) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE servers SET
			kills = $2, rounds = $3, suicides = $4, headshots = $5,
			bombs_planted = $6, bombs_defused = $7, ct_wins = $8, ts_wins = $9,
			ct_shots = $10, ct_hits = $11, ts_shots = $12, ts_hits = $13,
			map_kills = $14, map_rounds = $15, map_suicides = $16, map_headshots = $17,
			map_bombs_planted = $18, map_bombs_defused = $19, map_ct_wins = $20, map_ts_wins = $21,
			map_ct_shots = $22, map_ct_hits = $23, map_ts_shots = $24, map_ts_hits = $25,
			act_map = $26, act_players = $27, max_players = $28,
			map_started = $29, map_changes = $30, seen_weapon_events = $31
		WHERE server_id = $1`,
		srv.ServerID,
		srv.Kills, srv.Rounds, srv.Suicides, srv.Headshots,
		srv.BombsPlanted, srv.BombsDefused, srv.CTWins, srv.TSWins,
		srv.CTShots, srv.CTHits, srv.TSShots, srv.TSHits,
		srv.MapKills, srv.MapRounds, srv.MapSuicides, srv.MapHeadshots,
		srv.MapBombsPlanted, srv.MapBombsDefused, srv.MapCTWins, srv.MapTSWins,
		srv.MapCTShots, srv.MapCTHits, srv.MapTSShots, srv.MapTSHits,
		srv.ActMap, srv.ActPlayers, srv.MaxPlayers,
		srv.MapStarted, srv.MapChanges, srv.SeenWeaponEvents,
	)
	if err != nil {
		return fmt.Errorf("postgres: update server %d: %w", srv.ServerID, err)
	}
	return nil
}

func (s *Store) FindPlayerUniqueID(ctx context.Context, uniqueID, game string) (int64, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT player_id FROM player_unique_ids WHERE unique_id = $1 AND game = $2`,
		uniqueID, game)

	var playerID int64
	err := row.Scan(&playerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, identity.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: find player unique id %q: %w", uniqueID, err)
	}
	return playerID, nil
}

func (s *Store) CreatePlayerWithUniqueID(ctx context.Context, uniqueID, game, name string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin create player tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var playerID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO players (game, last_name, skill)
		VALUES ($1, $2, 1000)
		RETURNING player_id`, game, name).Scan(&playerID)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert player: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO player_unique_ids (unique_id, game, player_id)
		VALUES ($1, $2, $3)`, uniqueID, game, playerID)
	if isUniqueViolation(err) {
		return 0, identity.ErrUniqueConflict
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: insert player unique id: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit create player tx: %w", err)
	}
	return playerID, nil
}

func (s *Store) GetPlayer(ctx context.Context, playerID int64) (*models.Player, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT player_id, game, last_name, skill, games_played, kills, deaths, suicides, teamkills,
		       headshots, shots, hits, kill_streak, death_streak, connection_time,
		       hide_ranking, last_event, last_skill_change
		FROM players WHERE player_id = $1`, playerID)

	var p models.Player
	err := row.Scan(&p.PlayerID, &p.Game, &p.LastName, &p.Skill, &p.GamesPlayed, &p.Kills, &p.Deaths,
		&p.Suicides, &p.Teamkills, &p.Headshots, &p.Shots, &p.Hits, &p.KillStreak,
		&p.DeathStreak, &p.ConnectionTime, &p.HideRanking, &p.LastEvent, &p.LastSkillChange)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get player %d: %w", playerID, err)
	}
	return &p, nil
}

func (s *Store) UpdatePlayer(ctx context.Context, p *models.Player) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE players SET
			last_name = $2, skill = $3, games_played = $4, kills = $5, deaths = $6, suicides = $7,
			teamkills = $8, headshots = $9, shots = $10, hits = $11,
			kill_streak = $12, death_streak = $13, connection_time = $14,
			hide_ranking = $15, last_event = $16, last_skill_change = $17
		WHERE player_id = $1`,
		p.PlayerID, p.LastName, p.Skill, p.GamesPlayed, p.Kills, p.Deaths, p.Suicides,
		p.Teamkills, p.Headshots, p.Shots, p.Hits, p.KillStreak, p.DeathStreak,
		p.ConnectionTime, p.HideRanking, p.LastEvent, p.LastSkillChange,
	)
	if err != nil {
		return fmt.Errorf("postgres: update player %d: %w", p.PlayerID, err)
	}
	return nil
}

func (s *Store) UpsertWeapon(ctx context.Context, w models.Weapon) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO weapons (game, code, name, modifier, kills, headshots)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game, code) DO UPDATE SET
			kills = weapons.kills + EXCLUDED.kills,
			headshots = weapons.headshots + EXCLUDED.headshots`,
		w.Game, w.Code, w.Name, w.Modifier, w.Kills, w.Headshots)
	if err != nil {
		return fmt.Errorf("postgres: upsert weapon %s/%s: %w", w.Game, w.Code, err)
	}
	return nil
}

func (s *Store) UpsertAction(ctx context.Context, a models.Action) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO actions (game, code, team, for_player_action, for_player_player_action,
		                      for_team_action, for_world_action, reward_player, reward_team,
		                      description, count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (game, code, team) DO UPDATE SET
			count = actions.count + EXCLUDED.count`,
		a.Game, a.Code, a.Team, a.ForPlayerAction, a.ForPlayerPlayerAction,
		a.ForTeamAction, a.ForWorldAction, a.RewardPlayer, a.RewardTeam,
		a.Description, a.Count)
	if err != nil {
		return fmt.Errorf("postgres: upsert action %s/%s: %w", a.Game, a.Code, err)
	}
	return nil
}

func (s *Store) RecordPlayerHistory(ctx context.Context, rows []models.PlayerHistory) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin player history tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO player_history (match_id, player_id, server_id, map, kills, deaths, assists,
			                             headshots, shots, hits, suicides, teamkills,
			                             objective_score, clutch_wins, mvp, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			r.MatchID, r.PlayerID, r.ServerID, r.Map, r.Kills, r.Deaths, r.Assists,
			r.Headshots, r.Shots, r.Hits, r.Suicides, r.Teamkills,
			r.ObjectiveScore, r.ClutchWins, r.MVP, r.RecordedAt)
		if err != nil {
			return fmt.Errorf("postgres: insert player history for player %d: %w", r.PlayerID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) UpsertMapCount(ctx context.Context, c models.MapCount) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO map_counts (game, map, kills, headshots)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game, map) DO UPDATE SET
			kills = map_counts.kills + EXCLUDED.kills,
			headshots = map_counts.headshots + EXCLUDED.headshots`,
		c.Game, c.Map, c.Kills, c.Headshots)
	if err != nil {
		return fmt.Errorf("postgres: upsert map count %s/%s: %w", c.Game, c.Map, err)
	}
	return nil
}

// TopPlayers lists the highest-rated players for a game, skipping players
// who opted out of rankings.
func (s *Store) TopPlayers(ctx context.Context, game string, limit int) ([]models.Player, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT player_id, game, last_name, skill, games_played, kills, deaths, suicides, teamkills,
		       headshots, shots, hits, kill_streak, death_streak, connection_time,
		       hide_ranking, last_event, last_skill_change
		FROM players
		WHERE game = $1 AND NOT hide_ranking
		ORDER BY skill DESC, kills DESC
		LIMIT $2`, game, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: top players for %s: %w", game, err)
	}
	defer rows.Close()

	var out []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.PlayerID, &p.Game, &p.LastName, &p.Skill, &p.GamesPlayed, &p.Kills,
			&p.Deaths, &p.Suicides, &p.Teamkills, &p.Headshots, &p.Shots, &p.Hits,
			&p.KillStreak, &p.DeathStreak, &p.ConnectionTime, &p.HideRanking,
			&p.LastEvent, &p.LastSkillChange); err != nil {
			return nil, fmt.Errorf("postgres: scan top players: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SumActivePlayers totals act_players across all servers, feeding the
// active-players gauge refreshed by the daemon's metrics loop.
func (s *Store) SumActivePlayers(ctx context.Context) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(act_players), 0) FROM servers`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum active players: %w", err)
	}
	return total, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

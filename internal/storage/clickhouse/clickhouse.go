// Package clickhouse batches persisted event rows into ClickHouse inserts.
package clickhouse

import (
	"context"
	"fmt"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/hlstats/daemon/internal/models"
)

// Writer implements storage.EventWriter over a ClickHouse driver.Conn. Each
// Write call appends to an in-memory buffer for its row kind; Flush prepares
// one batch per non-empty buffer and sends it.
type Writer struct {
	conn driver.Conn

	mu          sync.Mutex
	connects    []models.ConnectRow
	disconnects []models.DisconnectRow
	entries     []models.EntryRow
	changeTeams []models.ChangeTeamRow
	changeRoles []models.ChangeRoleRow
	changeNames []models.ChangeNameRow
	frags       []models.FragRow
	suicides    []models.SuicideRow
	teamkills   []models.TeamkillRow
	chats       []models.ChatRow
	playerActs  []models.PlayerActionRow
	playerPlayerActs []models.PlayerPlayerActionRow
	teamActs    []models.TeamActionRow
	worldActs   []models.WorldActionRow
}

// New constructs a Writer backed by conn.
func New(conn driver.Conn) *Writer {
	return &Writer{conn: conn}
}

func (w *Writer) WriteConnect(_ context.Context, row models.ConnectRow) error {
	w.mu.Lock()
	w.connects = append(w.connects, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WriteDisconnect(_ context.Context, row models.DisconnectRow) error {
	w.mu.Lock()
	w.disconnects = append(w.disconnects, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WriteEntry(_ context.Context, row models.EntryRow) error {
	w.mu.Lock()
	w.entries = append(w.entries, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WriteChangeTeam(_ context.Context, row models.ChangeTeamRow) error {
	w.mu.Lock()
	w.changeTeams = append(w.changeTeams, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WriteChangeRole(_ context.Context, row models.ChangeRoleRow) error {
	w.mu.Lock()
	w.changeRoles = append(w.changeRoles, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WriteChangeName(_ context.Context, row models.ChangeNameRow) error {
	w.mu.Lock()
	w.changeNames = append(w.changeNames, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WriteFrag(_ context.Context, row models.FragRow) error {
	w.mu.Lock()
	w.frags = append(w.frags, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WriteSuicide(_ context.Context, row models.SuicideRow) error {
	w.mu.Lock()
	w.suicides = append(w.suicides, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WriteTeamkill(_ context.Context, row models.TeamkillRow) error {
	w.mu.Lock()
	w.teamkills = append(w.teamkills, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WriteChat(_ context.Context, row models.ChatRow) error {
	w.mu.Lock()
	w.chats = append(w.chats, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WritePlayerAction(_ context.Context, row models.PlayerActionRow) error {
	w.mu.Lock()
	w.playerActs = append(w.playerActs, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WritePlayerPlayerAction(_ context.Context, row models.PlayerPlayerActionRow) error {
	w.mu.Lock()
	w.playerPlayerActs = append(w.playerPlayerActs, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WriteTeamAction(_ context.Context, row models.TeamActionRow) error {
	w.mu.Lock()
	w.teamActs = append(w.teamActs, row)
	w.mu.Unlock()
	return nil
}

func (w *Writer) WriteWorldAction(_ context.Context, row models.WorldActionRow) error {
	w.mu.Lock()
	w.worldActs = append(w.worldActs, row)
	w.mu.Unlock()
	return nil
}

// Flush drains every buffer into its own ClickHouse batch insert. Buffers
// are swapped out under lock and appended outside it so a slow Send call
// doesn't block concurrent Write calls for the next batch window.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	frags, suicides, teamkills := w.frags, w.suicides, w.teamkills
	connects, disconnects, entries := w.connects, w.disconnects, w.entries
	changeTeams, changeRoles, changeNames := w.changeTeams, w.changeRoles, w.changeNames
	chats, playerActs, playerPlayerActs := w.chats, w.playerActs, w.playerPlayerActs
	teamActs, worldActs := w.teamActs, w.worldActs

	w.frags, w.suicides, w.teamkills = nil, nil, nil
	w.connects, w.disconnects, w.entries = nil, nil, nil
	w.changeTeams, w.changeRoles, w.changeNames = nil, nil, nil
	w.chats, w.playerActs, w.playerPlayerActs = nil, nil, nil
	w.teamActs, w.worldActs = nil, nil
	w.mu.Unlock()

	if err := w.flushFrags(ctx, frags); err != nil {
		return err
	}
	if err := w.flushSuicides(ctx, suicides); err != nil {
		return err
	}
	if err := w.flushTeamkills(ctx, teamkills); err != nil {
		return err
	}
	if err := w.flushConnects(ctx, connects); err != nil {
		return err
	}
	if err := w.flushDisconnects(ctx, disconnects); err != nil {
		return err
	}
	if err := w.flushEntries(ctx, entries); err != nil {
		return err
	}
	if err := w.flushChangeTeams(ctx, changeTeams); err != nil {
		return err
	}
	if err := w.flushChangeRoles(ctx, changeRoles); err != nil {
		return err
	}
	if err := w.flushChangeNames(ctx, changeNames); err != nil {
		return err
	}
	if err := w.flushChats(ctx, chats); err != nil {
		return err
	}
	if err := w.flushPlayerActs(ctx, playerActs); err != nil {
		return err
	}
	if err := w.flushPlayerPlayerActs(ctx, playerPlayerActs); err != nil {
		return err
	}
	if err := w.flushTeamActs(ctx, teamActs); err != nil {
		return err
	}
	return w.flushWorldActs(ctx, worldActs)
}

func (w *Writer) flushFrags(ctx context.Context, rows []models.FragRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO hlstats.frags (
			event_time, server_id, map, killer_id, victim_id, weapon, headshot,
			killer_team, victim_team, killer_pos_x, killer_pos_y, killer_pos_z,
			victim_pos_x, victim_pos_y, victim_pos_z
		)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare frags batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(
			r.EventTime, r.ServerID, r.Map, r.KillerID, r.VictimID, r.Weapon, r.Headshot,
			r.KillerTeam, r.VictimTeam, r.KillerPos.X, r.KillerPos.Y, r.KillerPos.Z,
			r.VictimPos.X, r.VictimPos.Y, r.VictimPos.Z,
		); err != nil {
			return fmt.Errorf("clickhouse: append frag row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushSuicides(ctx context.Context, rows []models.SuicideRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO hlstats.suicides (event_time, server_id, map, player_id, weapon, pos_x, pos_y, pos_z)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare suicides batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventTime, r.ServerID, r.Map, r.PlayerID, r.Weapon, r.Pos.X, r.Pos.Y, r.Pos.Z); err != nil {
			return fmt.Errorf("clickhouse: append suicide row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushTeamkills(ctx context.Context, rows []models.TeamkillRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO hlstats.teamkills (
			event_time, server_id, map, killer_id, victim_id, weapon, team,
			killer_pos_x, killer_pos_y, killer_pos_z, victim_pos_x, victim_pos_y, victim_pos_z
		)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare teamkills batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(
			r.EventTime, r.ServerID, r.Map, r.KillerID, r.VictimID, r.Weapon, r.Team,
			r.KillerPos.X, r.KillerPos.Y, r.KillerPos.Z, r.VictimPos.X, r.VictimPos.Y, r.VictimPos.Z,
		); err != nil {
			return fmt.Errorf("clickhouse: append teamkill row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushConnects(ctx context.Context, rows []models.ConnectRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `INSERT INTO hlstats.connects (event_time, server_id, map, player_id, address)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare connects batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventTime, r.ServerID, r.Map, r.PlayerID, r.Address); err != nil {
			return fmt.Errorf("clickhouse: append connect row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushDisconnects(ctx context.Context, rows []models.DisconnectRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `INSERT INTO hlstats.disconnects (event_time, server_id, map, player_id, reason)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare disconnects batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventTime, r.ServerID, r.Map, r.PlayerID, r.Reason); err != nil {
			return fmt.Errorf("clickhouse: append disconnect row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushEntries(ctx context.Context, rows []models.EntryRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `INSERT INTO hlstats.entries (event_time, server_id, map, player_id)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare entries batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventTime, r.ServerID, r.Map, r.PlayerID); err != nil {
			return fmt.Errorf("clickhouse: append entry row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushChangeTeams(ctx context.Context, rows []models.ChangeTeamRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `INSERT INTO hlstats.change_teams (event_time, server_id, map, player_id, old_team, new_team)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare change_teams batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventTime, r.ServerID, r.Map, r.PlayerID, r.OldTeam, r.NewTeam); err != nil {
			return fmt.Errorf("clickhouse: append change_team row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushChangeRoles(ctx context.Context, rows []models.ChangeRoleRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `INSERT INTO hlstats.change_roles (event_time, server_id, map, player_id, old_role, new_role)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare change_roles batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventTime, r.ServerID, r.Map, r.PlayerID, r.OldRole, r.NewRole); err != nil {
			return fmt.Errorf("clickhouse: append change_role row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushChangeNames(ctx context.Context, rows []models.ChangeNameRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `INSERT INTO hlstats.change_names (event_time, server_id, map, player_id, old_name, new_name)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare change_names batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventTime, r.ServerID, r.Map, r.PlayerID, r.OldName, r.NewName); err != nil {
			return fmt.Errorf("clickhouse: append change_name row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushChats(ctx context.Context, rows []models.ChatRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `INSERT INTO hlstats.chats (event_time, server_id, map, player_id, message, dead)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare chats batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventTime, r.ServerID, r.Map, r.PlayerID, r.Message, r.Dead); err != nil {
			return fmt.Errorf("clickhouse: append chat row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushPlayerActs(ctx context.Context, rows []models.PlayerActionRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO hlstats.player_actions (event_time, server_id, map, player_id, code, team, bonus, pos_x, pos_y, pos_z)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare player_actions batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventTime, r.ServerID, r.Map, r.PlayerID, r.Code, r.Team, r.Bonus, r.Pos.X, r.Pos.Y, r.Pos.Z); err != nil {
			return fmt.Errorf("clickhouse: append player_action row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushPlayerPlayerActs(ctx context.Context, rows []models.PlayerPlayerActionRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO hlstats.player_player_actions (event_time, server_id, map, actor_id, target_id, code, bonus)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare player_player_actions batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventTime, r.ServerID, r.Map, r.ActorID, r.TargetID, r.Code, r.Bonus); err != nil {
			return fmt.Errorf("clickhouse: append player_player_action row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushTeamActs(ctx context.Context, rows []models.TeamActionRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `INSERT INTO hlstats.team_actions (event_time, server_id, map, team, code, bonus)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare team_actions batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventTime, r.ServerID, r.Map, r.Team, r.Code, r.Bonus); err != nil {
			return fmt.Errorf("clickhouse: append team_action row: %w", err)
		}
	}
	return batch.Send()
}

func (w *Writer) flushWorldActs(ctx context.Context, rows []models.WorldActionRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, `INSERT INTO hlstats.world_actions (event_time, server_id, map, code, bonus)`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare world_actions batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventTime, r.ServerID, r.Map, r.Code, r.Bonus); err != nil {
			return fmt.Errorf("clickhouse: append world_action row: %w", err)
		}
	}
	return batch.Send()
}

// TopWeapons aggregates frag rows into the most-used weapons, ordered by
// kill count.
func (w *Writer) TopWeapons(ctx context.Context, limit int) ([]models.WeaponUsage, error) {
	rows, err := w.conn.Query(ctx, `
		SELECT weapon, count() AS kills, countIf(headshot) AS headshots
		FROM hlstats.frags
		GROUP BY weapon
		ORDER BY kills DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: top weapons: %w", err)
	}
	defer rows.Close()

	var out []models.WeaponUsage
	for rows.Next() {
		var u models.WeaponUsage
		var kills, headshots uint64
		if err := rows.Scan(&u.Weapon, &kills, &headshots); err != nil {
			return nil, fmt.Errorf("clickhouse: scan top weapons: %w", err)
		}
		u.Kills, u.Headshots = int64(kills), int64(headshots)
		out = append(out, u)
	}
	return out, rows.Err()
}

// PlayerWeaponKills groups a single player's frags by weapon.
func (w *Writer) PlayerWeaponKills(ctx context.Context, playerID int64) ([]models.WeaponUsage, error) {
	rows, err := w.conn.Query(ctx, `
		SELECT weapon, count() AS kills, countIf(headshot) AS headshots
		FROM hlstats.frags
		WHERE killer_id = ?
		GROUP BY weapon
		ORDER BY kills DESC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: weapon kills for player %d: %w", playerID, err)
	}
	defer rows.Close()

	var out []models.WeaponUsage
	for rows.Next() {
		var u models.WeaponUsage
		var kills, headshots uint64
		if err := rows.Scan(&u.Weapon, &kills, &headshots); err != nil {
			return nil, fmt.Errorf("clickhouse: scan weapon kills: %w", err)
		}
		u.Kills, u.Headshots = int64(kills), int64(headshots)
		out = append(out, u)
	}
	return out, rows.Err()
}

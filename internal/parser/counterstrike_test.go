package parser

import (
	"testing"
	"time"

	"github.com/hlstats/daemon/internal/models"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
}

func TestCounterStrikeParser_Kill(t *testing.T) {
	p := NewCounterStrikeParser()
	line := `L 01/01/2026 - 12:00:00: "Alice<2><STEAM_1:0:111><CT>" [1 2 3] killed "Bob<3><STEAM_1:0:222><TERRORIST>" [4 5 6] with "ak47" (headshot)`

	ev, err := p.Parse(line, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != models.EventPlayerKill {
		t.Errorf("kind = %q, want PLAYER_KILL", ev.Kind)
	}
	if ev.Dual == nil {
		t.Fatal("expected Dual to be populated")
	}
	if ev.Dual.Actor.Name != "Alice" || ev.Dual.Target.Name != "Bob" {
		t.Errorf("unexpected actor/target names: %+v", ev.Dual)
	}
	if ev.Weapon != "ak47" || !ev.Headshot {
		t.Errorf("expected headshot ak47 kill, got weapon=%q headshot=%v", ev.Weapon, ev.Headshot)
	}
	if !ev.ActorPos.Valid || ev.ActorPos.X != 1 {
		t.Errorf("expected actor position parsed, got %+v", ev.ActorPos)
	}
}

func TestCounterStrikeParser_Teamkill(t *testing.T) {
	p := NewCounterStrikeParser()
	line := `L 01/01/2026 - 12:00:00: "Alice<2><STEAM_1:0:111><CT>" killed "Carol<4><STEAM_1:0:333><CT>" with "ak47"`

	ev, err := p.Parse(line, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != models.EventPlayerTeamkill {
		t.Errorf("same-team kill should dispatch as PLAYER_TEAMKILL, got %q", ev.Kind)
	}
}

func TestCounterStrikeParser_Suicide(t *testing.T) {
	p := NewCounterStrikeParser()
	line := `L 01/01/2026 - 12:00:00: "Alice<2><STEAM_1:0:111><CT>" committed suicide with "world"`

	ev, err := p.Parse(line, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != models.EventPlayerSuicide {
		t.Errorf("kind = %q, want PLAYER_SUICIDE", ev.Kind)
	}
	if ev.Player == nil || ev.Player.Name != "Alice" {
		t.Errorf("expected player Alice, got %+v", ev.Player)
	}
}

func TestCounterStrikeParser_RoundStartAndEnd(t *testing.T) {
	p := NewCounterStrikeParser()

	start, err := p.Parse(`L 01/01/2026 - 12:00:00: World triggered "Round_Start"`, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Kind != models.EventRoundStart {
		t.Errorf("kind = %q, want ROUND_START", start.Kind)
	}

	end, err := p.Parse(`L 01/01/2026 - 12:05:00: World triggered "Round_Draw"`, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if end.Kind != models.EventRoundEnd {
		t.Errorf("kind = %q, want ROUND_END", end.Kind)
	}
	if !end.HasWinningTeam || end.WinningTeam != "DRAW" {
		t.Errorf("expected DRAW winning team, got %+v", end)
	}
}

func TestCounterStrikeParser_WorldActionFallback(t *testing.T) {
	p := NewCounterStrikeParser()
	ev, err := p.Parse(`L 01/01/2026 - 12:00:00: World triggered "Got_The_Bomb"`, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != models.EventActionWorld {
		t.Errorf("kind = %q, want ACTION_WORLD", ev.Kind)
	}
	if ev.Code != "Got_The_Bomb" {
		t.Errorf("code = %q", ev.Code)
	}
}

func TestCounterStrikeParser_MapChangeTracksPrevious(t *testing.T) {
	p := NewCounterStrikeParser()

	first, err := p.Parse(`L 01/01/2026 - 12:00:00: Started map "de_dust2"`, 7, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.PreviousMap != "" || first.NewMap != "de_dust2" {
		t.Errorf("unexpected first map change: %+v", first)
	}

	second, err := p.Parse(`L 01/01/2026 - 12:30:00: Started map "de_inferno"`, 7, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.PreviousMap != "de_dust2" || second.NewMap != "de_inferno" {
		t.Errorf("expected previous map de_dust2, got %+v", second)
	}

	// a different server's map state must stay independent
	other, err := p.Parse(`L 01/01/2026 - 12:00:00: Started map "cs_office"`, 8, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.PreviousMap != "" {
		t.Errorf("expected independent per-server map state, got previous %q", other.PreviousMap)
	}
}

func TestCounterStrikeParser_ConnectDisconnect(t *testing.T) {
	p := NewCounterStrikeParser()

	conn, err := p.Parse(`L 01/01/2026 - 12:00:00: "Alice<2><STEAM_1:0:111><>" connected, address "1.2.3.4:27005"`, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.Kind != models.EventPlayerConnect || conn.Address != "1.2.3.4:27005" {
		t.Errorf("unexpected connect event: %+v", conn)
	}

	disc, err := p.Parse(`L 01/01/2026 - 12:10:00: "Alice<2><STEAM_1:0:111><CT>" disconnected (reason "Disconnect")`, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if disc.Kind != models.EventPlayerDisconnect || disc.Reason != "Disconnect" {
		t.Errorf("unexpected disconnect event: %+v", disc)
	}
}

func TestCounterStrikeParser_Chat(t *testing.T) {
	p := NewCounterStrikeParser()
	ev, err := p.Parse(`L 01/01/2026 - 12:00:00: "Alice<2><STEAM_1:0:111><CT>" say "gg"`, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != models.EventChat || ev.Message != "gg" || ev.IsDead {
		t.Errorf("unexpected chat event: %+v", ev)
	}
}

func TestCounterStrikeParser_PlayerAction(t *testing.T) {
	p := NewCounterStrikeParser()
	ev, err := p.Parse(`L 01/01/2026 - 12:00:00: "Alice<2><STEAM_1:0:111><CT>" triggered "Planted_The_Bomb"`, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != models.EventActionPlayer || ev.Code != "Planted_The_Bomb" {
		t.Errorf("unexpected action event: %+v", ev)
	}
}

func TestCounterStrikeParser_IgnoredLines(t *testing.T) {
	p := NewCounterStrikeParser()
	cases := []string{
		`L 01/01/2026 - 12:00:00: [META] plugin loaded`,
		`L 01/01/2026 - 12:00:00: Server shutdown`,
		`L 01/01/2026 - 12:00:00: Log file closed`,
		`L 01/01/2026 - 12:00:00: Loading map "de_dust2"`,
	}
	for _, line := range cases {
		_, err := p.Parse(line, 1, fixedNow())
		pe, ok := err.(*models.ParseError)
		if !ok || pe.Outcome != models.OutcomeIgnored {
			t.Errorf("expected ignored outcome for %q, got %v", line, err)
		}
	}
}

func TestCounterStrikeParser_UnsupportedLine(t *testing.T) {
	p := NewCounterStrikeParser()
	_, err := p.Parse(`L 01/01/2026 - 12:00:00: some completely novel event text`, 1, fixedNow())
	pe, ok := err.(*models.ParseError)
	if !ok || pe.Outcome != models.OutcomeUnsupported {
		t.Errorf("expected unsupported outcome, got %v", err)
	}
}

func TestCounterStrikeParser_NotALogLine(t *testing.T) {
	p := NewCounterStrikeParser()
	if p.CanParse("not a log line") {
		t.Error("CanParse should reject lines without the L prefix")
	}
}

func TestForGame(t *testing.T) {
	for _, game := range []string{"cstrike", "csgo", "cs2"} {
		if _, err := ForGame(game); err != nil {
			t.Errorf("ForGame(%q) unexpected error: %v", game, err)
		}
	}
	if _, err := ForGame("quake3"); err == nil {
		t.Error("expected error for unsupported game")
	}
}

func TestCounterStrikeParser_Entry(t *testing.T) {
	p := NewCounterStrikeParser()
	ev, err := p.Parse(`L 01/01/2026 - 12:00:00: "Alice<2><STEAM_1:0:111><>" entered the game`, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != models.EventPlayerEntry {
		t.Errorf("kind = %q, want PLAYER_ENTRY", ev.Kind)
	}
}

func TestCounterStrikeParser_RoleChange(t *testing.T) {
	p := NewCounterStrikeParser()
	ev, err := p.Parse(`L 01/01/2026 - 12:00:00: "Alice<2><STEAM_1:0:111><CT>" changed role to "Sniper"`, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != models.EventPlayerChangeRole || ev.NewValue != "Sniper" {
		t.Errorf("unexpected role change event: %+v", ev)
	}
}

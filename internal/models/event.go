// Package models holds the data model shared across the ingest pipeline:
// the typed event taxonomy, persisted entities, and in-memory match state.
package models

import "time"

// EventKind discriminates the tagged event union produced by the parser.
type EventKind string

const (
	EventPlayerConnect    EventKind = "PLAYER_CONNECT"
	EventPlayerDisconnect EventKind = "PLAYER_DISCONNECT"
	EventPlayerEntry      EventKind = "PLAYER_ENTRY"
	EventPlayerChangeTeam EventKind = "PLAYER_CHANGE_TEAM"
	EventPlayerChangeRole EventKind = "PLAYER_CHANGE_ROLE"
	EventPlayerChangeName EventKind = "PLAYER_CHANGE_NAME"
	EventPlayerKill       EventKind = "PLAYER_KILL"
	EventPlayerSuicide    EventKind = "PLAYER_SUICIDE"
	EventPlayerTeamkill   EventKind = "PLAYER_TEAMKILL"
	EventChat             EventKind = "CHAT"

	EventActionPlayer       EventKind = "ACTION_PLAYER"
	EventActionPlayerPlayer EventKind = "ACTION_PLAYER_PLAYER"
	EventActionTeam         EventKind = "ACTION_TEAM"
	EventActionWorld        EventKind = "ACTION_WORLD"

	EventRoundStart EventKind = "ROUND_START"
	EventRoundEnd   EventKind = "ROUND_END"
	EventTeamWin    EventKind = "TEAM_WIN"
	EventMapChange  EventKind = "MAP_CHANGE"

	EventBombPlant    EventKind = "BOMB_PLANT"
	EventBombDefuse   EventKind = "BOMB_DEFUSE"
	EventBombExplode  EventKind = "BOMB_EXPLODE"
	EventHostageRescu EventKind = "HOSTAGE_RESCUE"
	EventHostageTouch EventKind = "HOSTAGE_TOUCH"
	EventFlagCapture  EventKind = "FLAG_CAPTURE"
	EventFlagDefend   EventKind = "FLAG_DEFEND"
	EventFlagPickup   EventKind = "FLAG_PICKUP"
	EventFlagDrop     EventKind = "FLAG_DROP"
	EventCPCapture    EventKind = "CONTROL_POINT_CAPTURE"
	EventCPDefend     EventKind = "CONTROL_POINT_DEFEND"

	EventWeaponFire EventKind = "WEAPON_FIRE"
	EventWeaponHit  EventKind = "WEAPON_HIT"

	// EventServerStatsUpdate is synthesized by the Server-Stats Handler; it
	// never round-trips through the parser and is never persisted as a row.
	EventServerStatsUpdate EventKind = "SERVER_STATS_UPDATE"
)

// objectiveKinds is the set of kinds the Match Handler scores via its
// objective points table.
var objectiveKinds = map[EventKind]bool{
	EventBombPlant: true, EventBombDefuse: true, EventBombExplode: true,
	EventHostageRescu: true, EventHostageTouch: true,
	EventFlagCapture: true, EventFlagDefend: true, EventFlagPickup: true, EventFlagDrop: true,
	EventCPCapture: true, EventCPDefend: true,
}

// IsObjective reports whether kind is one of the objective-scoring events.
func IsObjective(kind EventKind) bool { return objectiveKinds[kind] }

// PlayerMeta identifies a single player parsed out of a log line.
type PlayerMeta struct {
	Name    string
	SteamID string // raw token as seen in the log line, e.g. STEAM_1:0:111
	Team    string
}

// DualPlayerMeta identifies the two participants of a player-vs-player event.
type DualPlayerMeta struct {
	Actor  PlayerMeta
	Target PlayerMeta
}

// Position is an optional (x, y, z) triple carried by some event kinds.
type Position struct {
	X, Y, Z float64
	Valid   bool
}

// Event is the tagged variant produced by a game parser's Parse operation.
// The discriminant is Kind; handlers switch on it. Meta carries identity
// information consumed by the Identity Resolver; not all kinds populate it.
type Event struct {
	Kind     EventKind
	Time     time.Time // wall-clock time at parse, not the log line's embedded timestamp
	ServerID int64
	Map      string

	Player *PlayerMeta
	Dual   *DualPlayerMeta

	ActorPos  Position
	TargetPos Position

	Weapon   string
	Headshot bool

	Code string // action/world trigger code, e.g. "Round_Start", "Got_The_Bomb"
	Team string // team for ACTION_TEAM / TEAM_WIN

	Bonus int

	// Round lifecycle
	Duration       float64 // seconds, populated on ROUND_END when present
	HasDuration    bool
	WinningTeam    string
	HasWinningTeam bool

	// MAP_CHANGE
	PreviousMap string
	NewMap      string

	// CHAT
	Message  string
	IsDead   bool

	// PLAYER_CHANGE_*
	OldValue string
	NewValue string

	// PLAYER_CONNECT
	Address string

	// PLAYER_DISCONNECT
	Reason string
}

// ParseOutcome is the negative-result reason returned by Parser.Parse when
// no event is produced.
type ParseOutcome string

const (
	OutcomeIgnored     ParseOutcome = "IGNORED"
	OutcomeUnsupported ParseOutcome = "Unsupported log line"
)

// ParseError wraps a non-fatal parse rejection; the listener logs it at
// debug and drops the packet.
type ParseError struct {
	Outcome ParseOutcome
	Line    string
}

func (e *ParseError) Error() string { return string(e.Outcome) }

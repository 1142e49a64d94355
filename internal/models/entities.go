package models

import (
	"time"

	"github.com/google/uuid"
)

// Server is a registered game server and its per-map/lifetime counters.
// Counters are monotonic within a map lifetime.
type Server struct {
	ServerID int64
	Address  string
	Port     int
	Game     string

	Kills        int64
	Rounds       int64
	Suicides     int64
	Headshots    int64
	BombsPlanted int64
	BombsDefused int64
	CTWins       int64
	TSWins       int64
	CTShots      int64
	CTHits       int64
	TSShots      int64
	TSHits       int64

	MapKills        int64
	MapRounds       int64
	MapSuicides     int64
	MapHeadshots    int64
	MapBombsPlanted int64
	MapBombsDefused int64
	MapCTWins       int64
	MapTSWins       int64
	MapCTShots      int64
	MapCTHits       int64
	MapTSShots      int64
	MapTSHits       int64

	ActMap      string
	ActPlayers  int
	MaxPlayers  int
	MapStarted  int64 // unix seconds at last map change
	MapChanges  int64

	// SeenWeaponEvents is true once this server has emitted a real
	// WEAPON_FIRE/WEAPON_HIT event; it gates the per-kill shots estimator
	// so estimated and real shot counts never combine.
	SeenWeaponEvents bool
}

// Player is a tracked account (human or bot) with a skill rating.
type Player struct {
	PlayerID        int64
	Game            string
	LastName        string
	Skill           int // invariant: 100 <= Skill <= 3000
	GamesPlayed     int64
	Kills           int64
	Deaths          int64
	Suicides        int64
	Teamkills       int64
	Headshots       int64
	Shots           int64
	Hits            int64
	KillStreak      int
	DeathStreak     int
	ConnectionTime  int64
	HideRanking     bool
	LastEvent       int64
	LastSkillChange int64
}

// PlayerUniqueId maps a canonicalized identifier to a Player row.
type PlayerUniqueId struct {
	UniqueID string
	Game     string
	PlayerID int64
}

// Action is a per-game catalog entry for triggered player/team/world codes.
type Action struct {
	Game                  string
	Code                  string
	Team                  string
	ForPlayerAction       bool
	ForPlayerPlayerAction bool
	ForTeamAction         bool
	ForWorldAction        bool
	RewardPlayer          int
	RewardTeam            int
	Description           string
	Count                 int64
}

// Weapon is a per-game weapon catalog row with aggregate kill counters.
type Weapon struct {
	Game      string
	Code      string
	Name      string
	Modifier  float64
	Kills     int64
	Headshots int64
}

// PlayerRoundStats accumulates a single player's contribution to the
// currently in-progress round, used to compute the round MVP on finalize.
type PlayerRoundStats struct {
	PlayerID       int64
	Kills          int
	Deaths         int
	Assists        int
	Damage         int
	ObjectiveScore int
	ClutchWins     int
	Headshots      int
	Shots          int
	Hits           int
	Suicides       int
	Teamkills      int
	FirstSeen      int // insertion order, for MVP tie-break
}

// MatchState is the in-memory per-server round/match state machine.
type MatchState struct {
	MatchID     string // correlates the history rows written on finalization
	StartTime   time.Time
	Duration    float64
	TotalRounds int
	TeamScores  map[string]int
	MVPPlayer   int64
	PlayerStats map[int64]*PlayerRoundStats
	nextSeen    int
}

// NewMatchState creates an empty match state, born at ROUND_START (or
// lazily by the first event seen on a server with no state yet).
func NewMatchState(start time.Time) *MatchState {
	return &MatchState{
		MatchID:     uuid.NewString(),
		StartTime:   start,
		TeamScores:  make(map[string]int),
		PlayerStats: make(map[int64]*PlayerRoundStats),
	}
}

// StatsFor returns (creating if absent) the round stats for playerID,
// recording insertion order for MVP tie-breaking.
func (m *MatchState) StatsFor(playerID int64) *PlayerRoundStats {
	if s, ok := m.PlayerStats[playerID]; ok {
		return s
	}
	s := &PlayerRoundStats{PlayerID: playerID, FirstSeen: m.nextSeen}
	m.nextSeen++
	m.PlayerStats[playerID] = s
	return s
}

// MapCount is the per-game, per-map aggregate upserted on map finalization.
type MapCount struct {
	Game      string
	Map       string
	Kills     int64
	Headshots int64
}

// PlayerHistory is a per-player, per-map snapshot row written on map
// finalization.
type PlayerHistory struct {
	MatchID        string
	PlayerID       int64
	ServerID       int64
	Map            string
	Kills          int
	Deaths         int
	Assists        int
	Headshots      int
	Shots          int
	Hits           int
	Suicides       int
	Teamkills      int
	ObjectiveScore int
	ClutchWins     int
	MVP            bool
	RecordedAt     time.Time
}

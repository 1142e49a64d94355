package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/storage"
	"go.uber.org/zap"
)

// sniperWeapons, rifleWeapons, pistolWeapons, and meleeWeapons classify
// Counter-Strike weapon codes for the shots-per-kill estimator. Codes
// outside these sets fall into the "unknown" class.
var (
	sniperWeapons = map[string]bool{"awp": true, "scout": true, "g3sg1": true, "sg550": true, "ssg08": true}
	rifleWeapons  = map[string]bool{
		"ak47": true, "m4a1": true, "m4a1_silencer": true, "galil": true, "famas": true,
		"aug": true, "sg552": true, "sg556": true,
	}
	pistolWeapons = map[string]bool{
		"glock": true, "usp": true, "hkp2000": true, "deagle": true, "p228": true,
		"fiveseven": true, "elite": true, "tec9": true, "cz75a": true,
	}
	meleeWeapons = map[string]bool{"knife": true, "hegrenade": true, "flashbang": true, "smokegrenade": true}
)

func shotsPerKillEstimate(weapon string) int {
	w := strings.ToLower(weapon)
	switch {
	case sniperWeapons[w]:
		return 1
	case rifleWeapons[w]:
		return 3
	case pistolWeapons[w]:
		return 5
	case meleeWeapons[w]:
		return 1
	default:
		return 3
	}
}

const hitsPerKillEstimate = 1

// statsDelta is the set of non-zero fields carried by a synthetic
// SERVER_STATS_UPDATE publication. Zero-value fields are omitted from the
// JSON payload so subscribers see only what changed.
type statsDelta struct {
	ServerID     int64  `json:"serverId"`
	Kills        int64  `json:"kills,omitempty"`
	Headshots    int64  `json:"headshots,omitempty"`
	Suicides     int64  `json:"suicides,omitempty"`
	BombsPlanted int64  `json:"bombsPlanted,omitempty"`
	BombsDefused int64  `json:"bombsDefused,omitempty"`
	CTWins       int64  `json:"ctWins,omitempty"`
	TSWins       int64  `json:"tsWins,omitempty"`
	Rounds       int64  `json:"rounds,omitempty"`
	MapChanges   int64  `json:"mapChanges,omitempty"`
	ActMap       string `json:"actMap,omitempty"`
	ActPlayers   int    `json:"actPlayers,omitempty"`
	MaxPlayers   int    `json:"maxPlayers,omitempty"`
	CTShots      int64  `json:"ctShots,omitempty"`
	CTHits       int64  `json:"ctHits,omitempty"`
	TSShots      int64  `json:"tsShots,omitempty"`
	TSHits       int64  `json:"tsHits,omitempty"`
}

// ServerStatsHandler maintains the live per-server aggregate counters and
// publishes a SERVER_STATS_UPDATE snapshot of whatever changed on every
// event.
type ServerStatsHandler struct {
	servers   storage.ServerRegistry
	publisher storage.Publisher
	logger    *zap.SugaredLogger
}

// NewServerStatsHandler constructs a Server-Stats Handler.
func NewServerStatsHandler(servers storage.ServerRegistry, publisher storage.Publisher, logger *zap.SugaredLogger) *ServerStatsHandler {
	return &ServerStatsHandler{servers: servers, publisher: publisher, logger: logger}
}

// Handle applies the delta for re.Event to the persisted Server row and
// publishes the resulting non-zero delta.
func (h *ServerStatsHandler) Handle(ctx context.Context, re *ResolvedEvent) error {
	ev := re.Event
	srv, err := h.servers.GetServer(ctx, ev.ServerID)
	if err != nil {
		return fmt.Errorf("engine: server-stats handler: load server %d: %w", ev.ServerID, err)
	}

	delta := statsDelta{ServerID: ev.ServerID}
	switch ev.Kind {
	case models.EventPlayerKill:
		srv.Kills++
		srv.MapKills++
		delta.Kills = 1
		if ev.Headshot {
			srv.Headshots++
			srv.MapHeadshots++
			delta.Headshots = 1
		}
		h.applyShotEstimate(srv, &delta, ev)

	case models.EventPlayerSuicide:
		srv.Suicides++
		srv.MapSuicides++
		delta.Suicides = 1

	case models.EventBombPlant:
		srv.BombsPlanted++
		srv.MapBombsPlanted++
		delta.BombsPlanted = 1

	case models.EventBombDefuse:
		srv.BombsDefused++
		srv.MapBombsDefused++
		delta.BombsDefused = 1

	case models.EventTeamWin:
		switch {
		case teamIsCT(ev.Team):
			srv.CTWins++
			srv.MapCTWins++
			delta.CTWins = 1
		case teamIsT(ev.Team):
			srv.TSWins++
			srv.MapTSWins++
			delta.TSWins = 1
		}

	case models.EventRoundEnd:
		srv.Rounds++
		srv.MapRounds++
		delta.Rounds = 1

	case models.EventMapChange:
		srv.MapChanges++
		srv.MapStarted = ev.Time.Unix()
		srv.ActMap = ev.NewMap
		delta.MapChanges = 1
		delta.ActMap = ev.NewMap

	case models.EventPlayerConnect:
		srv.ActPlayers++
		if srv.ActPlayers > srv.MaxPlayers {
			srv.MaxPlayers = srv.ActPlayers
		}
		delta.ActPlayers = srv.ActPlayers
		delta.MaxPlayers = srv.MaxPlayers

	case models.EventPlayerDisconnect:
		if srv.ActPlayers > 0 {
			srv.ActPlayers--
		}
		delta.ActPlayers = srv.ActPlayers

	case models.EventWeaponFire:
		srv.SeenWeaponEvents = true
		if teamIsCT(ev.Team) {
			srv.CTShots++
			srv.MapCTShots++
			delta.CTShots = 1
		} else if teamIsT(ev.Team) {
			srv.TSShots++
			srv.MapTSShots++
			delta.TSShots = 1
		}

	case models.EventWeaponHit:
		srv.SeenWeaponEvents = true
		if teamIsCT(ev.Team) {
			srv.CTHits++
			srv.MapCTHits++
			delta.CTHits = 1
		} else if teamIsT(ev.Team) {
			srv.TSHits++
			srv.MapTSHits++
			delta.TSHits = 1
		}

	default:
		return nil
	}

	if err := h.servers.UpdateServer(ctx, srv); err != nil {
		return fmt.Errorf("engine: server-stats handler: update server %d: %w", ev.ServerID, err)
	}
	return h.publish(ctx, delta)
}

// applyShotEstimate approximates the shots/hits that produced a kill when
// no real WEAPON_FIRE/WEAPON_HIT stream exists for this server. Real and
// estimated shots are never combined.
func (h *ServerStatsHandler) applyShotEstimate(srv *models.Server, delta *statsDelta, ev *models.Event) {
	if srv.SeenWeaponEvents {
		return
	}
	shots := int64(shotsPerKillEstimate(ev.Weapon))
	hits := int64(hitsPerKillEstimate)

	if teamIsCT(ev.Dual.Actor.Team) {
		srv.CTShots += shots
		srv.CTHits += hits
		srv.MapCTShots += shots
		srv.MapCTHits += hits
		delta.CTShots = shots
		delta.CTHits = hits
	} else if teamIsT(ev.Dual.Actor.Team) {
		srv.TSShots += shots
		srv.TSHits += hits
		srv.MapTSShots += shots
		srv.MapTSHits += hits
		delta.TSShots = shots
		delta.TSHits = hits
	}
}

func (h *ServerStatsHandler) publish(ctx context.Context, delta statsDelta) error {
	payload, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("engine: server-stats handler: marshal delta: %w", err)
	}
	if err := h.publisher.Publish(ctx, "hlstats.server_stats_update", payload); err != nil {
		h.logger.Warnw("server stats publish failed", "serverId", delta.ServerID, "err", err)
	}
	return nil
}

func teamIsCT(team string) bool {
	t := strings.ToUpper(strings.TrimSpace(team))
	return t == "CT" || t == "COUNTER-TERRORIST"
}

func teamIsT(team string) bool {
	t := strings.ToUpper(strings.TrimSpace(team))
	return t == "T" || t == "TERRORIST"
}

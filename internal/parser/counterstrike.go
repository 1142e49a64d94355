package parser

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/wire"
)

// playerToken matches the `"<name><uid><steamId><team>"` grammar (the whole
// token quoted), with an optional trailing `[x y z]` position.
const playerToken = `"([^"<]*)<(\d+)><([^>]*)><([^>]*)>"(?:\s*\[(-?[\d.]+)\s+(-?[\d.]+)\s+(-?[\d.]+)\])?`

var (
	reTimestampPrefix = regexp.MustCompile(`^L \d{2}/\d{2}/\d{4} - \d{2}:\d{2}:\d{2}: `)

	ignorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\[META\]`),
		regexp.MustCompile(`^Server shutdown$`),
		regexp.MustCompile(`^Log file (closed|started)`),
		regexp.MustCompile(`^Loading map `),
		regexp.MustCompile(`^Server cvar`),
		regexp.MustCompile(`^Server cvars `),
	}

	reKilled  = regexp.MustCompile(`^` + playerToken + ` killed ` + playerToken + ` with "([^"]+)"(.*)$`)
	reSuicide = regexp.MustCompile(`^` + playerToken + ` committed suicide with "([^"]+)"$`)
	reTeamAction = regexp.MustCompile(`^Team "([^"]+)" triggered "([^"]+)"`)
	reMapChange  = regexp.MustCompile(`^Started map "([^"]+)"`)
	reWorldAction = regexp.MustCompile(`^World triggered "([^"]+)"`)
	reNameChange  = regexp.MustCompile(`^` + playerToken + ` changed name to "([^"]+)"$`)
	reRoleChange  = regexp.MustCompile(`^` + playerToken + ` changed role to "([^"]+)"$`)
	reEntry       = regexp.MustCompile(`^` + playerToken + ` entered the game$`)
	reTeamChange  = regexp.MustCompile(`^` + playerToken + ` (?:joined team|switched from team <[^>]*> to) "?([^">]+)"?$`)
	rePlayerAction = regexp.MustCompile(`^` + playerToken + ` triggered "([^"]+)"`)
	reConnect      = regexp.MustCompile(`^` + playerToken + ` connected, address "([^"]*)"$`)
	reDisconnect   = regexp.MustCompile(`^` + playerToken + ` disconnected(?:\s*\(reason "([^"]*)"\))?$`)
	reChat         = regexp.MustCompile(`^` + playerToken + ` say(?:_team)? "([^"]*)"(\s*\(dead\))?$`)
)

// worldActionRound maps World-triggered codes to round lifecycle kinds.
var worldActionRound = map[string]models.EventKind{
	"Round_Start":      models.EventRoundStart,
	"Game_Commencing":  models.EventRoundStart,
	"Round_End":        models.EventRoundEnd,
	"Round_Draw":       models.EventRoundEnd,
}

// CounterStrikeParser implements Parser for cstrike/csgo/cs2 log lines.
type CounterStrikeParser struct {
	mu          sync.Mutex
	currentMaps map[int64]string
}

// NewCounterStrikeParser returns a Parser with empty per-server map state.
func NewCounterStrikeParser() *CounterStrikeParser {
	return &CounterStrikeParser{currentMaps: make(map[int64]string)}
}

func (p *CounterStrikeParser) CanParse(line string) bool {
	return strings.HasPrefix(line, "L ")
}

func (p *CounterStrikeParser) Parse(line string, serverID int64, now time.Time) (*models.Event, error) {
	if !p.CanParse(line) {
		return nil, &models.ParseError{Outcome: models.OutcomeUnsupported, Line: line}
	}

	body := reTimestampPrefix.ReplaceAllString(line, "")

	for _, ignore := range ignorePatterns {
		if ignore.MatchString(body) {
			return nil, &models.ParseError{Outcome: models.OutcomeIgnored, Line: line}
		}
	}

	currentMap := p.mapFor(serverID)

	if ev := p.tryKill(body, serverID, now, currentMap); ev != nil {
		return ev, nil
	}
	if ev := p.trySuicide(body, serverID, now, currentMap); ev != nil {
		return ev, nil
	}
	if ev := p.tryTeamAction(body, serverID, now, currentMap); ev != nil {
		return ev, nil
	}
	if ev := p.tryMapChange(body, serverID, now); ev != nil {
		return ev, nil
	}
	if ev := p.tryWorldAction(body, serverID, now, currentMap); ev != nil {
		return ev, nil
	}
	if ev := p.tryNameChange(body, serverID, now, currentMap); ev != nil {
		return ev, nil
	}
	if ev := p.tryTeamChange(body, serverID, now, currentMap); ev != nil {
		return ev, nil
	}
	if ev := p.tryRoleChange(body, serverID, now, currentMap); ev != nil {
		return ev, nil
	}
	if ev := p.tryEntry(body, serverID, now, currentMap); ev != nil {
		return ev, nil
	}
	if ev := p.tryPlayerAction(body, serverID, now, currentMap); ev != nil {
		return ev, nil
	}
	if ev := p.tryConnect(body, serverID, now, currentMap); ev != nil {
		return ev, nil
	}
	if ev := p.tryDisconnect(body, serverID, now, currentMap); ev != nil {
		return ev, nil
	}
	if ev := p.tryChat(body, serverID, now, currentMap); ev != nil {
		return ev, nil
	}

	return nil, &models.ParseError{Outcome: models.OutcomeUnsupported, Line: line}
}

func (p *CounterStrikeParser) mapFor(serverID int64) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentMaps[serverID]
}

func playerMeta(name, team string) models.PlayerMeta {
	return models.PlayerMeta{Name: wire.SanitizeName(name), Team: team}
}

func parsePos(x, y, z string) models.Position {
	if x == "" {
		return models.Position{}
	}
	fx, errX := strconv.ParseFloat(x, 64)
	fy, errY := strconv.ParseFloat(y, 64)
	fz, errZ := strconv.ParseFloat(z, 64)
	if errX != nil || errY != nil || errZ != nil {
		return models.Position{}
	}
	return models.Position{X: fx, Y: fy, Z: fz, Valid: true}
}

// killMatch unpacks the common groups shared by the kill/teamkill regex.
type killMatch struct {
	killer, victim                 models.PlayerMeta
	killerSteam, victimSteam       string
	killerPos, victimPos           models.Position
	weapon                         string
	headshot                       bool
}

func parseKillGroups(m []string) killMatch {
	// group layout: [0]=full,1 name,2 uid,3 steamid,4 team,5-7 pos,
	// 8 name,9 uid,10 steamid,11 team,12-14 pos, 15 weapon, 16 trailer
	killer := playerMeta(m[1], m[4])
	victim := playerMeta(m[8], m[11])
	return killMatch{
		killer:      killer,
		victim:      victim,
		killerSteam: m[3],
		victimSteam: m[10],
		killerPos:   parsePos(m[5], m[6], m[7]),
		victimPos:   parsePos(m[12], m[13], m[14]),
		weapon:      m[15],
		headshot:    strings.Contains(m[16], "headshot"),
	}
}

func (p *CounterStrikeParser) tryKill(body string, serverID int64, now time.Time, currentMap string) *models.Event {
	m := reKilled.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	km := parseKillGroups(m)

	ev := &models.Event{
		Time:     now,
		ServerID: serverID,
		Map:      currentMap,
		Dual: &models.DualPlayerMeta{
			Actor:  models.PlayerMeta{Name: km.killer.Name, SteamID: km.killerSteam, Team: km.killer.Team},
			Target: models.PlayerMeta{Name: km.victim.Name, SteamID: km.victimSteam, Team: km.victim.Team},
		},
		ActorPos:  km.killerPos,
		TargetPos: km.victimPos,
		Weapon:    km.weapon,
		Headshot:  km.headshot,
	}

	if km.killer.Team != "" && km.killer.Team == km.victim.Team {
		ev.Kind = models.EventPlayerTeamkill
	} else {
		ev.Kind = models.EventPlayerKill
	}
	return ev
}

func (p *CounterStrikeParser) trySuicide(body string, serverID int64, now time.Time, currentMap string) *models.Event {
	m := reSuicide.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	player := models.PlayerMeta{Name: wire.SanitizeName(m[1]), SteamID: m[3], Team: m[4]}
	return &models.Event{
		Kind:     models.EventPlayerSuicide,
		Time:     now,
		ServerID: serverID,
		Map:      currentMap,
		Player:   &player,
		ActorPos: parsePos(m[5], m[6], m[7]),
		Weapon:   m[8],
	}
}

func (p *CounterStrikeParser) tryTeamAction(body string, serverID int64, now time.Time, currentMap string) *models.Event {
	m := reTeamAction.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	return &models.Event{
		Kind:     models.EventActionTeam,
		Time:     now,
		ServerID: serverID,
		Map:      currentMap,
		Team:     m[1],
		Code:     m[2],
	}
}

func (p *CounterStrikeParser) tryMapChange(body string, serverID int64, now time.Time) *models.Event {
	m := reMapChange.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	newMap := m[1]

	p.mu.Lock()
	previous := p.currentMaps[serverID]
	p.currentMaps[serverID] = newMap
	p.mu.Unlock()

	return &models.Event{
		Kind:        models.EventMapChange,
		Time:        now,
		ServerID:    serverID,
		Map:         newMap,
		PreviousMap: previous,
		NewMap:      newMap,
	}
}

func (p *CounterStrikeParser) tryWorldAction(body string, serverID int64, now time.Time, currentMap string) *models.Event {
	m := reWorldAction.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	code := m[1]
	ev := &models.Event{
		Time:     now,
		ServerID: serverID,
		Map:      currentMap,
		Code:     code,
	}
	if kind, ok := worldActionRound[code]; ok {
		ev.Kind = kind
		if code == "Round_Draw" {
			ev.HasWinningTeam = true
			ev.WinningTeam = "DRAW"
		}
		return ev
	}
	ev.Kind = models.EventActionWorld
	return ev
}

func (p *CounterStrikeParser) tryNameChange(body string, serverID int64, now time.Time, currentMap string) *models.Event {
	m := reNameChange.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	player := models.PlayerMeta{Name: wire.SanitizeName(m[1]), SteamID: m[3], Team: m[4]}
	return &models.Event{
		Kind:     models.EventPlayerChangeName,
		Time:     now,
		ServerID: serverID,
		Map:      currentMap,
		Player:   &player,
		OldValue: m[1],
		NewValue: m[8],
	}
}

func (p *CounterStrikeParser) tryTeamChange(body string, serverID int64, now time.Time, currentMap string) *models.Event {
	m := reTeamChange.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	player := models.PlayerMeta{Name: wire.SanitizeName(m[1]), SteamID: m[3], Team: m[4]}
	return &models.Event{
		Kind:     models.EventPlayerChangeTeam,
		Time:     now,
		ServerID: serverID,
		Map:      currentMap,
		Player:   &player,
		OldValue: m[4],
		NewValue: m[8],
	}
}

func (p *CounterStrikeParser) tryRoleChange(body string, serverID int64, now time.Time, currentMap string) *models.Event {
	m := reRoleChange.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	player := models.PlayerMeta{Name: wire.SanitizeName(m[1]), SteamID: m[3], Team: m[4]}
	return &models.Event{
		Kind:     models.EventPlayerChangeRole,
		Time:     now,
		ServerID: serverID,
		Map:      currentMap,
		Player:   &player,
		NewValue: m[8],
	}
}

func (p *CounterStrikeParser) tryEntry(body string, serverID int64, now time.Time, currentMap string) *models.Event {
	m := reEntry.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	player := models.PlayerMeta{Name: wire.SanitizeName(m[1]), SteamID: m[3], Team: m[4]}
	return &models.Event{
		Kind:     models.EventPlayerEntry,
		Time:     now,
		ServerID: serverID,
		Map:      currentMap,
		Player:   &player,
	}
}

func (p *CounterStrikeParser) tryPlayerAction(body string, serverID int64, now time.Time, currentMap string) *models.Event {
	m := rePlayerAction.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	player := models.PlayerMeta{Name: wire.SanitizeName(m[1]), SteamID: m[3], Team: m[4]}
	return &models.Event{
		Kind:     models.EventActionPlayer,
		Time:     now,
		ServerID: serverID,
		Map:      currentMap,
		Player:   &player,
		ActorPos: parsePos(m[5], m[6], m[7]),
		Code:     m[8],
	}
}

func (p *CounterStrikeParser) tryConnect(body string, serverID int64, now time.Time, currentMap string) *models.Event {
	m := reConnect.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	player := models.PlayerMeta{Name: wire.SanitizeName(m[1]), SteamID: m[3], Team: m[4]}
	return &models.Event{
		Kind:     models.EventPlayerConnect,
		Time:     now,
		ServerID: serverID,
		Map:      currentMap,
		Player:   &player,
		Address:  m[8],
	}
}

func (p *CounterStrikeParser) tryDisconnect(body string, serverID int64, now time.Time, currentMap string) *models.Event {
	m := reDisconnect.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	player := models.PlayerMeta{Name: wire.SanitizeName(m[1]), SteamID: m[3], Team: m[4]}
	return &models.Event{
		Kind:     models.EventPlayerDisconnect,
		Time:     now,
		ServerID: serverID,
		Map:      currentMap,
		Player:   &player,
		Reason:   m[8],
	}
}

func (p *CounterStrikeParser) tryChat(body string, serverID int64, now time.Time, currentMap string) *models.Event {
	m := reChat.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	player := models.PlayerMeta{Name: wire.SanitizeName(m[1]), SteamID: m[3], Team: m[4]}
	return &models.Event{
		Kind:     models.EventChat,
		Time:     now,
		ServerID: serverID,
		Map:      currentMap,
		Player:   &player,
		Message:  m[8],
		IsDead:   strings.TrimSpace(m[9]) != "",
	}
}

// Package identity resolves the raw SteamID token carried on a parsed event
// into a canonical, storage-ready player identity.
package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hlstats/daemon/internal/wire"
)

// steam64Base is the offset of the first individual Steam account in the
// 64-bit ID space.
const steam64Base int64 = 76561197960265728

// IsBotToken reports whether a raw SteamID token names an engine bot.
func IsBotToken(raw string) bool {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	return upper == "BOT" || strings.HasPrefix(upper, "BOT_") || strings.HasPrefix(upper, "BOT:")
}

var (
	reSteam2 = regexp.MustCompile(`^STEAM_([0-5]):([01]):(\d+)$`)
	reSteam3 = regexp.MustCompile(`^\[U:1:(\d+)\]$`)
	reDigits = regexp.MustCompile(`^\d{17}$`)
)

// Canonicalize turns a raw SteamID token (Steam2, Steam3, Steam64, or a bot
// marker) into the Steam64 string used as the storage-layer unique ID. Bot
// identifiers become a synthetic "BOT_<sanitized-name>" key rather than a
// numeric ID, since bots have no persistent Steam account and must be
// disambiguated by name.
func Canonicalize(raw, playerName string) (uniqueID string, isBot bool, err error) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return "", false, fmt.Errorf("identity: empty SteamID token")
	}

	if IsBotToken(token) {
		return botKey(playerName), true, nil
	}

	if m := reSteam2.FindStringSubmatch(token); m != nil {
		y, _ := strconv.ParseInt(m[2], 10, 64)
		z, _ := strconv.ParseInt(m[3], 10, 64)
		steam64 := steam64Base + 2*z + y
		return strconv.FormatInt(steam64, 10), false, nil
	}

	if m := reSteam3.FindStringSubmatch(token); m != nil {
		a, _ := strconv.ParseInt(m[1], 10, 64)
		steam64 := steam64Base + a
		return strconv.FormatInt(steam64, 10), false, nil
	}

	if reDigits.MatchString(token) {
		return token, false, nil
	}

	return "", false, fmt.Errorf("identity: unrecognized SteamID token %q", raw)
}

func botKey(name string) string {
	sanitized := wire.SanitizeName(name)
	if sanitized == "" {
		sanitized = "unknown"
	}
	return "BOT_" + sanitized
}

// Steam64ToSteam2 renders a canonical Steam64 ID back into the legacy
// STEAM_X:Y:Z form used in player-facing displays.
func Steam64ToSteam2(steam64 string) (string, error) {
	id, err := strconv.ParseInt(steam64, 10, 64)
	if err != nil {
		return "", fmt.Errorf("identity: invalid steam64 %q: %w", steam64, err)
	}
	offset := id - steam64Base
	if offset < 0 {
		return "", fmt.Errorf("identity: steam64 %q below base offset", steam64)
	}
	y := offset % 2
	z := offset / 2
	return fmt.Sprintf("STEAM_0:%d:%d", y, z), nil
}

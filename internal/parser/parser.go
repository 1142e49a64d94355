// Package parser turns a normalized Source-engine log line into one typed
// domain event. One Parser implementation exists per game
// family; this package ships the Counter-Strike parser in full and a
// registry keyed by game name.
package parser

import (
	"fmt"
	"time"

	"github.com/hlstats/daemon/internal/models"
)

// Parser recognizes and decodes log lines for one game family.
type Parser interface {
	// CanParse reports whether line is a normalized Source-engine log line
	// this parser is willing to attempt.
	CanParse(line string) bool
	// Parse decodes line into one typed event, or returns a *models.ParseError
	// describing why it was rejected.
	Parse(line string, serverID int64, now time.Time) (*models.Event, error)
}

// registry maps a game identifier to its Parser.
var registry = map[string]Parser{}

func init() {
	cs := NewCounterStrikeParser()
	registry["cstrike"] = cs
	registry["csgo"] = cs
	registry["cs2"] = cs
}

// ForGame returns the Parser registered for game, or an error if unknown.
func ForGame(game string) (Parser, error) {
	p, ok := registry[game]
	if !ok {
		return nil, fmt.Errorf("parser: unsupported game %q", game)
	}
	return p, nil
}

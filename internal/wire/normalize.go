// Package wire normalizes raw UDP payloads into the canonical Source-engine
// log line before they reach a game parser.
package wire

import "strings"

const logPrefix = "L "

// Normalize strips the common wire prefix (four 0xFF bytes plus "log ")
// that Source-engine servers prepend to the canonical "L ..." line, and
// trims leading whitespace. If no "L " marker is found the trimmed input
// is returned unchanged; the caller's parser is responsible for rejecting
// it.
func Normalize(raw string) string {
	s := strings.TrimLeft(raw, " \t\r\n\x00")
	if strings.HasPrefix(s, logPrefix) {
		return s
	}
	if idx := strings.Index(s, logPrefix); idx >= 0 {
		return s[idx:]
	}
	return s
}

package wire

import "strings"

// SanitizeName normalizes a player display name: trim, collapse internal
// whitespace runs to a single underscore, strip any
// character outside [A-Za-z0-9_-], then truncate to 48 code units. Used by
// both the parser (names lifted off a log line) and the identity resolver
// (bot canonicalization).
func SanitizeName(name string) string {
	trimmed := strings.TrimSpace(name)

	var collapsed strings.Builder
	collapsed.Grow(len(trimmed))
	inSpace := false
	for _, r := range trimmed {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !inSpace {
				collapsed.WriteByte('_')
				inSpace = true
			}
			continue
		}
		inSpace = false
		collapsed.WriteRune(r)
	}

	var out strings.Builder
	out.Grow(collapsed.Len())
	for _, r := range collapsed.String() {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			out.WriteRune(r)
		}
	}

	s := out.String()
	if len(s) > 48 {
		s = s[:48]
	}
	return s
}

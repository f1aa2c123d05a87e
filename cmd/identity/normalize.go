package identity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxUsernameRunes = 64

// NormalizeUsername performs case-insensitive canonicalization for lookups and uniqueness.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validUsername rejects empty, overlong and whitespace-containing usernames.
func validUsername(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxUsernameRunes {
		return false
	}
	return strings.IndexFunc(s, unicode.IsSpace) < 0
}

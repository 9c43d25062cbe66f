package registry

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for comparison: no diacritics, lowercase,
// dashes as spaces and runs of whitespace collapsed.
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// MatchesName reports whether the normalized query is a substring of the client's
// first, last or full name.
func (c *Client) MatchesName(query string) bool {
	q := NormalizePersonName(query)
	if q == "" {
		return true
	}
	for _, candidate := range []string{c.FirstName, c.LastName, c.FullName()} {
		if strings.Contains(NormalizePersonName(candidate), q) {
			return true
		}
	}
	return false
}

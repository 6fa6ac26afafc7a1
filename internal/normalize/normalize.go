// Package normalize derives the deterministic keys used for caching and
// deduplication from free-form club names and address text.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	whitespace      = regexp.MustCompile(`\s+`)
	commaSpacing    = regexp.MustCompile(`\s*,\s*`)
	repeatedCommas  = regexp.MustCompile(`,(\s*,)+`)

	// UK postcode, e.g. "BA2 6RQ", "SW1A1AA".
	postcodePattern = regexp.MustCompile(`(?i)\b[A-Z]{1,2}\d{1,2}[A-Z]?\s*\d[A-Z]{2}\b`)
)

// teamSuffixes are squad designators that share the parent club's ground.
var teamSuffixes = map[string]bool{
	"II": true, "III": true, "IV": true, "V": true, "VI": true,
	"2XV": true, "3XV": true, "4XV": true,
}

// placeholderPrefix marks fixtures listed before a real opponent is known.
const placeholderPrefix = "To be arranged"

// IsPlaceholder reports whether a team name is a fixture placeholder rather than a club.
func IsPlaceholder(teamName string) bool {
	return strings.HasPrefix(strings.TrimSpace(teamName), placeholderPrefix)
}

// ClubName strips a trailing squad suffix ("Bath II" → "Bath").
func ClubName(teamName string) string {
	fields := strings.Fields(teamName)
	if len(fields) > 1 && teamSuffixes[strings.ToUpper(fields[len(fields)-1])] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// Slugify lowercases, strips accents, and joins alphanumeric runs with hyphens.
func Slugify(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "'", "")
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ClubKey is the identity of a club across leagues and seasons: the slug of
// the team name with its squad suffix removed. "Bath II" and "Bath" share a key.
func ClubKey(teamName string) string {
	return Slugify(ClubName(teamName))
}

// TeamKey identifies one team entry within a league: club key plus league slug.
func TeamKey(teamName, leagueID string) string {
	key := ClubKey(teamName)
	if suffix := teamSuffix(teamName); suffix != "" {
		key += "-" + strings.ToLower(suffix)
	}
	return key + "@" + Slugify(leagueID)
}

func teamSuffix(teamName string) string {
	fields := strings.Fields(teamName)
	if len(fields) > 1 && teamSuffixes[strings.ToUpper(fields[len(fields)-1])] {
		return fields[len(fields)-1]
	}
	return ""
}

// AddressText canonicalizes free-form address text for display and hashing:
// NFKC, newlines to ", ", whitespace collapsed, comma spacing fixed, and
// empty comma segments dropped.
func AddressText(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", ", ")
	s = whitespace.ReplaceAllString(s, " ")
	s = commaSpacing.ReplaceAllString(s, ", ")
	s = repeatedCommas.ReplaceAllString(s, ",")
	return strings.Trim(s, " ,")
}

// AddressKey is the content-addressed cache key for an address: the hex
// SHA-256 of its case-folded canonical text.
func AddressKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(AddressText(raw))))
	return hex.EncodeToString(sum[:])
}

// Postcode extracts the first UK postcode in s, upper-cased with a single
// space before the inward code. Returns "" when none is present.
func Postcode(s string) string {
	m := postcodePattern.FindString(s)
	if m == "" {
		return ""
	}
	m = strings.ToUpper(strings.ReplaceAll(m, " ", ""))
	return m[:len(m)-3] + " " + m[len(m)-3:]
}

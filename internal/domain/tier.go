package domain

import "slices"

// Divisions. Records without a division are men's competitions.
const (
	DivisionMen   = "men"
	DivisionWomen = "women"
)

// MensTiers and WomensTiers list the league pyramid from the top.
var (
	MensTiers = []string{
		"Premiership", "Championship", "National League 1", "National League 2",
		"Regional 1", "Regional 2", "Counties 1", "Counties 2", "Counties 3",
		"Counties 4", "Counties 5",
	}
	WomensTiers = []string{
		"Premiership Women's", "Championship 1", "Championship 2",
		"National Challenge 1", "National Challenge 2", "National Challenge 3",
	}
)

// TierUnknown is assigned when a listing's tier cannot be inferred.
const TierUnknown = "Unknown"

// DivisionOf returns the record's division, defaulting to men's.
func (r ClubRecord) DivisionOf() string {
	if r.Division == "" {
		return DivisionMen
	}
	return r.Division
}

// TierRank orders tiers: men's pyramid, then women's, then anything else.
// Unlisted tiers share the highest rank and sort by name among themselves.
func TierRank(tier string) int {
	if i := slices.Index(MensTiers, tier); i >= 0 {
		return i
	}
	if i := slices.Index(WomensTiers, tier); i >= 0 {
		return len(MensTiers) + i
	}
	return len(MensTiers) + len(WomensTiers)
}

// TierDivision returns the division a known tier belongs to, or "".
func TierDivision(tier string) string {
	switch {
	case slices.Contains(MensTiers, tier):
		return DivisionMen
	case slices.Contains(WomensTiers, tier):
		return DivisionWomen
	default:
		return ""
	}
}

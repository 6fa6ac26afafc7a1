package source

import (
	"strings"

	"github.com/rugbymap/rugbymap/internal/domain"
)

// tierPrefixes maps league file name prefixes to tiers, checked in order.
var tierPrefixes = []struct {
	prefix string
	tier   string
}{
	{"Premiership", "Premiership"},
	{"Championship", "Championship"},
	{"National_League_1", "National League 1"},
	{"National_League_2", "National League 2"},
	{"Regional_1", "Regional 1"},
	{"Regional_2", "Regional 2"},
	{"Counties_1", "Counties 1"},
	{"Counties_2", "Counties 2"},
	{"Counties_3", "Counties 3"},
	{"Counties_4", "Counties 4"},
	{"Counties_5", "Counties 5"},
	{"Women's_Premiership", "Premiership Women's"},
	{"Women's_NC_1", "National Challenge 1"},
	{"Women's_NC_2", "National Challenge 2"},
	{"Women's_NC_3", "National Challenge 3"},
}

// InferTier derives a league's tier from its listing file name, e.g.
// "Regional_1_South_West.json" is "Regional 1".
func InferTier(filename string) string {
	for _, p := range tierPrefixes {
		if strings.HasPrefix(filename, p.prefix) {
			return p.tier
		}
	}
	// These split their divisions across tiers by trailing number.
	switch {
	case strings.HasPrefix(filename, "Women's_Championship"):
		return numbered(filename, "Championship 1", "Championship 2")
	case strings.HasPrefix(filename, "Cumbria_Conference"):
		return numbered(filename, "Counties 2", "Counties 3")
	}
	return domain.TierUnknown
}

func numbered(filename, one, two string) string {
	switch {
	case strings.HasSuffix(filename, "1.json"):
		return one
	case strings.HasSuffix(filename, "2.json"):
		return two
	default:
		return domain.TierUnknown
	}
}

// InferDivision is women for women's listings and men otherwise.
func InferDivision(filename, tier string) string {
	if strings.HasPrefix(filename, "Women's_") || domain.TierDivision(tier) == domain.DivisionWomen {
		return domain.DivisionWomen
	}
	return domain.DivisionMen
}

package territory

import (
	"cmp"
	"slices"
	"strings"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/normalize"
)

// Kind is how points are split into layers.
type Kind string

const (
	KindTier     Kind = "tier"
	KindLeague   Kind = "league"
	KindAll      Kind = "all"
	KindDivision Kind = "division"
)

// Grouping selects the layers to build. An empty Value means one layer per
// distinct value of Kind; otherwise only the layer for Value.
type Grouping struct {
	Kind  Kind
	Value string
}

func (g Grouping) String() string {
	if g.Value == "" {
		return string(g.Kind)
	}
	return string(g.Kind) + ":" + g.Value
}

// Group is the points of one layer.
type Group struct {
	Key    string
	Points []domain.ClubPoint
}

// ParseGrouping parses "tier", "league", "all", "division", or a kind with
// a value such as "tier:Regional 1" or "league:london-1-north".
func ParseGrouping(s string) (Grouping, error) {
	kind, value, _ := strings.Cut(strings.TrimSpace(s), ":")
	g := Grouping{Kind: Kind(strings.ToLower(kind)), Value: strings.TrimSpace(value)}
	switch g.Kind {
	case KindTier, KindLeague, KindDivision:
		return g, nil
	case KindAll:
		if g.Value != "" {
			return Grouping{}, errors.Configurationf("grouping %q: all takes no value", s)
		}
		return g, nil
	default:
		return Grouping{}, errors.Configurationf("unknown grouping %q", s)
	}
}

// ParseGroupings parses a list of grouping specs.
func ParseGroupings(specs []string) ([]Grouping, error) {
	out := make([]Grouping, 0, len(specs))
	for _, s := range specs {
		g, err := ParseGrouping(s)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// Partition splits points into the groups g selects, in a stable order.
// A grouping with an explicit value that matches no point is a
// CONFIGURATION error.
func (g Grouping) Partition(points []domain.ClubPoint) ([]Group, error) {
	var groups []Group
	switch g.Kind {
	case KindTier:
		groups = partition(points, func(p domain.ClubPoint) string {
			return "tier:" + normalize.Slugify(tierOf(p.Club))
		}, tierLess)
	case KindLeague:
		groups = partition(points, func(p domain.ClubPoint) string {
			return "league:" + normalize.Slugify(p.Club.LeagueID)
		}, nil)
	case KindDivision:
		groups = partition(points, func(p domain.ClubPoint) string {
			return "division:" + p.Club.DivisionOf()
		}, nil)
	case KindAll:
		groups = partition(points, func(p domain.ClubPoint) string {
			return "all:" + p.Club.DivisionOf()
		}, nil)
		if len(groups) == 1 {
			groups[0].Key = "all"
		}
		return groups, nil
	default:
		return nil, errors.Configurationf("unknown grouping %q", g.Kind)
	}

	if g.Value == "" {
		return groups, nil
	}
	want := string(g.Kind) + ":" + normalize.Slugify(g.Value)
	if g.Kind == KindDivision {
		want = string(g.Kind) + ":" + strings.ToLower(g.Value)
	}
	for _, grp := range groups {
		if grp.Key == want {
			return []Group{grp}, nil
		}
	}
	return nil, errors.Configurationf("grouping %s matches no teams", g)
}

func tierOf(r domain.ClubRecord) string {
	if r.Tier == "" {
		return domain.TierUnknown
	}
	return r.Tier
}

// tierLess orders tier groups by pyramid rank, then key.
func tierLess(a, b Group) int {
	ra := domain.TierRank(tierOf(a.Points[0].Club))
	rb := domain.TierRank(tierOf(b.Points[0].Club))
	if c := cmp.Compare(ra, rb); c != 0 {
		return c
	}
	return cmp.Compare(a.Key, b.Key)
}

func partition(points []domain.ClubPoint, key func(domain.ClubPoint) string, order func(a, b Group) int) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, p := range points {
		k := key(p)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Points = append(groups[i].Points, p)
	}
	if order == nil {
		order = func(a, b Group) int { return cmp.Compare(a.Key, b.Key) }
	}
	slices.SortFunc(groups, order)
	return groups
}

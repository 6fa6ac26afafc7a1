package territory

import (
	"cmp"
	"slices"

	"github.com/rugbymap/rugbymap/internal/domain"
)

// RegionTree reports how regions nest. *boundary.Hierarchy implements it.
type RegionTree interface {
	ChildCount(level domain.RegionLevel, name string) int
}

// Tiers whose single league is the whole country, and tiers whose leagues
// are wide enough to claim a region on any presence alone.
var (
	nationalTiers = []string{"Premiership", "Championship", "National League 1", "Premiership Women's"}
	wideTiers     = []string{"National League 2", "Championship 1", "Championship 2"}
)

// Claims works out which regions a league holds, bottom up:
//
//   - an ITL3 region is held when every team in it plays in one league;
//   - an ITL2 region is held when only one league plays in it and that
//     league holds two of its ITL3 regions, or its only one;
//   - an ITL1 region is held the same way over its ITL2 regions.
//
// In a wide tier a single league present is enough at ITL1 and ITL2. In a
// national tier with one league, that league holds the country. Only the
// widest held region is reported: an ITL2 region is left out when its ITL1
// parent is held, and an ITL3 region when either ancestor is. Contested
// lists ITL3 regions with teams from two or more leagues.
//
// The tier rules apply only when every point shares one tier. tree may be
// nil, in which case no region counts as having a single child.
func Claims(points []domain.ClubPoint, country string, tree RegionTree) (claims []domain.RegionClaim, contested []string) {
	if len(points) == 0 {
		return nil, nil
	}
	tier := points[0].Club.Tier
	leagues := make(map[string]bool)
	for _, p := range points {
		leagues[p.Club.LeagueID] = true
		if p.Club.Tier != tier {
			tier = ""
		}
	}
	if slices.Contains(nationalTiers, tier) && len(leagues) == 1 && country != "" {
		return []domain.RegionClaim{{
			Level:    domain.LevelCountry,
			Region:   country,
			LeagueID: points[0].Club.LeagueID,
		}}, nil
	}
	wide := slices.Contains(wideTiers, tier)

	var (
		in      = map[domain.RegionLevel]map[string]map[string]bool{}
		parent  = map[domain.RegionLevel]map[string]string{}
		levels  = []domain.RegionLevel{domain.LevelITL1, domain.LevelITL2, domain.LevelITL3}
		holders = map[domain.RegionLevel]map[string]string{}
	)
	for _, l := range levels {
		in[l] = make(map[string]map[string]bool)
		parent[l] = make(map[string]string)
		holders[l] = make(map[string]string)
	}
	for _, p := range points {
		for i, l := range levels {
			name := p.Regions.At(l)
			if name == "" {
				break
			}
			if in[l][name] == nil {
				in[l][name] = make(map[string]bool)
			}
			in[l][name][p.Club.LeagueID] = true
			if i > 0 {
				parent[l][name] = p.Regions.At(levels[i-1])
			}
		}
	}

	for name, ls := range in[domain.LevelITL3] {
		if len(ls) == 1 {
			holders[domain.LevelITL3][name] = only(ls)
		}
	}
	for i := len(levels) - 2; i >= 0; i-- {
		l, below := levels[i], levels[i+1]
		held := make(map[string]int)
		for child, league := range holders[below] {
			held[parent[below][child]+"\x00"+league]++
		}
		for name, ls := range in[l] {
			if len(ls) != 1 {
				continue
			}
			league := only(ls)
			n := held[name+"\x00"+league]
			if wide || n >= 2 || (n == 1 && childCount(tree, l, name) == 1) {
				holders[l][name] = league
			}
		}
	}

	for _, l := range levels {
		for name, league := range holders[l] {
			if ancestorHeld(l, name, levels, parent, holders) {
				continue
			}
			claims = append(claims, domain.RegionClaim{Level: l, Region: name, LeagueID: league})
		}
	}
	slices.SortFunc(claims, func(a, b domain.RegionClaim) int {
		if c := cmp.Compare(slices.Index(levels, a.Level), slices.Index(levels, b.Level)); c != 0 {
			return c
		}
		return cmp.Compare(a.Region, b.Region)
	})

	for name, ls := range in[domain.LevelITL3] {
		if len(ls) >= 2 {
			contested = append(contested, name)
		}
	}
	slices.Sort(contested)
	return claims, contested
}

func ancestorHeld(l domain.RegionLevel, name string, levels []domain.RegionLevel, parent, holders map[domain.RegionLevel]map[string]string) bool {
	for i := slices.Index(levels, l); i > 0; i-- {
		name = parent[levels[i]][name]
		if _, ok := holders[levels[i-1]][name]; ok {
			return true
		}
	}
	return false
}

func childCount(tree RegionTree, l domain.RegionLevel, name string) int {
	if tree == nil {
		return 0
	}
	return tree.ChildCount(l, name)
}

func only(set map[string]bool) string {
	for k := range set {
		return k
	}
	return ""
}

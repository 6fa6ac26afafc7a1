package territory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rugbymap/rugbymap/internal/domain"
)

// childCounts maps "level/name" to a child count.
type childCounts map[string]int

func (c childCounts) ChildCount(level domain.RegionLevel, name string) int {
	return c[string(level)+"/"+name]
}

func placedIn(name, league, tier, itl1, itl2, itl3 string) domain.ClubPoint {
	return domain.ClubPoint{
		Club:    domain.ClubRecord{Name: name, LeagueID: league, Tier: tier},
		Regions: domain.RegionPath{ITL1: itl1, ITL2: itl2, ITL3: itl3},
	}
}

func TestClaims(t *testing.T) {
	tree := childCounts{
		"itl1/South West":      2,
		"itl2/Gloucestershire": 3,
		"itl2/Devon":           1,
		"itl1/London":          2,
		"itl2/Inner London":    2,
	}

	tests := []struct {
		name      string
		points    []domain.ClubPoint
		claims    []domain.RegionClaim
		contested []string
	}{
		{
			name: "one league across a whole ITL1",
			points: []domain.ClubPoint{
				placedIn("A", "sw", "Regional 1", "South West", "Gloucestershire", "Bristol"),
				placedIn("B", "sw", "Regional 1", "South West", "Gloucestershire", "Bath"),
				placedIn("C", "sw", "Regional 1", "South West", "Devon", "Plymouth"),
			},
			claims: []domain.RegionClaim{
				{Level: domain.LevelITL1, Region: "South West", LeagueID: "sw"},
			},
		},
		{
			name: "a shared ITL3 keeps its neighbours at ITL3",
			points: []domain.ClubPoint{
				placedIn("A", "sw", "Regional 1", "South West", "Gloucestershire", "Bristol"),
				placedIn("B", "sw", "Regional 1", "South West", "Gloucestershire", "Bath"),
				placedIn("C", "mid", "Regional 1", "South West", "Gloucestershire", "Bath"),
				placedIn("D", "sw", "Regional 1", "South West", "Devon", "Plymouth"),
			},
			claims: []domain.RegionClaim{
				{Level: domain.LevelITL2, Region: "Devon", LeagueID: "sw"},
				{Level: domain.LevelITL3, Region: "Bristol", LeagueID: "sw"},
			},
			contested: []string{"Bath"},
		},
		{
			name: "one held ITL3 of several does not carry its ITL2",
			points: []domain.ClubPoint{
				placedIn("A", "sw", "Regional 1", "South West", "Gloucestershire", "Bristol"),
				placedIn("B", "mid", "Regional 1", "South West", "Devon", "Plymouth"),
			},
			claims: []domain.RegionClaim{
				{Level: domain.LevelITL2, Region: "Devon", LeagueID: "mid"},
				{Level: domain.LevelITL3, Region: "Bristol", LeagueID: "sw"},
			},
		},
		{
			name: "wide tiers claim on presence",
			points: []domain.ClubPoint{
				placedIn("A", "nl2w", "National League 2", "South West", "Gloucestershire", "Bristol"),
				placedIn("B", "nl2e", "National League 2", "London", "Inner London", "Camden"),
			},
			claims: []domain.RegionClaim{
				{Level: domain.LevelITL1, Region: "London", LeagueID: "nl2e"},
				{Level: domain.LevelITL1, Region: "South West", LeagueID: "nl2w"},
			},
		},
		{
			name: "national tier holds the country",
			points: []domain.ClubPoint{
				placedIn("A", "prem", "Premiership", "South West", "Gloucestershire", "Bristol"),
				placedIn("B", "prem", "Premiership", "London", "Inner London", "Camden"),
			},
			claims: []domain.RegionClaim{
				{Level: domain.LevelCountry, Region: "England", LeagueID: "prem"},
			},
		},
		{
			name: "mixed tiers get no tier rules",
			points: []domain.ClubPoint{
				placedIn("A", "prem", "Premiership", "South West", "Gloucestershire", "Bristol"),
				placedIn("B", "prem", "Championship", "South West", "Gloucestershire", "Bath"),
			},
			claims: []domain.RegionClaim{
				{Level: domain.LevelITL2, Region: "Gloucestershire", LeagueID: "prem"},
			},
		},
		{
			name: "untagged points claim nothing",
			points: []domain.ClubPoint{
				placedIn("A", "sw", "Regional 1", "", "", ""),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, contested := Claims(tt.points, "England", tree)

			assert.Equal(t, tt.claims, claims)
			assert.Equal(t, tt.contested, contested)
		})
	}
}

func TestClaims_WithoutTreeNeedsTwoChildren(t *testing.T) {
	points := []domain.ClubPoint{
		placedIn("A", "sw", "Regional 1", "South West", "Devon", "Plymouth"),
	}

	claims, _ := Claims(points, "England", nil)

	assert.Equal(t, []domain.RegionClaim{{Level: domain.LevelITL3, Region: "Plymouth", LeagueID: "sw"}}, claims)
}

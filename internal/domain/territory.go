package domain

import (
	"github.com/paulmach/orb"

	"github.com/rugbymap/rugbymap/internal/geo"
)

// TerritoryCell is one team's catchment, clipped to the boundary and
// expressed in lon/lat.
type TerritoryCell struct {
	ClubKey  string `json:"club_key"`
	TeamKey  string `json:"team_key"`
	Name     string `json:"name"`
	LeagueID string `json:"league_id"`
	Tier     string `json:"tier,omitempty"`
	Division string `json:"division,omitempty"`
	ImageURL string `json:"image_url,omitempty"`

	Polygon geo.Shape `json:"-"`
	// Centroid is the area centroid of Polygon; zero when Empty.
	Centroid orb.Point `json:"centroid"`
	// Site is the club's own coordinate.
	Site orb.Point `json:"site"`
	// Area is in projected square units.
	Area  float64 `json:"area"`
	Empty bool    `json:"empty"`
}

// LeagueTerritory is the union of one league's cells in a layer.
type LeagueTerritory struct {
	LeagueID string `json:"league_id"`
	Tier     string `json:"tier,omitempty"`
	Division string `json:"division,omitempty"`
	// Teams lists the league's team keys in the layer, empty cells included.
	Teams   []string  `json:"teams"`
	Polygon geo.Shape `json:"-"`
	// Area is the sum of the cells' projected areas.
	Area float64 `json:"area"`
}

// Exclusion records a point left out of a layer's tessellation.
type Exclusion struct {
	ClubKey  string `json:"club_key"`
	TeamKey  string `json:"team_key"`
	Name     string `json:"name"`
	LeagueID string `json:"league_id,omitempty"`
	Code     string `json:"code"`
	Reason   string `json:"reason"`
}

// TerritoryLayer is the tessellation of one grouping for one season.
type TerritoryLayer struct {
	GroupingKey  string            `json:"grouping_key"`
	Season       string            `json:"season"`
	Cells        []TerritoryCell   `json:"cells"`
	Leagues      []LeagueTerritory `json:"leagues,omitempty"`
	BoundaryUsed string            `json:"boundary_used"`
	// Claims are the widest regions held by a single league.
	Claims []RegionClaim `json:"claims,omitempty"`
	// Contested lists ITL3 regions split between two or more leagues.
	Contested []string    `json:"contested,omitempty"`
	Excluded  []Exclusion `json:"excluded,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// League returns the territory of a league.
func (l *TerritoryLayer) League(leagueID string) (LeagueTerritory, bool) {
	for _, t := range l.Leagues {
		if t.LeagueID == leagueID {
			return t, true
		}
	}
	return LeagueTerritory{}, false
}

// Cell returns the cell for a team key.
func (l *TerritoryLayer) Cell(teamKey string) (TerritoryCell, bool) {
	for _, c := range l.Cells {
		if c.TeamKey == teamKey {
			return c, true
		}
	}
	return TerritoryCell{}, false
}

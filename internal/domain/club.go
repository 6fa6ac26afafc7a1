// Package domain holds the value types that flow between pipeline stages.
package domain

import (
	"github.com/rugbymap/rugbymap/internal/normalize"
)

// ClubRecord is one team entry from a league listing. It is immutable once
// produced by the record source.
type ClubRecord struct {
	Name       string `json:"name" validate:"required"`
	LeagueID   string `json:"league_id" validate:"required"`
	Tier       string `json:"tier,omitempty"`
	Season     string `json:"season" validate:"required,season"`
	ProfileRef string `json:"profile_ref" validate:"required"`
	// Division separates men's and women's competitions; empty means men's.
	Division string `json:"division,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ClubName is the team name with any squad suffix removed.
func (r ClubRecord) ClubName() string {
	return normalize.ClubName(r.Name)
}

// ClubKey identifies the club across leagues and seasons.
func (r ClubRecord) ClubKey() string {
	return normalize.ClubKey(r.Name)
}

// TeamKey identifies this team within its league.
func (r ClubRecord) TeamKey() string {
	return normalize.TeamKey(r.Name, r.LeagueID)
}

// ClubPoint pairs a team with the coordinate its club resolved to. It is the
// unit of input to tessellation.
type ClubPoint struct {
	Club       ClubRecord    `json:"club"`
	Coordinate GeoCoordinate `json:"coordinate"`
	Regions    RegionPath    `json:"regions,omitzero"`
}

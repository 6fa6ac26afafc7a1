// Package travel computes how far each team travels to play its league
// opponents, by great-circle distance between grounds.
package travel

import (
	"cmp"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/rugbymap/rugbymap/internal/domain"
)

// TeamStats is one team's distance to its league opponents.
type TeamStats struct {
	TeamKey  string  `json:"team_key"`
	Name     string  `json:"name"`
	LeagueID string  `json:"league_id"`
	AvgKm    float64 `json:"avg_distance_km"`
	TotalKm  float64 `json:"total_distance_km"`
}

// LeagueStats is the mean of its teams' average distances.
type LeagueStats struct {
	LeagueID  string  `json:"league_id"`
	AvgKm     float64 `json:"avg_distance_km"`
	TeamCount int     `json:"team_count"`
}

// Summary aggregates over every team.
type Summary struct {
	TotalTeams   int     `json:"total_teams"`
	TotalLeagues int     `json:"total_leagues"`
	OverallAvgKm float64 `json:"overall_avg_distance_km"`
}

// Report is the travel statistics for one season.
type Report struct {
	Season string `json:"season"`
	// Teams is ordered by average distance, shortest first.
	Teams   []TeamStats   `json:"teams"`
	Leagues []LeagueStats `json:"leagues"`
	Summary Summary       `json:"summary"`
}

// Compute builds travel statistics from located teams. A team alone in its
// league has zero distance.
func Compute(season string, points []domain.ClubPoint) *Report {
	byLeague := make(map[string][]domain.ClubPoint)
	for _, p := range points {
		byLeague[p.Club.LeagueID] = append(byLeague[p.Club.LeagueID], p)
	}

	r := &Report{Season: season, Teams: []TeamStats{}, Leagues: []LeagueStats{}}
	for league, teams := range byLeague {
		var leagueSum float64
		for i, t := range teams {
			var total float64
			for j, o := range teams {
				if i != j {
					total += km(t, o)
				}
			}
			avg := 0.0
			if len(teams) > 1 {
				avg = total / float64(len(teams)-1)
			}
			leagueSum += avg
			r.Teams = append(r.Teams, TeamStats{
				TeamKey:  t.Club.TeamKey(),
				Name:     t.Club.Name,
				LeagueID: league,
				AvgKm:    round2(avg),
				TotalKm:  round2(total),
			})
		}
		r.Leagues = append(r.Leagues, LeagueStats{
			LeagueID:  league,
			AvgKm:     round2(leagueSum / float64(len(teams))),
			TeamCount: len(teams),
		})
	}

	slices.SortFunc(r.Teams, func(a, b TeamStats) int {
		if c := cmp.Compare(a.AvgKm, b.AvgKm); c != 0 {
			return c
		}
		return cmp.Compare(a.TeamKey, b.TeamKey)
	})
	slices.SortFunc(r.Leagues, func(a, b LeagueStats) int {
		return cmp.Compare(a.LeagueID, b.LeagueID)
	})

	r.Summary = Summary{TotalTeams: len(r.Teams), TotalLeagues: len(r.Leagues)}
	if len(r.Teams) > 0 {
		var sum float64
		for _, t := range r.Teams {
			sum += t.AvgKm
		}
		r.Summary.OverallAvgKm = round2(sum / float64(len(r.Teams)))
	}
	return r
}

// Distances are reported on the mean Earth radius; orb measures on the
// equatorial one.
const meanEarthRadiusKm = 6371.0

func km(a, b domain.ClubPoint) float64 {
	return geo.DistanceHaversine(a.Coordinate.Point(), b.Coordinate.Point()) / orb.EarthRadius * meanEarthRadiusKm
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

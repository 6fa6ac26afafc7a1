package territory

import (
	"slices"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/geo"
)

// leagues merges the projected cells of each league into one territory.
// cells[i] belongs to sites[i]. Territories come back in league order.
func leagues(sites []site, cells []geo.Shape, proj geo.Projector, tol geo.Tolerance) []domain.LeagueTerritory {
	type merge struct {
		territory domain.LeagueTerritory
		shapes    []geo.Shape
	}
	byLeague := make(map[string]*merge)
	var ids []string
	for i, s := range sites {
		rec := s.point.Club
		m, ok := byLeague[rec.LeagueID]
		if !ok {
			m = &merge{territory: domain.LeagueTerritory{
				LeagueID: rec.LeagueID,
				Tier:     rec.Tier,
				Division: rec.DivisionOf(),
			}}
			byLeague[rec.LeagueID] = m
			ids = append(ids, rec.LeagueID)
		}
		m.territory.Teams = append(m.territory.Teams, rec.TeamKey())
		if !cells[i].IsEmpty() {
			m.territory.Area += cells[i].Area()
			m.shapes = append(m.shapes, cells[i])
		}
	}

	slices.Sort(ids)
	out := make([]domain.LeagueTerritory, 0, len(ids))
	for _, id := range ids {
		m := byLeague[id]
		m.territory.Polygon = geo.Unproject(geo.Dissolve(m.shapes, tol), proj)
		out = append(out, m.territory)
	}
	return out
}

package geocode

import (
	"cmp"
	"slices"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/resolve"
)

// Join pairs every record with the coordinate its club's address resolved
// to. Records whose address resolved but whose geocode did not are returned
// as unresolved; address failures are reported by the address stage.
func Join(
	records []domain.ClubRecord,
	addresses map[string]resolve.Result[domain.NormalizedAddress],
	coords map[string]resolve.Result[domain.GeoCoordinate],
) ([]domain.ClubPoint, []domain.Unresolved) {
	var (
		points     []domain.ClubPoint
		unresolved []domain.Unresolved
	)
	for _, rec := range records {
		addr, ok := addresses[rec.ClubKey()]
		if !ok || !addr.OK() {
			continue
		}
		c, ok := coords[addr.Value.AddressKey()]
		if ok && c.OK() {
			points = append(points, domain.ClubPoint{Club: rec, Coordinate: c.Value})
			continue
		}
		u := domain.Unresolved{
			ClubKey:  rec.ClubKey(),
			Name:     rec.Name,
			LeagueID: rec.LeagueID,
			Stage:    domain.StageGeocode,
			Code:     string(errors.CodeTransient),
			Reason:   "not geocoded",
		}
		if ok && c.Err != nil {
			u.Code = string(errors.CodeOf(c.Err))
			u.Reason = c.Err.Error()
			u.Attempts = len(c.Attempts)
		}
		unresolved = append(unresolved, u)
	}
	return points, unresolved
}

// Addresses collects the resolved addresses from an address result set.
func Addresses(results map[string]resolve.Result[domain.NormalizedAddress]) []domain.NormalizedAddress {
	out := make([]domain.NormalizedAddress, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Value)
		}
	}
	slices.SortFunc(out, func(a, b domain.NormalizedAddress) int {
		return cmp.Compare(a.ClubKey, b.ClubKey)
	})
	return out
}

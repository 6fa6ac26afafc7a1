package stages

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugbymap/rugbymap/internal/domain"
	domainerrors "github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/geo"
	"github.com/rugbymap/rugbymap/internal/travel"
)

func TestStore_AddressesAndLocations(t *testing.T) {
	s := New(t.TempDir(), nil)
	bath := domain.ClubRecord{Name: "Bath", LeagueID: "Premiership", Season: "2025-2026", ProfileRef: "/bath"}
	ghost := domain.ClubRecord{Name: "Ghost", LeagueID: "Regional 1", Season: "2025-2026", ProfileRef: "/ghost"}

	require.NoError(t, s.SaveAddresses([]LeagueAddresses{
		{LeagueID: "Premiership", Season: "2025-2026", Teams: []TeamAddress{{Record: bath, Address: &domain.NormalizedAddress{ClubKey: "bath", RawText: "Bath"}}}},
		{LeagueID: "Regional 1", Season: "2025-2026", Teams: []TeamAddress{{Record: ghost, Error: "no address"}}},
	}))
	assert.FileExists(t, filepath.Join(s.Base(), "addresses", "2025-2026", "regional-1.json"))

	got, err := s.LoadAddresses("2025-2026")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bath", got[0].Teams[0].Address.RawText)
	assert.Equal(t, "no address", got[1].Teams[0].Error)

	coord := &domain.GeoCoordinate{Latitude: 51.38, Longitude: -2.35}
	require.NoError(t, s.SaveLocations([]LeagueLocations{{
		LeagueID: "Premiership",
		Season:   "2025-2026",
		Teams:    []TeamLocation{{Record: bath, Coordinate: coord}, {Record: ghost, Error: "no address"}},
	}}))
	locs, err := s.LoadLocations("2025-2026")
	require.NoError(t, err)
	require.Len(t, locs, 1)
	points := locs[0].Points()
	require.Len(t, points, 1)
	assert.Equal(t, orb.Point{-2.35, 51.38}, points[0].Coordinate.Point())
}

func TestStore_Layers(t *testing.T) {
	s := New(t.TempDir(), nil)
	layer := &domain.TerritoryLayer{
		GroupingKey: "tier:regional-1",
		Season:      "2025-2026",
		Cells: []domain.TerritoryCell{{
			TeamKey: "bath@premiership",
			Polygon: geo.Rect(orb.Bound{Min: orb.Point{-3, 51}, Max: orb.Point{-2, 52}}),
			Site:    orb.Point{-2.5, 51.5},
			Area:    1,
		}},
	}

	require.NoError(t, s.SaveLayer(layer))
	keys, err := s.Layers("2025-2026")
	require.NoError(t, err)
	assert.Equal(t, []string{"tier:regional-1"}, keys)

	back, err := s.LoadLayer("2025-2026", "tier:regional-1")
	require.NoError(t, err)
	assert.Equal(t, "tier:regional-1", back.GroupingKey)
	require.Len(t, back.Cells, 1)
	assert.InDelta(t, 1.0, back.Cells[0].Polygon.Area(), 1e-12)

	_, err = s.LoadLayer("2025-2026", "league:nowhere")
	assert.True(t, errors.Is(err, domainerrors.ErrNotFound))
}

func TestStore_TravelAndReports(t *testing.T) {
	s := New(t.TempDir(), nil)
	r := &travel.Report{Season: "2025-2026", Summary: travel.Summary{TotalTeams: 3}}

	require.NoError(t, s.SaveTravel(r))
	back, err := s.LoadTravel("2025-2026")
	require.NoError(t, err)
	assert.Equal(t, 3, back.Summary.TotalTeams)

	require.NoError(t, s.SaveReport("2025-2026", "geocode", map[string]int{"succeeded": 4}))
	var rep map[string]int
	require.NoError(t, s.LoadReport("2025-2026", "geocode", &rep))
	assert.Equal(t, 4, rep["succeeded"])

	_, err = s.LoadTravel("1999-2000")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

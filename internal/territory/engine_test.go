package territory

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugbymap/rugbymap/internal/boundary"
	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/geo"
)

func club(name, league string, x, y float64) domain.ClubPoint {
	return domain.ClubPoint{
		Club:       domain.ClubRecord{Name: name, LeagueID: league, Season: "2025-2026", ProfileRef: "/" + name},
		Coordinate: domain.GeoCoordinate{Longitude: x, Latitude: y},
	}
}

func planarEngine() *Engine {
	return NewEngine(Options{Projection: geo.Identity{}}, nil)
}

var square = boundary.FromBound("square", orb.Bound{Min: orb.Point{-20, -20}, Max: orb.Point{30, 30}})

func cellArea(layer *domain.TerritoryLayer) float64 {
	var total float64
	for _, c := range layer.Cells {
		total += c.Polygon.Area()
	}
	return total
}

func dist(a, b orb.Point) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}

func TestComputeLayer_ThreeClubsInSquare(t *testing.T) {
	points := []domain.ClubPoint{club("A", "l", 0, 0), club("B", "l", 10, 0), club("C", "l", 5, 10)}
	sites := map[string]orb.Point{"a@l": {0, 0}, "b@l": {10, 0}, "c@l": {5, 10}}

	layer, err := planarEngine().ComputeLayer(points, square)
	require.NoError(t, err)

	require.Len(t, layer.Cells, 3)
	assert.Equal(t, []string{"a@l", "b@l", "c@l"}, []string{layer.Cells[0].TeamKey, layer.Cells[1].TeamKey, layer.Cells[2].TeamKey})
	assert.InDelta(t, 2500.0, cellArea(layer), 1e-6)
	assert.Empty(t, layer.Excluded)

	// Every vertex of a cell is at least as close to its own site as to the others,
	// so shared edges lie on the perpendicular bisectors.
	for _, c := range layer.Cells {
		own := sites[c.TeamKey]
		for _, part := range c.Polygon.Parts {
			for _, v := range part.Exterior {
				for key, other := range sites {
					if key == c.TeamKey {
						continue
					}
					assert.LessOrEqual(t, dist(v, own), dist(v, other)+1e-6, "cell %s vertex %v", c.TeamKey, v)
				}
			}
		}
	}

	// Points off the bisectors land in exactly one cell, and in the right one.
	for x := -19.63; x < 30; x += 1.7 {
		for y := -19.71; y < 30; y += 1.7 {
			p := orb.Point{x, y}
			var hits []string
			for _, c := range layer.Cells {
				if c.Polygon.Contains(p) {
					hits = append(hits, c.TeamKey)
				}
			}
			require.Len(t, hits, 1, "point %v", p)
			nearest := "a@l"
			for key, s := range sites {
				if dist(p, s) < dist(p, sites[nearest]) {
					nearest = key
				}
			}
			assert.Equal(t, nearest, hits[0], "point %v", p)
		}
	}
}

func TestComputeLayer_IsDeterministic(t *testing.T) {
	var points []domain.ClubPoint
	r := rand.New(rand.NewPCG(1, 2))
	for i := range 40 {
		points = append(points, club(string(rune('A'+i%26))+string(rune('a'+i/26)), "l", r.Float64()*50-20, r.Float64()*50-20))
	}
	shuffled := slices.Clone(points)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	first, err := planarEngine().ComputeLayer(points, square)
	require.NoError(t, err)
	second, err := planarEngine().ComputeLayer(shuffled, square)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.InDelta(t, 2500.0, cellArea(first), 1e-6)
}

func TestComputeLayer_SinglePointTakesBoundary(t *testing.T) {
	layer, err := planarEngine().ComputeLayer([]domain.ClubPoint{club("A", "l", 3, 4)}, square)
	require.NoError(t, err)

	require.Len(t, layer.Cells, 1)
	c := layer.Cells[0]
	assert.InDelta(t, 2500.0, c.Area, 1e-9)
	assert.Equal(t, square.Shape.Normalize(), c.Polygon)
	assert.InDelta(t, 5.0, c.Centroid[0], 1e-9)
	assert.InDelta(t, 5.0, c.Centroid[1], 1e-9)
	assert.Equal(t, orb.Point{3, 4}, c.Site)
}

func TestComputeLayer_TwoPointsSplitOnBisector(t *testing.T) {
	layer, err := planarEngine().ComputeLayer([]domain.ClubPoint{club("A", "l", 0, 0), club("B", "l", 10, 0)}, square)
	require.NoError(t, err)

	require.Len(t, layer.Cells, 2)
	assert.InDelta(t, 1250.0, layer.Cells[0].Area, 1e-9)
	assert.InDelta(t, 1250.0, layer.Cells[1].Area, 1e-9)
	for _, v := range layer.Cells[0].Polygon.Parts[0].Exterior {
		assert.LessOrEqual(t, v[0], 5.0+1e-9)
	}
}

func TestComputeLayer_NoPoints(t *testing.T) {
	layer, err := planarEngine().ComputeLayer(nil, square)
	require.NoError(t, err)

	assert.Empty(t, layer.Cells)
	assert.NotEmpty(t, layer.Warnings)
}

func TestComputeLayer_CoincidentPointsAreSpread(t *testing.T) {
	points := []domain.ClubPoint{
		club("Bath", "l", 0, 0),
		club("Bath II", "l", 0, 0),
		club("Clifton", "l", 10, 10),
	}

	layer, err := planarEngine().ComputeLayer(points, square)
	require.NoError(t, err)

	require.Len(t, layer.Cells, 3)
	for _, c := range layer.Cells {
		assert.False(t, c.Empty, c.TeamKey)
		assert.Greater(t, c.Area, 0.0)
	}
	assert.InDelta(t, 2500.0, cellArea(layer), 1e-6)
	assert.NotEmpty(t, layer.Warnings)

	again, err := planarEngine().ComputeLayer(points, square)
	require.NoError(t, err)
	assert.Equal(t, layer, again)
}

func TestComputeLayer_AllCoincidentFallsBack(t *testing.T) {
	points := []domain.ClubPoint{club("C", "l", 1, 1), club("A", "l", 1, 1), club("B", "l", 1, 1)}

	layer, err := planarEngine().ComputeLayer(points, square)
	require.NoError(t, err)

	require.Len(t, layer.Cells, 1)
	assert.Equal(t, "a@l", layer.Cells[0].TeamKey)
	assert.InDelta(t, 2500.0, layer.Cells[0].Area, 1e-9)
	require.Len(t, layer.Excluded, 2)
	for _, x := range layer.Excluded {
		assert.Equal(t, string(errors.CodeDegenerate), x.Code)
		assert.Contains(t, x.Reason, "a@l holds the boundary")
	}
}

func TestComputeLayer_ExcludesBadPoints(t *testing.T) {
	points := []domain.ClubPoint{
		club("A", "l", 0, 0),
		club("B", "l", 10, 0),
		club("Nan", "l", math.NaN(), 0),
		club("Far", "l", 500, 500),
	}

	layer, err := planarEngine().ComputeLayer(points, square)
	require.NoError(t, err)

	assert.Len(t, layer.Cells, 2)
	require.Len(t, layer.Excluded, 2)
	for _, x := range layer.Excluded {
		assert.Equal(t, string(errors.CodeValidation), x.Code)
	}
}

func TestComputeLayer_PointOnBoundaryEdge(t *testing.T) {
	layer, err := planarEngine().ComputeLayer([]domain.ClubPoint{club("A", "l", -20, 0), club("B", "l", 30, 0)}, square)
	require.NoError(t, err)

	require.Len(t, layer.Cells, 2)
	assert.True(t, layer.Cells[0].Polygon.Contains(orb.Point{-20, 0}))
	assert.InDelta(t, 2500.0, cellArea(layer), 1e-6)
}

func TestComputeLayer_MalformedBoundary(t *testing.T) {
	bad := &boundary.Boundary{Name: "bow tie", Shape: geo.Shape{Parts: []geo.Part{{
		Exterior: geo.Ring{{0, 0}, {4, 4}, {4, 0}, {0, 2}},
	}}}}

	_, err := planarEngine().ComputeLayer([]domain.ClubPoint{club("A", "l", 1, 1)}, bad)

	require.Error(t, err)
	assert.Equal(t, errors.CodeConfiguration, errors.CodeOf(err))

	_, err = planarEngine().ComputeLayer(nil, nil)
	assert.Equal(t, errors.CodeConfiguration, errors.CodeOf(err))
}

func TestComputeLayer_HolesAndIslandsPartitioned(t *testing.T) {
	b, err := boundary.New("mainland and island", geo.Shape{Parts: []geo.Part{
		{
			Exterior: geo.RectRing(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{20, 20}}),
			Holes:    []geo.Ring{geo.RectRing(orb.Bound{Min: orb.Point{8, 8}, Max: orb.Point{12, 12}})},
		},
		{Exterior: geo.RectRing(orb.Bound{Min: orb.Point{25, 0}, Max: orb.Point{27, 2}})},
	}})
	require.NoError(t, err)
	points := []domain.ClubPoint{club("A", "l", 2, 2), club("B", "l", 18, 3), club("C", "l", 10, 17), club("D", "l", 26, 1)}

	layer, err := planarEngine().ComputeLayer(points, b)
	require.NoError(t, err)

	assert.InDelta(t, b.Shape.Area(), cellArea(layer), 1e-9)
	d, ok := layer.Cell("d@l")
	require.True(t, ok)
	assert.True(t, d.Polygon.Contains(orb.Point{26, 1}))
}

func TestComputeLayer_MercatorCellsContainTheirClubs(t *testing.T) {
	b := boundary.FromBound("south west", orb.Bound{Min: orb.Point{-5.5, 50}, Max: orb.Point{-1.5, 52}})
	points := []domain.ClubPoint{
		club("Bath", "sw", -2.355, 51.382),
		club("Bristol", "sw", -2.586, 51.484),
		club("Exeter", "sw", -3.468, 50.709),
		club("Cornish Pirates", "sw", -5.537+0.1, 50.119),
	}

	layer, err := NewEngine(Options{}, nil).ComputeLayer(points, b)
	require.NoError(t, err)

	require.Len(t, layer.Cells, 4)
	projected := geo.Project(b.Shape, geo.Mercator{}).Area()
	assert.InDelta(t, projected, func() float64 {
		var total float64
		for _, c := range layer.Cells {
			total += c.Area
		}
		return total
	}(), projected*1e-9)
	for _, c := range layer.Cells {
		assert.True(t, c.Polygon.Contains(c.Site), c.TeamKey)
		assert.True(t, b.Shape.Contains(c.Centroid), c.TeamKey)
	}

	polar, err := NewEngine(Options{}, nil).ComputeLayer([]domain.ClubPoint{club("Pole", "x", 0, 89)}, b)
	require.NoError(t, err)
	assert.Empty(t, polar.Cells)
	assert.Len(t, polar.Excluded, 1)
}

func TestComputeLayer_LeagueTerritories(t *testing.T) {
	points := []domain.ClubPoint{
		club("A", "l", 0, 0), club("B", "l", 0, 10),
		club("C", "m", 10, 0), club("D", "m", 10, 10),
	}

	layer, err := planarEngine().ComputeLayer(points, square)
	require.NoError(t, err)

	require.Len(t, layer.Leagues, 2)
	west, east := layer.Leagues[0], layer.Leagues[1]
	assert.Equal(t, "l", west.LeagueID)
	assert.Equal(t, []string{"a@l", "b@l"}, west.Teams)
	assert.Equal(t, "m", east.LeagueID)
	assert.Equal(t, []string{"c@m", "d@m"}, east.Teams)

	for _, l := range layer.Leagues {
		assert.InDelta(t, 1250.0, l.Area, 1e-6)
		assert.InDelta(t, 1250.0, l.Polygon.Area(), 1e-6)
		assert.Len(t, l.Polygon.Parts, 1, "league %s cells merge along their shared edge", l.LeagueID)
	}
	assert.True(t, west.Polygon.Contains(orb.Point{-10, 20}))
	assert.False(t, west.Polygon.Contains(orb.Point{20, 20}))

	l, ok := layer.League("m")
	require.True(t, ok)
	assert.Equal(t, east.Teams, l.Teams)
}

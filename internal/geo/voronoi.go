package geo

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
)

// Cell is one site's Voronoi region bounded by the working rectangle, with
// the bisector half-planes that shaped it.
type Cell struct {
	Ring   Ring
	Planes []HalfPlane
}

// Voronoi computes the bounded Voronoi cell of every site by intersecting the
// working rectangle with the bisector half-planes of its neighbours, nearest
// first. A neighbour farther than twice the cell's current radius cannot cut
// it, so the scan stops there.
//
// Sites must be pairwise distinct; the caller resolves coincident sites first.
// Output order matches input order.
func Voronoi(sites []orb.Point, rect orb.Bound, eps float64) []Cell {
	cells := make([]Cell, len(sites))
	base := RectRing(rect)

	type neighbour struct {
		idx  int
		dist float64
	}
	others := make([]neighbour, 0, len(sites))

	for i, p := range sites {
		others = others[:0]
		for j, q := range sites {
			if j == i {
				continue
			}
			others = append(others, neighbour{idx: j, dist: math.Hypot(q[0]-p[0], q[1]-p[1])})
		}
		slices.SortStableFunc(others, func(a, b neighbour) int {
			if c := cmpFloat(a.dist, b.dist); c != 0 {
				return c
			}
			return a.idx - b.idx
		})

		ring := base
		var planes []HalfPlane
		radius := farthest(p, ring)
		for _, o := range others {
			if o.dist > 2*radius+eps {
				break
			}
			h := Bisector(p, sites[o.idx])
			clipped := ClipConvex(ring, h, eps)
			if len(clipped) != len(ring) || !slices.Equal(clipped, ring) {
				planes = append(planes, h)
				radius = farthest(p, clipped)
			}
			ring = clipped
			if ring == nil {
				break
			}
		}
		cells[i] = Cell{Ring: ring, Planes: planes}
	}
	return cells
}

func farthest(p orb.Point, r Ring) float64 {
	var m float64
	for _, v := range r {
		m = math.Max(m, math.Hypot(v[0]-p[0], v[1]-p[1]))
	}
	return m
}

// ClipToCell intersects s with a Voronoi cell: first the cell's bounding box,
// which discards most of a large boundary cheaply, then each bisector.
func ClipToCell(s Shape, c Cell, tol Tolerance) Shape {
	if len(c.Ring) == 0 {
		return Shape{}
	}
	out := ClipShapeToBound(s, c.Ring.Bound(), tol)
	return ClipShapeToPlanes(out, c.Planes, tol)
}

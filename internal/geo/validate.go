package geo

import (
	"math"
	"slices"

	"github.com/paulmach/orb"

	"github.com/rugbymap/rugbymap/internal/errors"
)

// Validate rejects geometry the clipper cannot handle: empty shapes, rings
// with fewer than three distinct vertices or zero area, non-finite
// coordinates, and self-intersecting rings. Failures are CONFIGURATION errors.
func Validate(s Shape) error {
	if len(s.Parts) == 0 {
		return errors.Configuration("boundary has no polygons")
	}
	for pi, p := range s.Parts {
		if err := validateRing(p.Exterior); err != nil {
			return errors.Wrapf(err, errors.CodeConfiguration, "part %d exterior", pi)
		}
		for hi, h := range p.Holes {
			if err := validateRing(h); err != nil {
				return errors.Wrapf(err, errors.CodeConfiguration, "part %d hole %d", pi, hi)
			}
		}
	}
	return nil
}

func validateRing(r Ring) error {
	for i, p := range r {
		if !finite(p) {
			return errors.Configurationf("vertex %d is not finite", i)
		}
	}
	distinct := slices.Clone(r)
	slices.SortFunc(distinct, func(a, b orb.Point) int {
		if c := cmpFloat(a[0], b[0]); c != 0 {
			return c
		}
		return cmpFloat(a[1], b[1])
	})
	distinct = slices.Compact(distinct)
	if len(distinct) < 3 {
		return errors.Configurationf("ring has %d distinct vertices", len(distinct))
	}
	if r.SignedArea() == 0 {
		return errors.Configuration("ring has zero area")
	}
	if i, j, ok := selfIntersection(r); ok {
		return errors.Configurationf("ring is self-intersecting at edges %d and %d", i, j)
	}
	return nil
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

type edge struct {
	idx        int
	a, b       orb.Point
	minX, maxX float64
}

// selfIntersection sweeps edges sorted by left x and tests each pair whose x
// ranges overlap. Adjacent edges may share their common vertex but must not
// fold back over each other.
func selfIntersection(r Ring) (int, int, bool) {
	n := len(r)
	edges := make([]edge, n)
	for i := range n {
		a, b := r[i], r[(i+1)%n]
		edges[i] = edge{idx: i, a: a, b: b, minX: math.Min(a[0], b[0]), maxX: math.Max(a[0], b[0])}
	}
	slices.SortFunc(edges, func(x, y edge) int {
		if c := cmpFloat(x.minX, y.minX); c != 0 {
			return c
		}
		return x.idx - y.idx
	})

	for i := range edges {
		e := edges[i]
		for j := i + 1; j < n && edges[j].minX <= e.maxX; j++ {
			f := edges[j]
			lo, hi := min(e.idx, f.idx), max(e.idx, f.idx)
			adjacent := hi-lo == 1 || (lo == 0 && hi == n-1)
			if adjacent {
				if foldsBack(e, f) {
					return lo, hi, true
				}
				continue
			}
			if segmentsIntersect(e.a, e.b, f.a, f.b) {
				return lo, hi, true
			}
		}
	}
	return 0, 0, false
}

// foldsBack reports whether two edges sharing a vertex overlap along a line.
func foldsBack(e, f edge) bool {
	var shared, p, q orb.Point
	switch {
	case e.b == f.a:
		shared, p, q = e.b, e.a, f.b
	case f.b == e.a:
		shared, p, q = e.a, f.a, e.b
	default:
		return segmentsIntersect(e.a, e.b, f.a, f.b)
	}
	if cross(p, shared, q) != 0 {
		return false
	}
	dot := float64((p[0]-shared[0])*(q[0]-shared[0])) + float64((p[1]-shared[1])*(q[1]-shared[1]))
	return dot > 0
}

// segmentsIntersect reports whether closed segments ab and cd share a point.
func segmentsIntersect(a, b, c, d orb.Point) bool {
	if math.Max(a[1], b[1]) < math.Min(c[1], d[1]) || math.Max(c[1], d[1]) < math.Min(a[1], b[1]) {
		return false
	}
	d1 := sign(cross(c, d, a))
	d2 := sign(cross(c, d, b))
	d3 := sign(cross(a, b, c))
	d4 := sign(cross(a, b, d))
	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}
	return (d1 == 0 && onSegment(c, d, a)) ||
		(d2 == 0 && onSegment(c, d, b)) ||
		(d3 == 0 && onSegment(a, b, c)) ||
		(d4 == 0 && onSegment(a, b, d))
}

func onSegment(a, b, p orb.Point) bool {
	return p[0] >= math.Min(a[0], b[0]) && p[0] <= math.Max(a[0], b[0]) &&
		p[1] >= math.Min(a[1], b[1]) && p[1] <= math.Max(a[1], b[1])
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

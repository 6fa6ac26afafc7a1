// Package geo holds the planar polygon model and the pure geometry operations
// the territory engine is built on: orientation normalization, half-plane
// clipping of polygons with holes, validation, and projection.
//
// Shapes are immutable values. Every operation returns a new Shape.
package geo

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Ring is a simple closed ring stored without the repeated closing vertex.
type Ring []orb.Point

// Part is one connected polygon: an exterior ring and the holes cut out of it.
// After Normalize, exteriors wind counter-clockwise and holes clockwise.
type Part struct {
	Exterior Ring
	Holes    []Ring
}

// Shape is a multi-part polygon, e.g. a mainland plus its islands.
type Shape struct {
	Parts []Part
}

// SignedArea is the shoelace area; positive for counter-clockwise rings.
func (r Ring) SignedArea() float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	// Offsetting to the first vertex keeps large projected coordinates precise.
	ox, oy := r[0][0], r[0][1]
	var sum float64
	for i := 1; i < n-1; i++ {
		x1, y1 := r[i][0]-ox, r[i][1]-oy
		x2, y2 := r[i+1][0]-ox, r[i+1][1]-oy
		sum += float64(x1*y2) - float64(x2*y1)
	}
	return sum / 2
}

// Bound returns the ring's bounding box.
func (r Ring) Bound() orb.Bound {
	if len(r) == 0 {
		return orb.Bound{}
	}
	b := orb.Bound{Min: r[0], Max: r[0]}
	for _, p := range r[1:] {
		b = b.Extend(p)
	}
	return b
}

// Closed returns the ring in orb's closed form, first vertex repeated at the end.
func (r Ring) Closed() orb.Ring {
	out := make(orb.Ring, 0, len(r)+1)
	out = append(out, r...)
	if len(r) > 0 {
		out = append(out, r[0])
	}
	return out
}

// Reversed returns a copy of r with the opposite winding.
func (r Ring) Reversed() Ring {
	out := slices.Clone(r)
	slices.Reverse(out)
	return out
}

// oriented returns r wound counter-clockwise when ccw is true, clockwise otherwise.
func (r Ring) oriented(ccw bool) Ring {
	if (r.SignedArea() > 0) == ccw {
		return slices.Clone(r)
	}
	return r.Reversed()
}

// Contains reports whether p lies inside or on r.
func (r Ring) Contains(p orb.Point) bool {
	return planar.RingContains(r.Closed(), p)
}

// Area is the exterior area minus hole areas.
func (p Part) Area() float64 {
	a := math.Abs(p.Exterior.SignedArea())
	for _, h := range p.Holes {
		a -= math.Abs(h.SignedArea())
	}
	return a
}

// Contains reports whether pt lies in the part. Points on any ring count as inside.
func (p Part) Contains(pt orb.Point) bool {
	if !p.Exterior.Contains(pt) {
		return false
	}
	for _, h := range p.Holes {
		if h.Contains(pt) && !onRing(h, pt) {
			return false
		}
	}
	return true
}

// Area is the total area of all parts.
func (s Shape) Area() float64 {
	var a float64
	for _, p := range s.Parts {
		a += p.Area()
	}
	return a
}

// IsEmpty reports whether the shape has no parts.
func (s Shape) IsEmpty() bool {
	return len(s.Parts) == 0
}

// Bound returns the bounding box of every exterior ring.
func (s Shape) Bound() orb.Bound {
	var b orb.Bound
	for i, p := range s.Parts {
		pb := p.Exterior.Bound()
		if i == 0 {
			b = pb
			continue
		}
		b = b.Union(pb)
	}
	return b
}

// Diagonal is the length of the bounding box diagonal.
func (s Shape) Diagonal() float64 {
	b := s.Bound()
	return math.Hypot(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
}

// Contains reports whether pt lies in any part, boundary inclusive.
func (s Shape) Contains(pt orb.Point) bool {
	for _, p := range s.Parts {
		if p.Exterior.Bound().Contains(pt) && p.Contains(pt) {
			return true
		}
	}
	return false
}

// Centroid returns the area-weighted centroid. The zero point is returned for
// empty shapes.
func (s Shape) Centroid() orb.Point {
	c, _ := planar.CentroidArea(s.MultiPolygon())
	return c
}

// NumVertices counts vertices across all rings.
func (s Shape) NumVertices() int {
	var n int
	for _, p := range s.Parts {
		n += len(p.Exterior)
		for _, h := range p.Holes {
			n += len(h)
		}
	}
	return n
}

// Normalize orients exteriors counter-clockwise and holes clockwise, and
// orders parts by descending area so output is stable regardless of input order.
func (s Shape) Normalize() Shape {
	parts := make([]Part, 0, len(s.Parts))
	for _, p := range s.Parts {
		np := Part{Exterior: p.Exterior.oriented(true)}
		for _, h := range p.Holes {
			np.Holes = append(np.Holes, h.oriented(false))
		}
		parts = append(parts, np)
	}
	slices.SortStableFunc(parts, func(a, b Part) int {
		return cmpFloat(b.Area(), a.Area())
	})
	return Shape{Parts: parts}
}

// Map applies fn to every vertex.
func (s Shape) Map(fn func(orb.Point) orb.Point) Shape {
	mapRing := func(r Ring) Ring {
		out := make(Ring, len(r))
		for i, p := range r {
			out[i] = fn(p)
		}
		return out
	}
	parts := make([]Part, len(s.Parts))
	for i, p := range s.Parts {
		parts[i].Exterior = mapRing(p.Exterior)
		for _, h := range p.Holes {
			parts[i].Holes = append(parts[i].Holes, mapRing(h))
		}
	}
	return Shape{Parts: parts}
}

// MultiPolygon converts to orb's closed-ring representation.
func (s Shape) MultiPolygon() orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(s.Parts))
	for _, p := range s.Parts {
		poly := orb.Polygon{p.Exterior.Closed()}
		for _, h := range p.Holes {
			poly = append(poly, h.Closed())
		}
		mp = append(mp, poly)
	}
	return mp
}

// Geometry returns a Polygon for single-part shapes and a MultiPolygon otherwise.
func (s Shape) Geometry() orb.Geometry {
	mp := s.MultiPolygon()
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}

// FromOrb builds a Shape from an orb Polygon, MultiPolygon, or Bound. The
// first ring of each polygon is its exterior and the rest are holes, as in
// GeoJSON. Closing vertices and consecutive duplicates are dropped; winding
// is left untouched until Normalize.
func FromOrb(g orb.Geometry) (Shape, bool) {
	switch g := g.(type) {
	case orb.Polygon:
		return Shape{Parts: []Part{partFromPolygon(g)}}, true
	case orb.MultiPolygon:
		s := Shape{Parts: make([]Part, 0, len(g))}
		for _, poly := range g {
			s.Parts = append(s.Parts, partFromPolygon(poly))
		}
		return s, true
	case orb.Bound:
		return Rect(g), true
	default:
		return Shape{}, false
	}
}

func partFromPolygon(poly orb.Polygon) Part {
	var p Part
	for i, r := range poly {
		ring := openRing(r)
		if i == 0 {
			p.Exterior = ring
			continue
		}
		p.Holes = append(p.Holes, ring)
	}
	return p
}

func openRing(r orb.Ring) Ring {
	out := make(Ring, 0, len(r))
	for _, p := range r {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// Rect returns the axis-aligned rectangle b as a counter-clockwise single-part shape.
func Rect(b orb.Bound) Shape {
	return Shape{Parts: []Part{{Exterior: RectRing(b)}}}
}

// RectRing returns b as a counter-clockwise ring.
func RectRing(b orb.Bound) Ring {
	return Ring{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// onRing reports whether p lies exactly on one of r's edges.
func onRing(r Ring, p orb.Point) bool {
	n := len(r)
	for i := range n {
		a, b := r[i], r[(i+1)%n]
		if cross(a, b, p) != 0 {
			continue
		}
		if p[0] >= math.Min(a[0], b[0]) && p[0] <= math.Max(a[0], b[0]) &&
			p[1] >= math.Min(a[1], b[1]) && p[1] <= math.Max(a[1], b[1]) {
			return true
		}
	}
	return false
}

// cross is the z component of (b-a)×(c-a). Each product is rounded before the
// subtraction so the result does not depend on FMA contraction.
func cross(a, b, c orb.Point) float64 {
	return float64((b[0]-a[0])*(c[1]-a[1])) - float64((b[1]-a[1])*(c[0]-a[0]))
}

package geo

import (
	"math"
	"slices"
	"sort"

	"github.com/paulmach/orb"
)

// HalfPlane is the closed region A·x + B·y <= C.
type HalfPlane struct {
	A, B, C float64
	norm    float64
}

// NewHalfPlane builds the half-plane A·x + B·y <= C.
func NewHalfPlane(a, b, c float64) HalfPlane {
	return HalfPlane{A: a, B: b, C: c, norm: math.Hypot(a, b)}
}

// Bisector returns the half-plane of points at least as close to p as to q.
// Bisector(q, p) is the exact negation of Bisector(p, q), so neighbouring
// cells classify every vertex with opposite signs and no rounding skew.
func Bisector(p, q orb.Point) HalfPlane {
	a := q[0] - p[0]
	b := q[1] - p[1]
	mx := (p[0] + q[0]) / 2
	my := (p[1] + q[1]) / 2
	return NewHalfPlane(a, b, float64(a*mx)+float64(b*my))
}

// Distance is the signed distance from pt to the half-plane's line, negative inside.
func (h HalfPlane) Distance(pt orb.Point) float64 {
	if h.norm == 0 {
		return math.Inf(-1)
	}
	s := float64(h.A*pt[0]) + float64(h.B*pt[1]) - h.C
	return s / h.norm
}

// along parameterizes points on the line in the direction that keeps the
// inside on the left.
func (h HalfPlane) along(pt orb.Point) float64 {
	return float64(-h.B*pt[0]) + float64(h.A*pt[1])
}

// boundPlanes returns the four half-planes whose intersection is b.
func boundPlanes(b orb.Bound) []HalfPlane {
	return []HalfPlane{
		NewHalfPlane(1, 0, b.Max[0]),
		NewHalfPlane(-1, 0, -b.Min[0]),
		NewHalfPlane(0, 1, b.Max[1]),
		NewHalfPlane(0, -1, -b.Min[1]),
	}
}

// ClipConvex clips a convex ring to h with Sutherland–Hodgman. Vertices
// within eps of the line are kept. Returns nil when nothing remains.
func ClipConvex(r Ring, h HalfPlane, eps float64) Ring {
	n := len(r)
	if n == 0 {
		return nil
	}
	d := make([]float64, n)
	inside := 0
	for i, p := range r {
		d[i] = snap(h.Distance(p), eps)
		if d[i] <= 0 {
			inside++
		}
	}
	if inside == n {
		return r
	}
	if inside == 0 {
		return nil
	}

	out := make(Ring, 0, n+1)
	for i := range n {
		j := (i + 1) % n
		if d[i] <= 0 {
			out = append(out, r[i])
		}
		if (d[i] < 0 && d[j] > 0) || (d[i] > 0 && d[j] < 0) {
			out = append(out, lerp(r[i], r[j], d[i]/(d[i]-d[j])))
		}
	}
	out = cleanRing(out, eps)
	if len(out) < 3 {
		return nil
	}
	return out
}

// ClipShape intersects s with h. Holes and disconnected parts are preserved;
// a part cut in two by the line comes back as two parts.
//
// Vertices within eps of the line are treated as outside, which is the limit
// of shifting the line inward by an infinitesimal amount. Every surviving
// boundary run then starts and ends on the line, and runs are joined by
// walking along the line to the next entry point.
func ClipShape(s Shape, h HalfPlane, tol Tolerance) Shape {
	var (
		whole  []Ring
		chains []chain
	)
	for _, part := range s.Parts {
		for i := -1; i < len(part.Holes); i++ {
			r := part.Exterior
			if i >= 0 {
				r = part.Holes[i]
			}
			ws, cs := splitRing(r, h, tol.Eps)
			if ws != nil {
				whole = append(whole, ws)
			}
			chains = append(chains, cs...)
		}
	}
	if len(chains) == 0 && len(whole) == s.ringCount() {
		return s
	}
	rings := stitch(chains, h, tol.Eps)
	rings = append(rings, whole...)
	return assemble(rings, tol)
}

// ClipShapeToPlanes intersects s with every half-plane in turn.
func ClipShapeToPlanes(s Shape, planes []HalfPlane, tol Tolerance) Shape {
	for _, h := range planes {
		if s.IsEmpty() {
			break
		}
		s = ClipShape(s, h, tol)
	}
	return s
}

// ClipShapeToBound intersects s with the axis-aligned box b.
func ClipShapeToBound(s Shape, b orb.Bound, tol Tolerance) Shape {
	keep := make([]Part, 0, len(s.Parts))
	for _, p := range s.Parts {
		if p.Exterior.Bound().Intersects(b) {
			keep = append(keep, p)
		}
	}
	return ClipShapeToPlanes(Shape{Parts: keep}, boundPlanes(b), tol)
}

func (s Shape) ringCount() int {
	n := 0
	for _, p := range s.Parts {
		n += 1 + len(p.Holes)
	}
	return n
}

type chain struct {
	pts     Ring
	entryAt float64
	exitAt  float64
}

// splitRing returns r unchanged when it lies strictly inside h, nothing when
// no vertex is strictly inside, and otherwise the inside runs of r.
func splitRing(r Ring, h HalfPlane, eps float64) (Ring, []chain) {
	n := len(r)
	d := make([]float64, n)
	start := -1
	inside := 0
	for i, p := range r {
		d[i] = snap(h.Distance(p), eps)
		if d[i] < 0 {
			inside++
		} else if start < 0 {
			start = i
		}
	}
	if inside == n {
		return r, nil
	}
	if inside == 0 {
		return nil, nil
	}

	var (
		chains []chain
		cur    Ring
	)
	for k := range n {
		i := (start + k) % n
		j := (i + 1) % n
		if d[i] >= 0 && d[j] < 0 {
			entry := r[i]
			if d[i] > 0 {
				entry = lerp(r[i], r[j], d[i]/(d[i]-d[j]))
			}
			cur = Ring{entry}
		}
		if d[j] < 0 {
			cur = append(cur, r[j])
		}
		if d[i] < 0 && d[j] >= 0 {
			exit := r[j]
			if d[j] > 0 {
				exit = lerp(r[i], r[j], d[i]/(d[i]-d[j]))
			}
			cur = append(cur, exit)
			chains = append(chains, chain{
				pts:     cur,
				entryAt: h.along(cur[0]),
				exitAt:  h.along(exit),
			})
			cur = nil
		}
	}
	return nil, chains
}

// stitch joins chains into closed rings. From each exit point the boundary
// continues along the line to the nearest entry point ahead of it.
func stitch(chains []chain, h HalfPlane, eps float64) []Ring {
	if len(chains) == 0 {
		return nil
	}
	order := make([]int, len(chains))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return chains[order[a]].entryAt < chains[order[b]].entryAt
	})

	slack := eps * h.norm
	used := make([]bool, len(chains))
	next := func(at float64, first int) int {
		k := sort.Search(len(order), func(i int) bool {
			return chains[order[i]].entryAt >= at-slack
		})
		for ; k < len(order); k++ {
			c := order[k]
			if !used[c] || c == first {
				return c
			}
		}
		return first
	}

	var rings []Ring
	for first := range chains {
		if used[first] {
			continue
		}
		var ring Ring
		c := first
		for {
			used[c] = true
			ring = append(ring, chains[c].pts...)
			c = next(chains[c].exitAt, first)
			if c == first {
				break
			}
		}
		rings = append(rings, ring)
	}
	return rings
}

// assemble classifies rings by winding and nests each hole in the smallest
// exterior that contains it.
func assemble(rings []Ring, tol Tolerance) Shape {
	type ext struct {
		ring Ring
		area float64
		b    orb.Bound
	}
	var (
		exteriors []ext
		holes     []Ring
	)
	for _, r := range rings {
		r = cleanRing(r, tol.Eps)
		if len(r) < 3 {
			continue
		}
		a := r.SignedArea()
		switch {
		case math.Abs(a) <= tol.MinArea:
		case a > 0:
			exteriors = append(exteriors, ext{ring: r, area: a, b: r.Bound()})
		default:
			holes = append(holes, r)
		}
	}

	slices.SortStableFunc(exteriors, func(x, y ext) int { return cmpFloat(x.area, y.area) })
	parts := make([]Part, len(exteriors))
	for i, e := range exteriors {
		parts[i].Exterior = e.ring
	}

	for _, hole := range holes {
		hb := hole.Bound()
		for i, e := range exteriors {
			if !e.b.Contains(hb.Min) || !e.b.Contains(hb.Max) {
				continue
			}
			if holeInside(hole, e.ring) {
				parts[i].Holes = append(parts[i].Holes, hole)
				break
			}
		}
	}
	return Shape{Parts: parts}.Normalize()
}

// holeInside tests the first hole vertex that is not on the exterior's edge.
func holeInside(hole, exterior Ring) bool {
	for _, p := range hole {
		if onRing(exterior, p) {
			continue
		}
		return exterior.Contains(p)
	}
	return true
}

// cleanRing drops repeated vertices and zero-width spikes.
func cleanRing(r Ring, eps float64) Ring {
	out := make(Ring, 0, len(r))
	for _, p := range r {
		if len(out) > 0 && near(out[len(out)-1], p, eps) {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && near(out[0], out[len(out)-1], eps) {
		out = out[:len(out)-1]
	}

	for changed := true; changed && len(out) >= 3; {
		changed = false
		for i := 0; i < len(out) && len(out) >= 3; i++ {
			a := out[(i+len(out)-1)%len(out)]
			b := out[i]
			c := out[(i+1)%len(out)]
			if isSpike(a, b, c, eps) {
				out = slices.Delete(out, i, i+1)
				changed = true
				i--
			}
		}
	}
	return out
}

// isSpike reports whether b is a collinear backtrack between a and c.
func isSpike(a, b, c orb.Point, eps float64) bool {
	l := math.Hypot(c[0]-a[0], c[1]-a[1])
	if math.Abs(cross(a, b, c)) > eps*math.Max(l, math.Hypot(b[0]-a[0], b[1]-a[1])) {
		return false
	}
	dot := float64((b[0]-a[0])*(c[0]-b[0])) + float64((b[1]-a[1])*(c[1]-b[1]))
	return dot <= 0
}

func near(a, b orb.Point, eps float64) bool {
	return math.Abs(a[0]-b[0]) <= eps && math.Abs(a[1]-b[1]) <= eps
}

func snap(d, eps float64) float64 {
	if math.Abs(d) <= eps {
		return 0
	}
	return d
}

func lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}

package geo

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
)

// Dissolve merges shapes that meet along shared edges into one shape with
// those edges removed, e.g. all cells of one league. Vertices within tol.Eps
// of each other count as one, and a vertex lying on another ring's edge
// splits that edge. If the merged rings do not keep the inputs' total area
// the parts are returned side by side instead.
func Dissolve(shapes []Shape, tol Tolerance) Shape {
	var (
		all  Shape
		want float64
	)
	for _, s := range shapes {
		n := s.Normalize()
		all.Parts = append(all.Parts, n.Parts...)
		want += n.Area()
	}
	all = all.Normalize()
	if len(all.Parts) < 2 || tol.Eps <= 0 {
		return all
	}

	g := newEdgeGraph(tol.Eps)
	for _, p := range all.Parts {
		g.addRing(p.Exterior)
		for _, h := range p.Holes {
			g.addRing(h)
		}
	}
	g.splitEdges()
	rings, ok := g.trace()
	if !ok {
		return all
	}
	out := assemble(rings, tol)
	if math.Abs(out.Area()-want) > 1e-6*want {
		return all
	}
	return out
}

// arc is a directed edge between vertex ids.
type arc struct{ from, to int }

type edgeGraph struct {
	eps   float64
	pts   []orb.Point
	index map[[2]int64]int
	rings [][]int
}

func newEdgeGraph(eps float64) *edgeGraph {
	return &edgeGraph{eps: eps, index: make(map[[2]int64]int)}
}

// vertex returns the id of the vertex within eps of p, adding p if there is
// none. Buckets are eps wide, so a near vertex is in p's bucket or a
// neighbouring one.
func (g *edgeGraph) vertex(p orb.Point) int {
	k := [2]int64{int64(math.Floor(p[0] / g.eps)), int64(math.Floor(p[1] / g.eps))}
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			if id, ok := g.index[[2]int64{k[0] + dx, k[1] + dy}]; ok && near(g.pts[id], p, g.eps) {
				return id
			}
		}
	}
	id := len(g.pts)
	g.pts = append(g.pts, p)
	g.index[k] = id
	return id
}

func (g *edgeGraph) addRing(r Ring) {
	ids := make([]int, 0, len(r))
	for _, p := range r {
		id := g.vertex(p)
		if len(ids) > 0 && ids[len(ids)-1] == id {
			continue
		}
		ids = append(ids, id)
	}
	for len(ids) > 1 && ids[0] == ids[len(ids)-1] {
		ids = ids[:len(ids)-1]
	}
	if len(ids) >= 3 {
		g.rings = append(g.rings, ids)
	}
}

// splitEdges inserts every vertex that lies on an edge's interior into it.
func (g *edgeGraph) splitEdges() {
	for ri, r := range g.rings {
		out := make([]int, 0, len(r))
		for i, a := range r {
			out = append(out, a)
			out = append(out, g.between(a, r[(i+1)%len(r)])...)
		}
		g.rings[ri] = out
	}
}

func (g *edgeGraph) between(a, b int) []int {
	pa, pb := g.pts[a], g.pts[b]
	dx, dy := pb[0]-pa[0], pb[1]-pa[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return nil
	}
	box := orb.Bound{
		Min: orb.Point{math.Min(pa[0], pb[0]) - g.eps, math.Min(pa[1], pb[1]) - g.eps},
		Max: orb.Point{math.Max(pa[0], pb[0]) + g.eps, math.Max(pa[1], pb[1]) + g.eps},
	}

	type hit struct {
		id int
		t  float64
	}
	var hits []hit
	for id, p := range g.pts {
		if id == a || id == b || !box.Contains(p) {
			continue
		}
		t := ((p[0]-pa[0])*dx + (p[1]-pa[1])*dy) / l2
		if t <= 0 || t >= 1 {
			continue
		}
		if math.Abs(cross(pa, pb, p)) > g.eps*math.Sqrt(l2) {
			continue
		}
		hits = append(hits, hit{id: id, t: t})
	}
	slices.SortFunc(hits, func(x, y hit) int { return cmpFloat(x.t, y.t) })
	ids := make([]int, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids
}

// trace cancels edges that appear once in each direction and walks what is
// left into closed rings. At a vertex with several ways out it takes the
// sharpest left turn, which keeps rings that only touch at a point apart.
// It fails if a walk reaches a vertex with no way out.
func (g *edgeGraph) trace() ([]Ring, bool) {
	count := make(map[arc]int)
	var order []arc
	for _, r := range g.rings {
		for i, a := range r {
			e := arc{a, r[(i+1)%len(r)]}
			if e.from == e.to {
				continue
			}
			if rev := (arc{e.to, e.from}); count[rev] > 0 {
				count[rev]--
				continue
			}
			count[e]++
			order = append(order, e)
		}
	}

	out := make(map[int][]int)
	var remaining []arc
	for _, e := range order {
		if count[e] == 0 {
			continue
		}
		count[e]--
		out[e.from] = append(out[e.from], len(remaining))
		remaining = append(remaining, e)
	}

	used := make([]bool, len(remaining))
	var rings []Ring
	for start := range remaining {
		if used[start] {
			continue
		}
		used[start] = true
		e := remaining[start]
		ring := Ring{g.pts[e.from]}
		for steps := 0; e.to != remaining[start].from; steps++ {
			if steps > len(remaining) {
				return nil, false
			}
			ring = append(ring, g.pts[e.to])
			next, ok := g.leftmost(e.from, e.to, out[e.to], remaining, used)
			if !ok {
				return nil, false
			}
			used[next] = true
			e = remaining[next]
		}
		rings = append(rings, ring)
	}
	return rings, true
}

// leftmost picks the unused edge out of v that turns furthest left coming
// from u. Going straight back is the last resort.
func (g *edgeGraph) leftmost(u, v int, candidates []int, edges []arc, used []bool) (int, bool) {
	pu, pv := g.pts[u], g.pts[v]
	dx, dy := pv[0]-pu[0], pv[1]-pu[1]
	best, bestTurn := -1, math.Inf(-1)
	for _, c := range candidates {
		if used[c] {
			continue
		}
		to := edges[c].to
		turn := -math.Pi
		if to != u {
			pw := g.pts[to]
			wx, wy := pw[0]-pv[0], pw[1]-pv[1]
			turn = math.Atan2(dx*wy-dy*wx, dx*wx+dy*wy)
		}
		if turn > bestTurn {
			best, bestTurn = c, turn
		}
	}
	return best, best >= 0
}

// Package territory partitions a boundary into per-team catchment areas:
// each point of the boundary belongs to the nearest club.
package territory

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/paulmach/orb"

	"github.com/rugbymap/rugbymap/internal/boundary"
	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/geo"
	"github.com/rugbymap/rugbymap/internal/logger"
)

const (
	DefaultMarginFactor   = 1.0
	DefaultJitterFraction = 1e-6
)

// Options tunes tessellation.
type Options struct {
	Projection geo.Projector
	// MarginFactor pads the boundary's bounding box by this multiple of its
	// larger side to form the working rectangle.
	MarginFactor float64
	// JitterFraction sets the radius coincident points are spread over, as
	// a fraction of the working rectangle's diagonal.
	JitterFraction float64
}

func (o Options) withDefaults() Options {
	if o.Projection == nil {
		o.Projection = geo.Mercator{}
	}
	if o.MarginFactor <= 0 {
		o.MarginFactor = DefaultMarginFactor
	}
	if o.JitterFraction <= 0 {
		o.JitterFraction = DefaultJitterFraction
	}
	return o
}

// Engine computes territory layers. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts Options, log *slog.Logger) *Engine {
	return &Engine{opts: opts.withDefaults(), logger: logger.OrDiscard(log)}
}

type site struct {
	point domain.ClubPoint
	at    orb.Point
}

// ComputeLayer tessellates points over b. The result is a pure function of
// its inputs: the same points and boundary give bit-identical cells. A
// malformed boundary is a CONFIGURATION error; bad points are excluded from
// the layer and recorded on it.
func (e *Engine) ComputeLayer(points []domain.ClubPoint, b *boundary.Boundary) (*domain.TerritoryLayer, error) {
	if b == nil {
		return nil, errors.Configuration("no boundary")
	}
	proj := e.opts.Projection
	for _, p := range b.Shape.Parts {
		for _, v := range p.Exterior {
			if !proj.Valid(v) {
				return nil, errors.Configurationf("boundary vertex %v cannot be projected with %s", v, proj.Name())
			}
		}
	}
	shape := geo.Project(b.Shape, proj)
	if err := geo.Validate(shape); err != nil {
		return nil, err
	}
	shape = shape.Normalize()

	layer := &domain.TerritoryLayer{BoundaryUsed: b.Name, Cells: []domain.TerritoryCell{}}
	tol := geo.ToleranceFor(shape.Diagonal())
	rect := e.workingRect(shape.Bound())

	sites := e.admit(points, rect, layer)
	if len(sites) == 0 {
		layer.Warnings = append(layer.Warnings, "no points to tessellate")
		return layer, nil
	}

	sites = e.separate(sites, rect, layer)

	var cells []geo.Shape
	if len(sites) == 1 {
		cells = []geo.Shape{shape}
	} else {
		at := make([]orb.Point, len(sites))
		for i, s := range sites {
			at[i] = s.at
		}
		for _, c := range geo.Voronoi(at, rect, tol.Eps) {
			cells = append(cells, geo.ClipToCell(shape, c, tol))
		}
	}

	for i, s := range sites {
		layer.Cells = append(layer.Cells, e.cell(s, cells[i], proj))
	}
	layer.Leagues = leagues(sites, cells, proj, tol)
	slices.SortFunc(layer.Cells, func(a, b domain.TerritoryCell) int {
		return cmp.Compare(a.TeamKey, b.TeamKey)
	})
	return layer, nil
}

func (e *Engine) workingRect(b orb.Bound) orb.Bound {
	pad := e.opts.MarginFactor * math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	return orb.Bound{
		Min: orb.Point{b.Min[0] - pad, b.Min[1] - pad},
		Max: orb.Point{b.Max[0] + pad, b.Max[1] + pad},
	}
}

// admit projects valid points, sorted by team key, and records the rest as
// exclusions. A team listed twice keeps its first entry.
func (e *Engine) admit(points []domain.ClubPoint, rect orb.Bound, layer *domain.TerritoryLayer) []site {
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b domain.ClubPoint) int {
		return cmp.Compare(a.Club.TeamKey(), b.Club.TeamKey())
	})

	sites := make([]site, 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, p := range sorted {
		key := p.Club.TeamKey()
		ll := p.Coordinate.Point()
		switch {
		case seen[key]:
			layer.Warnings = append(layer.Warnings, fmt.Sprintf("duplicate team %s ignored", key))
			continue
		case !e.opts.Projection.Valid(ll):
			exclude(layer, p, errors.Validationf("coordinate %v,%v out of range", p.Coordinate.Latitude, p.Coordinate.Longitude))
			continue
		}
		seen[key] = true
		at := e.opts.Projection.Forward(ll)
		if !rect.Contains(at) {
			exclude(layer, p, errors.Validation("outside the working area"))
			continue
		}
		sites = append(sites, site{point: p, at: at})
	}
	return sites
}

// separate spreads coincident sites on a small circle so every cell is
// well defined. Sites are in team-key order, so the spread is deterministic.
// If every site is at the same place the first one keeps the whole boundary
// and the rest are excluded.
func (e *Engine) separate(sites []site, rect orb.Bound, layer *domain.TerritoryLayer) []site {
	groups := make(map[orb.Point][]int)
	var order []orb.Point
	for i, s := range sites {
		if _, ok := groups[s.at]; !ok {
			order = append(order, s.at)
		}
		groups[s.at] = append(groups[s.at], i)
	}
	if len(order) == len(sites) {
		return sites
	}

	if len(order) == 1 {
		keeper := sites[0].point.Club.TeamKey()
		for _, s := range sites[1:] {
			exclude(layer, s.point, errors.Degeneratef("all points coincide; %s holds the boundary", keeper))
		}
		layer.Warnings = append(layer.Warnings, "all points coincide; one cell covers the boundary")
		return sites[:1]
	}

	radius := e.opts.JitterFraction * math.Hypot(rect.Max[0]-rect.Min[0], rect.Max[1]-rect.Min[1])
	out := slices.Clone(sites)
	for _, at := range order {
		idx := groups[at]
		if len(idx) < 2 {
			continue
		}
		k := float64(len(idx))
		for m, i := range idx {
			theta := 2 * math.Pi * float64(m) / k
			out[i].at = orb.Point{at[0] + radius*math.Cos(theta), at[1] + radius*math.Sin(theta)}
		}
		layer.Warnings = append(layer.Warnings, fmt.Sprintf("%d teams share a location; spread by %.3g", len(idx), radius))
	}

	// Spreading can in principle land on another site.
	taken := make(map[orb.Point]bool, len(out))
	kept := out[:0]
	for _, s := range out {
		if taken[s.at] {
			exclude(layer, s.point, errors.Degeneratef("coincides with another team after spreading"))
			continue
		}
		taken[s.at] = true
		kept = append(kept, s)
	}
	return kept
}

func (e *Engine) cell(s site, shape geo.Shape, proj geo.Projector) domain.TerritoryCell {
	rec := s.point.Club
	c := domain.TerritoryCell{
		ClubKey:  rec.ClubKey(),
		TeamKey:  rec.TeamKey(),
		Name:     rec.Name,
		LeagueID: rec.LeagueID,
		Tier:     rec.Tier,
		Division: rec.DivisionOf(),
		ImageURL: rec.ImageURL,
		Site:     s.point.Coordinate.Point(),
	}
	if shape.IsEmpty() {
		c.Empty = true
		return c
	}
	c.Area = shape.Area()
	c.Centroid = proj.Inverse(shape.Centroid())
	c.Polygon = geo.Unproject(shape, proj)
	return c
}

func exclude(layer *domain.TerritoryLayer, p domain.ClubPoint, err *errors.Error) {
	layer.Excluded = append(layer.Excluded, domain.Exclusion{
		ClubKey:  p.Club.ClubKey(),
		TeamKey:  p.Club.TeamKey(),
		Name:     p.Club.Name,
		LeagueID: p.Club.LeagueID,
		Code:     string(err.Code),
		Reason:   err.Message,
	})
}

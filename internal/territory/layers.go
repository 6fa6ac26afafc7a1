package territory

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rugbymap/rugbymap/internal/boundary"
	"github.com/rugbymap/rugbymap/internal/domain"
)

// Observer is told how long each layer took.
type Observer interface {
	LayerComputed(groupingKey string, elapsed time.Duration, cells int)
}

// BuildRequest describes a set of layers for one season.
type BuildRequest struct {
	Season    string
	Points    []domain.ClubPoint
	Boundary  *boundary.Boundary
	Groupings []Grouping
	// Regions nests the regions points are tagged with. Optional.
	Regions RegionTree
	// Workers bounds how many layers are computed at once.
	Workers  int
	Observer Observer
}

// BuildLayers computes one layer per group of every grouping, in parallel.
// Groups that appear under several groupings are computed once. Layers
// come back in grouping order. The first layer error cancels the rest.
func (e *Engine) BuildLayers(ctx context.Context, req BuildRequest) ([]*domain.TerritoryLayer, error) {
	var groups []Group
	seen := make(map[string]bool)
	for _, g := range req.Groupings {
		gs, err := g.Partition(req.Points)
		if err != nil {
			return nil, err
		}
		for _, grp := range gs {
			if seen[grp.Key] {
				continue
			}
			seen[grp.Key] = true
			groups = append(groups, grp)
		}
	}

	layers := make([]*domain.TerritoryLayer, len(groups))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(req.Workers, 1))
	for i, grp := range groups {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			layer, err := e.ComputeLayer(grp.Points, req.Boundary)
			if err != nil {
				return err
			}
			layer.GroupingKey = grp.Key
			layer.Season = req.Season
			layer.Claims, layer.Contested = Claims(placed(grp.Points, layer), layer.BoundaryUsed, req.Regions)
			layers[i] = layer

			elapsed := time.Since(start)
			if req.Observer != nil {
				req.Observer.LayerComputed(grp.Key, elapsed, len(layer.Cells))
			}
			e.logger.Info("layer computed",
				"grouping", grp.Key,
				"cells", len(layer.Cells),
				"excluded", len(layer.Excluded),
				"elapsed", elapsed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return layers, nil
}

// placed keeps the points that have a cell in layer.
func placed(points []domain.ClubPoint, layer *domain.TerritoryLayer) []domain.ClubPoint {
	out := make([]domain.ClubPoint, 0, len(points))
	for _, p := range points {
		if _, ok := layer.Cell(p.Club.TeamKey()); ok {
			out = append(out, p)
		}
	}
	return out
}

// Package pipeline runs the stages end to end: league listings to
// addresses, addresses to coordinates, coordinates to territory layers.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/rugbymap/rugbymap/internal/address"
	"github.com/rugbymap/rugbymap/internal/boundary"
	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/geocode"
	"github.com/rugbymap/rugbymap/internal/id"
	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/resolve"
	"github.com/rugbymap/rugbymap/internal/source"
	"github.com/rugbymap/rugbymap/internal/stages"
	"github.com/rugbymap/rugbymap/internal/territory"
	"github.com/rugbymap/rugbymap/internal/travel"
)

// BoundaryLoader returns the boundary layers are clipped to.
type BoundaryLoader func() (*boundary.Boundary, error)

// RegionLoader returns the nested regions located teams are tagged with.
type RegionLoader func() (*boundary.Hierarchy, error)

// Options holds per-run settings.
type Options struct {
	Season       string
	Addresses    resolve.Options
	Geocoding    resolve.Options
	Groupings    []territory.Grouping
	LayerWorkers int
}

// Deps wires a Pipeline.
type Deps struct {
	Source    *source.LeagueFiles
	Addresses *address.Resolver
	Geocoder  *geocode.Resolver
	Engine    *territory.Engine
	Stages    *stages.Store
	Boundary  BoundaryLoader
	// Regions is optional; without it locations carry no regions and
	// layers report no region claims.
	Regions  RegionLoader
	Observer territory.Observer
	Logger   *slog.Logger
}

// Pipeline runs stages, persisting each stage's output so later stages
// can run on their own.
type Pipeline struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Pipeline.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps, logger: logger.OrDiscard(deps.Logger), now: time.Now}
}

// Addresses resolves every club in the season's listings and saves the
// outcome per league.
func (p *Pipeline) Addresses(ctx context.Context, opts Options) (*StageReport, error) {
	records, srcErrs := source.Collect(p.deps.Source.Records(opts.Season))
	if len(records) == 0 && len(srcErrs) > 0 {
		return nil, errors.Join(srcErrs...)
	}
	p.logger.Info("resolving addresses", "season", opts.Season, "records", len(records))

	results := p.deps.Addresses.Resolve(ctx, records, opts.Addresses)

	var leagues []stages.LeagueAddresses
	index := make(map[string]int)
	for _, rec := range records {
		i, ok := index[rec.LeagueID]
		if !ok {
			i = len(leagues)
			index[rec.LeagueID] = i
			leagues = append(leagues, stages.LeagueAddresses{LeagueID: rec.LeagueID, Season: opts.Season})
		}
		t := stages.TeamAddress{Record: rec}
		if r := results[rec.ClubKey()]; r.OK() {
			v := r.Value
			t.Address = &v
		} else if r.Err != nil {
			t.Error = r.Err.Error()
		}
		leagues[i].Teams = append(leagues[i].Teams, t)
	}
	if err := p.deps.Stages.SaveAddresses(leagues); err != nil {
		return nil, err
	}

	report := &StageReport{
		Stage:      domain.StageAddress,
		Season:     opts.Season,
		Records:    len(records),
		Summary:    resolve.Summarize(results),
		Unresolved: address.Unresolved(records, results),
	}
	for _, e := range srcErrs {
		report.SourceErrors = append(report.SourceErrors, e.Error())
	}
	if err := p.deps.Stages.SaveReport(opts.Season, string(domain.StageAddress), report); err != nil {
		return nil, err
	}
	return report, nil
}

// Geocode locates every resolved address from the saved address stage.
func (p *Pipeline) Geocode(ctx context.Context, opts Options) (*StageReport, error) {
	leagues, err := p.deps.Stages.LoadAddresses(opts.Season)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeOf(err), "run the address stage first")
	}

	var records []domain.ClubRecord
	addresses := make(map[string]resolve.Result[domain.NormalizedAddress])
	for _, l := range leagues {
		for _, t := range l.Teams {
			records = append(records, t.Record)
			if t.Address != nil {
				addresses[t.Record.ClubKey()] = resolve.Result[domain.NormalizedAddress]{
					Key:   t.Record.ClubKey(),
					Value: *t.Address,
					State: resolve.Succeeded,
				}
			}
		}
	}

	todo := geocode.Addresses(addresses)
	p.logger.Info("geocoding addresses", "season", opts.Season, "addresses", len(todo))
	coords := p.deps.Geocoder.Resolve(ctx, todo, opts.Geocoding)
	points, unresolved := geocode.Join(records, addresses, coords)

	located := make(map[string]domain.GeoCoordinate, len(points))
	for _, pt := range points {
		located[pt.Club.TeamKey()] = pt.Coordinate
	}
	failed := make(map[string]string, len(unresolved))
	for _, u := range unresolved {
		failed[teamRef(u.Name, u.LeagueID)] = u.Reason
	}

	regions := p.regions()
	out := make([]stages.LeagueLocations, 0, len(leagues))
	for _, l := range leagues {
		ll := stages.LeagueLocations{LeagueID: l.LeagueID, Season: l.Season}
		for _, t := range l.Teams {
			loc := stages.TeamLocation{Record: t.Record, Error: t.Error}
			if t.Address != nil {
				loc.Address = t.Address.RawText
			}
			if c, ok := located[t.Record.TeamKey()]; ok {
				loc.Coordinate = &c
				loc.Regions = regions.Locate(c.Point())
			} else if reason, ok := failed[teamRef(t.Record.Name, t.Record.LeagueID)]; ok {
				loc.Error = reason
			}
			ll.Teams = append(ll.Teams, loc)
		}
		out = append(out, ll)
	}
	if err := p.deps.Stages.SaveLocations(out); err != nil {
		return nil, err
	}

	report := &StageReport{
		Stage:      domain.StageGeocode,
		Season:     opts.Season,
		Records:    len(records),
		Summary:    resolve.Summarize(coords),
		Unresolved: unresolved,
	}
	if err := p.deps.Stages.SaveReport(opts.Season, string(domain.StageGeocode), report); err != nil {
		return nil, err
	}
	return report, nil
}

// regions loads the region hierarchy, falling back to an empty one so a
// missing region file never fails a stage.
func (p *Pipeline) regions() *boundary.Hierarchy {
	if p.deps.Regions == nil {
		return boundary.NewHierarchy()
	}
	h, err := p.deps.Regions()
	if err != nil {
		p.logger.Warn("regions unavailable, locations will not be tagged", "error", err)
		return boundary.NewHierarchy()
	}
	return h
}

func teamRef(name, leagueID string) string {
	return name + "|" + leagueID
}

// points loads the located teams of a season.
func (p *Pipeline) points(season string) ([]domain.ClubPoint, error) {
	leagues, err := p.deps.Stages.LoadLocations(season)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeOf(err), "run the geocode stage first")
	}
	var points []domain.ClubPoint
	for _, l := range leagues {
		points = append(points, l.Points()...)
	}
	return points, nil
}

// Territories builds and saves a layer for every configured grouping.
func (p *Pipeline) Territories(ctx context.Context, opts Options) (*TerritoryReport, error) {
	points, err := p.points(opts.Season)
	if err != nil {
		return nil, err
	}
	b, err := p.deps.Boundary()
	if err != nil {
		return nil, err
	}

	layers, err := p.deps.Engine.BuildLayers(ctx, territory.BuildRequest{
		Season:    opts.Season,
		Points:    points,
		Boundary:  b,
		Regions:   p.regions(),
		Groupings: opts.Groupings,
		Workers:   opts.LayerWorkers,
		Observer:  p.deps.Observer,
	})
	if err != nil {
		return nil, err
	}

	report := &TerritoryReport{Season: opts.Season, Boundary: b.Name, Points: len(points)}
	for _, l := range layers {
		if err := p.deps.Stages.SaveLayer(l); err != nil {
			return nil, err
		}
		report.Layers = append(report.Layers, summarizeLayer(l))
	}
	if err := p.deps.Stages.SaveReport(opts.Season, string(domain.StageTerritory), report); err != nil {
		return nil, err
	}
	return report, nil
}

// Travel computes and saves travel statistics from the geocode stage.
func (p *Pipeline) Travel(_ context.Context, opts Options) (*travel.Report, error) {
	points, err := p.points(opts.Season)
	if err != nil {
		return nil, err
	}
	r := travel.Compute(opts.Season, points)
	if err := p.deps.Stages.SaveTravel(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Run executes every stage in order. Clubs that fail to resolve never stop
// the run; they are listed in the report.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	r := &Report{RunID: id.Run(), Season: opts.Season, StartedAt: p.now().UTC()}
	log := p.logger.With("run_id", r.RunID, "season", opts.Season)
	log.Info("pipeline started")

	var err error
	if r.Addresses, err = p.Addresses(ctx, opts); err != nil {
		return nil, err
	}
	if r.Geocode, err = p.Geocode(ctx, opts); err != nil {
		return nil, err
	}
	if r.Territory, err = p.Territories(ctx, opts); err != nil {
		return nil, err
	}
	if _, err = p.Travel(ctx, opts); err != nil {
		return nil, err
	}

	r.Unresolved = append(r.Unresolved, r.Addresses.Unresolved...)
	r.Unresolved = append(r.Unresolved, r.Geocode.Unresolved...)
	r.Unresolved = append(r.Unresolved, r.Territory.Unresolved()...)
	r.FinishedAt = p.now().UTC()
	if err := p.deps.Stages.SaveReport(opts.Season, "run", r); err != nil {
		return nil, err
	}
	log.Info("pipeline finished",
		"layers", len(r.Territory.Layers),
		"unresolved", len(r.Unresolved),
		"elapsed", r.FinishedAt.Sub(r.StartedAt))
	return r, nil
}

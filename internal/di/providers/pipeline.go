package providers

import (
	"github.com/samber/do/v2"

	"github.com/rugbymap/rugbymap/internal/address"
	"github.com/rugbymap/rugbymap/internal/boundary"
	"github.com/rugbymap/rugbymap/internal/config"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/geo"
	"github.com/rugbymap/rugbymap/internal/geocode"
	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/metadata/clubsite"
	"github.com/rugbymap/rugbymap/internal/metadata/nominatim"
	"github.com/rugbymap/rugbymap/internal/metrics"
	"github.com/rugbymap/rugbymap/internal/pipeline"
	"github.com/rugbymap/rugbymap/internal/ratelimit"
	"github.com/rugbymap/rugbymap/internal/resolve"
	"github.com/rugbymap/rugbymap/internal/source"
	"github.com/rugbymap/rugbymap/internal/stages"
	"github.com/rugbymap/rugbymap/internal/territory"
)

// ProvideAddressResolver provides the cache-first club address resolver.
func ProvideAddressResolver(i do.Injector) (*address.Resolver, error) {
	log := do.MustInvoke[*logger.Logger](i)
	cache := do.MustInvoke[*CacheHandle](i)
	client := do.MustInvoke[*clubsite.Client](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	return address.NewResolver(client, cache.Store, m, log.Component("address")), nil
}

// ProvideGeocodeResolver provides the geocode resolver. One limiter paces
// every worker so the provider's request ceiling holds regardless of
// concurrency.
func ProvideGeocodeResolver(i do.Injector) (*geocode.Resolver, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cache := do.MustInvoke[*CacheHandle](i)
	client := do.MustInvoke[*nominatim.Client](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	return geocode.NewResolver(geocode.Config{
		Geocoder:    client,
		Store:       cache.Store,
		Throttle:    ratelimit.NewGlobal(cfg.Geocoding.RequestsPerSecond),
		AmbiguityKm: cfg.Geocoding.AmbiguityKm,
		Observer:    m,
		Logger:      log.Component("geocode"),
	}), nil
}

// ProvideTerritoryEngine provides the tessellation engine.
func ProvideTerritoryEngine(i do.Injector) (*territory.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	proj, ok := geo.ProjectorByName(cfg.Territory.Projection)
	if !ok {
		return nil, errors.Configurationf("unknown projection %q", cfg.Territory.Projection)
	}
	return territory.NewEngine(territory.Options{
		Projection:     proj,
		MarginFactor:   cfg.Territory.MarginFactor,
		JitterFraction: cfg.Territory.JitterFraction,
	}, log.Component("territory")), nil
}

// ProvidePipelineOptions derives per-run settings from configuration.
func ProvidePipelineOptions(i do.Injector) (pipeline.Options, error) {
	cfg := do.MustInvoke[*config.Config](i)

	groupings, err := territory.ParseGroupings(cfg.Territory.Groupings)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Season: cfg.App.Season,
		Addresses: resolve.Options{
			Concurrency:         cfg.Addresses.Concurrency,
			Delay:               cfg.Addresses.Delay,
			MaxRetries:          cfg.Addresses.MaxRetries,
			BaseBackoff:         cfg.Addresses.BaseBackoff,
			MaxBackoff:          cfg.Addresses.MaxBackoff,
			RetryCachedFailures: cfg.Addresses.RetryFailed,
		},
		Geocoding: resolve.Options{
			Concurrency:         cfg.Geocoding.Concurrency,
			MaxRetries:          cfg.Geocoding.MaxRetries,
			BaseBackoff:         cfg.Geocoding.BaseBackoff,
			MaxBackoff:          cfg.Geocoding.MaxBackoff,
			RetryCachedFailures: cfg.Geocoding.RetryFailed,
		},
		Groupings:    groupings,
		LayerWorkers: cfg.Territory.LayerWorkers,
	}, nil
}

// ProvidePipeline provides the stage runner. The boundary is read when the
// territory stage runs, not at wiring time.
func ProvidePipeline(i do.Injector) (*pipeline.Pipeline, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	filter, err := boundary.ParseFilter(cfg.Territory.FeatureFilter)
	if err != nil {
		return nil, err
	}
	t := cfg.Territory

	var regions pipeline.RegionLoader
	if paths := t.RegionPaths(); len(paths) > 0 {
		regions = func() (*boundary.Hierarchy, error) {
			return boundary.LoadHierarchy(paths...)
		}
	}

	return pipeline.New(pipeline.Deps{
		Source:    do.MustInvoke[*source.LeagueFiles](i),
		Addresses: do.MustInvoke[*address.Resolver](i),
		Geocoder:  do.MustInvoke[*geocode.Resolver](i),
		Engine:    do.MustInvoke[*territory.Engine](i),
		Stages:    do.MustInvoke[*stages.Store](i),
		Boundary: func() (*boundary.Boundary, error) {
			return boundary.Open(t.BoundaryDir, t.Detail, t.BoundaryFile, filter)
		},
		Regions:  regions,
		Observer: do.MustInvoke[*metrics.Metrics](i),
		Logger:   log.Component("pipeline"),
	}), nil
}

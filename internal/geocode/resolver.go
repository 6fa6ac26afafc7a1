// Package geocode resolves normalized addresses to coordinates.
package geocode

import (
	"context"
	"log/slog"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/paulmach/orb/geo"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/metadata/nominatim"
	"github.com/rugbymap/rugbymap/internal/normalize"
	"github.com/rugbymap/rugbymap/internal/resolve"
	"github.com/rugbymap/rugbymap/internal/store"
)

// Permanent geocoding outcomes.
var (
	ErrNoResults = errors.New("no results")
	ErrAmbiguous = errors.New("ambiguous result")
)

// Geocoder searches for places matching free text.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]nominatim.Place, error)
}

// Config wires a Resolver.
type Config struct {
	Geocoder Geocoder
	Store    store.Store
	// Throttle is shared by every request, including postcode fallbacks.
	Throttle resolve.Throttle
	// AmbiguityKm rejects a lookup whose two best hits lie further apart.
	// Zero disables the check.
	AmbiguityKm float64
	Observer    resolve.Observer
	Logger      *slog.Logger
}

// Resolver geocodes addresses cache-first. Coordinates never expire.
type Resolver struct {
	geocoder    Geocoder
	throttle    resolve.Throttle
	ambiguityKm float64
	logger      *slog.Logger
	engine      *resolve.Engine[string, domain.GeoCoordinate]
	now         func() time.Time
}

// NewResolver creates a geocode resolver.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		geocoder:    cfg.Geocoder,
		throttle:    cfg.Throttle,
		ambiguityKm: cfg.AmbiguityKm,
		logger:      logger.OrDiscard(cfg.Logger),
		now:         time.Now,
	}
	r.engine = resolve.New(resolve.Config[string, domain.GeoCoordinate]{
		Stage:    domain.StageGeocode,
		Table:    store.NewTable[domain.GeoCoordinate](cfg.Store, store.GeocodeNamespace),
		Fetch:    r.fetch,
		Throttle: cfg.Throttle,
		Logger:   r.logger,
		Observer: cfg.Observer,
	})
	return r
}

// Resolve returns one result per distinct address key.
func (r *Resolver) Resolve(ctx context.Context, addresses []domain.NormalizedAddress, opts resolve.Options) map[string]resolve.Result[domain.GeoCoordinate] {
	jobs := make([]resolve.Job[string], 0, len(addresses))
	rejected := make(map[string]resolve.Result[domain.GeoCoordinate])
	for _, a := range addresses {
		text := normalize.AddressText(a.RawText)
		key := a.AddressKey()
		if text == "" {
			rejected[key] = resolve.Result[domain.GeoCoordinate]{
				Key:   key,
				State: resolve.FailedPermanent,
				Err:   errors.Wrap(ErrNoResults, errors.CodePermanent, "empty address"),
			}
			continue
		}
		jobs = append(jobs, resolve.Job[string]{Key: key, Input: text})
	}

	results := r.engine.Run(ctx, jobs, opts)
	for k, v := range rejected {
		results[k] = v
	}
	return results
}

func (r *Resolver) fetch(ctx context.Context, text string) (domain.GeoCoordinate, error) {
	places, err := r.geocoder.Search(ctx, text, 2)
	if err != nil {
		return domain.GeoCoordinate{}, classify(err)
	}

	if len(places) == 0 {
		pc := normalize.Postcode(text)
		if pc == "" || pc == text {
			return domain.GeoCoordinate{}, errors.Wrapf(ErrNoResults, errors.CodePermanent, "geocode %q", text)
		}
		r.logger.Debug("no results, trying postcode", "postcode", pc)
		if r.throttle != nil {
			if err := r.throttle.Wait(ctx); err != nil {
				return domain.GeoCoordinate{}, err
			}
		}
		places, err = r.geocoder.Search(ctx, pc, 2)
		if err != nil {
			return domain.GeoCoordinate{}, classify(err)
		}
		if len(places) == 0 {
			return domain.GeoCoordinate{}, errors.Wrapf(ErrNoResults, errors.CodePermanent, "geocode %q or postcode %s", text, pc)
		}
	}

	best := places[0]
	if !validCoordinate(best.Lat, best.Lon) {
		return domain.GeoCoordinate{}, errors.Permanentf("geocoder returned invalid coordinate %v,%v", best.Lat, best.Lon)
	}
	if len(places) > 1 && r.ambiguityKm > 0 {
		km := geo.DistanceHaversine(best.Point(), places[1].Point()) / 1000
		if km > r.ambiguityKm {
			return domain.GeoCoordinate{}, errors.Wrapf(ErrAmbiguous, errors.CodePermanent,
				"top results %.1f km apart", km)
		}
	}

	return domain.GeoCoordinate{
		AddressKey:       normalize.AddressKey(text),
		Latitude:         best.Lat,
		Longitude:        best.Lon,
		FormattedAddress: best.DisplayName,
		PlaceID:          strconv.FormatInt(best.PlaceID, 10),
		ResolvedAt:       r.now().UTC(),
	}, nil
}

func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func classify(err error) error {
	switch {
	case errors.Is(err, nominatim.ErrRateLimited),
		errors.Is(err, nominatim.ErrUnavailable),
		errors.Is(err, nominatim.ErrServer),
		errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.CodeTransient, "geocode request")
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return errors.Wrap(err, errors.CodeTransient, "geocode request")
	}
	return errors.Wrap(err, errors.CodePermanent, "geocode request")
}

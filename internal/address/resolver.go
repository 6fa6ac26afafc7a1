// Package address resolves club records to the postal address listed on
// their profile page.
package address

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/metadata/clubsite"
	"github.com/rugbymap/rugbymap/internal/normalize"
	"github.com/rugbymap/rugbymap/internal/resolve"
	"github.com/rugbymap/rugbymap/internal/store"
)

// Looker fetches the raw address for a profile reference.
type Looker interface {
	LookupAddress(ctx context.Context, profileRef string) (string, error)
}

type lookup struct {
	ref    string
	name   string
	season string
}

// Resolver resolves club addresses cache-first. Addresses are cached per
// season under the club key, so squads of one club share a lookup.
type Resolver struct {
	looker   Looker
	store    store.Store
	logger   *slog.Logger
	observer resolve.Observer
	now      func() time.Time

	mu      sync.Mutex
	engines map[string]*resolve.Engine[lookup, domain.NormalizedAddress]
}

// NewResolver creates an address resolver. observer may be nil.
func NewResolver(looker Looker, s store.Store, observer resolve.Observer, log *slog.Logger) *Resolver {
	return &Resolver{
		looker:   looker,
		store:    s,
		logger:   logger.OrDiscard(log),
		observer: observer,
		now:      time.Now,
		engines:  make(map[string]*resolve.Engine[lookup, domain.NormalizedAddress]),
	}
}

func (r *Resolver) engine(season string) *resolve.Engine[lookup, domain.NormalizedAddress] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[season]; ok {
		return e
	}
	e := resolve.New(resolve.Config[lookup, domain.NormalizedAddress]{
		Stage:    domain.StageAddress,
		Table:    store.NewTable[domain.NormalizedAddress](r.store, store.AddressNamespace(season)),
		Fetch:    r.fetch,
		Logger:   r.logger,
		Observer: r.observer,
		Halt:     challenged,
	})
	r.engines[season] = e
	return e
}

// Resolve returns one result per distinct club key in records. Records
// without a usable profile reference fail permanently without a lookup
// and are not cached.
func (r *Resolver) Resolve(ctx context.Context, records []domain.ClubRecord, opts resolve.Options) map[string]resolve.Result[domain.NormalizedAddress] {
	results := make(map[string]resolve.Result[domain.NormalizedAddress])
	bySeason := make(map[string][]resolve.Job[lookup])
	var order []string

	for _, rec := range records {
		key := rec.ClubKey()
		if _, done := results[key]; done {
			continue
		}
		switch {
		case key == "" || normalize.IsPlaceholder(rec.Name):
			results[key] = rejected(key, errors.Permanentf("%q is not a club", rec.Name))
			continue
		case rec.ProfileRef == "":
			results[key] = rejected(key, errors.Permanent("no profile reference"))
			continue
		}
		if _, ok := bySeason[rec.Season]; !ok {
			order = append(order, rec.Season)
		}
		bySeason[rec.Season] = append(bySeason[rec.Season], resolve.Job[lookup]{
			Key:   key,
			Input: lookup{ref: rec.ProfileRef, name: rec.ClubName(), season: rec.Season},
		})
	}

	for _, season := range order {
		halted := false
		for k, res := range r.engine(season).Run(ctx, bySeason[season], opts) {
			if _, ok := results[k]; !ok {
				results[k] = res
			}
			halted = halted || (res.State == resolve.FailedTransient && challenged(res.Err))
		}
		if halted {
			r.logger.Warn("club site is challenging requests, stopped early; rerun later to resume", "season", season)
			break
		}
	}
	for _, season := range order {
		for _, j := range bySeason[season] {
			if _, ok := results[j.Key]; !ok {
				results[j.Key] = resolve.Result[domain.NormalizedAddress]{
					Key:   j.Key,
					State: resolve.FailedTransient,
					Err:   errors.Wrap(clubsite.ErrAntiBot, errors.CodeTransient, "interrupted"),
				}
			}
		}
	}
	return results
}

// challenged reports an anti-bot page, which stops the whole run.
func challenged(err error) bool {
	return errors.Is(err, clubsite.ErrAntiBot)
}

func rejected(key string, err error) resolve.Result[domain.NormalizedAddress] {
	return resolve.Result[domain.NormalizedAddress]{Key: key, State: resolve.FailedPermanent, Err: err}
}

func (r *Resolver) fetch(ctx context.Context, in lookup) (domain.NormalizedAddress, error) {
	raw, err := r.looker.LookupAddress(ctx, in.ref)
	if err != nil {
		return domain.NormalizedAddress{}, classify(err)
	}
	text := normalize.AddressText(raw)
	if text == "" {
		return domain.NormalizedAddress{}, errors.Permanent("profile lists an empty address")
	}
	return domain.NormalizedAddress{
		ClubKey:    normalize.ClubKey(in.name),
		Name:       in.name,
		RawText:    text,
		Season:     in.season,
		ResolvedAt: r.now().UTC(),
	}, nil
}

// classify maps client errors onto retry semantics.
func classify(err error) error {
	switch {
	case errors.Is(err, clubsite.ErrAntiBot),
		errors.Is(err, clubsite.ErrRateLimited),
		errors.Is(err, clubsite.ErrServer):
		return errors.Wrap(err, errors.CodeTransient, "profile fetch")
	case errors.Is(err, clubsite.ErrNotFound):
		return errors.Wrap(err, errors.CodePermanent, "profile not found")
	case errors.Is(err, clubsite.ErrNoDetails), errors.Is(err, clubsite.ErrNoAddress):
		return errors.Wrap(err, errors.CodePermanent, "no address on profile")
	case errors.Is(err, context.DeadlineExceeded), isNetError(err):
		return errors.Wrap(err, errors.CodeTransient, "profile fetch")
	default:
		return errors.Wrap(err, errors.CodePermanent, "profile fetch")
	}
}

func isNetError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne)
}

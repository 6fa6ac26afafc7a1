package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/ratelimit"
	"github.com/rugbymap/rugbymap/internal/store"
)

// Fetcher performs one network attempt for an input. Returned errors are
// classified with errors.CodeOf: CodeTransient is retried, anything else is
// a permanent failure.
type Fetcher[In, V any] func(ctx context.Context, in In) (V, error)

// Throttle gates every attempt on a limit shared across workers.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Observer receives resolution events, e.g. for metrics.
type Observer interface {
	CacheHit(stage domain.Stage)
	CacheMiss(stage domain.Stage)
	Attempt(stage domain.Stage, outcome domain.Outcome)
	Resolved(stage domain.Stage, state State)
}

type nopObserver struct{}

func (nopObserver) CacheHit(domain.Stage)                {}
func (nopObserver) CacheMiss(domain.Stage)               {}
func (nopObserver) Attempt(domain.Stage, domain.Outcome) {}
func (nopObserver) Resolved(domain.Stage, State)         {}

// Job is one entity to resolve.
type Job[In any] struct {
	Key   string
	Input In
}

// Config wires an Engine.
type Config[In, V any] struct {
	Stage    domain.Stage
	Table    *store.Table[V]
	Fetch    Fetcher[In, V]
	Throttle Throttle
	Logger   *slog.Logger
	Observer Observer
	// Halt reports whether a fetch error must stop the whole run. Keys not
	// yet resolved are then reported as interrupted, wrapping that error.
	Halt func(err error) bool
}

// Engine resolves keys cache-first. At most one lookup per key is in flight
// at a time, across all concurrent Run calls on the same Engine.
type Engine[In, V any] struct {
	stage    domain.Stage
	table    *store.Table[V]
	fetch    Fetcher[In, V]
	throttle Throttle
	logger   *slog.Logger
	observer Observer
	halt     func(error) bool

	group singleflight.Group

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates an Engine.
func New[In, V any](cfg Config[In, V]) *Engine[In, V] {
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Engine[In, V]{
		stage:    cfg.Stage,
		table:    cfg.Table,
		fetch:    cfg.Fetch,
		throttle: cfg.Throttle,
		logger:   logger.OrDiscard(cfg.Logger),
		observer: obs,
		halt:     cfg.Halt,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// Run resolves every distinct key in jobs and returns one result per key.
// The first job for a key supplies its input. Failures abort the batch only
// when Halt says so; if ctx is cancelled or the run halts, keys not yet
// reached are reported as FailedTransient and can be resumed by running
// again.
func (e *Engine[In, V]) Run(ctx context.Context, jobs []Job[In], opts Options) map[string]Result[V] {
	opts = opts.withDefaults()
	ctx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	unique := make([]Job[In], 0, len(jobs))
	seen := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		if seen[j.Key] {
			continue
		}
		seen[j.Key] = true
		unique = append(unique, j)
	}

	results := make(map[string]Result[V], len(unique))
	if len(unique) == 0 {
		return results
	}

	workers := min(opts.Concurrency, len(unique))
	spacing := ratelimit.NewSpacing(opts.Delay)

	queue := make(chan Job[In], len(unique))
	out := make(chan Result[V], len(unique))

	for slot := range workers {
		slotKey := fmt.Sprintf("slot-%d", slot)
		go func() {
			for j := range queue {
				if ctx.Err() != nil {
					out <- e.interrupted(ctx, j.Key, nil, nil)
					continue
				}
				out <- e.resolveShared(ctx, j, opts, abort, func(ctx context.Context) error {
					return spacing.Wait(ctx, slotKey)
				})
			}
		}()
	}

	for _, j := range unique {
		queue <- j
	}
	close(queue)

	for range unique {
		r := <-out
		results[r.Key] = r
	}
	return results
}

// resolveShared collapses concurrent lookups of the same key into one.
func (e *Engine[In, V]) resolveShared(ctx context.Context, j Job[In], opts Options, abort context.CancelCauseFunc, pace func(context.Context) error) Result[V] {
	v, _, _ := e.group.Do(j.Key, func() (any, error) {
		return e.resolve(ctx, j, opts, abort, pace), nil
	})
	r := v.(Result[V])
	r.Attempts = append([]domain.AttemptRecord(nil), r.Attempts...)
	return r
}

// resolve drives one key through the state machine.
func (e *Engine[In, V]) resolve(ctx context.Context, j Job[In], opts Options, abort context.CancelCauseFunc, pace func(context.Context) error) Result[V] {
	log := e.logger.With("stage", e.stage, "key", j.Key)

	if r, ok := e.fromCache(ctx, j.Key, opts, log); ok {
		e.observer.CacheHit(e.stage)
		e.observer.Resolved(e.stage, r.State)
		return r
	}
	e.observer.CacheMiss(e.stage)

	r := Result[V]{Key: j.Key, State: Pending}
	for {
		if err := pace(ctx); err != nil {
			return e.interrupted(ctx, j.Key, r.Attempts, err)
		}
		if e.throttle != nil {
			if err := e.throttle.Wait(ctx); err != nil {
				return e.interrupted(ctx, j.Key, r.Attempts, err)
			}
		}

		r.State = InFlight
		attempt := len(r.Attempts) + 1
		v, err := e.fetch(ctx, j.Input)
		rec := domain.AttemptRecord{Number: attempt, At: e.now()}

		if err == nil {
			rec.Outcome = domain.OutcomeSuccess
			r.Attempts = append(r.Attempts, rec)
			e.observer.Attempt(e.stage, rec.Outcome)
			r.Value, r.State, r.Err = v, Succeeded, nil
			if perr := e.table.Put(ctx, j.Key, v); perr != nil {
				log.Error("failed to cache resolution", "error", perr)
			}
			log.Debug("resolved", "attempts", attempt)
			e.observer.Resolved(e.stage, r.State)
			return r
		}

		rec.Err = err.Error()
		if e.halt != nil && e.halt(err) {
			log.Warn("halting run", "error", err)
			abort(err)
		}
		if ctx.Err() != nil {
			rec.Outcome = domain.OutcomeTransientFailure
			r.Attempts = append(r.Attempts, rec)
			e.observer.Attempt(e.stage, rec.Outcome)
			return e.interrupted(ctx, j.Key, r.Attempts, nil)
		}

		if !errors.IsTransient(err) {
			rec.Outcome = domain.OutcomePermanentFailure
			r.Attempts = append(r.Attempts, rec)
			e.observer.Attempt(e.stage, rec.Outcome)
			r.State = FailedPermanent
			r.Err = asPermanent(err)
			e.recordFailure(ctx, j.Key, r, log)
			log.Info("permanent failure", "attempts", attempt, "error", err)
			e.observer.Resolved(e.stage, r.State)
			return r
		}

		rec.Outcome = domain.OutcomeTransientFailure
		r.Attempts = append(r.Attempts, rec)
		e.observer.Attempt(e.stage, rec.Outcome)
		r.State = FailedTransient

		if attempt > opts.MaxRetries {
			r.Err = errors.Wrapf(err, errors.CodeTransientExhausted, "gave up after %d attempts", attempt)
			log.Warn("retries exhausted", "attempts", attempt, "error", err)
			e.observer.Resolved(e.stage, r.State)
			return r
		}

		wait := opts.Backoff(attempt)
		log.Debug("transient failure, backing off", "attempt", attempt, "backoff", wait, "error", err)
		if serr := e.sleep(ctx, wait); serr != nil {
			return e.interrupted(ctx, j.Key, r.Attempts, serr)
		}
	}
}

// fromCache returns a result for a cached value or recorded failure.
// Unreadable entries are treated as misses.
func (e *Engine[In, V]) fromCache(ctx context.Context, key string, opts Options, log *slog.Logger) (Result[V], bool) {
	entry, err := e.table.Get(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Result[V]{}, false
	case err != nil:
		log.Warn("cache read failed, resolving again", "error", err)
		return Result[V]{}, false
	}

	if entry.Value != nil {
		return Result[V]{Key: key, Value: *entry.Value, State: Succeeded, Cached: true}, true
	}
	if opts.RetryCachedFailures {
		return Result[V]{}, false
	}
	f := entry.Failure
	code := errors.Code(f.Code)
	if code == "" {
		code = errors.CodePermanent
	}
	return Result[V]{
		Key:    key,
		State:  FailedPermanent,
		Err:    &errors.Error{Code: code, Message: f.Reason},
		Cached: true,
	}, true
}

func (e *Engine[In, V]) recordFailure(ctx context.Context, key string, r Result[V], log *slog.Logger) {
	f := store.Failure{
		Code:     string(errors.CodeOf(r.Err)),
		Reason:   r.Err.Error(),
		Attempts: len(r.Attempts),
		At:       e.now(),
	}
	if err := e.table.PutFailure(ctx, key, f); err != nil {
		log.Error("failed to record failure", "error", err)
	}
}

// interrupted reports a key the run stopped before finishing. Once ctx is
// done the error wraps its cancellation cause.
func (e *Engine[In, V]) interrupted(ctx context.Context, key string, attempts []domain.AttemptRecord, err error) Result[V] {
	if cause := context.Cause(ctx); cause != nil {
		err = cause
	}
	e.observer.Resolved(e.stage, FailedTransient)
	return Result[V]{
		Key:      key,
		State:    FailedTransient,
		Err:      errors.Wrap(err, errors.CodeTransient, "interrupted"),
		Attempts: attempts,
	}
}

// asPermanent keeps a coded permanent error and wraps anything else.
func asPermanent(err error) error {
	if errors.IsPermanent(err) {
		return err
	}
	return errors.Wrap(err, errors.CodePermanent, "lookup failed")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

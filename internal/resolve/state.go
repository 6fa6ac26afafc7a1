// Package resolve runs cache-first, deduplicated, bounded-concurrency lookups
// with retry and backoff. The address and geocode resolvers are both built
// on Engine.
package resolve

import (
	"time"

	"github.com/rugbymap/rugbymap/internal/domain"
)

// State is where one entity is in its resolution.
//
//	Pending -> InFlight -> Succeeded
//	                    -> FailedPermanent
//	                    -> FailedTransient -> InFlight (retry) | FailedTransient (exhausted)
type State int

const (
	Pending State = iota
	InFlight
	Succeeded
	FailedTransient
	FailedPermanent
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in_flight"
	case Succeeded:
		return "succeeded"
	case FailedTransient:
		return "failed_transient"
	case FailedPermanent:
		return "failed_permanent"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further attempts will be made from s.
func (s State) Terminal() bool {
	return s == Succeeded || s == FailedPermanent
}

// Options tunes one resolver run.
type Options struct {
	// Concurrency bounds simultaneous lookups.
	Concurrency int
	// Delay is the minimum time between request starts on one worker slot.
	Delay time.Duration
	// MaxRetries is the number of retries after the first attempt for
	// transient failures.
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// RetryCachedFailures ignores recorded permanent failures and looks the
	// key up again.
	RetryCachedFailures bool
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = time.Second
	}
	if o.MaxBackoff < o.BaseBackoff {
		o.MaxBackoff = o.BaseBackoff
	}
	return o
}

// Backoff is the wait after the given failed attempt (1-based): the base
// delay doubled per attempt, capped at MaxBackoff.
func (o Options) Backoff(attempt int) time.Duration {
	o = o.withDefaults()
	d := o.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= o.MaxBackoff {
			return o.MaxBackoff
		}
	}
	return min(d, o.MaxBackoff)
}

// Result is the outcome for one key.
type Result[V any] struct {
	Key   string
	Value V
	State State
	// Err is nil on success and a coded error otherwise.
	Err error
	// Cached is set when the result came from the store without a lookup.
	Cached   bool
	Attempts []domain.AttemptRecord
}

// OK reports whether the key resolved.
func (r Result[V]) OK() bool {
	return r.State == Succeeded
}

// Summary counts results by outcome.
type Summary struct {
	Total           int `json:"total"`
	Cached          int `json:"cached"`
	Succeeded       int `json:"succeeded"`
	FailedPermanent int `json:"failed_permanent"`
	FailedTransient int `json:"failed_transient"`
	Attempts        int `json:"attempts"`
}

// Summarize tallies a result set.
func Summarize[V any](results map[string]Result[V]) Summary {
	var s Summary
	for _, r := range results {
		s.Total++
		s.Attempts += len(r.Attempts)
		if r.Cached {
			s.Cached++
		}
		switch r.State {
		case Succeeded:
			s.Succeeded++
		case FailedPermanent:
			s.FailedPermanent++
		case FailedTransient:
			s.FailedTransient++
		}
	}
	return s
}

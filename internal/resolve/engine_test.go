package resolve

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/store"
)

type value struct {
	Text string `json:"text"`
}

// fakeFetch counts calls and answers from a script keyed by input.
type fakeFetch struct {
	calls atomic.Int32
	fn    func(in string, call int32) (value, error)
}

func (f *fakeFetch) fetch(_ context.Context, in string) (value, error) {
	n := f.calls.Add(1)
	return f.fn(in, n)
}

func newTestEngine(t *testing.T, f *fakeFetch) (*Engine[string, value], *store.Table[value], *[]time.Duration) {
	t.Helper()
	tbl := store.NewTable[value](store.NewMemory(), "test:")
	e := New(Config[string, value]{
		Stage: domain.StageAddress,
		Table: tbl,
		Fetch: f.fetch,
	})
	var mu sync.Mutex
	var sleeps []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
		return ctx.Err()
	}
	return e, tbl, &sleeps
}

func jobs(keys ...string) []Job[string] {
	out := make([]Job[string], len(keys))
	for i, k := range keys {
		out[i] = Job[string]{Key: k, Input: k}
	}
	return out
}

func TestEngine_WarmCacheIsIdempotent(t *testing.T) {
	f := &fakeFetch{fn: func(in string, _ int32) (value, error) {
		return value{Text: "addr of " + in}, nil
	}}
	e, _, _ := newTestEngine(t, f)
	ctx := context.Background()
	opts := Options{Concurrency: 3}

	first := e.Run(ctx, jobs("a", "b", "c"), opts)
	require.EqualValues(t, 3, f.calls.Load())

	second := e.Run(ctx, jobs("a", "b", "c"), opts)
	assert.EqualValues(t, 3, f.calls.Load(), "warm cache issues no lookups")

	for _, k := range []string{"a", "b", "c"} {
		assert.Equal(t, first[k].Value, second[k].Value)
		assert.True(t, second[k].OK())
		assert.True(t, second[k].Cached)
		assert.Empty(t, second[k].Attempts)
	}
}

func TestEngine_RetryBound(t *testing.T) {
	f := &fakeFetch{fn: func(string, int32) (value, error) {
		return value{}, errors.Transient("HTTP 503")
	}}
	e, tbl, sleeps := newTestEngine(t, f)
	opts := Options{MaxRetries: 3, BaseBackoff: time.Second, MaxBackoff: 3 * time.Second}

	res := e.Run(context.Background(), jobs("a"), opts)

	r := res["a"]
	assert.EqualValues(t, 4, f.calls.Load(), "maxRetries+1 attempts")
	assert.Len(t, r.Attempts, 4)
	assert.Equal(t, FailedTransient, r.State)
	assert.Equal(t, errors.CodeTransientExhausted, errors.CodeOf(r.Err))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, *sleeps)
	for i, a := range r.Attempts {
		assert.Equal(t, i+1, a.Number)
		assert.Equal(t, domain.OutcomeTransientFailure, a.Outcome)
	}

	_, err := tbl.Get(context.Background(), "a")
	assert.ErrorIs(t, err, store.ErrNotFound, "exhausted failures are retried next run")
}

func TestEngine_TransientThenSuccess(t *testing.T) {
	f := &fakeFetch{fn: func(_ string, call int32) (value, error) {
		if call < 3 {
			return value{}, errors.Transient("rate limited")
		}
		return value{Text: "ok"}, nil
	}}
	e, tbl, _ := newTestEngine(t, f)

	r := e.Run(context.Background(), jobs("a"), Options{MaxRetries: 5})["a"]

	assert.True(t, r.OK())
	assert.Len(t, r.Attempts, 3)
	assert.Equal(t, domain.OutcomeSuccess, r.Attempts[2].Outcome)

	entry, err := tbl.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "ok", entry.Value.Text)
}

func TestEngine_PermanentFailureIsRecorded(t *testing.T) {
	f := &fakeFetch{fn: func(string, int32) (value, error) {
		return value{}, errors.Permanent("profile not found")
	}}
	e, tbl, sleeps := newTestEngine(t, f)
	ctx := context.Background()
	opts := Options{MaxRetries: 3}

	r := e.Run(ctx, jobs("a"), opts)["a"]
	assert.Equal(t, FailedPermanent, r.State)
	assert.Len(t, r.Attempts, 1, "permanent failures are not retried")
	assert.Empty(t, *sleeps)
	assert.True(t, errors.IsPermanent(r.Err))

	entry, err := tbl.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, entry.Failure)
	assert.Equal(t, string(errors.CodePermanent), entry.Failure.Code)

	again := e.Run(ctx, jobs("a"), opts)["a"]
	assert.EqualValues(t, 1, f.calls.Load())
	assert.True(t, again.Cached)
	assert.Equal(t, FailedPermanent, again.State)
	assert.Contains(t, again.Err.Error(), "profile not found")

	opts.RetryCachedFailures = true
	e.Run(ctx, jobs("a"), opts)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestEngine_UncodedErrorIsPermanent(t *testing.T) {
	f := &fakeFetch{fn: func(string, int32) (value, error) {
		return value{}, fmt.Errorf("unexpected payload")
	}}
	e, _, _ := newTestEngine(t, f)

	r := e.Run(context.Background(), jobs("a"), Options{MaxRetries: 2})["a"]

	assert.Equal(t, FailedPermanent, r.State)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestEngine_DedupesConcurrentRequests(t *testing.T) {
	release := make(chan struct{})
	f := &fakeFetch{fn: func(in string, _ int32) (value, error) {
		<-release
		return value{Text: in}, nil
	}}
	e, _, _ := newTestEngine(t, f)

	const n = 8
	results := make([]Result[value], n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			results[i] = e.Run(context.Background(), jobs("same"), Options{})["same"]
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, f.calls.Load())
	for _, r := range results {
		assert.True(t, r.OK())
		assert.Equal(t, "same", r.Value.Text)
	}
}

func TestEngine_DuplicateKeysInBatch(t *testing.T) {
	f := &fakeFetch{fn: func(in string, _ int32) (value, error) {
		return value{Text: in}, nil
	}}
	e, _, _ := newTestEngine(t, f)

	res := e.Run(context.Background(), jobs("a", "b", "a", "a"), Options{Concurrency: 4})

	assert.Len(t, res, 2)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestEngine_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	f := &fakeFetch{fn: func(in string, _ int32) (value, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return value{Text: in}, nil
	}}
	e, _, _ := newTestEngine(t, f)

	keys := make([]string, 20)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}
	res := e.Run(context.Background(), jobs(keys...), Options{Concurrency: 3})

	assert.Len(t, res, 20)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

type countingThrottle struct{ n atomic.Int32 }

func (c *countingThrottle) Wait(context.Context) error {
	c.n.Add(1)
	return nil
}

func TestEngine_ThrottleGatesEveryAttempt(t *testing.T) {
	f := &fakeFetch{fn: func(_ string, call int32) (value, error) {
		if call == 1 {
			return value{}, errors.Transient("busy")
		}
		return value{Text: "ok"}, nil
	}}
	th := &countingThrottle{}
	e, _, _ := newTestEngine(t, f)
	e.throttle = th

	e.Run(context.Background(), jobs("a", "b"), Options{MaxRetries: 2})

	assert.EqualValues(t, 3, th.n.Load())
}

func TestEngine_CancelledRunIsResumable(t *testing.T) {
	f := &fakeFetch{fn: func(in string, _ int32) (value, error) {
		return value{Text: in}, nil
	}}
	e, tbl, _ := newTestEngine(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.Run(ctx, jobs("a", "b"), Options{})

	for _, r := range res {
		assert.Equal(t, FailedTransient, r.State)
		assert.True(t, errors.IsTransient(r.Err))
	}
	assert.Zero(t, f.calls.Load())
	keys, err := tbl.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)

	res = e.Run(context.Background(), jobs("a", "b"), Options{})
	assert.True(t, res["a"].OK())
	assert.True(t, res["b"].OK())
}

func TestEngine_HaltStopsRun(t *testing.T) {
	blocked := errors.New("challenge page")
	f := &fakeFetch{fn: func(string, int32) (value, error) {
		return value{}, errors.Wrap(blocked, errors.CodeTransient, "fetch")
	}}
	tbl := store.NewTable[value](store.NewMemory(), "test:")
	e := New(Config[string, value]{
		Stage: domain.StageAddress,
		Table: tbl,
		Fetch: f.fetch,
		Halt:  func(err error) bool { return errors.Is(err, blocked) },
	})

	keys := make([]string, 40)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%02d", i)
	}
	res := e.Run(context.Background(), jobs(keys...), Options{Concurrency: 3, MaxRetries: 5, BaseBackoff: time.Millisecond})

	require.Len(t, res, len(keys))
	for _, r := range res {
		assert.Equal(t, FailedTransient, r.State)
		assert.True(t, errors.IsTransient(r.Err))
		assert.ErrorIs(t, r.Err, blocked)
	}
	assert.LessOrEqual(t, f.calls.Load(), int32(3), "one attempt per worker at most")
	cached, err := tbl.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestOptions_Backoff(t *testing.T) {
	o := Options{BaseBackoff: 500 * time.Millisecond, MaxBackoff: 3 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 3 * time.Second},
		{10, 3 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, o.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestSummarize(t *testing.T) {
	res := map[string]Result[value]{
		"a": {State: Succeeded, Cached: true},
		"b": {State: Succeeded, Attempts: make([]domain.AttemptRecord, 2)},
		"c": {State: FailedPermanent, Attempts: make([]domain.AttemptRecord, 1)},
		"d": {State: FailedTransient, Attempts: make([]domain.AttemptRecord, 4)},
	}

	assert.Equal(t, Summary{Total: 4, Cached: 1, Succeeded: 2, FailedPermanent: 1, FailedTransient: 1, Attempts: 7}, Summarize(res))
}

package dedup

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wtthornton/TappMCP-sub003/knowledge"
	"github.com/wtthornton/TappMCP-sub003/observe"
	"github.com/wtthornton/TappMCP-sub003/resilience"
)

// DefaultTimeout bounds an upstream fetch when Config.Timeout is unset.
const DefaultTimeout = 5 * time.Second

// FetchFunc performs the upstream fetch for one flight.
type FetchFunc func(ctx context.Context) (*knowledge.Result, error)

// SinkFunc receives a successfully fetched result before the flight
// completes, so every waiter observes the result already stored.
type SinkFunc func(ctx context.Context, key string, res *knowledge.Result) error

// Config configures a Deduplicator.
type Config struct {
	// Timeout bounds each upstream fetch. When it expires, every caller
	// waiting on the flight is released with ErrFetchTimeout and the key
	// becomes immediately retryable.
	// Default: 5s
	Timeout time.Duration

	// Sink stores each successfully fetched result. A sink failure never
	// fails the flight; the result is still delivered to all callers.
	// Optional.
	Sink SinkFunc

	// Logger for flight lifecycle events. Optional.
	Logger observe.Logger
}

// Stats is a point-in-time snapshot of deduplicator activity.
type Stats struct {
	Requests  int64         // Fetch calls received
	Fetches   int64         // Flights led (upstream calls initiated)
	Joined    int64         // Calls that attached to an existing flight
	Errors    int64         // Flights that failed, excluding timeouts
	Timeouts  int64         // Flights released by the fetch timeout
	InFlight  int64         // Flights currently running
	FetchTime time.Duration // Cumulative upstream fetch duration
}

// Deduplicator collapses concurrent fetches for the same key into a single
// upstream call whose result is shared by every caller.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: a caller whose context ends stops waiting and receives ctx.Err();
//   the flight itself keeps running for the remaining callers.
// - Errors: a failed flight delivers the same error to every caller and is
//   forgotten, so the next call for the key starts a fresh flight.
type Deduplicator struct {
	group   singleflight.Group
	timeout time.Duration
	sink    SinkFunc
	logger  observe.Logger

	requests  atomic.Int64
	fetches   atomic.Int64
	joined    atomic.Int64
	errCount  atomic.Int64
	timeouts  atomic.Int64
	inFlight  atomic.Int64
	fetchTime atomic.Int64
}

// New creates a Deduplicator with the given configuration.
func New(cfg Config) *Deduplicator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &Deduplicator{
		timeout: cfg.Timeout,
		sink:    cfg.Sink,
		logger:  logger.WithComponent("dedup"),
	}
}

// fetchSettings holds per-call overrides.
type fetchSettings struct {
	timeout time.Duration
	sink    SinkFunc
}

// FetchOption overrides flight behavior for a single Fetch call.
// Options only take effect when the call leads the flight; joiners inherit
// the leader's settings.
type FetchOption func(*fetchSettings)

// WithTimeout overrides the fetch timeout for this call.
func WithTimeout(d time.Duration) FetchOption {
	return func(s *fetchSettings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSink overrides the result sink for this call.
func WithSink(sink SinkFunc) FetchOption {
	return func(s *fetchSettings) {
		s.sink = sink
	}
}

// Fetch returns the result for key, starting an upstream fetch only if no
// flight for the key is already running. The boolean reports whether this
// call led the flight (true) or joined one in progress (false).
func (d *Deduplicator) Fetch(ctx context.Context, key string, fn FetchFunc, opts ...FetchOption) (*knowledge.Result, bool, error) {
	if fn == nil {
		return nil, false, ErrNilFetch
	}

	settings := fetchSettings{timeout: d.timeout, sink: d.sink}
	for _, opt := range opts {
		opt(&settings)
	}

	d.requests.Add(1)

	// The closure runs only for the flight leader; led tells each caller
	// which side of the flight it was on.
	var led atomic.Bool
	ch := d.group.DoChan(key, func() (any, error) {
		led.Store(true)
		return d.lead(ctx, key, fn, settings)
	})

	select {
	case r := <-ch:
		wasLeader := led.Load()
		if !wasLeader {
			d.joined.Add(1)
		}
		if r.Err != nil {
			return nil, wasLeader, r.Err
		}
		res, ok := r.Val.(*knowledge.Result)
		if !ok || res == nil {
			return nil, wasLeader, ErrNilResult
		}
		return res, wasLeader, nil
	case <-ctx.Done():
		// The flight keeps running for the remaining callers.
		return nil, led.Load(), ctx.Err()
	}
}

// lead performs the upstream fetch for one flight.
func (d *Deduplicator) lead(ctx context.Context, key string, fn FetchFunc, settings fetchSettings) (*knowledge.Result, error) {
	d.fetches.Add(1)
	d.inFlight.Add(1)
	defer d.inFlight.Add(-1)

	// Joiners may outlive the caller that led the flight, so the fetch is
	// detached from its cancellation while keeping context values.
	fctx := context.WithoutCancel(ctx)

	start := time.Now()
	var res *knowledge.Result
	err := resilience.ExecuteWithTimeout(fctx, settings.timeout, func(ctx context.Context) error {
		r, ferr := fn(ctx)
		if ferr != nil {
			return ferr
		}
		res = r
		return nil
	})
	elapsed := time.Since(start)
	d.fetchTime.Add(int64(elapsed))

	if err != nil {
		if errors.Is(err, resilience.ErrTimeout) {
			d.timeouts.Add(1)
			d.logger.Warn(fctx, "fetch timed out",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "timeout_ms", Value: settings.timeout.Milliseconds()},
			)
			return nil, ErrFetchTimeout
		}
		d.errCount.Add(1)
		d.logger.Warn(fctx, "fetch failed",
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return nil, err
	}
	if res == nil {
		d.errCount.Add(1)
		return nil, ErrNilResult
	}

	if settings.sink != nil {
		if serr := settings.sink(fctx, key, res); serr != nil {
			// Fetched but not cached; callers still get the result.
			d.logger.Warn(fctx, "result not cached",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "error", Value: serr.Error()},
			)
		}
	}

	d.logger.Debug(fctx, "fetch complete",
		observe.Field{Key: "key", Value: key},
		observe.Field{Key: "duration_ms", Value: elapsed.Milliseconds()},
	)
	return res, nil
}

// Stats returns a snapshot of deduplicator counters.
func (d *Deduplicator) Stats() Stats {
	return Stats{
		Requests:  d.requests.Load(),
		Fetches:   d.fetches.Load(),
		Joined:    d.joined.Load(),
		Errors:    d.errCount.Load(),
		Timeouts:  d.timeouts.Load(),
		InFlight:  d.inFlight.Load(),
		FetchTime: time.Duration(d.fetchTime.Load()),
	}
}

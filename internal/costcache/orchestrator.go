package costcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultParallelism bounds concurrent lookups and backend fetches per query.
const DefaultParallelism = 4

// DefaultFetchTimeout bounds one shared backend fetch when no query timeout is set.
const DefaultFetchTimeout = 2 * time.Minute

// OrchestratorConfig tunes query execution.
type OrchestratorConfig struct {
	Parallelism  int           // Concurrent per-day lookups/fetches. 0 = DefaultParallelism.
	Timeout      time.Duration // Overall per-query deadline. 0 = none.
	MaxRangeDays int           // Longest accepted range. 0 = unlimited.
}

// Orchestrator answers cost queries from cached day partitions, fetching only
// what is missing or stale.
type Orchestrator struct {
	store    Partitions
	backend  CostBackend
	cfg      OrchestratorConfig
	now      func() time.Time
	observer Observer

	// Collapses concurrent misses for the same partition into one backend call.
	inflight singleflight.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock used to decide which day is "today".
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithObserver reports backend fetches and query outcomes to obs.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// NewOrchestrator wires a cache and a backend together.
func NewOrchestrator(store Partitions, backend CostBackend, cfg OrchestratorConfig, opts ...Option) *Orchestrator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	o := &Orchestrator{
		store:    store,
		backend:  backend,
		cfg:      cfg,
		now:      time.Now,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// daySlot is the per-day result cell. Each slot is written only by the
// goroutine handling that day.
type daySlot struct {
	day      time.Time
	eligible bool
	lookup   LookupOutcome
	hit      bool
	rows     []CostEntry
	err      error
	// Set when the query's own deadline or cancellation cut the day short.
	timedOut bool
}

// Query serves req. Per-day backend failures and deadline expiry produce a
// partial response, not an error. An error is returned only for invalid input
// or when every day in the range failed at the backend.
func (o *Orchestrator) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	started := time.Now()

	days, err := Partition(req.Range)
	if err != nil {
		return nil, err
	}
	if o.cfg.MaxRangeDays > 0 && len(days) > o.cfg.MaxRangeDays {
		return nil, fmt.Errorf("%w: %d days requested, limit is %d", ErrInvalidRange, len(days), o.cfg.MaxRangeDays)
	}

	granularity := req.Granularity
	if granularity == "" {
		granularity = Daily
	}
	today := Day(o.now())

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	// Today and later are still accruing: never looked up, never cached.
	slots := make([]daySlot, len(days))
	for i, d := range days {
		slots[i] = daySlot{day: d, eligible: !req.IgnoreCache && d.Before(today)}
	}

	o.lookup(ctx, slots, granularity)
	o.fetchMisses(ctx, slots, granularity, today)

	resp := assemble(slots, req.Services)

	// Days cut off by the deadline are partial results, not an outage.
	if resp.CacheHits == 0 {
		if err := allBackendFailed(slots); err != nil {
			return nil, err
		}
	}

	o.observer.ObserveQuery(string(resp.Source), resp.CacheHits, resp.CacheMisses, time.Since(started))
	log.Debug().
		Str("start", FormatDay(req.Range.Start())).
		Str("end", FormatDay(req.Range.End())).
		Str("granularity", string(granularity)).
		Int("cache_hits", resp.CacheHits).
		Int("cache_misses", resp.CacheMisses).
		Int("failed_days", len(resp.FailedDays)).
		Str("source", string(resp.Source)).
		Dur("latency", time.Since(started)).
		Msg("cost query served")

	return resp, nil
}

// lookup checks the cache for every eligible day with bounded parallelism.
func (o *Orchestrator) lookup(ctx context.Context, slots []daySlot, granularity Granularity) {
	var g errgroup.Group
	g.SetLimit(o.cfg.Parallelism)

	for i := range slots {
		s := &slots[i]
		if !s.eligible {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			s.lookup = o.store.Get(ctx, PartitionKey{Granularity: granularity, Day: s.day})
			if s.lookup.Status == LookupExpired {
				log.Debug().
					Str("day", FormatDay(s.day)).
					Time("written_at", s.lookup.WrittenAt).
					Msg("cache entry expired")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// fetchMisses fills every non-hit slot from the backend with bounded parallelism.
func (o *Orchestrator) fetchMisses(ctx context.Context, slots []daySlot, granularity Granularity, today time.Time) {
	var g errgroup.Group
	g.SetLimit(o.cfg.Parallelism)

	for i := range slots {
		s := &slots[i]
		if s.lookup.Status == LookupHit {
			s.hit = true
			s.rows = s.lookup.Rows
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				s.err = &FetchError{Day: s.day, Err: err}
				s.timedOut = true
				log.Warn().Str("day", FormatDay(s.day)).Msg("query deadline reached before fetch, day omitted")
				return nil
			}
			key := PartitionKey{Granularity: granularity, Day: s.day}
			rows, err := o.fetchAndCache(ctx, key, s.day.Before(today))
			if err != nil {
				s.err = &FetchError{Day: s.day, Err: err}
				s.timedOut = ctx.Err() != nil
				log.Warn().Err(err).Str("day", FormatDay(s.day)).Msg("backend fetch failed, day omitted")
				return nil
			}
			s.rows = rows
			return nil
		})
	}
	_ = g.Wait()
}

// fetchAndCache fetches the unfiltered day and, when cacheable, writes it back.
// A failed write is logged and swallowed; the fresh rows are still returned.
//
// The fetch is shared by every query waiting on the same partition, so it runs
// detached from ctx under its own timeout. Each caller still stops waiting
// when its own ctx is done.
func (o *Orchestrator) fetchAndCache(ctx context.Context, key PartitionKey, cacheable bool) ([]CostEntry, error) {
	ch := o.inflight.DoChan(key.String(), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.fetchTimeout())
		defer cancel()

		started := time.Now()
		rows, err := o.backend.FetchDay(fetchCtx, key.Day, key.Granularity, nil)
		o.observer.ObserveBackendFetch(err == nil, time.Since(started))
		if err != nil {
			return nil, err
		}
		if cacheable {
			if err := o.store.Put(fetchCtx, key, rows); err != nil {
				log.Warn().Err(err).Str("partition", key.String()).Msg("cache put failed, serving fresh data")
			}
		}
		return rows, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		rows, ok := res.Val.([]CostEntry)
		if !ok {
			return nil, errors.New("unexpected fetch result type")
		}
		return rows, nil
	}
}

func (o *Orchestrator) fetchTimeout() time.Duration {
	if o.cfg.Timeout > 0 {
		return o.cfg.Timeout
	}
	return DefaultFetchTimeout
}

// allBackendFailed reports ErrBackendUnavailable when every day failed with a
// backend error. Days cut short by the query deadline do not count.
func allBackendFailed(slots []daySlot) error {
	var firstErr error
	for _, s := range slots {
		if s.err == nil || s.timedOut {
			return nil
		}
		if firstErr == nil {
			firstErr = s.err
		}
	}
	if firstErr == nil {
		return nil
	}
	return fmt.Errorf("%w: all %d days failed: %w", ErrBackendUnavailable, len(slots), firstErr)
}

// assemble merges slots in day order, filters in memory, and classifies the source.
func assemble(slots []daySlot, services ServiceFilter) *QueryResponse {
	resp := &QueryResponse{ServicesRequested: services.Names()}

	rows := make([]CostEntry, 0)
	for _, s := range slots {
		if s.hit {
			resp.CacheHits++
		} else {
			resp.CacheMisses++
		}
		if s.err != nil {
			resp.FailedDays = append(resp.FailedDays, s.day)
			continue
		}
		rows = append(rows, services.Apply(s.rows)...)
	}
	SortEntries(rows)

	resp.Rows = rows
	resp.Source = ClassifySource(resp.CacheHits, resp.CacheMisses)
	resp.Partial = len(resp.FailedDays) > 0
	return resp
}

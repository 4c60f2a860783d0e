package costcache

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPrewarmOffset is how long after midnight UTC the daily prewarm runs.
const DefaultPrewarmOffset = 15 * time.Minute

// PrewarmResult describes one prewarm pass.
type PrewarmResult struct {
	Day    time.Time
	Rows   int
	Cached bool
	Err    error
}

// Prewarmer refreshes yesterday's partition so the most common query is
// always served from cache.
type Prewarmer struct {
	store    Partitions
	backend  CostBackend
	offset   time.Duration
	now      func() time.Time
	observer Observer
}

// PrewarmOption configures a Prewarmer.
type PrewarmOption func(*Prewarmer)

// WithPrewarmClock overrides the clock.
func WithPrewarmClock(now func() time.Time) PrewarmOption {
	return func(p *Prewarmer) { p.now = now }
}

// WithPrewarmObserver reports each pass to obs.
func WithPrewarmObserver(obs Observer) PrewarmOption {
	return func(p *Prewarmer) {
		if obs != nil {
			p.observer = obs
		}
	}
}

// NewPrewarmer creates a prewarmer that runs offset after each UTC midnight.
func NewPrewarmer(store Partitions, backend CostBackend, offset time.Duration, opts ...PrewarmOption) *Prewarmer {
	if offset <= 0 {
		offset = DefaultPrewarmOffset
	}
	p := &Prewarmer{
		store:    store,
		backend:  backend,
		offset:   offset,
		now:      time.Now,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PrewarmYesterday fetches yesterday's unfiltered DAILY rows and overwrites the
// cache entry whether or not a valid one exists. Failures are logged and
// reported in the result; they never panic or propagate.
func (p *Prewarmer) PrewarmYesterday(ctx context.Context) PrewarmResult {
	day := Day(p.now()).AddDate(0, 0, -1)
	result := PrewarmResult{Day: day}

	log.Info().Str("day", FormatDay(day)).Msg("prewarming cost cache")

	rows, err := p.backend.FetchDay(ctx, day, Daily, nil)
	if err != nil {
		log.Error().Err(err).Str("day", FormatDay(day)).Msg("prewarm fetch failed")
		p.observer.ObservePrewarm(false)
		result.Err = &FetchError{Day: day, Err: err}
		return result
	}
	result.Rows = len(rows)
	if len(rows) == 0 {
		log.Info().Str("day", FormatDay(day)).Msg("no cost data found, caching empty day")
	}

	key := PartitionKey{Granularity: Daily, Day: day}
	if err := p.store.Put(ctx, key, rows); err != nil {
		log.Error().Err(err).Str("partition", key.String()).Msg("prewarm cache write failed")
		p.observer.ObservePrewarm(false)
		result.Err = err
		return result
	}

	result.Cached = true
	p.observer.ObservePrewarm(true)
	log.Info().Str("partition", key.String()).Int("rows", len(rows)).Msg("prewarm complete")
	return result
}

// Start runs PrewarmYesterday once per day at the configured offset after
// midnight UTC until ctx is canceled, then returns ctx.Err(). If runNow is set,
// a pass runs immediately.
func (p *Prewarmer) Start(ctx context.Context, runNow bool) error {
	if runNow {
		p.PrewarmYesterday(ctx)
	}

	for {
		now := p.now()
		next := NextPrewarm(now, p.offset)
		log.Debug().Time("next_run", next).Msg("prewarm scheduled")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			p.PrewarmYesterday(ctx)
		}
	}
}

// NextPrewarm returns the first run time strictly after now.
func NextPrewarm(now time.Time, offset time.Duration) time.Time {
	next := Day(now).Add(offset)
	if !next.After(now) {
		next = Day(now).AddDate(0, 0, 1).Add(offset)
	}
	return next
}

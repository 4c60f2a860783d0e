package monitoring

import (
	"time"

	"github.com/compresr/cost-insights/internal/costcache"
)

// Fanout forwards every cache event to each observer in order.
type Fanout []costcache.Observer

// NewFanout drops nil observers.
func NewFanout(observers ...costcache.Observer) Fanout {
	f := make(Fanout, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			f = append(f, o)
		}
	}
	return f
}

func (f Fanout) ObserveLookup(status string) {
	for _, o := range f {
		o.ObserveLookup(status)
	}
}

func (f Fanout) ObserveStoreError(op string) {
	for _, o := range f {
		o.ObserveStoreError(op)
	}
}

func (f Fanout) ObserveBackendFetch(ok bool, latency time.Duration) {
	for _, o := range f {
		o.ObserveBackendFetch(ok, latency)
	}
}

func (f Fanout) ObserveQuery(source string, hits, misses int, latency time.Duration) {
	for _, o := range f {
		o.ObserveQuery(source, hits, misses, latency)
	}
}

func (f Fanout) ObservePrewarm(ok bool) {
	for _, o := range f {
		o.ObservePrewarm(ok)
	}
}

// Package costcache implements the day-partitioned cost query cache.
//
// DESIGN: A query range is split into calendar days. Each day is one cache
// partition holding the complete, unfiltered service breakdown for that day:
//   - partition.go:    DateRange -> ordered days
//   - store.go:        PartitionStore (TTL lookups over a blobstore.Store)
//   - backend.go:      CostBackend contract for the billing source
//   - orchestrator.go: per-day hit/miss split, bounded fetches, merge
//   - prewarm.go:      daily refresh of yesterday's partition
//
// Service filters are applied in memory after retrieval and never become part
// of a cache key, so every filter combination reuses the same partitions.
package costcache

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format for calendar days.
const DateLayout = "2006-01-02"

// =============================================================================
// GRANULARITY
// =============================================================================

// Granularity is the aggregation width requested by the caller.
// The cache itself is always day-granular.
type Granularity string

const (
	Daily   Granularity = "DAILY"
	Monthly Granularity = "MONTHLY"
)

// ParseGranularity normalizes a caller-supplied granularity. Empty means Daily.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToUpper(strings.TrimSpace(s))) {
	case "", Daily:
		return Daily, nil
	case Monthly:
		return Monthly, nil
	}
	return "", fmt.Errorf("%w: unknown granularity %q", ErrInvalidRequest, s)
}

// =============================================================================
// DATES
// =============================================================================

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string as a UTC day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrInvalidRequest, s)
	}
	return t, nil
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DateRange is an inclusive [start, end] span of days. The zero value is invalid.
type DateRange struct {
	start time.Time
	end   time.Time
}

// NewDateRange builds a range, rejecting start after end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	s, e := Day(start), Day(end)
	if s.After(e) {
		return DateRange{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, FormatDay(s), FormatDay(e))
	}
	return DateRange{start: s, end: e}, nil
}

// Start returns the first day of the range.
func (r DateRange) Start() time.Time { return r.start }

// End returns the last day of the range.
func (r DateRange) End() time.Time { return r.end }

// IsZero reports whether r was never constructed.
func (r DateRange) IsZero() bool { return r.start.IsZero() && r.end.IsZero() }

// Days returns the number of calendar days covered.
func (r DateRange) Days() int {
	if r.IsZero() {
		return 0
	}
	return int(r.end.Sub(r.start).Hours()/24) + 1
}

// =============================================================================
// COST ROWS
// =============================================================================

// CostEntry is one service's cost on one day.
type CostEntry struct {
	Date      time.Time
	Service   string
	AmountUSD decimal.Decimal
}

// FormattedCost renders the amount for display, e.g. "$12.34".
func (e CostEntry) FormattedCost() string {
	return "$" + e.AmountUSD.StringFixed(2)
}

// SortEntries orders rows by (date, service) in place.
func SortEntries(rows []CostEntry) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Service < rows[j].Service
	})
}

// =============================================================================
// SERVICE FILTER
// =============================================================================

// ServiceFilter is a set of service names. Empty means "no filter".
type ServiceFilter map[string]struct{}

// NewServiceFilter builds a filter, dropping blank names.
func NewServiceFilter(names ...string) ServiceFilter {
	f := make(ServiceFilter, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			f[n] = struct{}{}
		}
	}
	return f
}

// Empty reports whether the filter matches everything.
func (f ServiceFilter) Empty() bool { return len(f) == 0 }

// Contains reports whether service passes the filter.
func (f ServiceFilter) Contains(service string) bool {
	if f.Empty() {
		return true
	}
	_, ok := f[service]
	return ok
}

// Names returns the filter's services sorted. Never nil.
func (f ServiceFilter) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply returns the rows that pass the filter in a new slice.
// The input is never modified, since it may be shared between callers.
func (f ServiceFilter) Apply(rows []CostEntry) []CostEntry {
	out := make([]CostEntry, 0, len(rows))
	for _, r := range rows {
		if f.Contains(r.Service) {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// CACHE KEYS AND LOOKUPS
// =============================================================================

// PartitionKey identifies one cached day. It never carries a service filter.
type PartitionKey struct {
	Granularity Granularity
	Day         time.Time
}

// Path returns the blob path, e.g. cost_cache/DAILY/__ALL__/2025-04-01.json.
func (k PartitionKey) Path(prefix string) string {
	return fmt.Sprintf("%s/%s/__ALL__/%s.json", strings.TrimSuffix(prefix, "/"), k.Granularity, FormatDay(k.Day))
}

func (k PartitionKey) String() string {
	return string(k.Granularity) + "/" + FormatDay(k.Day)
}

// LookupStatus classifies a cache lookup.
type LookupStatus int

const (
	LookupMiss LookupStatus = iota
	LookupHit
	LookupExpired
)

func (s LookupStatus) String() string {
	switch s {
	case LookupHit:
		return "hit"
	case LookupExpired:
		return "expired"
	default:
		return "miss"
	}
}

// LookupOutcome is the result of PartitionStore.Get.
// Err is set when a miss was caused by an unreachable store or a bad payload.
type LookupOutcome struct {
	Status    LookupStatus
	Rows      []CostEntry
	WrittenAt time.Time
	Err       error
}

// =============================================================================
// QUERIES
// =============================================================================

// QueryRequest is a normalized cost query.
type QueryRequest struct {
	Range       DateRange
	Granularity Granularity
	Services    ServiceFilter
	IgnoreCache bool
}

// Source labels where a response's data came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceFresh Source = "fresh"
	SourceMixed Source = "mixed"
)

// ClassifySource derives the provenance label from hit/miss counts.
func ClassifySource(hits, misses int) Source {
	switch {
	case misses == 0:
		return SourceCache
	case hits == 0:
		return SourceFresh
	default:
		return SourceMixed
	}
}

// QueryResponse is the merged result of a query.
type QueryResponse struct {
	Rows              []CostEntry
	Source            Source
	CacheHits         int
	CacheMisses       int
	ServicesRequested []string

	// FailedDays lists days whose fetch failed or never ran before the deadline.
	FailedDays []time.Time
	Partial    bool
}

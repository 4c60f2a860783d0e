package costcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/compresr/cost-insights/internal/blobstore"
	"github.com/compresr/cost-insights/internal/utils"
)

// DefaultKeyPrefix is the blob path prefix used by the original deployment.
const DefaultKeyPrefix = "cost_cache"

// Partitions is the cache contract used by the orchestrator and prewarmer.
type Partitions interface {
	Get(ctx context.Context, key PartitionKey) LookupOutcome
	Put(ctx context.Context, key PartitionKey, rows []CostEntry) error
}

// StoreConfig configures a PartitionStore.
type StoreConfig struct {
	Prefix string
	TTL    time.Duration
}

// PartitionStore layers TTL validity and row encoding over a blob store.
type PartitionStore struct {
	blobs    blobstore.Store
	prefix   string
	ttl      time.Duration
	now      func() time.Time
	observer Observer
}

// StoreOption configures a PartitionStore.
type StoreOption func(*PartitionStore)

// WithStoreClock overrides the clock used for TTL checks.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *PartitionStore) { s.now = now }
}

// WithStoreObserver reports lookups and store errors to o.
func WithStoreObserver(o Observer) StoreOption {
	return func(s *PartitionStore) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewPartitionStore wraps blobs with TTL semantics.
func NewPartitionStore(blobs blobstore.Store, cfg StoreConfig, opts ...StoreOption) *PartitionStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	s := &PartitionStore{
		blobs:    blobs,
		prefix:   prefix,
		ttl:      cfg.TTL,
		now:      time.Now,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured validity window.
func (s *PartitionStore) TTL() time.Duration { return s.ttl }

// Get looks up a partition. Store failures and undecodable payloads degrade to
// a miss with Err set; they are never returned as errors.
func (s *PartitionStore) Get(ctx context.Context, key PartitionKey) LookupOutcome {
	path := key.Path(s.prefix)

	blob, err := s.blobs.Get(ctx, path)
	if errors.Is(err, blobstore.ErrNotFound) {
		s.observer.ObserveLookup(LookupMiss.String())
		return LookupOutcome{Status: LookupMiss}
	}
	if err != nil {
		log.Warn().Err(err).Str("key", path).Msg("cache get failed, treating as miss")
		s.observer.ObserveStoreError("get")
		s.observer.ObserveLookup(LookupMiss.String())
		return LookupOutcome{Status: LookupMiss, Err: fmt.Errorf("%w: %w", ErrStoreUnavailable, err)}
	}

	if age := s.now().Sub(blob.LastModified); age >= s.ttl {
		s.observer.ObserveLookup(LookupExpired.String())
		return LookupOutcome{Status: LookupExpired, WrittenAt: blob.LastModified}
	}

	rows, err := decodeRows(blob.Body, key.Day)
	if err != nil {
		log.Warn().Err(err).Str("key", path).Msg("cache payload undecodable, treating as miss")
		s.observer.ObserveLookup(LookupMiss.String())
		return LookupOutcome{Status: LookupMiss, Err: err}
	}

	s.observer.ObserveLookup(LookupHit.String())
	return LookupOutcome{Status: LookupHit, Rows: rows, WrittenAt: blob.LastModified}
}

// Put replaces the partition with rows. The write time is assigned by the
// underlying blob store.
func (s *PartitionStore) Put(ctx context.Context, key PartitionKey, rows []CostEntry) error {
	body, err := encodeRows(rows)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.blobs.Put(ctx, key.Path(s.prefix), body); err != nil {
		s.observer.ObserveStoreError("put")
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping reports whether the underlying blob store is reachable.
func (s *PartitionStore) Ping(ctx context.Context) error {
	return s.blobs.Ping(ctx)
}

// =============================================================================
// PAYLOAD ENCODING
// =============================================================================

// storedRow is the on-disk row shape. Cost is the legacy display-string field
// written by the earlier prewarm job and is only read, never written.
type storedRow struct {
	Date      string           `json:"date"`
	Service   string           `json:"service"`
	AmountUSD *decimal.Decimal `json:"amount_usd,omitempty"`
	Cost      string           `json:"cost,omitempty"`
}

func encodeRows(rows []CostEntry) ([]byte, error) {
	stored := make([]storedRow, len(rows))
	for i, r := range rows {
		amount := r.AmountUSD
		stored[i] = storedRow{
			Date:      FormatDay(r.Date),
			Service:   r.Service,
			AmountUSD: &amount,
		}
	}
	return utils.MarshalNoEscape(stored)
}

func decodeRows(body []byte, day time.Time) ([]CostEntry, error) {
	var stored []storedRow
	if err := json.Unmarshal(body, &stored); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if stored == nil {
		// "null" is not a valid snapshot; an empty day is stored as [].
		return nil, fmt.Errorf("%w: null payload", ErrMalformedPayload)
	}

	rows := make([]CostEntry, 0, len(stored))
	for _, sr := range stored {
		date := day
		if sr.Date != "" {
			d, err := time.Parse(DateLayout, sr.Date)
			if err != nil {
				return nil, fmt.Errorf("%w: row date %q", ErrMalformedPayload, sr.Date)
			}
			date = d
		}
		if sr.Service == "" {
			return nil, fmt.Errorf("%w: row without service", ErrMalformedPayload)
		}

		var amount decimal.Decimal
		switch {
		case sr.AmountUSD != nil:
			amount = *sr.AmountUSD
		case sr.Cost != "":
			a, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(sr.Cost), "$"))
			if err != nil {
				return nil, fmt.Errorf("%w: cost %q", ErrMalformedPayload, sr.Cost)
			}
			amount = a
		default:
			return nil, fmt.Errorf("%w: row without amount", ErrMalformedPayload)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("%w: negative amount for %s", ErrMalformedPayload, sr.Service)
		}

		rows = append(rows, CostEntry{Date: date, Service: sr.Service, AmountUSD: amount})
	}
	return rows, nil
}

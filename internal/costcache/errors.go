package costcache

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRequest marks caller errors (bad dates, unknown granularity).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidRange marks a range with start after end or over the size limit.
	ErrInvalidRange = fmt.Errorf("%w: invalid date range", ErrInvalidRequest)
	// ErrStoreUnavailable wraps blob store failures. Never fails a query.
	ErrStoreUnavailable = errors.New("cache store unavailable")
	// ErrMalformedPayload marks a cached blob that could not be decoded.
	ErrMalformedPayload = errors.New("malformed cache payload")
	// ErrBackendUnavailable is returned when every day in a range failed to fetch.
	ErrBackendUnavailable = errors.New("billing backend unavailable")
)

// FetchError records a failed backend fetch for a single day.
type FetchError struct {
	Day time.Time
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", FormatDay(e.Day), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

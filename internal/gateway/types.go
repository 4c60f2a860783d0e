// Package gateway types - wire types for the cost insights HTTP API.
//
// DESIGN: Types used by the gateway for:
//   - Request decoding (CostRequest, string-or-list service field)
//   - Response encoding (CostResponse, SummaryResponse, errorResponse)
//
// The core package never sees these; the handler converts at the boundary.
package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// HeaderRequestID carries the caller's request ID, echoed on every response.
const HeaderRequestID = "X-Request-ID"

// =============================================================================
// REQUEST
// =============================================================================

// CostRequest is the body of POST /cost-insights and /cost-insights/summary.
type CostRequest struct {
	Start       string       `json:"start"`
	End         string       `json:"end"`
	Granularity string       `json:"granularity"`
	Service     serviceField `json:"service"`
	IgnoreCache bool         `json:"ignore_cache"`
}

// serviceField accepts "EC2", ["EC2", "S3"], or null.
type serviceField []string

func (s *serviceField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		if one == "" {
			*s = nil
		} else {
			*s = serviceField{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("service must be a string or a list of strings")
	}
	*s = many
	return nil
}

// =============================================================================
// RESPONSES
// =============================================================================

// CostResult is one presented row.
type CostResult struct {
	Date    string `json:"date"`
	Service string `json:"service"`
	Cost    string `json:"cost"`
}

// CostResponse is the 200 body of POST /cost-insights.
type CostResponse struct {
	Message           string       `json:"message"`
	Start             string       `json:"start"`
	End               string       `json:"end"`
	Granularity       string       `json:"granularity"`
	Results           []CostResult `json:"results"`
	Source            string       `json:"source"`
	CacheHits         int          `json:"cache_hits"`
	CacheMisses       int          `json:"cache_misses"`
	ServicesRequested []string     `json:"services_requested"`
	FailedDays        []string     `json:"failed_days,omitempty"`
	Partial           bool         `json:"partial,omitempty"`
}

// SummaryResponse is the 200 body of POST /cost-insights/summary.
type SummaryResponse struct {
	Summary      string `json:"summary"`
	Source       string `json:"source"`
	CacheHits    int    `json:"cache_hits"`
	CacheMisses  int    `json:"cache_misses"`
	RowsIncluded int    `json:"rows_included"`
	RowsOmitted  int    `json:"rows_omitted,omitempty"`
}

// errorResponse is the flat error body used by every endpoint.
type errorResponse struct {
	Error string `json:"error"`
}

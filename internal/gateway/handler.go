// HTTP request handling for the cost insights gateway.
//
// DESIGN: Main request flow:
//   - handleCostInsights(): decode, query, roll up, format
//   - handleSummary():      same query, rows handed to the summarizer
//   - runQuery():           shared decode/validate/query step, maps errors to status
//
// Also includes health check and telemetry helpers.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/compresr/cost-insights/internal/costcache"
	"github.com/compresr/cost-insights/internal/monitoring"
	"github.com/compresr/cost-insights/internal/summarizer"
)

const (
	msgCostDataFetched = "Cost data fetched"
	healthPingTimeout  = 2 * time.Second
)

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a flat JSON error response.
func (g *Gateway) writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// handleCostInsights serves POST /cost-insights.
func (g *Gateway) handleCostInsights(w http.ResponseWriter, r *http.Request) {
	ev := g.newQueryEvent(r)
	defer g.recordQueryTelemetry(ev)

	q, resp, status, err := g.runQuery(w, r, ev)
	if err != nil {
		ev.StatusCode, ev.Error = status, err.Error()
		g.writeError(w, errorMessage(err), status)
		return
	}

	out := NewCostResponse(q, resp)
	ev.StatusCode = http.StatusOK
	ev.Rows = len(out.Results)
	writeJSON(w, http.StatusOK, out)
}

// handleSummary serves POST /cost-insights/summary.
func (g *Gateway) handleSummary(w http.ResponseWriter, r *http.Request) {
	ev := g.newQueryEvent(r)
	defer g.recordQueryTelemetry(ev)

	if g.summarizer == nil {
		ev.StatusCode, ev.Error = http.StatusServiceUnavailable, summarizer.ErrNotConfigured.Error()
		g.writeError(w, "cost summary is not configured", http.StatusServiceUnavailable)
		return
	}

	q, resp, status, err := g.runQuery(w, r, ev)
	if err != nil {
		ev.StatusCode, ev.Error = status, err.Error()
		g.writeError(w, errorMessage(err), status)
		return
	}

	rows := resp.Rows
	if q.Granularity == costcache.Monthly {
		rows = rollupMonthly(rows)
	}
	ev.Rows = len(rows)

	sum, err := g.summarizer.SummarizeCosts(r.Context(), rows)
	if err != nil {
		status = http.StatusBadGateway
		if errors.Is(err, summarizer.ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		log.Error().Err(err).Str("request_id", ev.RequestID).Msg("cost summary failed")
		ev.StatusCode, ev.Error = status, err.Error()
		g.writeError(w, "cost summary failed", status)
		return
	}

	ev.StatusCode = http.StatusOK
	writeJSON(w, http.StatusOK, SummaryResponse{
		Summary:      sum.Text,
		Source:       string(resp.Source),
		CacheHits:    resp.CacheHits,
		CacheMisses:  resp.CacheMisses,
		RowsIncluded: sum.RowsIncluded,
		RowsOmitted:  sum.RowsOmitted,
	})
}

// runQuery decodes the body, validates it and runs the query. On failure it
// returns the HTTP status the error maps to.
func (g *Gateway) runQuery(w http.ResponseWriter, r *http.Request, ev *monitoring.QueryEvent) (costcache.QueryRequest, *costcache.QueryResponse, int, error) {
	req, err := decodeCostRequest(w, r)
	if err != nil {
		return costcache.QueryRequest{}, nil, http.StatusBadRequest, err
	}

	q, err := ToQuery(req, g.now())
	if err != nil {
		return q, nil, http.StatusBadRequest, err
	}
	ev.StartDate = costcache.FormatDay(q.Range.Start())
	ev.EndDate = costcache.FormatDay(q.Range.End())
	ev.Granularity = string(q.Granularity)
	ev.ServicesRequested = q.Services.Names()
	ev.IgnoreCache = q.IgnoreCache

	resp, err := g.querier.Query(r.Context(), q)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, costcache.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		log.Error().
			Err(err).
			Str("request_id", ev.RequestID).
			Int("status", status).
			Msg("cost query failed")
		return q, nil, status, err
	}

	ev.Source = string(resp.Source)
	ev.CacheHits = resp.CacheHits
	ev.CacheMisses = resp.CacheMisses
	ev.FailedDays = formatDays(resp.FailedDays)
	if resp.Partial {
		log.Warn().
			Str("request_id", ev.RequestID).
			Strs("failed_days", ev.FailedDays).
			Msg("partial cost response")
	}
	return q, resp, http.StatusOK, nil
}

// errorMessage is the client-facing text for err.
func errorMessage(err error) string {
	if errors.Is(err, errInvalidJSON) {
		return msgInvalidJSON
	}
	return err.Error()
}

// handleHealth reports whether the cache store is reachable.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if g.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := g.store.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("health check: cache store unreachable")
			health["status"] = "degraded"
		}
	}

	status := http.StatusOK
	if health["status"] != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// getRequestID gets or generates a request ID.
func (g *Gateway) getRequestID(r *http.Request) string {
	if id := r.Header.Get(HeaderRequestID); id != "" {
		return id
	}
	if id := monitoring.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return uuid.New().String()
}

// =============================================================================
// TELEMETRY HELPERS
// =============================================================================

func (g *Gateway) newQueryEvent(r *http.Request) *monitoring.QueryEvent {
	return &monitoring.QueryEvent{
		RequestID: g.getRequestID(r),
		Timestamp: time.Now(),
		Endpoint:  r.URL.Path,
		ClientIP:  clientIP(r),
	}
}

// recordQueryTelemetry records a complete query event and the request counter.
func (g *Gateway) recordQueryTelemetry(ev *monitoring.QueryEvent) {
	latency := time.Since(ev.Timestamp)
	ev.TotalLatencyMs = latency.Milliseconds()
	ev.Success = ev.StatusCode > 0 && ev.StatusCode < 400

	g.metrics.RecordRequest(ev.Success, latency)
	g.tracker.RecordQuery(ev)
}

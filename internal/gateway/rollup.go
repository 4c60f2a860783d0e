package gateway

import (
	"time"

	"github.com/compresr/cost-insights/internal/costcache"
)

// rollupMonthly sums daily rows into (first day of month, service) rows.
// Output is sorted by (month, service).
func rollupMonthly(rows []costcache.CostEntry) []costcache.CostEntry {
	type monthKey struct {
		month   time.Time
		service string
	}

	index := make(map[monthKey]int, len(rows))
	out := make([]costcache.CostEntry, 0, len(rows))
	for _, r := range rows {
		d := costcache.Day(r.Date)
		k := monthKey{month: time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC), service: r.Service}
		if i, ok := index[k]; ok {
			out[i].AmountUSD = out[i].AmountUSD.Add(r.AmountUSD)
			continue
		}
		index[k] = len(out)
		out = append(out, costcache.CostEntry{Date: k.month, Service: r.Service, AmountUSD: r.AmountUSD})
	}
	costcache.SortEntries(out)
	return out
}

// NewCostResponse presents a query result the way POST /cost-insights
// returns it. MONTHLY queries are rolled up here.
func NewCostResponse(q costcache.QueryRequest, resp *costcache.QueryResponse) CostResponse {
	rows := resp.Rows
	if q.Granularity == costcache.Monthly {
		rows = rollupMonthly(rows)
	}
	services := resp.ServicesRequested
	if services == nil {
		services = []string{}
	}
	return CostResponse{
		Message:           msgCostDataFetched,
		Start:             costcache.FormatDay(q.Range.Start()),
		End:               costcache.FormatDay(q.Range.End()),
		Granularity:       string(q.Granularity),
		Results:           formatResults(rows),
		Source:            string(resp.Source),
		CacheHits:         resp.CacheHits,
		CacheMisses:       resp.CacheMisses,
		ServicesRequested: services,
		FailedDays:        formatDays(resp.FailedDays),
		Partial:           resp.Partial,
	}
}

// formatResults renders rows for the wire. Never nil.
func formatResults(rows []costcache.CostEntry) []CostResult {
	out := make([]CostResult, len(rows))
	for i, r := range rows {
		out[i] = CostResult{
			Date:    costcache.FormatDay(r.Date),
			Service: r.Service,
			Cost:    r.FormattedCost(),
		}
	}
	return out
}

func formatDays(days []time.Time) []string {
	if len(days) == 0 {
		return nil
	}
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = costcache.FormatDay(d)
	}
	return out
}

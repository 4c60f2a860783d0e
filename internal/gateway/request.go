// Request utilities - body decoding and conversion to a core query.
//
// DESIGN:
//   - decodeCostRequest(): size-limited JSON decode, any failure is a 400
//   - ToQuery():           dates, granularity and service set validation
//
// Missing start and end default to yesterday, the range the scheduled job
// always reported.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/compresr/cost-insights/internal/config"
	"github.com/compresr/cost-insights/internal/costcache"
)

// msgInvalidJSON is the 400 body for any undecodable request.
const msgInvalidJSON = "Invalid JSON input"

var errInvalidJSON = errors.New("invalid JSON input")

// decodeCostRequest reads and decodes the request body.
func decodeCostRequest(w http.ResponseWriter, r *http.Request) (*CostRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	var req CostRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return &req, nil
}

// ToQuery validates req and converts it into a core query.
func ToQuery(req *CostRequest, now time.Time) (costcache.QueryRequest, error) {
	var q costcache.QueryRequest

	granularity, err := costcache.ParseGranularity(req.Granularity)
	if err != nil {
		return q, err
	}

	var start, end time.Time
	switch {
	case req.Start == "" && req.End == "":
		yesterday := costcache.Day(now).AddDate(0, 0, -1)
		start, end = yesterday, yesterday
	case req.Start == "" || req.End == "":
		return q, fmt.Errorf("%w: start and end must be given together", costcache.ErrInvalidRequest)
	default:
		if start, err = costcache.ParseDay(req.Start); err != nil {
			return q, err
		}
		if end, err = costcache.ParseDay(req.End); err != nil {
			return q, err
		}
	}

	rng, err := costcache.NewDateRange(start, end)
	if err != nil {
		return q, err
	}

	return costcache.QueryRequest{
		Range:       rng,
		Granularity: granularity,
		Services:    costcache.NewServiceFilter(req.Service...),
		IgnoreCache: req.IgnoreCache,
	}, nil
}

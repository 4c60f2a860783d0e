// Package billing fetches per-service daily costs from AWS Cost Explorer.
//
// DESIGN: The Client implements costcache.CostBackend.
//   - One GetCostAndUsage call per day, [day, day+1) in UTC
//   - Grouped by DIMENSION/SERVICE, metric UnblendedCost by default
//   - Every call waits on a token bucket; Cost Explorer throttles hard
//   - Amounts are parsed as decimals and summed per service across pages
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/compresr/cost-insights/internal/costcache"
)

// DefaultMetric is the cost metric reported per service.
const DefaultMetric = "UnblendedCost"

// Cost Explorer allows roughly 5 requests per second per account.
const (
	DefaultRequestsPerSecond = 5.0
	DefaultBurst             = 5
)

// CostExplorerAPI is the subset of the Cost Explorer client used here.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
	GetDimensionValues(ctx context.Context, params *costexplorer.GetDimensionValuesInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetDimensionValuesOutput, error)
}

// Config tunes the client.
type Config struct {
	Metric            string
	RequestsPerSecond float64
	Burst             int
}

// Client fetches cost rows from Cost Explorer.
type Client struct {
	api     CostExplorerAPI
	metric  string
	limiter *rate.Limiter
}

// NewClient wraps api. Zero config fields fall back to the package defaults.
func NewClient(api CostExplorerAPI, cfg Config) *Client {
	if cfg.Metric == "" {
		cfg.Metric = DefaultMetric
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	return &Client{
		api:     api,
		metric:  cfg.Metric,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// NewFromAWS builds a client from the default AWS credential chain.
func NewFromAWS(ctx context.Context, region string, cfg Config) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return NewClient(costexplorer.NewFromConfig(awsCfg), cfg), nil
}

// FetchDay returns one row per service for day. A non-empty filter is pushed
// down to Cost Explorer; the cache always passes an empty one.
func (c *Client) FetchDay(ctx context.Context, day time.Time, granularity costcache.Granularity, services costcache.ServiceFilter) ([]costcache.CostEntry, error) {
	day = costcache.Day(day)
	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(costcache.FormatDay(day)),
			End:   aws.String(costcache.FormatDay(day.AddDate(0, 0, 1))),
		},
		Granularity: ceGranularity(granularity),
		Metrics:     []string{c.metric},
		GroupBy: []types.GroupDefinition{{
			Type: types.GroupDefinitionTypeDimension,
			Key:  aws.String(string(types.DimensionService)),
		}},
	}
	if !services.Empty() {
		input.Filter = &types.Expression{
			Dimensions: &types.DimensionValues{
				Key:    types.DimensionService,
				Values: services.Names(),
			},
		}
	}

	totals := make(map[string]decimal.Decimal)
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		out, err := c.api.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("get cost and usage for %s: %w", costcache.FormatDay(day), err)
		}
		if err := c.accumulate(out.ResultsByTime, totals); err != nil {
			return nil, err
		}
		if aws.ToString(out.NextPageToken) == "" {
			break
		}
		input.NextPageToken = out.NextPageToken
	}

	rows := make([]costcache.CostEntry, 0, len(totals))
	for svc, amount := range totals {
		rows = append(rows, costcache.CostEntry{Date: day, Service: svc, AmountUSD: amount})
	}
	costcache.SortEntries(rows)

	log.Debug().
		Str("day", costcache.FormatDay(day)).
		Int("services", len(rows)).
		Msg("cost explorer fetch complete")
	return rows, nil
}

func (c *Client) accumulate(results []types.ResultByTime, totals map[string]decimal.Decimal) error {
	for _, r := range results {
		for _, g := range r.Groups {
			if len(g.Keys) == 0 {
				continue
			}
			svc := g.Keys[0]
			mv, ok := g.Metrics[c.metric]
			if !ok || mv.Amount == nil {
				continue
			}
			amount, err := decimal.NewFromString(aws.ToString(mv.Amount))
			if err != nil {
				return fmt.Errorf("parsing amount %q for %s: %w", aws.ToString(mv.Amount), svc, err)
			}
			if amount.IsNegative() {
				// Credits and rounding noise show up as tiny negatives.
				amount = decimal.Zero
			}
			totals[svc] = totals[svc].Add(amount)
		}
	}
	return nil
}

// ListServices returns the service names that had usage between start and end.
func (c *Client) ListServices(ctx context.Context, start, end time.Time) ([]string, error) {
	if !start.Before(end) {
		return nil, errors.New("start must be before end")
	}
	input := &costexplorer.GetDimensionValuesInput{
		Dimension: types.DimensionService,
		TimePeriod: &types.DateInterval{
			Start: aws.String(costcache.FormatDay(start)),
			End:   aws.String(costcache.FormatDay(end)),
		},
	}

	var names []string
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		out, err := c.api.GetDimensionValues(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("get dimension values: %w", err)
		}
		for _, v := range out.DimensionValues {
			if name := aws.ToString(v.Value); name != "" {
				names = append(names, name)
			}
		}
		if aws.ToString(out.NextPageToken) == "" {
			break
		}
		input.NextPageToken = out.NextPageToken
	}
	return names, nil
}

func ceGranularity(g costcache.Granularity) types.Granularity {
	if g == costcache.Monthly {
		return types.GranularityMonthly
	}
	return types.GranularityDaily
}

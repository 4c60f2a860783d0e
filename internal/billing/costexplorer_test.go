package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/cost-insights/internal/costcache"
)

type fakeCE struct {
	pages  []*costexplorer.GetCostAndUsageOutput
	err    error
	inputs []costexplorer.GetCostAndUsageInput
	dims   []*costexplorer.GetDimensionValuesOutput
}

func (f *fakeCE) GetCostAndUsage(_ context.Context, in *costexplorer.GetCostAndUsageInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	f.inputs = append(f.inputs, *in)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[len(f.inputs)-1], nil
}

func (f *fakeCE) GetDimensionValues(_ context.Context, in *costexplorer.GetDimensionValuesInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetDimensionValuesOutput, error) {
	page := f.dims[0]
	f.dims = f.dims[1:]
	return page, nil
}

func group(svc, amount string) types.Group {
	return types.Group{
		Keys: []string{svc},
		Metrics: map[string]types.MetricValue{
			DefaultMetric: {Amount: aws.String(amount), Unit: aws.String("USD")},
		},
	}
}

func page(next string, groups ...types.Group) *costexplorer.GetCostAndUsageOutput {
	out := &costexplorer.GetCostAndUsageOutput{
		ResultsByTime: []types.ResultByTime{{Groups: groups}},
	}
	if next != "" {
		out.NextPageToken = aws.String(next)
	}
	return out
}

var day = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

func TestFetchDay_SingleDayWindowGroupedByService(t *testing.T) {
	api := &fakeCE{pages: []*costexplorer.GetCostAndUsageOutput{
		page("", group("Amazon Simple Storage Service", "0.25"), group("Amazon Elastic Compute Cloud - Compute", "12.34")),
	}}
	c := NewClient(api, Config{})

	rows, err := c.FetchDay(context.Background(), day, costcache.Daily, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Amazon Elastic Compute Cloud - Compute", rows[0].Service)
	assert.Equal(t, "$12.34", rows[0].FormattedCost())
	assert.Equal(t, day, rows[0].Date)

	require.Len(t, api.inputs, 1)
	in := api.inputs[0]
	assert.Equal(t, "2025-04-01", aws.ToString(in.TimePeriod.Start))
	assert.Equal(t, "2025-04-02", aws.ToString(in.TimePeriod.End))
	assert.Equal(t, types.GranularityDaily, in.Granularity)
	assert.Equal(t, []string{"UnblendedCost"}, in.Metrics)
	require.Len(t, in.GroupBy, 1)
	assert.Equal(t, "SERVICE", aws.ToString(in.GroupBy[0].Key))
	assert.Nil(t, in.Filter)
}

func TestFetchDay_FollowsPagesAndSumsPerService(t *testing.T) {
	api := &fakeCE{pages: []*costexplorer.GetCostAndUsageOutput{
		page("p2", group("EC2", "1.10")),
		page("", group("EC2", "0.90"), group("S3", "0.05")),
	}}
	c := NewClient(api, Config{RequestsPerSecond: 1000, Burst: 10})

	rows, err := c.FetchDay(context.Background(), day, costcache.Daily, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "$2.00", rows[0].FormattedCost())
	assert.Equal(t, "p2", aws.ToString(api.inputs[1].NextPageToken))
}

func TestFetchDay_ClampsNegativeAmounts(t *testing.T) {
	api := &fakeCE{pages: []*costexplorer.GetCostAndUsageOutput{page("", group("Tax", "-0.0000001"))}}

	rows, err := NewClient(api, Config{}).FetchDay(context.Background(), day, costcache.Daily, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].AmountUSD.IsZero())
}

func TestFetchDay_PushesDownNonEmptyFilter(t *testing.T) {
	api := &fakeCE{pages: []*costexplorer.GetCostAndUsageOutput{page("")}}

	rows, err := NewClient(api, Config{}).FetchDay(context.Background(), day, costcache.Monthly, costcache.NewServiceFilter("S3", "EC2"))
	require.NoError(t, err)
	assert.Empty(t, rows)

	in := api.inputs[0]
	require.NotNil(t, in.Filter)
	assert.Equal(t, types.DimensionService, in.Filter.Dimensions.Key)
	assert.Equal(t, []string{"EC2", "S3"}, in.Filter.Dimensions.Values)
	assert.Equal(t, types.GranularityMonthly, in.Granularity)
}

func TestFetchDay_Errors(t *testing.T) {
	t.Run("api failure", func(t *testing.T) {
		api := &fakeCE{err: errors.New("ThrottlingException")}
		_, err := NewClient(api, Config{}).FetchDay(context.Background(), day, costcache.Daily, nil)
		assert.ErrorContains(t, err, "2025-04-01")
	})

	t.Run("unparseable amount", func(t *testing.T) {
		api := &fakeCE{pages: []*costexplorer.GetCostAndUsageOutput{page("", group("EC2", "abc"))}}
		_, err := NewClient(api, Config{}).FetchDay(context.Background(), day, costcache.Daily, nil)
		assert.Error(t, err)
	})

	t.Run("canceled before rate limiter admits", func(t *testing.T) {
		api := &fakeCE{pages: []*costexplorer.GetCostAndUsageOutput{page("")}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewClient(api, Config{}).FetchDay(ctx, day, costcache.Daily, nil)
		assert.Error(t, err)
		assert.Empty(t, api.inputs)
	})
}

func TestListServices(t *testing.T) {
	api := &fakeCE{dims: []*costexplorer.GetDimensionValuesOutput{
		{DimensionValues: []types.DimensionValuesWithAttributes{{Value: aws.String("EC2")}}, NextPageToken: aws.String("n")},
		{DimensionValues: []types.DimensionValuesWithAttributes{{Value: aws.String("S3")}, {Value: aws.String("")}}},
	}}

	names, err := NewClient(api, Config{}).ListServices(context.Background(), day, day.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"EC2", "S3"}, names)

	_, err = NewClient(api, Config{}).ListServices(context.Background(), day, day)
	assert.Error(t, err)
}

package costcache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/cost-insights/internal/costcache"
)

func TestPartition_DaysAreInclusiveAndAscending(t *testing.T) {
	days, err := costcache.Partition(mustRange(t, "2025-04-01", "2025-04-05"))
	require.NoError(t, err)
	require.Len(t, days, 5)

	for i := 1; i < len(days); i++ {
		assert.Equal(t, 24*time.Hour, days[i].Sub(days[i-1]))
	}
	assert.Equal(t, "2025-04-01", costcache.FormatDay(days[0]))
	assert.Equal(t, "2025-04-05", costcache.FormatDay(days[4]))
}

func TestPartition_SingleDay(t *testing.T) {
	days, err := costcache.Partition(mustRange(t, "2025-04-01", "2025-04-01"))
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2025-04-01", costcache.FormatDay(days[0]))
}

func TestPartition_CrossesMonthAndLeapDay(t *testing.T) {
	r := mustRange(t, "2024-02-27", "2024-03-02")
	days, err := costcache.Partition(r)
	require.NoError(t, err)

	var got []string
	for _, d := range days {
		got = append(got, costcache.FormatDay(d))
	}
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02"}, got)
	assert.Equal(t, 5, r.Days())
}

func TestPartition_ZeroRangeRejected(t *testing.T) {
	_, err := costcache.Partition(costcache.DateRange{})
	assert.ErrorIs(t, err, costcache.ErrInvalidRange)
}

func TestNewDateRange_StartAfterEndRejected(t *testing.T) {
	_, err := costcache.NewDateRange(mustDay(t, "2025-04-02"), mustDay(t, "2025-04-01"))
	assert.ErrorIs(t, err, costcache.ErrInvalidRange)
	assert.ErrorIs(t, err, costcache.ErrInvalidRequest)
}

func TestNewDateRange_TruncatesToDays(t *testing.T) {
	r, err := costcache.NewDateRange(
		time.Date(2025, 4, 1, 23, 59, 0, 0, time.UTC),
		time.Date(2025, 4, 2, 0, 1, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Days())
}

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		in      string
		want    costcache.Granularity
		wantErr bool
	}{
		{"", costcache.Daily, false},
		{"DAILY", costcache.Daily, false},
		{"monthly", costcache.Monthly, false},
		{" Monthly ", costcache.Monthly, false},
		{"HOURLY", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := costcache.ParseGranularity(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, costcache.ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifySource(t *testing.T) {
	assert.Equal(t, costcache.SourceCache, costcache.ClassifySource(3, 0))
	assert.Equal(t, costcache.SourceFresh, costcache.ClassifySource(0, 3))
	assert.Equal(t, costcache.SourceMixed, costcache.ClassifySource(1, 2))
}

func TestServiceFilter(t *testing.T) {
	f := costcache.NewServiceFilter("EC2", " ", "S3", "EC2")
	assert.Equal(t, []string{"EC2", "S3"}, f.Names())
	assert.True(t, f.Contains("S3"))
	assert.False(t, f.Contains("RDS"))

	var none costcache.ServiceFilter
	assert.True(t, none.Empty())
	assert.True(t, none.Contains("anything"))
	assert.NotNil(t, none.Names())
}

package summarizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/compresr/cost-insights/internal/costcache"
)

// =============================================================================
// CLIENT
// =============================================================================

func TestClient_Complete(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pplx-test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"## Spikes\nEC2 doubled."}}],"usage":{"completion_tokens":7}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sonar-pro", "pplx-test-key")
	text, err := c.Complete(context.Background(), "sys", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, "## Spikes\nEC2 doubled.", text)

	assert.Equal(t, "sonar-pro", gjson.GetBytes(gotBody, "model").String())
	assert.Equal(t, "system", gjson.GetBytes(gotBody, "messages.0.role").String())
	assert.Equal(t, "sys", gjson.GetBytes(gotBody, "messages.0.content").String())
	assert.Equal(t, "user", gjson.GetBytes(gotBody, "messages.1.role").String())
	assert.Equal(t, "user prompt", gjson.GetBytes(gotBody, "messages.1.content").String())
}

func TestClient_Errors(t *testing.T) {
	t.Run("no api key", func(t *testing.T) {
		_, err := NewClient("http://unused", "m", "").Complete(context.Background(), "s", "p")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
		}))
		defer srv.Close()
		_, err := NewClient(srv.URL, "m", "k").Complete(context.Background(), "s", "p")
		assert.ErrorIs(t, err, ErrUpstream)
		assert.ErrorContains(t, err, "429")
	})

	t.Run("missing content", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()
		_, err := NewClient(srv.URL, "m", "k").Complete(context.Background(), "s", "p")
		assert.ErrorIs(t, err, ErrUpstream)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		_, err := NewClient(srv.URL, "m", "k", WithTimeout(20*time.Millisecond)).Complete(context.Background(), "s", "p")
		assert.ErrorIs(t, err, ErrUpstream)
	})
}

// =============================================================================
// PROMPT AND TRIMMING
// =============================================================================

type recordingCompleter struct {
	prompt string
	err    error
}

func (r *recordingCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	r.prompt = prompt
	if r.err != nil {
		return "", r.err
	}
	return "summary", nil
}

func costRows(n int) []costcache.CostEntry {
	day := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]costcache.CostEntry, n)
	for i := range rows {
		rows[i] = costcache.CostEntry{
			Date:      day,
			Service:   fmt.Sprintf("Service-%02d", i),
			AmountUSD: decimal.NewFromInt(int64(i + 1)),
		}
	}
	return rows
}

func TestSummarizeCosts_FullTableWhenItFits(t *testing.T) {
	rc := &recordingCompleter{}
	s := New(rc, 10000, ApproxTokens)

	sum, err := s.SummarizeCosts(context.Background(), costRows(3))
	require.NoError(t, err)
	assert.Equal(t, "summary", sum.Text)
	assert.Equal(t, 3, sum.RowsIncluded)
	assert.Zero(t, sum.RowsOmitted)
	assert.Contains(t, rc.prompt, "spikes or anomalies")
	assert.Contains(t, rc.prompt, `"cost":"$3.00"`)
	assert.NotContains(t, rc.prompt, "omitted")
}

func TestSummarizeCosts_TrimsSmallestRowsFirst(t *testing.T) {
	rows := costRows(50)
	full, err := buildPrompt(rows, 0)
	require.NoError(t, err)
	budget := ApproxTokens(full) / 2

	rc := &recordingCompleter{}
	sum, err := New(rc, budget, ApproxTokens).SummarizeCosts(context.Background(), rows)
	require.NoError(t, err)

	assert.Greater(t, sum.RowsOmitted, 0)
	assert.Equal(t, 50, sum.RowsIncluded+sum.RowsOmitted)
	assert.LessOrEqual(t, ApproxTokens(rc.prompt), budget)
	assert.Contains(t, rc.prompt, "Service-49", "largest row must survive")
	assert.NotContains(t, rc.prompt, "Service-00", "smallest row goes first")
	assert.Contains(t, rc.prompt, fmt.Sprintf("(%d smaller rows were omitted", sum.RowsOmitted))
}

func TestSummarizeCosts_PropagatesCompleterError(t *testing.T) {
	rc := &recordingCompleter{err: ErrUpstream}
	_, err := New(rc, 0, ApproxTokens).SummarizeCosts(context.Background(), costRows(1))
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, ApproxTokens(""))
	assert.Equal(t, 1, ApproxTokens("abc"))
	assert.Equal(t, 2, ApproxTokens(strings.Repeat("x", 5)))
}

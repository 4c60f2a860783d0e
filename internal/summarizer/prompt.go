package summarizer

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/compresr/cost-insights/internal/costcache"
	"github.com/compresr/cost-insights/internal/utils"
)

const costGovernancePrompt = `Analyze the following AWS cost data and identify:
- Any spikes or anomalies
- Untagged or potentially orphaned services
- Suggestions for cost optimization or tagging improvements

` + "```json\n%s\n```" + `
%sProvide your answer in markdown format with clear headings.`

// Completer is the model call the summarizer depends on.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Summary is a model-written review of a set of cost rows.
type Summary struct {
	Text         string
	RowsIncluded int
	RowsOmitted  int
}

// Summarizer turns cost rows into a prompt that fits the token budget.
type Summarizer struct {
	client    Completer
	count     TokenCounter
	maxTokens int
}

// New creates a summarizer. A nil counter uses TiktokenCounter; maxTokens <= 0
// disables trimming.
func New(client Completer, maxTokens int, count TokenCounter) *Summarizer {
	if count == nil {
		count = TiktokenCounter
	}
	return &Summarizer{client: client, count: count, maxTokens: maxTokens}
}

// SummarizeCosts asks the model to review rows. When the full table does not
// fit the budget, the largest rows are kept and the rest are noted as omitted.
func (s *Summarizer) SummarizeCosts(ctx context.Context, rows []costcache.CostEntry) (*Summary, error) {
	ranked := make([]costcache.CostEntry, len(rows))
	copy(ranked, rows)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AmountUSD.GreaterThan(ranked[j].AmountUSD)
	})

	n, prompt, err := s.fit(ranked)
	if err != nil {
		return nil, err
	}
	if n < len(ranked) {
		log.Info().
			Int("rows_included", n).
			Int("rows_omitted", len(ranked)-n).
			Int("max_tokens", s.maxTokens).
			Msg("cost table trimmed for summarizer")
	}

	text, err := s.client.Complete(ctx, DefaultSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return &Summary{Text: text, RowsIncluded: n, RowsOmitted: len(ranked) - n}, nil
}

// fit finds the largest prefix of ranked whose prompt stays within budget.
func (s *Summarizer) fit(ranked []costcache.CostEntry) (int, string, error) {
	full, err := buildPrompt(ranked, 0)
	if err != nil {
		return 0, "", err
	}
	if s.maxTokens <= 0 || s.count(full) <= s.maxTokens {
		return len(ranked), full, nil
	}

	lo, hi := 0, len(ranked)
	best, _ := buildPrompt(nil, len(ranked))
	for lo < hi {
		mid := (lo + hi + 1) / 2
		p, err := buildPrompt(ranked[:mid], len(ranked)-mid)
		if err != nil {
			return 0, "", err
		}
		if s.count(p) <= s.maxTokens {
			lo, best = mid, p
		} else {
			hi = mid - 1
		}
	}
	return lo, best, nil
}

type promptRow struct {
	Date    string `json:"date"`
	Service string `json:"service"`
	Cost    string `json:"cost"`
}

func buildPrompt(rows []costcache.CostEntry, omitted int) (string, error) {
	out := make([]promptRow, len(rows))
	for i, r := range rows {
		out[i] = promptRow{Date: costcache.FormatDay(r.Date), Service: r.Service, Cost: r.FormattedCost()}
	}
	data, err := utils.MarshalNoEscape(out)
	if err != nil {
		return "", fmt.Errorf("encoding cost rows: %w", err)
	}

	note := ""
	if omitted > 0 {
		note = fmt.Sprintf("(%d smaller rows were omitted to fit the request size.)\n", omitted)
	}
	return fmt.Sprintf(costGovernancePrompt, data, note), nil
}

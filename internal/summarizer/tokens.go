package summarizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// charsPerToken is the rough ratio used when no tokenizer is available.
const charsPerToken = 4

// TokenCounter returns the prompt token count for s.
type TokenCounter func(s string) int

// ApproxTokens estimates tokens from length alone.
func ApproxTokens(s string) int {
	return (len(s) + charsPerToken - 1) / charsPerToken
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// TiktokenCounter counts with the cl100k_base encoding. The encoding is loaded
// once; if it cannot be loaded, ApproxTokens is used instead.
func TiktokenCounter(s string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Warn().Err(err).Msg("tiktoken encoding unavailable, estimating prompt tokens")
			return
		}
		enc = e
	})
	if enc == nil {
		return ApproxTokens(s)
	}
	return len(enc.Encode(s, nil, nil))
}

package openai

import (
	"log"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "cl100k_base"

// TokenCounter counts model tokens for batch budgeting.
type TokenCounter interface {
	CountTokens(text string) int
}

// tiktokenCounter loads the encoding on first use and falls back to
// EstimateTokens when it cannot be loaded.
type tiktokenCounter struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter returns a cl100k_base counter.
func NewTokenCounter() TokenCounter {
	return &tiktokenCounter{}
}

func (tc *tiktokenCounter) CountTokens(text string) int {
	tc.once.Do(func() {
		enc, err := tiktoken.GetEncoding(tokenEncoding)
		if err != nil {
			log.Printf("openai: failed to load %s encoding, estimating token counts: %v", tokenEncoding, err)
			return
		}
		tc.encoding = enc
	})
	if tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// EstimateTokens approximates the token count as one token per three runes.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text) / 3
	if n == 0 && text != "" {
		return 1
	}
	return n
}

type estimateCounter struct{}

func (estimateCounter) CountTokens(text string) int { return EstimateTokens(text) }

package model

import (
	"sort"
	"strings"
	"unicode/utf8"

	"docchat/types"

	"github.com/pkoukk/tiktoken-go"
)

type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c tiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// ApproxCounter estimates four characters per token.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// NewTokenCounter returns the tiktoken encoding of model, cl100k_base for
// unknown models, or ApproxCounter when no encoding can be loaded.
func NewTokenCounter(model string) TokenCounter {
	if model != "" {
		if enc, err := tiktoken.EncodingForModel(model); err == nil {
			return tiktokenCounter{enc: enc}
		}
	}
	if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		return tiktokenCounter{enc: enc}
	}
	return ApproxCounter{}
}

// USD per 1K tokens, prompt and completion.
var prices = map[string][2]float64{
	"gpt-3.5-turbo-16k":      {0.003, 0.004},
	"gpt-3.5-turbo":          {0.0005, 0.0015},
	"gpt-4o-mini":            {0.00015, 0.0006},
	"gpt-4o":                 {0.0025, 0.01},
	"gpt-4.1-mini":           {0.0004, 0.0016},
	"gpt-4.1":                {0.002, 0.008},
	"text-embedding-3-small": {0.00002, 0},
	"text-embedding-3-large": {0.00013, 0},
	"text-embedding-ada-002": {0.0001, 0},
	"claude-3-5-haiku":       {0.0008, 0.004},
	"claude-3-7-sonnet":      {0.003, 0.015},
	"claude-sonnet-4":        {0.003, 0.015},
	"claude-haiku-4-5":       {0.001, 0.005},
	"claude-sonnet-4-5":      {0.003, 0.015},
}

var priceKeys = func() []string {
	keys := make([]string, 0, len(prices))
	for k := range prices {
		keys = append(keys, k)
	}
	// longest first so gpt-4o-mini wins over gpt-4o
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return keys
}()

// Cost prices usage for model. Dated model names match their base entry;
// unknown models cost 0.
func Cost(model string, u types.Usage) float64 {
	for _, k := range priceKeys {
		if strings.HasPrefix(model, k) {
			p := prices[k]
			return float64(u.PromptTokens)/1000*p[0] + float64(u.CompletionTokens)/1000*p[1]
		}
	}
	return 0
}

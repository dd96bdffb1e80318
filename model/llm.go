package model

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docchat/types"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type CompletionRequest struct {
	Model       string
	Temperature float32
	MaxTokens   int
	System      string
	Messages    []Message
}

type Completion struct {
	Text  string
	Usage types.Usage
}

// LLM is a chat completion capability. Implementations report token usage and cost.
type LLM interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

type LLMConfig struct {
	Provider string // openai, anthropic or ollama
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

func NewLLM(cfg LLMConfig) (LLM, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	var (
		l   LLM
		err error
	)
	switch cfg.Provider {
	case "openai":
		l, err = NewOpenAILLM(cfg)
	case "anthropic":
		l, err = NewAnthropicLLM(cfg)
	case "ollama":
		l, err = NewOllamaLLM(cfg.BaseURL, cfg.Timeout, NewTokenCounter(""))
	default:
		err = fmt.Errorf("%w: unknown llm provider %q", types.ErrConfiguration, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("llm ready", "provider", cfg.Provider)
	return l, nil
}

func usageFor(model string, prompt, completion int) types.Usage {
	u := types.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
	u.TotalCost = Cost(model, u)
	return u
}

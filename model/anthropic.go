package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docchat/types"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 1024

type AnthropicLLM struct {
	client  *anthropic.Client
	timeout time.Duration
}

func NewAnthropicLLM(cfg LLMConfig) (*AnthropicLLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Anthropic API key is required", types.ErrConfiguration)
	}

	opts := []anthropicopt.RequestOption{anthropicopt.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicLLM{client: &client, timeout: cfg.Timeout}, nil
}

func (l *AnthropicLLM) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(maxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	rsp, err := l.client.Messages.New(ctx, params)
	if err != nil {
		return nil, providerError(types.ErrProvider, "anthropic messages", err)
	}

	var b strings.Builder
	for _, content := range rsp.Content {
		if text, ok := content.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	if b.Len() == 0 {
		return nil, fmt.Errorf("%w: no response from Anthropic", types.ErrProvider)
	}

	return &Completion{
		Text:  b.String(),
		Usage: usageFor(req.Model, int(rsp.Usage.InputTokens), int(rsp.Usage.OutputTokens)),
	}, nil
}

package model

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"docchat/types"
)

type GenerateRequest struct {
	Model   string          `json:"model"`
	System  string          `json:"system,omitempty"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

type GenerateOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type GenerateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// OllamaLLM calls /api/generate with the conversation rendered into a single prompt.
type OllamaLLM struct {
	url     string
	timeout time.Duration
	tokens  TokenCounter
	client  *http.Client
	logger  *slog.Logger
}

func NewOllamaLLM(url string, timeout time.Duration, tokens TokenCounter) (*OllamaLLM, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: ollama llm needs a url", types.ErrConfiguration)
	}
	return &OllamaLLM{
		url:     url,
		timeout: timeout,
		tokens:  tokens,
		client:  &http.Client{},
		logger:  slog.Default(),
	}, nil
}

func (l *OllamaLLM) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	start := time.Now()
	defer func() {
		l.logger.Debug("ollama generate finished", "model", req.Model, "took", time.Since(start))
	}()

	genReq := GenerateRequest{
		Model:  req.Model,
		System: req.System,
		Prompt: renderPrompt(req.Messages),
		Options: GenerateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var genResp GenerateResponse
	if err := postJSON(ctx, l.client, l.url, genReq, &genResp); err != nil {
		return nil, providerError(types.ErrProvider, "ollama generate", err)
	}

	prompt, completion := genResp.PromptEvalCount, genResp.EvalCount
	// older servers omit the counters
	if prompt == 0 {
		prompt = l.tokens.Count(genReq.System) + l.tokens.Count(genReq.Prompt)
	}
	if completion == 0 {
		completion = l.tokens.Count(genResp.Response)
	}

	return &Completion{
		Text:  strings.TrimSpace(genResp.Response),
		Usage: usageFor(req.Model, prompt, completion),
	}, nil
}

func renderPrompt(messages []Message) string {
	if len(messages) == 1 {
		return messages[0].Content
	}

	var sb strings.Builder
	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("Assistant:")
	return sb.String()
}

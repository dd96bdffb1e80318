package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"docchat/types"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultChatModel      = "gpt-3.5-turbo-16k"
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
)

func newOpenAIClient(apiKey, baseURL string) (*openai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", types.ErrConfiguration)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg), nil
}

type OpenAIEmbedder struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	timeout time.Duration
}

func NewOpenAIEmbedder(cfg EmbedderConfig) (*OpenAIEmbedder, error) {
	client, err := newOpenAIClient(cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	m := cfg.Model
	if m == "" {
		m = DefaultEmbeddingModel
	}
	return &OpenAIEmbedder{
		client:  client,
		model:   openai.EmbeddingModel(m),
		timeout: cfg.Timeout,
	}, nil
}

func (e *OpenAIEmbedder) Name() string {
	return "openai/" + string(e.model)
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, providerError(types.ErrEmbeddingProvider, "openai embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: openai returned %d embeddings for %d inputs", types.ErrEmbeddingProvider, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: openai returned a malformed embedding", types.ErrEmbeddingProvider)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

type OpenAILLM struct {
	client  *openai.Client
	timeout time.Duration
}

func NewOpenAILLM(cfg LLMConfig) (*OpenAILLM, error) {
	client, err := newOpenAIClient(cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return &OpenAILLM{client: client, timeout: cfg.Timeout}, nil
}

func (l *OpenAILLM) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	temperature := req.Temperature
	// a zero temperature is dropped by omitempty and the API default of 1 applies
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, providerError(types.ErrProvider, "openai chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %w", types.ErrProvider, errors.New("no completion choices returned"))
	}

	return &Completion{
		Text:  resp.Choices[0].Message.Content,
		Usage: usageFor(req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}, nil
}

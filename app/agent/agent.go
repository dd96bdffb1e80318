// Package agent answers questions about a document from its vector index,
// conditioned on the conversation so far.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docchat/model"
	"docchat/types"
)

const (
	DefaultK                = 4
	DefaultMaxContextTokens = 8000
)

const condensePrompt = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

const answerPrompt = `Use the following pieces of context to answer the user's question.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
----------------
%s`

// Searcher is the read side of a vector index.
type Searcher interface {
	Len() int
	Dim() int
	Search(query []float32, k int) []types.ScoredChunk
}

type Config struct {
	Model       string
	Temperature float32
	// K is the number of chunks retrieved per question.
	K int
	// MaxContextTokens bounds the retrieved text placed in the prompt.
	MaxContextTokens int
}

type Engine struct {
	llm      model.LLM
	embedder model.Embedder
	tokens   model.TokenCounter
	cfg      Config
	logger   *slog.Logger
}

type Option func(*Engine)

func WithTokenCounter(c model.TokenCounter) Option {
	return func(e *Engine) {
		e.tokens = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

func NewEngine(llm model.LLM, embedder model.Embedder, cfg Config, opts ...Option) *Engine {
	if cfg.Model == "" {
		cfg.Model = model.DefaultChatModel
	}
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = DefaultMaxContextTokens
	}

	e := &Engine{
		llm:      llm,
		embedder: embedder,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tokens == nil {
		e.tokens = model.NewTokenCounter(cfg.Model)
	}
	return e
}

// Answer runs one retrieval-augmented turn. An empty index fails with
// types.ErrEmptyIndex before any model is called.
func (e *Engine) Answer(ctx context.Context, query string, history []types.Turn, idx Searcher) (*types.Answer, error) {
	if idx == nil || idx.Len() == 0 {
		return nil, types.ErrEmptyIndex
	}

	start := time.Now()
	var usage types.Usage

	question := query
	if len(history) > 0 {
		standalone, u, err := e.condense(ctx, query, history)
		if err != nil {
			return nil, err
		}
		usage = usage.Add(u)
		if standalone != "" {
			question = standalone
		}
	}

	vec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	if len(vec) != idx.Dim() {
		return nil, fmt.Errorf("%w: question embedding has dimension %d, index has %d",
			types.ErrEmbeddingProvider, len(vec), idx.Dim())
	}

	sources := e.fitContext(idx.Search(vec, e.cfg.K))
	messages := make([]model.Message, 0, 2*len(history)+1)
	for _, turn := range history {
		messages = append(messages,
			model.Message{Role: model.RoleUser, Content: turn.Question},
			model.Message{Role: model.RoleAssistant, Content: turn.Answer},
		)
	}
	messages = append(messages, model.Message{Role: model.RoleUser, Content: query})

	completion, err := e.llm.Complete(ctx, model.CompletionRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		System:      fmt.Sprintf(answerPrompt, joinContext(sources)),
		Messages:    messages,
	})
	if err != nil {
		return nil, err
	}
	usage = usage.Add(completion.Usage)

	e.logger.Debug("answer generated",
		"history", len(history),
		"sources", len(sources),
		"tokens", usage.TotalTokens,
		"took", time.Since(start))

	return &types.Answer{
		Answer:   strings.TrimSpace(completion.Text),
		Question: query,
		History:  history,
		Sources:  sources,
		Usage:    usage,
	}, nil
}

func (e *Engine) condense(ctx context.Context, query string, history []types.Turn) (string, types.Usage, error) {
	var sb strings.Builder
	for _, turn := range history {
		sb.WriteString("Human: ")
		sb.WriteString(turn.Question)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(turn.Answer)
		sb.WriteString("\n")
	}

	completion, err := e.llm.Complete(ctx, model.CompletionRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		Messages: []model.Message{{
			Role:    model.RoleUser,
			Content: fmt.Sprintf(condensePrompt, sb.String(), query),
		}},
	})
	if err != nil {
		return "", types.Usage{}, err
	}
	return strings.TrimSpace(completion.Text), completion.Usage, nil
}

// fitContext keeps the best chunks whose text fits the context budget.
// The top chunk is always kept.
func (e *Engine) fitContext(chunks []types.ScoredChunk) []types.ScoredChunk {
	total := 0
	for i, c := range chunks {
		total += e.tokens.Count(c.Content)
		if i > 0 && total > e.cfg.MaxContextTokens {
			e.logger.Debug("context budget reached", "kept", i, "retrieved", len(chunks))
			return chunks[:i]
		}
	}
	return chunks
}

func joinContext(chunks []types.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, "\n\n")
}

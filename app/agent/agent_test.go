package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"docchat/index"
	"docchat/model"
	"docchat/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu       sync.Mutex
	requests []model.CompletionRequest
	reply    func(req model.CompletionRequest) (string, error)
}

func (f *fakeLLM) Complete(_ context.Context, req model.CompletionRequest) (*model.Completion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	text := "ok"
	if f.reply != nil {
		var err error
		if text, err = f.reply(req); err != nil {
			return nil, err
		}
	}
	return &model.Completion{
		Text:  text,
		Usage: types.Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12, TotalCost: 0.5},
	}, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func buildIndex(t *testing.T, embedder model.Embedder, texts ...string) *index.VectorIndex {
	t.Helper()
	chunks := make([]types.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = types.Chunk{Source: "report.pdf", Page: 1, Index: i, Content: text}
	}
	idx, err := index.Build(context.Background(), chunks, embedder)
	require.NoError(t, err)
	return idx
}

func newTestEngine(llm model.LLM, embedder model.Embedder) *Engine {
	return NewEngine(llm, embedder, Config{}, WithTokenCounter(model.ApproxCounter{}))
}

var facts = []string{
	"The capital of France is Paris.",
	"Bananas are rich in potassium.",
	"The Pacific is the largest ocean on Earth.",
	"Go was designed at Google.",
	"Mount Everest is the highest mountain.",
	"Water boils at 100 degrees Celsius at sea level.",
}

func TestAnswerWithoutHistory(t *testing.T) {
	embedder, err := model.NewHashEmbedder(0)
	require.NoError(t, err)
	llm := &fakeLLM{reply: func(model.CompletionRequest) (string, error) { return " Paris \n", nil }}
	e := newTestEngine(llm, embedder)

	answer, err := e.Answer(context.Background(), "What is the capital of France?", nil, buildIndex(t, embedder, facts...))
	require.NoError(t, err)

	assert.Equal(t, "Paris", answer.Answer)
	assert.Equal(t, "What is the capital of France?", answer.Question)
	require.Len(t, answer.Sources, DefaultK)
	assert.Contains(t, answer.Sources[0].Content, "Paris")

	// no condense step
	require.Equal(t, 1, llm.calls())
	req := llm.requests[0]
	assert.Equal(t, model.DefaultChatModel, req.Model)
	assert.Equal(t, float32(0), req.Temperature)
	assert.Contains(t, req.System, "The capital of France is Paris.")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, model.RoleUser, req.Messages[0].Role)

	assert.Equal(t, 12, answer.Usage.TotalTokens)
	assert.InDelta(t, 0.5, answer.Usage.TotalCost, 1e-9)
}

func TestAnswerCondensesFollowUp(t *testing.T) {
	embedder, err := model.NewHashEmbedder(0)
	require.NoError(t, err)
	llm := &fakeLLM{reply: func(req model.CompletionRequest) (string, error) {
		if strings.Contains(req.Messages[0].Content, "Standalone question:") {
			return "What is the capital of France?", nil
		}
		return "Paris", nil
	}}
	e := newTestEngine(llm, embedder)

	history := []types.Turn{
		{Question: "Tell me about France", Answer: "France is a country in Europe."},
		{Question: "Is it large?", Answer: "Fairly."},
	}
	answer, err := e.Answer(context.Background(), "And its capital?", history, buildIndex(t, embedder, facts...))
	require.NoError(t, err)

	require.Equal(t, 2, llm.calls())
	condense := llm.requests[0].Messages[0].Content
	assert.Contains(t, condense, "Human: Tell me about France\nAssistant: France is a country in Europe.")
	assert.Contains(t, condense, "Follow Up Input: And its capital?")

	final := llm.requests[1]
	require.Len(t, final.Messages, 5)
	assert.Equal(t, model.RoleUser, final.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, final.Messages[1].Role)
	assert.Equal(t, "Is it large?", final.Messages[2].Content)
	assert.Equal(t, "And its capital?", final.Messages[4].Content)

	assert.Equal(t, "And its capital?", answer.Question)
	assert.Equal(t, history, answer.History)
	assert.Contains(t, answer.Sources[0].Content, "Paris")
	assert.Equal(t, 24, answer.Usage.TotalTokens)
	assert.InDelta(t, 1.0, answer.Usage.TotalCost, 1e-9)
}

func TestAnswerEmptyIndex(t *testing.T) {
	embedder, err := model.NewHashEmbedder(0)
	require.NoError(t, err)
	llm := &fakeLLM{}
	e := newTestEngine(llm, embedder)

	idx, err := index.Build(context.Background(), nil, embedder)
	require.NoError(t, err)

	_, err = e.Answer(context.Background(), "anything", []types.Turn{{Question: "q", Answer: "a"}}, idx)
	assert.ErrorIs(t, err, types.ErrEmptyIndex)
	assert.Zero(t, llm.calls())

	_, err = e.Answer(context.Background(), "anything", nil, nil)
	assert.ErrorIs(t, err, types.ErrEmptyIndex)
}

func TestAnswerProviderError(t *testing.T) {
	embedder, err := model.NewHashEmbedder(0)
	require.NoError(t, err)
	boom := errors.New("boom")
	llm := &fakeLLM{reply: func(model.CompletionRequest) (string, error) {
		return "", errors.Join(types.ErrProvider, boom)
	}}
	e := newTestEngine(llm, embedder)

	_, err = e.Answer(context.Background(), "q", nil, buildIndex(t, embedder, facts...))
	assert.ErrorIs(t, err, types.ErrProvider)
	assert.ErrorIs(t, err, boom)
}

func TestContextBudgetKeepsTopChunk(t *testing.T) {
	embedder, err := model.NewHashEmbedder(0)
	require.NoError(t, err)
	llm := &fakeLLM{}
	e := NewEngine(llm, embedder, Config{K: 3, MaxContextTokens: 1}, WithTokenCounter(model.ApproxCounter{}))

	answer, err := e.Answer(context.Background(), "capital of France", nil, buildIndex(t, embedder, facts...))
	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	assert.Contains(t, answer.Sources[0].Content, "Paris")
}

func TestFewerChunksThanK(t *testing.T) {
	embedder, err := model.NewHashEmbedder(0)
	require.NoError(t, err)
	e := newTestEngine(&fakeLLM{}, embedder)

	answer, err := e.Answer(context.Background(), "capital", nil, buildIndex(t, embedder, facts[:2]...))
	require.NoError(t, err)
	assert.Len(t, answer.Sources, 2)
}

func TestAnswerDimensionMismatch(t *testing.T) {
	indexEmbedder, err := model.NewHashEmbedder(512)
	require.NoError(t, err)
	queryEmbedder, err := model.NewHashEmbedder(64)
	require.NoError(t, err)
	llm := &fakeLLM{}
	e := newTestEngine(llm, queryEmbedder)

	_, err = e.Answer(context.Background(), "capital of France", nil, buildIndex(t, indexEmbedder, facts...))
	assert.ErrorIs(t, err, types.ErrEmbeddingProvider)
	assert.Zero(t, llm.calls())
}

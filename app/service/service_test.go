package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"docchat/app/agent"
	"docchat/index"
	"docchat/loader"
	"docchat/model"
	"docchat/store"
	"docchat/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageText serves fixed pages for any file path.
type pageText []string

func (p pageText) ReadPages(context.Context, string) ([]string, error) {
	return p, nil
}

type echoLLM struct {
	mu    sync.Mutex
	calls int
}

func (l *echoLLM) Complete(_ context.Context, req model.CompletionRequest) (*model.Completion, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()

	text := "Paris"
	if strings.Contains(req.Messages[len(req.Messages)-1].Content, "Standalone question:") {
		text = "What is the capital of France?"
	}
	return &model.Completion{
		Text:  text,
		Usage: types.Usage{PromptTokens: 100, CompletionTokens: 5, TotalTokens: 105},
	}, nil
}

type countingEmbedder struct {
	model.Embedder
	mu    sync.Mutex
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.Embedder.Embed(ctx, text)
}

type fixture struct {
	svc      *Service
	llm      *echoLLM
	embedder *countingEmbedder
	convs    *store.MemoryStore
	blobs    *store.FileBlobStore
}

func newFixture(t *testing.T, pages []string, cache index.Cache) *fixture {
	t.Helper()

	hash, err := model.NewHashEmbedder(0)
	require.NoError(t, err)
	embedder := &countingEmbedder{Embedder: hash}

	blobs, err := store.NewFileBlobStore(t.TempDir(), "uploads/")
	require.NoError(t, err)

	llm := &echoLLM{}
	splitter, err := loader.NewSplitter(60, 0, loader.DefaultSeparators)
	require.NoError(t, err)

	convs := store.NewMemoryStore()
	svc, err := New(Deps{
		Extractor:     loader.NewExtractor(loader.WithPageReader(pageText(pages))),
		Splitter:      splitter,
		Embedder:      embedder,
		Engine:        agent.NewEngine(llm, embedder, agent.Config{}, agent.WithTokenCounter(model.ApproxCounter{})),
		Conversations: convs,
		Blobs:         blobs,
		Cache:         cache,
		Timeouts:      Timeouts{Embed: time.Second, LLM: time.Second, Store: time.Second, Blob: time.Second},
	})
	require.NoError(t, err)

	return &fixture{svc: svc, llm: llm, embedder: embedder, convs: convs, blobs: blobs}
}

func (f *fixture) upload(t *testing.T, name string) {
	t.Helper()
	staged := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(staged, []byte("%PDF-1.4"), 0o644))

	resp, err := f.svc.Upload(context.Background(), staged, name)
	require.NoError(t, err)
	assert.Equal(t, name, resp.Filename)
	assert.Equal(t, f.blobs.Location(name), resp.FilePath)
}

var report = []string{
	"Annual report. The capital of France is Paris.\nBananas are rich in potassium.",
	"The Pacific is the largest ocean.\nGo was designed at Google.\nMount Everest is the highest mountain.",
}

func TestChatConversation(t *testing.T) {
	f := newFixture(t, report, nil)
	f.upload(t, "report.pdf")
	ctx := context.Background()

	first, err := f.svc.Chat(ctx, types.ChatParams{
		UserInput:  "What is the capital of France?",
		DataSource: "uploads/report.pdf",
	})
	require.NoError(t, err)

	_, err = uuid.Parse(first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Paris", first.Response.Answer)
	assert.Equal(t, "What is the capital of France?", first.Response.Question)
	require.NotEmpty(t, first.Response.Sources)
	assert.Equal(t, "report.pdf", first.Response.Sources[0].DocID)
	assert.Contains(t, first.Response.Sources[0].ChunkText, "Paris")
	assert.Equal(t, 1, f.llm.calls)

	turns, err := f.convs.Load(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, turns, 1)

	second, err := f.svc.Chat(ctx, types.ChatParams{
		SessionID:  first.SessionID,
		UserInput:  "And what about it?",
		DataSource: "report.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	// condense + answer
	assert.Equal(t, 3, f.llm.calls)
	assert.Equal(t, 210, second.Response.TotalTokensUsed)

	turns, err = f.convs.Load(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []types.Turn{
		{Question: "What is the capital of France?", Answer: "Paris"},
		{Question: "And what about it?", Answer: "Paris"},
	}, turns)
}

func TestChatUnsupportedFormat(t *testing.T) {
	f := newFixture(t, report, nil)

	_, err := f.svc.Chat(context.Background(), types.ChatParams{UserInput: "q", DataSource: "notes.txt"})
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
	assert.Zero(t, f.llm.calls)
}

func TestChatMissingDocument(t *testing.T) {
	f := newFixture(t, report, nil)

	_, err := f.svc.Chat(context.Background(), types.ChatParams{UserInput: "q", DataSource: "missing.pdf"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestChatEmptyDocument(t *testing.T) {
	f := newFixture(t, []string{"", "   "}, nil)
	f.upload(t, "blank.pdf")

	resp, err := f.svc.Chat(context.Background(), types.ChatParams{UserInput: "q", DataSource: "blank.pdf"})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, types.ErrEmptyIndex)
	assert.Zero(t, f.llm.calls)
	assert.Zero(t, f.embedder.calls)
}

func TestChatWithCacheEmbedsOnce(t *testing.T) {
	f := newFixture(t, report, index.NewMemoryCache(100))
	f.upload(t, "report.pdf")
	ctx := context.Background()

	params := types.ChatParams{UserInput: "capital of France", DataSource: "report.pdf"}
	_, err := f.svc.Chat(ctx, params)
	require.NoError(t, err)
	afterFirst := f.embedder.calls

	_, err = f.svc.Chat(ctx, params)
	require.NoError(t, err)
	// only the question is embedded again
	assert.Equal(t, afterFirst+1, f.embedder.calls)
}

func TestUploadMissingFile(t *testing.T) {
	f := newFixture(t, report, nil)

	_, err := f.svc.Upload(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"), "gone.pdf")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

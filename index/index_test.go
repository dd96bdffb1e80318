package index

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"docchat/loader"
	"docchat/model"
	"docchat/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps the hashing embedder and records the texts it was asked to embed.
type countingEmbedder struct {
	inner   *model.HashEmbedder
	texts   []string
	batches int
	err     error
}

func newCounting(t *testing.T) *countingEmbedder {
	h, err := model.NewHashEmbedder(256)
	require.NoError(t, err)
	return &countingEmbedder{inner: h}
}

func (c *countingEmbedder) Name() string { return c.inner.Name() }

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.texts = append(c.texts, text)
	return c.inner.Embed(ctx, text)
}

// singleEmbedder hides EmbedBatch so Build falls back to one call per chunk.
type singleEmbedder struct{ *countingEmbedder }

type batchEmbedder struct{ *countingEmbedder }

func (b batchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b.batches++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := b.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func chunksOf(texts ...string) []types.Chunk {
	chunks := make([]types.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = types.Chunk{Source: "doc.pdf", Index: i, Content: t}
	}
	return chunks
}

func TestCapitalOfFranceIsRetrieved(t *testing.T) {
	text := "Berlin hosts the Bundestag and many museums.\n" +
		"Bananas are a yellow fruit rich in potassium.\n" +
		"Paris is the capital of France.\n" +
		"The Amazon river flows through Brazil and Peru.\n" +
		"Rust and Go are compiled programming languages.\n" +
		"Photosynthesis converts light into chemical energy."

	splitter, err := loader.NewSplitter(60, 0, nil)
	require.NoError(t, err)
	chunks := splitter.Split([]types.Segment{{Text: text, Source: "facts.pdf", Page: 1}})
	require.Len(t, chunks, 6)

	e := newCounting(t)
	idx, err := Build(context.Background(), chunks, e)
	require.NoError(t, err)
	assert.Equal(t, 6, idx.Len())

	q, err := e.Embed(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	results := idx.Search(q, 4)
	require.Len(t, results, 4)

	var found bool
	for _, r := range results {
		if r.Chunk.Content == "Paris is the capital of France." {
			found = true
		}
	}
	assert.True(t, found, "paris chunk not in top results: %+v", results)
	assert.Equal(t, "Paris is the capital of France.", results[0].Chunk.Content)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearchBounds(t *testing.T) {
	e := newCounting(t)
	idx, err := Build(context.Background(), chunksOf("one", "two"), e)
	require.NoError(t, err)

	q, _ := e.Embed(context.Background(), "one")
	assert.Len(t, idx.Search(q, 10), 2)
	assert.Empty(t, idx.Search(q, 0))
	assert.Empty(t, idx.Search([]float32{1, 2}, 2), "dimension mismatch")
}

func TestBuildEmpty(t *testing.T) {
	idx, err := Build(context.Background(), nil, newCounting(t))
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
	assert.Empty(t, idx.Search([]float32{1}, 4))
}

func TestBuildPropagatesEmbeddingError(t *testing.T) {
	e := newCounting(t)
	e.err = fmt.Errorf("%w: 401", types.ErrEmbeddingProvider)

	_, err := Build(context.Background(), chunksOf("a"), singleEmbedder{e})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrEmbeddingProvider))
}

func TestBuildBatches(t *testing.T) {
	e := newCounting(t)
	b := batchEmbedder{e}

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk number %d", i)
	}
	_, err := Build(context.Background(), chunksOf(texts...), &b, WithBatchSize(4))
	require.NoError(t, err)
	assert.Equal(t, 3, b.batches)
	assert.Equal(t, texts, e.texts)
}

type fixedEmbedder struct{ vecs map[string][]float32 }

func (f fixedEmbedder) Name() string { return "fixed" }

func (f fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return f.vecs[text], nil
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	e := fixedEmbedder{vecs: map[string][]float32{"a": {1, 0}, "b": {1, 0, 0}}}
	_, err := Build(context.Background(), chunksOf("a", "b"), e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrEmbeddingProvider))
}

func TestSearchTiesKeepDocumentOrder(t *testing.T) {
	e := fixedEmbedder{vecs: map[string][]float32{"a": {1, 0}, "b": {1, 0}, "c": {0, 1}}}
	idx, err := Build(context.Background(), chunksOf("a", "b", "c"), e)
	require.NoError(t, err)

	res := idx.Search([]float32{1, 0}, 3)
	require.Len(t, res, 3)
	assert.Equal(t, "a", res[0].Chunk.Content)
	assert.Equal(t, "b", res[1].Chunk.Content)
	assert.Equal(t, "c", res[2].Chunk.Content)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
}

func TestBuildWithCacheSkipsKnownChunks(t *testing.T) {
	cache := NewMemoryCache(100)
	ctx := context.Background()

	first := newCounting(t)
	_, err := Build(ctx, chunksOf("alpha", "beta"), singleEmbedder{first}, WithCache(cache))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, first.texts)
	assert.Equal(t, 2, cache.Len())

	second := newCounting(t)
	idx, err := Build(ctx, chunksOf("alpha", "beta", "gamma"), singleEmbedder{second}, WithCache(cache))
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma"}, second.texts)
	assert.Equal(t, 3, idx.Len())
}

func TestCacheKeyChangesWithContentAndModel(t *testing.T) {
	k := Key("openai/a", "Paris is the capital of France.")
	assert.Equal(t, k, Key("openai/a", "Paris is the capital of France."))
	assert.NotEqual(t, k, Key("openai/a", "Paris is the capital of France!"))
	assert.NotEqual(t, k, Key("openai/b", "Paris is the capital of France."))
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2)

	require.NoError(t, c.Put(ctx, map[string][]float32{"a": {1}}))
	require.NoError(t, c.Put(ctx, map[string][]float32{"b": {2}}))
	_, _ = c.Get(ctx, []string{"a"})
	require.NoError(t, c.Put(ctx, map[string][]float32{"c": {3}}))

	got, err := c.Get(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Contains(t, got, "a")
	assert.NotContains(t, got, "b")
	assert.Contains(t, got, "c")
}

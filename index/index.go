// Package index embeds chunks and answers exact nearest-neighbour queries over them.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"docchat/model"
	"docchat/types"
)

const DefaultBatchSize = 64

// VectorIndex is an in-memory, read-only set of chunks and their embeddings.
// It is built for one request and never shared.
type VectorIndex struct {
	chunks  []types.Chunk
	vectors [][]float32
	norms   []float64
	dim     int
}

type buildOptions struct {
	batchSize int
	cache     Cache
	logger    *slog.Logger
}

type Option func(*buildOptions)

func WithBatchSize(n int) Option {
	return func(o *buildOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithCache reuses embeddings of chunks whose content was embedded before by the same model.
func WithCache(c Cache) Option {
	return func(o *buildOptions) {
		o.cache = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *buildOptions) {
		o.logger = l
	}
}

// Build embeds every chunk and returns the index. Embedding errors are returned as is.
func Build(ctx context.Context, chunks []types.Chunk, embedder model.Embedder, opts ...Option) (*VectorIndex, error) {
	o := buildOptions{batchSize: DefaultBatchSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	vectors := make([][]float32, len(chunks))

	var keys []string
	if o.cache != nil && len(chunks) > 0 {
		keys = make([]string, len(chunks))
		for i, c := range chunks {
			keys[i] = Key(embedder.Name(), c.Content)
		}
		cached, err := o.cache.Get(ctx, keys)
		if err != nil {
			// a broken cache only costs re-embedding
			o.logger.Warn("embedding cache lookup failed", "error", err)
		}
		for i, k := range keys {
			if v, ok := cached[k]; ok {
				vectors[i] = v
			}
		}
	}

	var missing []int
	for i := range chunks {
		if vectors[i] == nil {
			missing = append(missing, i)
		}
	}

	if err := embedMissing(ctx, embedder, chunks, vectors, missing, o.batchSize); err != nil {
		return nil, err
	}

	if o.cache != nil && len(missing) > 0 {
		fresh := make(map[string][]float32, len(missing))
		for _, i := range missing {
			fresh[keys[i]] = vectors[i]
		}
		if err := o.cache.Put(ctx, fresh); err != nil {
			o.logger.Warn("embedding cache store failed", "error", err)
		}
	}

	idx, err := newIndex(chunks, vectors)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("index built",
		"chunks", len(chunks),
		"embedded", len(missing),
		"dim", idx.dim,
		"took", time.Since(start))
	return idx, nil
}

func embedMissing(ctx context.Context, embedder model.Embedder, chunks []types.Chunk, vectors [][]float32, missing []int, batchSize int) error {
	if batch, ok := embedder.(model.BatchEmbedder); ok {
		for start := 0; start < len(missing); start += batchSize {
			end := min(start+batchSize, len(missing))
			texts := make([]string, 0, end-start)
			for _, i := range missing[start:end] {
				texts = append(texts, chunks[i].Content)
			}
			vecs, err := batch.EmbedBatch(ctx, texts)
			if err != nil {
				return err
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("%w: got %d vectors for %d chunks", types.ErrEmbeddingProvider, len(vecs), len(texts))
			}
			for j, i := range missing[start:end] {
				vectors[i] = vecs[j]
			}
		}
		return nil
	}

	for _, i := range missing {
		v, err := embedder.Embed(ctx, chunks[i].Content)
		if err != nil {
			return err
		}
		vectors[i] = v
	}
	return nil
}

func newIndex(chunks []types.Chunk, vectors [][]float32) (*VectorIndex, error) {
	idx := &VectorIndex{
		chunks:  chunks,
		vectors: vectors,
		norms:   make([]float64, len(vectors)),
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty embedding for chunk %d", types.ErrEmbeddingProvider, chunks[i].Index)
		}
		if idx.dim == 0 {
			idx.dim = len(v)
		} else if len(v) != idx.dim {
			return nil, fmt.Errorf("%w: embedding dimension %d differs from %d", types.ErrEmbeddingProvider, len(v), idx.dim)
		}
		idx.norms[i] = norm(v)
	}
	return idx, nil
}

func (x *VectorIndex) Len() int {
	return len(x.chunks)
}

func (x *VectorIndex) Dim() int {
	return x.dim
}

// Search returns up to k chunks ordered by decreasing cosine similarity.
// Equal scores keep document order.
func (x *VectorIndex) Search(query []float32, k int) []types.ScoredChunk {
	if k <= 0 || len(x.chunks) == 0 || len(query) != x.dim {
		return nil
	}

	qn := norm(query)
	results := make([]types.ScoredChunk, len(x.chunks))
	for i, v := range x.vectors {
		results[i] = types.ScoredChunk{
			Chunk: x.chunks[i],
			Score: cosine(query, v, qn, x.norms[i]),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

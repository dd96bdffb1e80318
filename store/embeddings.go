package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingStore caches chunk embeddings in Postgres by content key.
// It satisfies index.Cache.
type EmbeddingStore struct {
	pool *pgxpool.Pool
}

func NewEmbeddingStore(pool *pgxpool.Pool) *EmbeddingStore {
	return &EmbeddingStore{pool: pool}
}

func (s *EmbeddingStore) Init(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS embedding_cache (
		key TEXT PRIMARY KEY,
		embedding vector NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return storeError("create embedding cache", err)
	}
	return nil
}

func (s *EmbeddingStore) Get(ctx context.Context, keys []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, "SELECT key, embedding FROM embedding_cache WHERE key = ANY($1)", keys)
	if err != nil {
		return nil, storeError("read embedding cache", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			vec pgvector.Vector
		)
		if err := rows.Scan(&key, &vec); err != nil {
			return nil, storeError("scan embedding cache", err)
		}
		out[key] = vec.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("read embedding cache", err)
	}
	return out, nil
}

func (s *EmbeddingStore) Put(ctx context.Context, entries map[string][]float32) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for key, vec := range entries {
		batch.Queue(
			"INSERT INTO embedding_cache (key, embedding) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING",
			key, pgvector.NewVector(vec),
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return storeError("write embedding cache", err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"log/slog"

	"docchat/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one row per session with the conversation as a flat TEXT[]
// of alternating questions and answers.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, storeError("connect", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storeError("ping", err)
	}

	return &PostgresStore{
		pool:   pool,
		logger: slog.Default(),
	}, nil
}

// Pool exposes the connection pool so other stores can share it.
func (p *PostgresStore) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *PostgresStore) Load(ctx context.Context, sessionID string) ([]types.Turn, error) {
	var conversation []string
	err := p.pool.QueryRow(ctx,
		"SELECT conversation FROM conversations WHERE session_id = $1", sessionID,
	).Scan(&conversation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("load conversation", err)
	}
	return types.PairTurns(conversation), nil
}

// Append creates the session row or concatenates the new turn in a single statement,
// so concurrent appends are serialized by the row lock.
func (p *PostgresStore) Append(ctx context.Context, sessionID, question, answer string) error {
	query := `INSERT INTO conversations (session_id, conversation, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET
			conversation = conversations.conversation || EXCLUDED.conversation,
			updated_at = EXCLUDED.updated_at
		`
	_, err := p.pool.Exec(ctx, query, sessionID, []string{question, answer})
	if err != nil {
		return storeError("append conversation", err)
	}
	return nil
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS conversations (
		session_id TEXT PRIMARY KEY,
		conversation TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	if err := p.createTables(ctx); err != nil {
		return storeError("create tables", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool is closed")
	}
	return nil
}

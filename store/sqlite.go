package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"docchat/types"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps conversations as JSON arrays in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeError("open sqlite", err)
	}
	// one writer connection, and the in-memory database lives on that connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storeError("ping sqlite", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS conversations (
		session_id TEXT PRIMARY KEY,
		conversation TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return storeError("create tables", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, sessionID string) ([]types.Turn, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT conversation FROM conversations WHERE session_id = ?", sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("load conversation", err)
	}

	var conversation []string
	if err := json.Unmarshal([]byte(raw), &conversation); err != nil {
		return nil, fmt.Errorf("%w: corrupt conversation for %s: %w", types.ErrStoreUnavailable, sessionID, err)
	}
	return types.PairTurns(conversation), nil
}

// Append upserts in one statement; json_insert with '$[#]' appends to the stored array.
func (s *SQLiteStore) Append(ctx context.Context, sessionID, question, answer string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO conversations (session_id, conversation)
	VALUES (?1, json_array(?2, ?3))
	ON CONFLICT (session_id) DO UPDATE SET
		conversation = json_insert(conversations.conversation, '$[#]', ?2, '$[#]', ?3),
		updated_at = CURRENT_TIMESTAMP`,
		sessionID, question, answer)
	if err != nil {
		return storeError("append conversation", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

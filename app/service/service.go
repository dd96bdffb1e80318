// Package service runs the chat and upload operations end to end.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"docchat/app/agent"
	"docchat/app/session"
	"docchat/index"
	"docchat/loader"
	"docchat/model"
	"docchat/store"
	"docchat/types"
)

type Timeouts struct {
	Embed time.Duration
	LLM   time.Duration
	Store time.Duration
	Blob  time.Duration
}

type Deps struct {
	Extractor     *loader.Extractor
	Splitter      *loader.Splitter
	Embedder      model.Embedder
	Engine        *agent.Engine
	Conversations store.ConversationStorer
	Blobs         store.BlobStore
	Sessions      *session.Manager
	// Cache is optional; nil re-embeds every chunk on every question.
	Cache     index.Cache
	BatchSize int
	Timeouts  Timeouts
	Logger    *slog.Logger
}

type Service struct {
	extractor     *loader.Extractor
	splitter      *loader.Splitter
	embedder      model.Embedder
	engine        *agent.Engine
	conversations store.ConversationStorer
	blobs         store.BlobStore
	sessions      *session.Manager
	cache         index.Cache
	batchSize     int
	timeouts      Timeouts
	logger        *slog.Logger
}

func New(d Deps) (*Service, error) {
	switch {
	case d.Embedder == nil:
		return nil, fmt.Errorf("%w: embedder is required", types.ErrConfiguration)
	case d.Engine == nil:
		return nil, fmt.Errorf("%w: engine is required", types.ErrConfiguration)
	case d.Conversations == nil:
		return nil, fmt.Errorf("%w: conversation store is required", types.ErrConfiguration)
	case d.Blobs == nil:
		return nil, fmt.Errorf("%w: blob store is required", types.ErrConfiguration)
	}

	s := &Service{
		extractor:     d.Extractor,
		splitter:      d.Splitter,
		embedder:      d.Embedder,
		engine:        d.Engine,
		conversations: d.Conversations,
		blobs:         d.Blobs,
		sessions:      d.Sessions,
		cache:         d.Cache,
		batchSize:     d.BatchSize,
		timeouts:      d.Timeouts,
		logger:        d.Logger,
	}
	if s.extractor == nil {
		s.extractor = loader.NewExtractor()
	}
	if s.splitter == nil {
		sp, err := loader.NewSplitter(loader.DefaultChunkSize, loader.DefaultChunkOverlap, loader.DefaultSeparators)
		if err != nil {
			return nil, err
		}
		s.splitter = sp
	}
	if s.sessions == nil {
		s.sessions = session.NewManager()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Chat answers params.UserInput from the document named by params.DataSource and
// records the turn under the resolved session.
func (s *Service) Chat(ctx context.Context, params types.ChatParams) (*types.ChatResponse, error) {
	start := time.Now()

	if _, err := loader.DetectFormat(params.DataSource); err != nil {
		return nil, err
	}
	key, err := store.CleanKey(params.DataSource)
	if err != nil {
		return nil, err
	}

	sessionID, minted := s.sessions.Resolve(params.SessionID)

	var history []types.Turn
	if !minted {
		history, err = s.loadHistory(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}

	idx, err := s.indexDocument(ctx, key)
	if err != nil {
		return nil, err
	}

	llmCtx, cancel := withTimeout(ctx, s.timeouts.LLM)
	answer, err := s.engine.Answer(llmCtx, params.UserInput, history, idx)
	cancel()
	if err != nil {
		return nil, timeoutError("answer", err)
	}

	storeCtx, cancel := withTimeout(ctx, s.timeouts.Store)
	defer cancel()
	if err := s.conversations.Append(storeCtx, sessionID, params.UserInput, answer.Answer); err != nil {
		return nil, err
	}

	s.logger.Info("chat answered",
		"session_id", sessionID,
		"data_source", key,
		"history", len(history),
		"total_tokens", answer.Usage.TotalTokens,
		"took", time.Since(start))

	resp := types.NewChatResponse(sessionID, answer)
	return &resp, nil
}

func (s *Service) loadHistory(ctx context.Context, sessionID string) ([]types.Turn, error) {
	ctx, cancel := withTimeout(ctx, s.timeouts.Store)
	defer cancel()
	return s.conversations.Load(ctx, sessionID)
}

// indexDocument fetches the document into a scratch directory and builds a fresh index from it.
func (s *Service) indexDocument(ctx context.Context, key string) (*index.VectorIndex, error) {
	dir, err := os.MkdirTemp("", "docchat-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	blobCtx, cancel := withTimeout(ctx, s.timeouts.Blob)
	path, err := s.blobs.Fetch(blobCtx, key, dir)
	cancel()
	if err != nil {
		return nil, timeoutError("fetch document", err)
	}

	segments, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	chunks := s.splitter.Split(segments)

	opts := []index.Option{index.WithBatchSize(s.batchSize), index.WithLogger(s.logger)}
	if s.cache != nil {
		opts = append(opts, index.WithCache(s.cache))
	}

	embedCtx, cancel := withTimeout(ctx, s.timeouts.Embed)
	defer cancel()
	idx, err := index.Build(embedCtx, chunks, s.embedder, opts...)
	if err != nil {
		return nil, timeoutError("embed document", err)
	}
	return idx, nil
}

// Upload puts a staged local file into the blob store under its base name.
func (s *Service) Upload(ctx context.Context, stagedPath, filename string) (*types.UploadResponse, error) {
	key, err := store.CleanKey(filename)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeouts.Blob)
	defer cancel()
	loc, err := s.blobs.PutFile(ctx, stagedPath, key)
	if err != nil {
		return nil, timeoutError("upload document", err)
	}

	s.logger.Info("document uploaded", "filename", key, "file_path", loc)
	return &types.UploadResponse{Filename: key, FilePath: loc}, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// timeoutError tags a bare deadline expiry with types.ErrTimeout.
func timeoutError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, types.ErrTimeout) {
		return fmt.Errorf("%w: %s: %w", types.ErrTimeout, op, err)
	}
	return err
}

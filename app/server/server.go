package server

import (
	"context"
	"fmt"
	"log/slog"

	"docchat/app/agent"
	"docchat/app/api"
	"docchat/app/middleware"
	"docchat/app/service"
	"docchat/app/session"
	"docchat/config"
	"docchat/index"
	"docchat/loader"
	"docchat/model"
	"docchat/store"

	"github.com/gofiber/fiber/v2"
)

type Server struct {
	listenAddr string
	app        *fiber.App
	closers    []func() error
	logger     *slog.Logger
}

// NewServer connects every collaborator named by cfg and registers the routes.
// Nothing is listening until Run.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{
		listenAddr: cfg.ServerAddr,
		logger:     slog.Default(),
	}

	svc, err := s.buildService(ctx, cfg)
	if err != nil {
		s.close()
		return nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
		BodyLimit:    64 * 1024 * 1024,
	})
	app.Use(middleware.RequestLogger(s.logger))

	var (
		checkHandler  = api.NewCheckHandler()
		chatHandler   = api.NewChatHandler(svc)
		uploadHandler = api.NewUploadHandler(svc, cfg.Blob.StagingDir)
		check         = app.Group("/check")
		apiv1         = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/chat", chatHandler.HandleChat)
	apiv1.Post("/uploadFile", uploadHandler.HandleUpload)

	s.app = app
	return s, nil
}

func (s *Server) buildService(ctx context.Context, cfg *config.Config) (*service.Service, error) {
	var pg *store.PostgresStore
	postgres := func() (*store.PostgresStore, error) {
		if pg != nil {
			return pg, nil
		}
		p, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("error to connect to Postgres database: %w", err)
		}
		s.closers = append(s.closers, p.Close)
		pg = p
		return pg, nil
	}

	var conversations store.ConversationStorer
	switch cfg.ConversationStore {
	case "postgres":
		p, err := postgres()
		if err != nil {
			return nil, err
		}
		conversations = p
	case "sqlite":
		sq, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, sq.Close)
		conversations = sq
	default:
		conversations = store.NewMemoryStore()
	}
	if err := conversations.Init(ctx); err != nil {
		return nil, fmt.Errorf("error to create tables: %w", err)
	}

	var cache index.Cache
	switch cfg.IndexCache.Kind {
	case "memory":
		cache = index.NewMemoryCache(cfg.IndexCache.Size)
	case "postgres":
		p, err := postgres()
		if err != nil {
			return nil, err
		}
		es := store.NewEmbeddingStore(p.Pool())
		if err := es.Init(ctx); err != nil {
			return nil, err
		}
		cache = es
	}

	blobs, err := store.NewFileBlobStore(cfg.Blob.Root, cfg.Blob.Prefix)
	if err != nil {
		return nil, err
	}

	embedCfg := model.EmbedderConfig{
		Provider: cfg.Embedder.Provider,
		Model:    cfg.Embedder.Model,
		Dim:      cfg.Embedder.Dim,
		Timeout:  cfg.Timeouts.Embed,
	}
	switch cfg.Embedder.Provider {
	case "openai":
		embedCfg.APIKey = cfg.OpenAIAPIKey
	case "ollama":
		embedCfg.BaseURL = cfg.Embedder.URL
	}
	embedder, err := model.NewEmbedder(embedCfg)
	if err != nil {
		return nil, err
	}

	llmCfg := model.LLMConfig{
		Provider: cfg.LLM.Provider,
		Timeout:  cfg.Timeouts.LLM,
	}
	switch cfg.LLM.Provider {
	case "openai":
		llmCfg.APIKey = cfg.OpenAIAPIKey
	case "anthropic":
		llmCfg.APIKey = cfg.AnthropicAPIKey
	case "ollama":
		llmCfg.BaseURL = cfg.LLM.URL
	}
	llm, err := model.NewLLM(llmCfg)
	if err != nil {
		return nil, err
	}

	splitter, err := loader.NewSplitter(cfg.Chunk.Size, cfg.Chunk.Overlap, loader.DefaultSeparators)
	if err != nil {
		return nil, err
	}

	engine := agent.NewEngine(llm, embedder, agent.Config{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		K:           cfg.RetrievalK,
	})

	return service.New(service.Deps{
		Extractor:     loader.NewExtractor(),
		Splitter:      splitter,
		Embedder:      embedder,
		Engine:        engine,
		Conversations: conversations,
		Blobs:         blobs,
		Sessions:      session.NewManager(),
		Cache:         cache,
		BatchSize:     cfg.Embedder.BatchSize,
		Timeouts: service.Timeouts{
			Embed: cfg.Timeouts.Embed,
			LLM:   cfg.Timeouts.LLM,
			Store: cfg.Timeouts.Store,
			Blob:  cfg.Timeouts.Blob,
		},
		Logger: s.logger,
	})
}

// Handler exposes the fiber app, mostly for app.Test.
func (s *Server) Handler() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.logger.Info("server started", "addr", s.listenAddr)
	if err := s.app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return err
	}
	return nil
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.Shutdown(); err != nil {
			s.logger.Error("error to shutdown server", "error", err.Error())
		}
	}
	s.close()
	s.logger.Info("server stopped")
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error("error to close resource", "error", err.Error())
		}
	}
	s.closers = nil
}

package model

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docchat/types"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Name identifies the provider and model, vectors of different names are not comparable.
	Name() string
}

// BatchEmbedder is implemented by providers that embed several texts in one call.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type EmbedderConfig struct {
	Provider string // openai, ollama or hash
	Model    string
	APIKey   string
	BaseURL  string
	Dim      int
	Timeout  time.Duration
}

// NewEmbedder builds the embedder selected by cfg.Provider.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "openai":
		e, err = NewOpenAIEmbedder(cfg)
	case "ollama":
		e, err = NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Timeout)
	case "hash":
		e, err = NewHashEmbedder(cfg.Dim)
	default:
		err = fmt.Errorf("%w: unknown embedder %q", types.ErrConfiguration, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("embedder ready", "embedder", e.Name())
	return e, nil
}

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"docchat/config"
	"docchat/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	dir := t.TempDir()
	cfg.ConversationStore = "sqlite"
	cfg.SQLitePath = filepath.Join(dir, "chat.db")
	cfg.Blob.Root = filepath.Join(dir, "blobs")
	cfg.Blob.StagingDir = filepath.Join(dir, "staging")
	cfg.Embedder.Provider = "hash"
	cfg.LLM.Provider = "ollama"
	cfg.IndexCache.Kind = "memory"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewServerRoutes(t *testing.T) {
	s, err := NewServer(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer s.Stop()

	resp, err := s.Handler().Test(httptest.NewRequest(http.MethodGet, "/check/healthy", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = s.Handler().Test(httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNewServerBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedder.Provider = "word2vec"

	_, err := NewServer(context.Background(), cfg)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

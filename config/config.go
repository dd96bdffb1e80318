// Package config assembles the service configuration from defaults, an
// optional YAML file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"docchat/types"

	"gopkg.in/yaml.v3"
)

// PathEnv names the variable holding the optional YAML config file path.
const PathEnv = "DOCCHAT_CONFIG"

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.DBName)
}

type BlobConfig struct {
	Root       string `yaml:"root"`
	Prefix     string `yaml:"prefix"`
	StagingDir string `yaml:"staging_dir"`
}

type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type EmbedderConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dim       int    `yaml:"dim"`
	BatchSize int    `yaml:"batch_size"`
	URL       string `yaml:"url"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	URL         string  `yaml:"url"`
}

type CacheConfig struct {
	Kind string `yaml:"kind"`
	Size int    `yaml:"size"`
}

type Timeouts struct {
	Embed time.Duration `yaml:"embed"`
	LLM   time.Duration `yaml:"llm"`
	Store time.Duration `yaml:"store"`
	Blob  time.Duration `yaml:"blob"`
}

type Config struct {
	ServerAddr        string         `yaml:"server_addr"`
	ConversationStore string         `yaml:"conversation_store"`
	SQLitePath        string         `yaml:"sqlite_path"`
	Postgres          PostgresConfig `yaml:"postgres"`
	Blob              BlobConfig     `yaml:"blob"`
	Chunk             ChunkConfig    `yaml:"chunk"`
	RetrievalK        int            `yaml:"retrieval_k"`
	Embedder          EmbedderConfig `yaml:"embedder"`
	LLM               LLMConfig      `yaml:"llm"`
	OpenAIAPIKey      string         `yaml:"openai_api_key"`
	AnthropicAPIKey   string         `yaml:"anthropic_api_key"`
	IndexCache        CacheConfig    `yaml:"index_cache"`
	Timeouts          Timeouts       `yaml:"timeouts"`
}

func Default() *Config {
	return &Config{
		ServerAddr:        ":3000",
		ConversationStore: "postgres",
		SQLitePath:        filepath.Join("data", "docchat.db"),
		Postgres: PostgresConfig{
			Host:   "localhost",
			Port:   5432,
			User:   "postgres",
			DBName: "docchat",
		},
		Blob: BlobConfig{
			Root:       filepath.Join("data", "blobs"),
			Prefix:     "documents/",
			StagingDir: filepath.Join(os.TempDir(), "docchat-uploads"),
		},
		Chunk:      ChunkConfig{Size: 1000, Overlap: 0},
		RetrievalK: 4,
		Embedder: EmbedderConfig{
			Provider:  "openai",
			BatchSize: 64,
			URL:       "http://localhost:11434/api/embeddings",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-3.5-turbo-16k",
			URL:      "http://localhost:11434/api/generate",
		},
		IndexCache: CacheConfig{Kind: "none", Size: 10000},
		Timeouts: Timeouts{
			Embed: time.Minute,
			LLM:   2 * time.Minute,
			Store: 10 * time.Second,
			Blob:  time.Minute,
		},
	}
}

// Load builds the configuration. The YAML file named by DOCCHAT_CONFIG, when
// set, overrides defaults; environment variables override both.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(PathEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", types.ErrConfiguration, path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse %s: %w", types.ErrConfiguration, path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("SERVER_ADDR", &c.ServerAddr)
	str("CONVERSATION_STORE", &c.ConversationStore)
	str("SQLITE_PATH", &c.SQLitePath)

	str("PG_HOST", &c.Postgres.Host)
	num("PG_PORT", &c.Postgres.Port)
	str("PG_USER", &c.Postgres.User)
	str("PG_PASS", &c.Postgres.Password)
	str("PG_DB_NAME", &c.Postgres.DBName)

	str("BLOB_ROOT", &c.Blob.Root)
	str("BLOB_PREFIX", &c.Blob.Prefix)
	str("UPLOAD_STAGING_DIR", &c.Blob.StagingDir)

	num("CHUNK_SIZE", &c.Chunk.Size)
	num("CHUNK_OVERLAP", &c.Chunk.Overlap)
	num("RETRIEVAL_K", &c.RetrievalK)

	str("EMBEDDER", &c.Embedder.Provider)
	str("EMBEDDING_MODEL", &c.Embedder.Model)
	num("EMBEDDING_DIM", &c.Embedder.Dim)
	num("EMBED_BATCH_SIZE", &c.Embedder.BatchSize)
	str("OLLAMA_EMBEDDING_URL", &c.Embedder.URL)

	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_MODEL", &c.LLM.Model)
	str("OLLAMA_URL", &c.LLM.URL)
	if v, ok := os.LookupEnv("LLM_TEMPERATURE"); ok && v != "" {
		t, err := strconv.ParseFloat(v, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("LLM_TEMPERATURE: %w", err))
		} else {
			c.LLM.Temperature = float32(t)
		}
	}

	str("OPENAI_API_KEY", &c.OpenAIAPIKey)
	str("ANTHROPIC_API_KEY", &c.AnthropicAPIKey)

	str("INDEX_CACHE", &c.IndexCache.Kind)
	num("INDEX_CACHE_SIZE", &c.IndexCache.Size)

	dur("EMBED_TIMEOUT", &c.Timeouts.Embed)
	dur("LLM_TIMEOUT", &c.Timeouts.LLM)
	dur("STORE_TIMEOUT", &c.Timeouts.Store)
	dur("BLOB_TIMEOUT", &c.Timeouts.Blob)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.ServerAddr != "", "server address is required")
	switch c.ConversationStore {
	case "postgres":
		check(c.Postgres.Host != "" && c.Postgres.DBName != "", "postgres host and database name are required")
	case "sqlite":
		check(c.SQLitePath != "", "sqlite path is required")
	case "memory":
	default:
		check(false, "unknown conversation store %q", c.ConversationStore)
	}

	check(c.Blob.Root != "", "blob root is required")
	check(c.Blob.StagingDir != "", "upload staging directory is required")
	check(c.Chunk.Size > 0, "chunk size must be positive")
	check(c.Chunk.Overlap >= 0 && c.Chunk.Overlap < c.Chunk.Size, "chunk overlap must be in [0, chunk size)")
	check(c.RetrievalK > 0, "retrieval k must be positive")

	switch c.Embedder.Provider {
	case "openai":
		check(c.OpenAIAPIKey != "", "OPENAI_API_KEY is required for the openai embedder")
	case "ollama":
		check(c.Embedder.URL != "" && c.Embedder.Model != "", "ollama embedding url and model are required")
	case "hash":
		check(c.Embedder.Dim >= 0, "embedding dimension must not be negative")
	default:
		check(false, "unknown embedder %q", c.Embedder.Provider)
	}

	switch c.LLM.Provider {
	case "openai":
		check(c.OpenAIAPIKey != "", "OPENAI_API_KEY is required for the openai llm")
	case "anthropic":
		check(c.AnthropicAPIKey != "", "ANTHROPIC_API_KEY is required for the anthropic llm")
	case "ollama":
		check(c.LLM.URL != "", "ollama url is required")
	default:
		check(false, "unknown llm provider %q", c.LLM.Provider)
	}
	check(c.LLM.Model != "", "llm model is required")
	check(c.LLM.Temperature >= 0 && c.LLM.Temperature <= 2, "llm temperature must be in [0, 2]")

	switch c.IndexCache.Kind {
	case "none":
	case "memory":
		check(c.IndexCache.Size > 0, "index cache size must be positive")
	case "postgres":
		check(c.Postgres.Host != "" && c.Postgres.DBName != "", "postgres host and database name are required for the index cache")
	default:
		check(false, "unknown index cache %q", c.IndexCache.Kind)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

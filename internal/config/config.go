// Package config provides configuration loading for ragbrain.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Storage backend identifiers.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendQdrant   = "qdrant"
)

// Config holds the complete ragbrain configuration. It is built once at
// process start by Load and handed to constructors; nothing below cmd/
// reads the environment directly.
type Config struct {
	Server             ServerConfig             `koanf:"server"`
	Auth               AuthConfig               `koanf:"auth"`
	Gateway            GatewayConfig            `koanf:"gateway"`
	Retrieval          RetrievalConfig          `koanf:"retrieval"`
	AssistantEmbedding AssistantEmbeddingConfig `koanf:"assistant_embedding"`
	Prompt             PromptConfig             `koanf:"prompt"`
	Storage            StorageConfig            `koanf:"storage"`
	Secrets            SecretsConfig            `koanf:"secrets"`
	Logging            LoggingConfig            `koanf:"logging"`
	Telemetry          TelemetryConfig          `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string          `koanf:"host"`
	Port            int             `koanf:"port"`
	ShutdownTimeout Duration        `koanf:"shutdown_timeout"`
	BodyLimit       string          `koanf:"body_limit"`
	MetricsEnabled  bool            `koanf:"metrics_enabled"`
	CORS            CORSConfig      `koanf:"cors"`
	RateLimit       RateLimitConfig `koanf:"rate_limit"`
}

// CORSConfig controls cross-origin access.
type CORSConfig struct {
	AllowOrigins []string `koanf:"allow_origins"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// AuthConfig controls inbound credential handling.
type AuthConfig struct {
	// RequireKey rejects requests that carry no gateway key.
	RequireKey bool `koanf:"require_key"`

	// AdminToken guards document ingestion.
	AdminToken Secret `koanf:"admin_token"`
}

// GatewayConfig describes the upstream generation/embedding gateway.
type GatewayConfig struct {
	Origin     string      `koanf:"origin"`
	ChatPath   string      `koanf:"chat_path"`
	EmbedPath  string      `koanf:"embed_path"`
	StreamPath string      `koanf:"stream_path"`
	HealthPath string      `koanf:"health_path"`
	Timeout    Duration    `koanf:"timeout"`
	Chat       ChatConfig  `koanf:"chat"`
	Embed      EmbedConfig `koanf:"embed"`
}

// ChatConfig holds generation defaults.
type ChatConfig struct {
	Provider    string  `koanf:"provider"`
	Model       string  `koanf:"model"`
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

// EmbedConfig holds embedding defaults.
type EmbedConfig struct {
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	Dimension int    `koanf:"dimension"`
}

// RetrievalConfig holds hybrid retrieval limits.
type RetrievalConfig struct {
	RecencyWindow int    `koanf:"recency_window"`
	ThreadLimit   int    `koanf:"thread_limit"`
	TopKUser      int    `koanf:"top_k_user"`
	TopKDocs      int    `koanf:"top_k_docs"`
	Policy        string `koanf:"policy"`
}

// AssistantEmbeddingConfig controls best-effort embedding of replies.
type AssistantEmbeddingConfig struct {
	Enabled  bool `koanf:"enabled"`
	MaxChars int  `koanf:"max_chars"`
}

// PromptConfig holds the system prompt. SystemFile wins over System when set.
type PromptConfig struct {
	System     string `koanf:"system"`
	SystemFile string `koanf:"system_file"`
}

// StorageConfig selects and configures persistence backends.
type StorageConfig struct {
	Conversations string         `koanf:"conversations"`
	Documents     string         `koanf:"documents"`
	Postgres      PostgresConfig `koanf:"postgres"`
	Qdrant        QdrantConfig   `koanf:"qdrant"`
}

// PostgresConfig configures the pgvector-backed store.
type PostgresConfig struct {
	DSN             Secret   `koanf:"dsn"`
	MaxOpenConns    int      `koanf:"max_open_conns"`
	MaxIdleConns    int      `koanf:"max_idle_conns"`
	ConnMaxLifetime Duration `koanf:"conn_max_lifetime"`
}

// QdrantConfig configures the Qdrant document store.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	UseTLS     bool   `koanf:"use_tls"`
	APIKey     Secret `koanf:"api_key"`
	Collection string `koanf:"collection"`
}

// SecretsConfig configures secret redaction for client error reports.
type SecretsConfig struct {
	AllowlistPath string `koanf:"allowlist_path"`
}

// LoggingConfig holds the operator-facing logging knobs.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig holds the operator-facing OpenTelemetry knobs.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
	ServiceName string  `koanf:"service_name"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
			BodyLimit:       "1M",
			MetricsEnabled:  true,
			CORS:            CORSConfig{AllowOrigins: []string{"*"}},
			RateLimit:       RateLimitConfig{Enabled: false, RPS: 10, Burst: 20},
		},
		Auth: AuthConfig{RequireKey: true},
		Gateway: GatewayConfig{
			Origin:     "https://skyesol.netlify.app",
			ChatPath:   "/.netlify/functions/gateway-chat",
			EmbedPath:  "/.netlify/functions/gateway-embed",
			StreamPath: "/.netlify/functions/gateway-stream",
			HealthPath: "/.netlify/functions/health",
			Chat: ChatConfig{
				Provider:    "gemini",
				Model:       "gemini-2.0-flash",
				MaxTokens:   1200,
				Temperature: 0.7,
			},
			Embed: EmbedConfig{
				Provider:  "gemini",
				Model:     "gemini-embedding-001",
				Dimension: 1536,
			},
		},
		Retrieval: RetrievalConfig{
			RecencyWindow: 12,
			ThreadLimit:   10,
			TopKUser:      6,
			TopKDocs:      8,
		},
		AssistantEmbedding: AssistantEmbeddingConfig{Enabled: true, MaxChars: 4500},
		Storage: StorageConfig{
			Conversations: BackendMemory,
			Documents:     BackendMemory,
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: Duration(30 * time.Minute),
			},
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "tenant_docs",
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			SampleRate:  1.0,
			ServiceName: "ragbrain",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RPS <= 0 {
		return errors.New("rate_limit.rps must be positive when rate limiting is enabled")
	}

	u, err := url.Parse(c.Gateway.Origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid gateway origin %q", c.Gateway.Origin)
	}
	for name, p := range map[string]string{
		"chat_path":   c.Gateway.ChatPath,
		"embed_path":  c.Gateway.EmbedPath,
		"stream_path": c.Gateway.StreamPath,
		"health_path": c.Gateway.HealthPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("gateway.%s must start with '/', got %q", name, p)
		}
	}
	if c.Gateway.Chat.Provider == "" || c.Gateway.Chat.Model == "" {
		return errors.New("gateway.chat provider and model are required")
	}
	if c.Gateway.Embed.Provider == "" || c.Gateway.Embed.Model == "" {
		return errors.New("gateway.embed provider and model are required")
	}
	if c.Gateway.Embed.Dimension <= 0 {
		return fmt.Errorf("gateway.embed.dimension must be positive, got %d", c.Gateway.Embed.Dimension)
	}

	if c.Retrieval.RecencyWindow < 0 || c.Retrieval.ThreadLimit < 0 ||
		c.Retrieval.TopKUser < 0 || c.Retrieval.TopKDocs < 0 {
		return errors.New("retrieval limits cannot be negative")
	}
	if c.AssistantEmbedding.MaxChars < 0 {
		return errors.New("assistant_embedding.max_chars cannot be negative")
	}

	switch c.Storage.Conversations {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("storage.conversations must be %q or %q, got %q",
			BackendMemory, BackendPostgres, c.Storage.Conversations)
	}
	switch c.Storage.Documents {
	case BackendMemory, BackendPostgres, BackendQdrant:
	default:
		return fmt.Errorf("storage.documents must be %q, %q or %q, got %q",
			BackendMemory, BackendPostgres, BackendQdrant, c.Storage.Documents)
	}
	if c.UsesPostgres() && !c.Storage.Postgres.DSN.IsSet() {
		return errors.New("storage.postgres.dsn is required for the postgres backend")
	}
	if c.Storage.Documents == BackendQdrant && c.Storage.Qdrant.Collection == "" {
		return errors.New("storage.qdrant.collection is required for the qdrant backend")
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}

// UsesPostgres reports whether any backend needs a database connection.
func (c *Config) UsesPostgres() bool {
	return c.Storage.Conversations == BackendPostgres || c.Storage.Documents == BackendPostgres
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "RAGBRAIN_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// envKeys lists every configurable leaf. The environment name of a key is
// EnvPrefix plus the upper-cased path with dots replaced by underscores:
//
//	retrieval.top_k_user -> RAGBRAIN_RETRIEVAL_TOP_K_USER
//
// Field names contain underscores, so the mapping is table-driven rather
// than split on the first separator.
var envKeys = []string{
	"server.host",
	"server.port",
	"server.shutdown_timeout",
	"server.body_limit",
	"server.metrics_enabled",
	"server.cors.allow_origins",
	"server.rate_limit.enabled",
	"server.rate_limit.rps",
	"server.rate_limit.burst",
	"auth.require_key",
	"auth.admin_token",
	"gateway.origin",
	"gateway.chat_path",
	"gateway.embed_path",
	"gateway.stream_path",
	"gateway.health_path",
	"gateway.timeout",
	"gateway.chat.provider",
	"gateway.chat.model",
	"gateway.chat.max_tokens",
	"gateway.chat.temperature",
	"gateway.embed.provider",
	"gateway.embed.model",
	"gateway.embed.dimension",
	"retrieval.recency_window",
	"retrieval.thread_limit",
	"retrieval.top_k_user",
	"retrieval.top_k_docs",
	"retrieval.policy",
	"assistant_embedding.enabled",
	"assistant_embedding.max_chars",
	"prompt.system",
	"prompt.system_file",
	"storage.conversations",
	"storage.documents",
	"storage.postgres.dsn",
	"storage.postgres.max_open_conns",
	"storage.postgres.max_idle_conns",
	"storage.postgres.conn_max_lifetime",
	"storage.qdrant.host",
	"storage.qdrant.port",
	"storage.qdrant.use_tls",
	"storage.qdrant.api_key",
	"storage.qdrant.collection",
	"secrets.allowlist_path",
	"logging.level",
	"logging.format",
	"logging.otel",
	"telemetry.enabled",
	"telemetry.endpoint",
	"telemetry.protocol",
	"telemetry.insecure",
	"telemetry.sample_rate",
	"telemetry.service_name",
}

// listKeys are split on commas when read from the environment.
var listKeys = map[string]bool{
	"server.cors.allow_origins": true,
}

var envBindings = func() map[string]string {
	m := make(map[string]string, len(envKeys))
	for _, key := range envKeys {
		m[EnvName(key)] = key
	}
	return m
}()

// EnvName returns the environment variable that overrides a config key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load builds the configuration.
//
// Precedence (highest to lowest):
//  1. RAGBRAIN_* environment variables
//  2. YAML file at path (skipped when path is empty)
//  3. Default()
//
// The result is validated before it is returned.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	// Lists replace defaults instead of merging index by index.
	if k.Exists("server.cors.allow_origins") {
		cfg.Server.CORS.AllowOrigins = nil
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// transformEnv maps RAGBRAIN_SECTION_FIELD to section.field using the
// binding table. Unknown variables return an empty key and are ignored.
func transformEnv(name, value string) (string, interface{}) {
	key, ok := envBindings[name]
	if !ok {
		return "", nil
	}
	if listKeys[key] {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return key, out
	}
	return key, value
}

// readConfigFile reads a config file through a single descriptor so the
// size check and the read see the same file.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// LoadSystemPrompt resolves the system prompt: the file named by
// prompt.system_file when set, else prompt.system, else fallback.
func (c *Config) LoadSystemPrompt(fallback string) (string, error) {
	if c.Prompt.SystemFile != "" {
		content, err := readConfigFile(c.Prompt.SystemFile)
		if err != nil {
			return "", fmt.Errorf("system prompt: %w", err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	if s := strings.TrimSpace(c.Prompt.System); s != "" {
		return s, nil
	}
	return fallback, nil
}

package orchestrator

import (
	"errors"

	"github.com/fyrsmithlabs/ragbrain/internal/config"
	"github.com/fyrsmithlabs/ragbrain/internal/packet"
)

// Config holds the pipeline's tunables.
type Config struct {
	SystemPrompt string
	Policy       string

	TopKUser    int
	TopKDocs    int
	ThreadLimit int

	Chat  ChatDefaults
	Embed EmbedDefaults

	// EmbedReplies enables best-effort embedding of assistant replies no
	// longer than ReplyEmbedMaxChars runes.
	EmbedReplies       bool
	ReplyEmbedMaxChars int
}

// ChatDefaults are sent with every generation request.
type ChatDefaults struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// EmbedDefaults are sent with every embedding request.
type EmbedDefaults struct {
	Provider  string
	Model     string
	Dimension int
}

// DefaultConfig returns the stock pipeline settings.
func DefaultConfig() Config {
	return ConfigFrom(config.Default(), packet.DefaultSystemPrompt)
}

// ConfigFrom maps the service configuration onto pipeline settings.
func ConfigFrom(c *config.Config, systemPrompt string) Config {
	return Config{
		SystemPrompt: systemPrompt,
		Policy:       c.Retrieval.Policy,
		TopKUser:     c.Retrieval.TopKUser,
		TopKDocs:     c.Retrieval.TopKDocs,
		ThreadLimit:  c.Retrieval.ThreadLimit,
		Chat: ChatDefaults{
			Provider:    c.Gateway.Chat.Provider,
			Model:       c.Gateway.Chat.Model,
			MaxTokens:   c.Gateway.Chat.MaxTokens,
			Temperature: c.Gateway.Chat.Temperature,
		},
		Embed: EmbedDefaults{
			Provider:  c.Gateway.Embed.Provider,
			Model:     c.Gateway.Embed.Model,
			Dimension: c.Gateway.Embed.Dimension,
		},
		EmbedReplies:       c.AssistantEmbedding.Enabled,
		ReplyEmbedMaxChars: c.AssistantEmbedding.MaxChars,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SystemPrompt == "" {
		return errors.New("system prompt is required")
	}
	if c.Chat.Provider == "" || c.Chat.Model == "" {
		return errors.New("chat provider and model are required")
	}
	if c.Embed.Provider == "" || c.Embed.Model == "" {
		return errors.New("embed provider and model are required")
	}
	if c.TopKUser < 0 || c.TopKDocs < 0 || c.ThreadLimit < 0 || c.ReplyEmbedMaxChars < 0 {
		return errors.New("limits cannot be negative")
	}
	return nil
}

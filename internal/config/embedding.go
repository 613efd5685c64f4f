package config

import (
	"fmt"
	"os"

	"github.com/dwang/embedcomp/internal/domain"
)

// EmbeddingConfig defines one embedding configuration available for
// comparison: a provider-backed model plus a target output dimension.
type EmbeddingConfig struct {
	Provider         string `mapstructure:"provider"`          // Provider type: "jina", "openai-compatible"
	Model            string `mapstructure:"model"`             // Model name/ID
	APIKey           string `mapstructure:"api_key"`           // API key (can be set directly or via env var)
	APIKeyEnv        string `mapstructure:"api_key_env"`       // Environment variable name for API key
	BaseURL          string `mapstructure:"base_url"`          // Base URL for OpenAI-compatible APIs
	BaseURLEnv       string `mapstructure:"base_url_env"`      // Environment variable name for base URL
	Dimensions       int    `mapstructure:"dimensions"`        // Target embedding vector dimensions
	NativeDimensions int    `mapstructure:"native_dimensions"` // Model's native output dimensions (0 = look up preset table)
}

// DefaultEmbeddings returns the two configurations the original comparison
// demo ships with, covering both native dimensionalities.
func DefaultEmbeddings() []EmbeddingConfig {
	return []EmbeddingConfig{
		{
			Provider:   "jina",
			Model:      "all-mpnet-base-v2",
			APIKeyEnv:  "JINA_API_KEY",
			Dimensions: 768,
		},
		{
			Provider:   "jina",
			Model:      "all-MiniLM-L6-v2",
			APIKeyEnv:  "JINA_API_KEY",
			Dimensions: 384,
		},
	}
}

// ResolveEnvVars resolves environment variable references in the configuration.
// Direct values (APIKey, BaseURL) take precedence if already set.
func (c *EmbeddingConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}
	if c.BaseURLEnv != "" && c.BaseURL == "" {
		if val := os.Getenv(c.BaseURLEnv); val != "" {
			c.BaseURL = val
		}
	}
}

// NativeDimension returns the model's native output dimension, preferring the
// explicit config value over the preset model table. Returns 0 if unknown.
func (c *EmbeddingConfig) NativeDimension() int {
	if c.NativeDimensions > 0 {
		return c.NativeDimensions
	}
	if native, ok := domain.NativeDimension(c.Model); ok {
		return native
	}
	return 0
}

// Configuration returns the (model, dimension) pair this config describes.
func (c *EmbeddingConfig) Configuration() domain.Configuration {
	return domain.Configuration{Model: c.Model, Dimension: c.Dimensions}
}

// Validate checks that the embedding configuration has all required fields
// and that the target dimension does not exceed the model's native dimension.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("embedding %q: provider is required", c.Model)
	}
	switch c.Provider {
	case "jina", "openai-compatible":
		// Valid providers
	default:
		return fmt.Errorf("embedding %q: unknown provider %q", c.Model, c.Provider)
	}
	return c.Configuration().Validate(c.NativeDimension())
}

// ValidateWithAPIKey validates the configuration including API key requirement.
// Use this when the embedding will actually be used (not just configured).
func (c *EmbeddingConfig) ValidateWithAPIKey() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("embedding %q: api_key is required (set directly or via %s)", c.Model, c.APIKeyEnv)
	}
	return nil
}

// Clone creates a copy of the embedding configuration.
func (c *EmbeddingConfig) Clone() *EmbeddingConfig {
	clone := *c
	return &clone
}

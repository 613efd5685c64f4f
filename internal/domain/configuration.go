package domain

import (
	"fmt"
	"strings"
)

// DefaultCollectionPrefix is the prefix used for collection names when none is configured.
const DefaultCollectionPrefix = "movies"

// Configuration identifies one embedding setup: a model identifier plus a
// target output dimension. Two configurations are the same setup iff both
// fields match; vectors produced under different configurations are never
// comparable.
type Configuration struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// CollectionName returns the deterministic vector-collection name for this
// configuration: "{prefix}-{model}-{dimension}" with the model lowercased and
// underscores replaced by hyphens. Repeated calls with the same configuration
// always yield the same name, so collection provisioning is idempotent.
func (c Configuration) CollectionName(prefix string) string {
	if prefix == "" {
		prefix = DefaultCollectionPrefix
	}
	clean := strings.ToLower(strings.ReplaceAll(c.Model, "_", "-"))
	return fmt.Sprintf("%s-%s-%d", prefix, clean, c.Dimension)
}

// Validate checks the configuration against the model's native output
// dimension. A non-positive target or a target exceeding the native dimension
// is a ConfigurationError; no embedding work may be attempted after failure.
func (c Configuration) Validate(nativeDimension int) error {
	if c.Model == "" {
		return &ConfigurationError{Model: c.Model, Dimension: c.Dimension, Reason: "model identifier is required"}
	}
	if c.Dimension <= 0 {
		return &ConfigurationError{Model: c.Model, Dimension: c.Dimension, Reason: "dimension must be positive"}
	}
	if nativeDimension > 0 && c.Dimension > nativeDimension {
		return &ConfigurationError{
			Model:     c.Model,
			Dimension: c.Dimension,
			Reason:    fmt.Sprintf("dimension exceeds model native dimension %d", nativeDimension),
		}
	}
	return nil
}

// String returns a short human-readable form, e.g. "all-MiniLM-L6-v2/384".
func (c Configuration) String() string {
	return fmt.Sprintf("%s/%d", c.Model, c.Dimension)
}

package logging

import (
	"fmt"
)

// Config holds logging configuration.
type Config struct {
	Level      string            `koanf:"level"`
	Format     string            `koanf:"format"`
	Caller     bool              `koanf:"caller"`
	Stacktrace string            `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
	Sampling   SamplingConfig    `koanf:"sampling"`
	Redact     []string          `koanf:"redact"`
}

// SamplingConfig controls log volume reduction. Error and above are never sampled.
type SamplingConfig struct {
	Enabled    bool `koanf:"enabled"`
	Initial    int  `koanf:"initial"`
	Thereafter int  `koanf:"thereafter"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "json",
		Caller:     true,
		Stacktrace: "error",
		Fields: map[string]string{
			"service": "namingd",
		},
		Sampling: SamplingConfig{
			Enabled:    true,
			Initial:    100,
			Thereafter: 10,
		},
		Redact: []string{"authorization", "token", "api_key", "password", "dsn"},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if _, err := LevelFromString(c.Level); err != nil {
		return fmt.Errorf("invalid level %q: %w", c.Level, err)
	}
	if c.Stacktrace != "" {
		if _, err := LevelFromString(c.Stacktrace); err != nil {
			return fmt.Errorf("invalid stacktrace level %q: %w", c.Stacktrace, err)
		}
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if c.Sampling.Enabled && (c.Sampling.Initial <= 0 || c.Sampling.Thereafter < 0) {
		return fmt.Errorf("sampling initial must be > 0 and thereafter >= 0")
	}
	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}

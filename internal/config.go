package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Vault      VaultConfig       `yaml:"vault"`
	Cache      CacheConfig       `yaml:"cache"`
	Similarity SimilarityConfig  `yaml:"similarity"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return c.Similarity.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the vault directory settings.
type VaultConfig struct {
	Path       string   `yaml:"path"`
	IgnoreDirs []string `yaml:"ignore_dirs"`
	DebounceMS int      `yaml:"debounce_ms"`
}

// Debounce returns the watcher coalescing window.
func (c *VaultConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.DebounceMS, validation.Min(0), validation.Max(60_000)),
	)
}

// CacheConfig holds the persistent metadata cache configuration. When
// disabled (or when the store cannot be opened) every scan is a full parse.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SimilarityConfig holds the similarity engine configuration. MinScore and
// TopK are the defaults for viewers that have not sent their own settings.
type SimilarityConfig struct {
	Enabled  bool    `yaml:"enabled"`
	MinScore float64 `yaml:"min_score"`
	TopK     int     `yaml:"top_k"`
	MaxNotes int     `yaml:"max_notes"`
}

// Validate validates the similarity configuration.
func (c *SimilarityConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.MinScore, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.TopK, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxNotes, validation.Min(0)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:       "./vault",
			IgnoreDirs: []string{".obsidian", ".git", ".trash", "node_modules"},
			DebounceMS: 400,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "./ansuz.db",
		},
		Similarity: SimilarityConfig{
			Enabled:  true,
			MinScore: 0.75,
			TopK:     10,
			MaxNotes: 5000,
		},
	}
}

package internal

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notegraph/internal/predict"
	pkgconfig "github.com/starford/notegraph/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app" toml:"app"`
	Vault      VaultConfig       `yaml:"vault" toml:"vault"`
	Search     SearchConfig      `yaml:"search" toml:"search"`
	Prediction PredictionConfig  `yaml:"prediction" toml:"prediction"`
	Watch      WatchConfig       `yaml:"watch" toml:"watch"`
	Auth       AuthConfig        `yaml:"auth" toml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if err := c.Prediction.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
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

// VaultConfig describes the Markdown vault being indexed.
//
// EncryptionKey is an optional hex-encoded 32-byte key. When set, notes
// written with the AES-GCM envelope are decrypted on read.
type VaultConfig struct {
	Path          string   `yaml:"path" toml:"path"`
	CacheDir      string   `yaml:"cache_dir" toml:"cache_dir"`
	Ignore        []string `yaml:"ignore" toml:"ignore"`
	EncryptionKey string   `yaml:"encryption_key" toml:"encryption_key"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.EncryptionKey, validation.By(validKey)),
	)
}

// Key decodes EncryptionKey. It returns nil when no key is configured.
func (c *VaultConfig) Key() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("vault: encryption_key: %w", err)
	}
	return key, nil
}

func validKey(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return errors.New("must be hex encoded")
	}
	if len(key) != 32 {
		return fmt.Errorf("must decode to 32 bytes, got %d", len(key))
	}
	return nil
}

// SearchConfig holds full-text engine configuration.
// An empty SQLitePath keeps the engine in memory.
type SearchConfig struct {
	SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`
	MaxResults int    `yaml:"max_results" toml:"max_results"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxResults, validation.Required, validation.Min(1), validation.Max(1000)),
	)
}

// PredictionConfig tunes the next-word model.
type PredictionConfig struct {
	TopK          int                `yaml:"top_k" toml:"top_k"`
	MinWordLength int                `yaml:"min_word_length" toml:"min_word_length"`
	MinNGramCount int                `yaml:"min_ngram_count" toml:"min_ngram_count"`
	Debounce      pkgconfig.Duration `yaml:"debounce" toml:"debounce"`
}

// Validate validates the prediction configuration.
func (c *PredictionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TopK, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.MinWordLength, validation.Required, validation.Min(1)),
		validation.Field(&c.MinNGramCount, validation.Required, validation.Min(1)),
		validation.Field(&c.Debounce, validation.Required, validation.Min(pkgconfig.Duration(0))),
	)
}

// Options converts the section into predict.Options.
func (c *PredictionConfig) Options() predict.Options {
	return predict.Options{
		TopK:          c.TopK,
		MinWordLength: c.MinWordLength,
		MinNGramCount: c.MinNGramCount,
	}
}

// WatchConfig controls the filesystem watcher.
type WatchConfig struct {
	Enabled  bool               `yaml:"enabled" toml:"enabled"`
	Debounce pkgconfig.Duration `yaml:"debounce" toml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.When(c.Enabled, validation.Required)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	p := predict.DefaultOptions()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:     "./vault",
			CacheDir: ".notegraph",
		},
		Search: SearchConfig{
			MaxResults: 20,
		},
		Prediction: PredictionConfig{
			TopK:          p.TopK,
			MinWordLength: p.MinWordLength,
			MinNGramCount: p.MinNGramCount,
			Debounce:      pkgconfig.Duration(60 * time.Second),
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: pkgconfig.Duration(200 * time.Millisecond),
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

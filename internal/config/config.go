// ABOUTME: Configuration loading and parsing for concierge
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete concierge configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Chat     ChatConfig     `yaml:"chat"`
	History  HistoryConfig  `yaml:"history"`
	Tools    ToolsConfig    `yaml:"tools"`
	Speech   SpeechConfig   `yaml:"speech"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EngineConfig holds model generation configuration
type EngineConfig struct {
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// ChatConfig holds turn orchestration configuration
type ChatConfig struct {
	SystemPrompt   string `yaml:"system_prompt"`
	WelcomeMessage string `yaml:"welcome_message"`
	MaxPasses      int    `yaml:"max_passes"`
}

// HistoryConfig holds thread history configuration
type HistoryConfig struct {
	PageSize int `yaml:"page_size"`
	// HiddenContextWindow limits how many hidden context entries feed the
	// model. Zero means all of them.
	HiddenContextWindow int `yaml:"hidden_context_window"`
}

// ToolsConfig holds per-tool configuration
type ToolsConfig struct {
	Weather WeatherConfig `yaml:"weather"`
	Venues  VenuesConfig  `yaml:"venues"`
	Poster  PosterConfig  `yaml:"poster"`
	City    string        `yaml:"city"`
}

// WeatherConfig holds weather provider configuration
type WeatherConfig struct {
	Enabled bool `yaml:"enabled"`
}

// VenuesConfig holds venue search configuration
type VenuesConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// PosterConfig holds poster generation configuration
type PosterConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// SpeechConfig holds text-to-speech configuration
type SpeechConfig struct {
	APIKey  string `yaml:"api_key"`
	VoiceID string `yaml:"voice_id"`
	BaseURL string `yaml:"base_url"`
}

// AuthConfig holds API authentication configuration
type AuthConfig struct {
	// APIKeys maps a subject name to the bcrypt hash of its key. Empty
	// disables authentication.
	APIKeys     map[string]string `yaml:"api_keys"`
	TokenSecret string            `yaml:"token_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Engine.Model == "" {
		return fmt.Errorf("engine.model is required")
	}
	if len(c.Auth.APIKeys) > 0 && c.Auth.TokenSecret == "" {
		return fmt.Errorf("auth.token_secret is required when api_keys are configured")
	}
	if c.History.PageSize < 0 {
		return fmt.Errorf("history.page_size must not be negative")
	}
	if c.History.HiddenContextWindow < 0 {
		return fmt.Errorf("history.hidden_context_window must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Engine.TimeoutRaw != "" {
		cfg.Engine.Timeout, err = time.ParseDuration(cfg.Engine.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing engine.timeout %q: %w", cfg.Engine.TimeoutRaw, err)
		}
	}

	return nil
}

// Package config assembles Kioku's runtime configuration from built-in
// defaults, an optional YAML file and the process environment, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bdobrica/Kioku/common/environment"
	"github.com/bdobrica/Kioku/internal/kioku/llm"
)

// FileEnv names the environment variable pointing at the optional YAML file.
const FileEnv = "KIOKU_CONFIG"

// Config is the full runtime configuration.
type Config struct {
	Port         int    `yaml:"port"`
	DatabasePath string `yaml:"database_path"`
	// RateLimit is the number of events accepted per user per minute on the
	// events endpoint. Zero disables limiting.
	RateLimit int `yaml:"rate_limit"`

	Log    LogConfig    `yaml:"log"`
	LLM    LLMConfig    `yaml:"llm"`
	Slack  SlackConfig  `yaml:"slack"`
	Matrix MatrixConfig `yaml:"matrix"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LLMConfig selects and tunes the completion provider.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	// Service is the api_keys row holding the secret; defaults to Provider.
	Service     string        `yaml:"service"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SlackConfig configures the events endpoint and reply posting.
type SlackConfig struct {
	// Verify requires signed requests on the events endpoint. Turning it off
	// is for local development only.
	Verify        bool   `yaml:"verify"`
	SigningSecret string `yaml:"signing_secret"`
	BotToken      string `yaml:"bot_token"`
	// APIBaseURL overrides https://slack.com/api.
	APIBaseURL string `yaml:"api_base_url"`
}

// MatrixConfig configures the optional Matrix transport.
type MatrixConfig struct {
	Homeserver  string   `yaml:"homeserver"`
	UserID      string   `yaml:"user_id"`
	AccessToken string   `yaml:"access_token"`
	Rooms       []string `yaml:"rooms"`
}

// Enabled reports whether enough is configured to connect to Matrix.
func (m MatrixConfig) Enabled() bool {
	return m.Homeserver != "" && m.UserID != "" && m.AccessToken != ""
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:         3000,
		DatabasePath: "memories.db",
		RateLimit:    30,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		LLM: LLMConfig{
			Provider:    string(llm.KindOpenAI),
			MaxTokens:   200,
			Temperature: 0.7,
			Timeout:     llm.DefaultTimeout,
		},
		Slack: SlackConfig{Verify: true},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// KIOKU_CONFIG (if any), then environment variables. It does not validate;
// operator commands such as setup need only the database path.
func Load() (Config, error) {
	return LoadFrom(environment.StringOr(FileEnv, ""))
}

// LoadFrom is Load with an explicit YAML path; an empty path skips the file.
func LoadFrom(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto c. Unset, empty or
// unparseable variables leave the current value alone.
func (c *Config) ApplyEnv() {
	c.Port = environment.IntOr("PORT", c.Port)
	c.DatabasePath = environment.StringOr("DATABASE_PATH", c.DatabasePath)
	c.RateLimit = environment.IntOr("KIOKU_RATE_LIMIT", c.RateLimit)

	c.Log.Level = environment.StringOr("LOG_LEVEL", c.Log.Level)
	c.Log.Format = environment.StringOr("LOG_FORMAT", c.Log.Format)

	c.LLM.Provider = environment.StringOr("KIOKU_PROVIDER", c.LLM.Provider)
	c.LLM.Service = environment.StringOr("KIOKU_API_KEY_SERVICE", c.LLM.Service)
	c.LLM.Model = environment.StringOr("KIOKU_MODEL", c.LLM.Model)
	c.LLM.MaxTokens = environment.IntOr("KIOKU_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Temperature = environment.Float64Or("KIOKU_TEMPERATURE", c.LLM.Temperature)
	c.LLM.BaseURL = environment.StringOr("KIOKU_API_BASE_URL", c.LLM.BaseURL)
	c.LLM.Timeout = environment.DurationOr("KIOKU_TIMEOUT", c.LLM.Timeout)

	c.Slack.Verify = environment.BoolOr("SLACK_VERIFY", c.Slack.Verify)
	c.Slack.SigningSecret = environment.StringOr("SLACK_SIGNING_SECRET", c.Slack.SigningSecret)
	c.Slack.BotToken = environment.StringOr("SLACK_BOT_TOKEN", c.Slack.BotToken)

	c.Matrix.Homeserver = environment.StringOr("MATRIX_HOMESERVER", c.Matrix.Homeserver)
	c.Matrix.UserID = environment.StringOr("MATRIX_USER_ID", c.Matrix.UserID)
	c.Matrix.AccessToken = environment.StringOr("MATRIX_ACCESS_TOKEN", c.Matrix.AccessToken)
	c.Matrix.Rooms = environment.StringSliceOr("MATRIX_ROOMS", c.Matrix.Rooms)
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if _, err := llm.ParseKind(c.LLM.Provider); err != nil {
		errs = append(errs, err)
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max tokens must be positive, got %d", c.LLM.MaxTokens))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f out of range [0, 2]", c.LLM.Temperature))
	}
	if c.Slack.Verify && c.Slack.SigningSecret == "" {
		errs = append(errs, errors.New("slack signing secret is required (set SLACK_VERIFY=false to accept unsigned events)"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %d", c.RateLimit))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Kind returns the parsed provider kind. Call after Validate.
func (c *Config) Kind() llm.Kind {
	k, _ := llm.ParseKind(c.LLM.Provider)
	return k
}

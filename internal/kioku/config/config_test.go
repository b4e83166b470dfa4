package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bdobrica/Kioku/internal/kioku/config"
	"github.com/bdobrica/Kioku/internal/kioku/llm"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"KIOKU_CONFIG", "PORT", "DATABASE_PATH", "KIOKU_RATE_LIMIT", "LOG_LEVEL", "LOG_FORMAT",
		"KIOKU_PROVIDER", "KIOKU_API_KEY_SERVICE", "KIOKU_MODEL", "KIOKU_MAX_TOKENS",
		"KIOKU_TEMPERATURE", "KIOKU_API_BASE_URL", "KIOKU_TIMEOUT",
		"SLACK_VERIFY", "SLACK_SIGNING_SECRET", "SLACK_BOT_TOKEN",
		"MATRIX_HOMESERVER", "MATRIX_USER_ID", "MATRIX_ACCESS_TOKEN", "MATRIX_ROOMS",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 3000 || cfg.DatabasePath != "memories.db" {
		t.Errorf("unexpected defaults: port=%d db=%q", cfg.Port, cfg.DatabasePath)
	}
	if cfg.LLM.MaxTokens != 200 || cfg.LLM.Temperature != 0.7 {
		t.Errorf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Kind() != llm.KindOpenAI {
		t.Errorf("kind = %q", cfg.Kind())
	}
	if cfg.Matrix.Enabled() {
		t.Error("matrix should be disabled by default")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "kioku.yaml")
	yaml := `
port: 8080
database_path: /data/kioku.db
llm:
  provider: anthropic
  model: claude-test
  temperature: 0.2
  timeout: 15s
matrix:
  homeserver: https://matrix.example.org
  user_id: "@kioku:example.org"
  access_token: syt_file
  rooms: ["!a:example.org"]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("KIOKU_CONFIG", path)
	t.Setenv("PORT", "9090")
	t.Setenv("KIOKU_MODEL", "claude-env")
	t.Setenv("MATRIX_ROOMS", "!b:example.org, !c:example.org")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("env should win for port, got %d", cfg.Port)
	}
	if cfg.DatabasePath != "/data/kioku.db" {
		t.Errorf("database path = %q", cfg.DatabasePath)
	}
	if cfg.Kind() != llm.KindAnthropic {
		t.Errorf("kind = %q", cfg.Kind())
	}
	if cfg.LLM.Model != "claude-env" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.2 || cfg.LLM.Timeout != 15*time.Second {
		t.Errorf("file values lost: %+v", cfg.LLM)
	}
	if cfg.LLM.MaxTokens != 200 {
		t.Errorf("keys absent from the file keep defaults, got %d", cfg.LLM.MaxTokens)
	}
	if !cfg.Matrix.Enabled() {
		t.Error("matrix should be enabled")
	}
	if len(cfg.Matrix.Rooms) != 2 || cfg.Matrix.Rooms[1] != "!c:example.org" {
		t.Errorf("rooms = %v", cfg.Matrix.Rooms)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("KIOKU_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"defaults need a signing secret", func(*config.Config) {}, true},
		{"signing secret", func(c *config.Config) { c.Slack.SigningSecret = "s" }, false},
		{"verification off", func(c *config.Config) { c.Slack.Verify = false }, false},
		{"zero temperature", func(c *config.Config) { c.Slack.Verify = false; c.LLM.Temperature = 0 }, false},
		{"bad port", func(c *config.Config) { c.Slack.Verify = false; c.Port = 70000 }, true},
		{"empty db", func(c *config.Config) { c.DatabasePath = "" }, true},
		{"unknown provider", func(c *config.Config) { c.LLM.Provider = "cohere" }, true},
		{"zero max tokens", func(c *config.Config) { c.LLM.MaxTokens = 0 }, true},
		{"hot temperature", func(c *config.Config) { c.LLM.Temperature = 3 }, true},
		{"negative rate limit", func(c *config.Config) { c.RateLimit = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_SlackVerifySwitch(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Slack.Verify {
		t.Fatal("verification should be on by default")
	}
	if err := cfg.Validate(); err == nil {
		t.Error("missing signing secret should fail validation")
	}

	t.Setenv("SLACK_VERIFY", "false")
	cfg, err = config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Slack.Verify {
		t.Error("SLACK_VERIFY=false not applied")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_ZeroTemperatureKept(t *testing.T) {
	clearEnv(t)
	t.Setenv("KIOKU_TEMPERATURE", "0")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", cfg.LLM.Temperature)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tigro.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/tigro/data"
universe:
  path: "/tmp/tigro/tickers.csv"
logging:
  level: "debug"
news:
  window_days: 14
  retry_delay: 500ms
trend:
  lookbacks: [7, 30]
pipeline:
  deadline: 10m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/tigro/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/tigro/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/tigro/data/articles.db" {
		t.Errorf("Storage.SQLitePath = %q, want derived path", cfg.Storage.SQLitePath)
	}
	if cfg.Dashboard.OutputDir != "/tmp/tigro/data/dashboard" {
		t.Errorf("Dashboard.OutputDir = %q, want derived path", cfg.Dashboard.OutputDir)
	}
	if cfg.News.WindowDays != 14 {
		t.Errorf("News.WindowDays = %d, want 14", cfg.News.WindowDays)
	}
	if cfg.News.RetryDelay != 500*time.Millisecond {
		t.Errorf("News.RetryDelay = %v, want 500ms", cfg.News.RetryDelay)
	}
	if cfg.Pipeline.Deadline != 10*time.Minute {
		t.Errorf("Pipeline.Deadline = %v, want 10m", cfg.Pipeline.Deadline)
	}
	if len(cfg.Trend.Lookbacks) != 2 || cfg.Trend.Lookbacks[1] != 30 {
		t.Errorf("Trend.Lookbacks = %v, want [7 30]", cfg.Trend.Lookbacks)
	}

	// Untouched sections keep their defaults.
	if cfg.Trend.Threshold != 0.05 {
		t.Errorf("Trend.Threshold = %v, want 0.05", cfg.Trend.Threshold)
	}
	if cfg.Sentiment.HeadlineWeight != 0.4 || cfg.Sentiment.BodyWeight != 0.6 {
		t.Errorf("weights = %v/%v, want 0.4/0.6", cfg.Sentiment.HeadlineWeight, cfg.Sentiment.BodyWeight)
	}
	if cfg.Email.NegativeCutoff != -0.1 {
		t.Errorf("Email.NegativeCutoff = %v, want -0.1", cfg.Email.NegativeCutoff)
	}
	if cfg.Optimizer.Confidence != 0.97 {
		t.Errorf("Optimizer.Confidence = %v, want 0.97", cfg.Optimizer.Confidence)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/tigro/data"
news:
  finnhub:
    enabled: true
    api_key: "yaml-key"
`)

	t.Setenv("FINNHUB_KEY", "env-key")
	t.Setenv("TIGRO_DATA_DIR", "/srv/tigro")
	t.Setenv("APCA_API_KEY_ID", "apca-id")
	t.Setenv("APCA_API_SECRET_KEY", "apca-secret")
	t.Setenv("SMTP_PASSWORD", "hunter2")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("EMAIL_TO", "a@example.com, b@example.com,")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.News.Finnhub.APIKey != "env-key" {
		t.Errorf("Finnhub.APIKey = %q, want env-key", cfg.News.Finnhub.APIKey)
	}
	if cfg.Storage.DataDir != "/srv/tigro" {
		t.Errorf("Storage.DataDir = %q, want /srv/tigro", cfg.Storage.DataDir)
	}
	if cfg.Storage.SQLitePath != "/srv/tigro/articles.db" {
		t.Errorf("Storage.SQLitePath = %q, want /srv/tigro/articles.db", cfg.Storage.SQLitePath)
	}
	if cfg.News.Alpaca.APIKey != "apca-id" || cfg.News.Alpaca.APISecret != "apca-secret" {
		t.Errorf("Alpaca creds = %q/%q, want apca-id/apca-secret", cfg.News.Alpaca.APIKey, cfg.News.Alpaca.APISecret)
	}
	if cfg.Email.Password != "hunter2" {
		t.Errorf("Email.Password = %q, want hunter2", cfg.Email.Password)
	}
	if cfg.Email.Port != 587 {
		t.Errorf("Email.Port = %d, want 587", cfg.Email.Port)
	}
	if len(cfg.Email.To) != 2 || cfg.Email.To[1] != "b@example.com" {
		t.Errorf("Email.To = %v, want [a@example.com b@example.com]", cfg.Email.To)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load should fail for a missing file")
	}
}

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"headline weight above one", func(c *Config) { c.Sentiment.HeadlineWeight = 1.5 }},
		{"negative body weight", func(c *Config) { c.Sentiment.BodyWeight = -0.1 }},
		{"zero threshold", func(c *Config) { c.Trend.Threshold = 0 }},
		{"no lookbacks", func(c *Config) { c.Trend.Lookbacks = nil }},
		{"zero lookback", func(c *Config) { c.Trend.Lookbacks = []int{7, 0} }},
		{"no workers", func(c *Config) { c.Pipeline.MaxWorkers = 0 }},
		{"unknown backend", func(c *Config) { c.Sentiment.Backend = "vibes" }},
		{"email without host", func(c *Config) {
			c.Email.Enabled = true
			c.Email.From = "me@example.com"
			c.Email.To = []string{"you@example.com"}
		}},
		{"finnhub without key", func(c *Config) { c.News.Finnhub.Enabled = true }},
		{"gemini without key", func(c *Config) { c.Sentiment.Backend = "gemini" }},
		{"non-negative email cutoff", func(c *Config) { c.Email.NegativeCutoff = 0.2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}

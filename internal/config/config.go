package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tigro pipeline.
type Config struct {
	Storage   Storage         `yaml:"storage"`
	Universe  UniverseConfig  `yaml:"universe"`
	Logging   Logging         `yaml:"logging"`
	News      NewsConfig      `yaml:"news"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Trend     TrendConfig     `yaml:"trend"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Email     EmailConfig     `yaml:"email"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Server    Server          `yaml:"server"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir" validate:"required"`
	SQLitePath string `yaml:"sqlite_path"`
}

// UniverseConfig points at the ticker universe CSV.
type UniverseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// NewsConfig controls article collection.
type NewsConfig struct {
	WindowDays  int           `yaml:"window_days" validate:"min=1"`
	MaxAttempts int           `yaml:"max_attempts" validate:"min=1"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	Finnhub     Finnhub       `yaml:"finnhub"`
	Alpaca      Alpaca        `yaml:"alpaca"`
	Google      GoogleNews    `yaml:"google"`
}

// Finnhub holds credentials and limits for the Finnhub company-news API.
type Finnhub struct {
	Enabled         bool   `yaml:"enabled"`
	APIKey          string `yaml:"api_key" validate:"required_if=Enabled true"`
	BaseURL         string `yaml:"base_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min" validate:"min=1"`
}

// Alpaca holds credentials for the Alpaca market data API.
type Alpaca struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Limit     int    `yaml:"limit"`
}

// GoogleNews controls the Google News RSS source.
type GoogleNews struct {
	Enabled         bool   `yaml:"enabled"`
	BaseURL         string `yaml:"base_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min" validate:"min=1"`
}

// SentimentConfig selects the classifier backend and the score weights.
type SentimentConfig struct {
	Backend        string      `yaml:"backend" validate:"oneof=lexicon huggingface gemini"`
	HeadlineWeight float64     `yaml:"headline_weight" validate:"gte=0,lte=1"`
	BodyWeight     float64     `yaml:"body_weight" validate:"gte=0,lte=1"`
	MaxChars       int         `yaml:"max_chars" validate:"min=1"`
	HuggingFace    HuggingFace `yaml:"huggingface"`
	Gemini         Gemini      `yaml:"gemini"`
}

// HuggingFace configures the hosted inference classifier.
type HuggingFace struct {
	Token   string `yaml:"token"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// Gemini configures the LLM classifier.
type Gemini struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// TrendConfig holds the trend classification constants.
type TrendConfig struct {
	Threshold     float64 `yaml:"threshold" validate:"gt=0"`
	ZeroEpsilon   float64 `yaml:"zero_epsilon" validate:"gt=0"`
	Lookbacks     []int   `yaml:"lookbacks" validate:"min=1,dive,gt=0"`
	PrimaryWindow int     `yaml:"primary_window" validate:"gt=0"`
}

// DashboardConfig controls static HTML output.
type DashboardConfig struct {
	OutputDir string `yaml:"output_dir"`
	Title     string `yaml:"title"`
	Articles  int    `yaml:"articles_per_ticker" validate:"min=0"`
}

// EmailConfig holds SMTP settings for the decliners digest.
type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host" validate:"required_if=Enabled true"`
	Port     int      `yaml:"port" validate:"required_if=Enabled true"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from" validate:"required_if=Enabled true"`
	FromName string   `yaml:"from_name"`
	To       []string `yaml:"to" validate:"required_if=Enabled true"`
	UseTLS   bool     `yaml:"use_tls"`
	TopN     int      `yaml:"top_n" validate:"min=1"`
	Subject  string   `yaml:"subject_prefix"`

	// NegativeCutoff flags low scores when no trend baseline exists yet.
	NegativeCutoff float64 `yaml:"negative_cutoff" validate:"gte=-1,lt=0"`
}

// OptimizerConfig holds the portfolio optimizer parameters.
type OptimizerConfig struct {
	LookbackDays int     `yaml:"lookback_days" validate:"min=2"`
	RiskFreeRate float64 `yaml:"risk_free_rate"`
	MaxWeight    float64 `yaml:"max_weight" validate:"gt=0,lte=1"`
	Alpha        float64 `yaml:"sentiment_alpha"`
	Confidence   float64 `yaml:"var_confidence" validate:"gt=0,lt=1"`
	Capital      float64 `yaml:"capital" validate:"gte=0"`
	Currency     string  `yaml:"currency" validate:"len=3"`
	Iterations   int     `yaml:"iterations" validate:"min=1"`
}

// PipelineConfig bounds a single run.
type PipelineConfig struct {
	MaxWorkers    int           `yaml:"max_workers" validate:"min=1"`
	Deadline      time.Duration `yaml:"deadline" validate:"gt=0"`
	KeepSnapshots int           `yaml:"keep_snapshots" validate:"min=0"`
	Schedule      string        `yaml:"schedule"`
}

// Server holds the dashboard preview listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Default returns the configuration used when a field is absent from the
// YAML file.
func Default() *Config {
	return &Config{
		Storage:  Storage{DataDir: "data"},
		Universe: UniverseConfig{Path: "config/tickers.csv"},
		Logging:  Logging{Level: "info", Format: "json"},
		News: NewsConfig{
			WindowDays:  30,
			MaxAttempts: 3,
			RetryDelay:  2 * time.Second,
			Timeout:     10 * time.Second,
			Finnhub: Finnhub{
				BaseURL:         "https://finnhub.io/api/v1",
				RateLimitPerMin: 60,
			},
			Alpaca: Alpaca{Limit: 50},
			Google: GoogleNews{
				Enabled:         true,
				BaseURL:         "https://news.google.com/rss/search",
				RateLimitPerMin: 30,
			},
		},
		Sentiment: SentimentConfig{
			Backend:        "lexicon",
			HeadlineWeight: 0.4,
			BodyWeight:     0.6,
			MaxChars:       2000,
			HuggingFace: HuggingFace{
				Model:   "ProsusAI/finbert",
				BaseURL: "https://api-inference.huggingface.co/models",
			},
			Gemini: Gemini{Model: "gemini-2.0-flash"},
		},
		Trend: TrendConfig{
			Threshold:     0.05,
			ZeroEpsilon:   1e-9,
			Lookbacks:     []int{7, 15, 30},
			PrimaryWindow: 7,
		},
		Dashboard: DashboardConfig{Title: "Sentiment Dashboard", Articles: 25},
		Email: EmailConfig{
			Port:    465,
			UseTLS:  true,
			TopN:    5,
			Subject: "Daily Sentiment Report",

			NegativeCutoff: -0.1,
		},
		Optimizer: OptimizerConfig{
			LookbackDays: 365,
			RiskFreeRate: 0.02,
			MaxWeight:    0.25,
			Alpha:        0.05,
			Confidence:   0.97,
			Capital:      10000,
			Currency:     "USD",
			Iterations:   2000,
		},
		Pipeline: PipelineConfig{
			MaxWorkers:    4,
			Deadline:      30 * time.Minute,
			KeepSnapshots: 30,
			Schedule:      "0 18 * * 1-5",
		},
		Server: Server{Host: "127.0.0.1", Port: 8080},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path over the defaults,
// then applies environment variable overrides and derives unset paths.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.derivePaths()

	return cfg, nil
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Sentiment.Backend == "huggingface" && c.Sentiment.HuggingFace.Token == "" {
		return fmt.Errorf("invalid config: sentiment backend huggingface needs HF_API_TOKEN")
	}
	if c.Sentiment.Backend == "gemini" && c.Sentiment.Gemini.APIKey == "" {
		return fmt.Errorf("invalid config: sentiment backend gemini needs GEMINI_API_KEY")
	}
	return nil
}

// SnapshotDir is where dated snapshot files and the index live.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.Storage.DataDir, "snapshots")
}

// ArticleArchiveDir is where per-run parquet article archives live.
func (c *Config) ArticleArchiveDir() string {
	return filepath.Join(c.Storage.DataDir, "articles")
}

func (c *Config) derivePaths() {
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(c.Storage.DataDir, "articles.db")
	}
	if c.Dashboard.OutputDir == "" {
		c.Dashboard.OutputDir = filepath.Join(c.Storage.DataDir, "dashboard")
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set. Secrets are only
// expected to arrive this way.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TIGRO_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("TIGRO_UNIVERSE"); v != "" {
		cfg.Universe.Path = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("FINNHUB_KEY"); v != "" {
		cfg.News.Finnhub.APIKey = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.News.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.News.Alpaca.APISecret = v
	}

	if v := os.Getenv("HF_API_TOKEN"); v != "" {
		cfg.Sentiment.HuggingFace.Token = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Sentiment.Gemini.APIKey = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Email.Port = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.Email.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		cfg.Email.From = v
	}
	if v := os.Getenv("EMAIL_TO"); v != "" {
		var to []string
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				to = append(to, addr)
			}
		}
		cfg.Email.To = to
	}
}

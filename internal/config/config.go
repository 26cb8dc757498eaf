package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	PDL       PDLConfig       `yaml:"pdl" mapstructure:"pdl"`
	Serp      SerpConfig      `yaml:"serp" mapstructure:"serp"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Clay      ClayConfig      `yaml:"clay" mapstructure:"clay"`
	Slack     SlackConfig     `yaml:"slack" mapstructure:"slack"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Dispatch  DispatchConfig  `yaml:"dispatch" mapstructure:"dispatch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PDLConfig holds People Data Labs API settings.
type PDLConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SerpConfig holds SerpAPI settings.
type SerpConfig struct {
	Key        string  `yaml:"key" mapstructure:"key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	NumResults int     `yaml:"num_results" mapstructure:"num_results"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ClayConfig holds the outbound results webhook settings.
type ClayConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// SlackConfig holds the default Slack notification webhook. Workspaces
// may override it per tenant.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// EnrichConfig configures the enrichment fan-out.
type EnrichConfig struct {
	ProviderTimeoutSecs int `yaml:"provider_timeout_secs" mapstructure:"provider_timeout_secs"`
	OverallTimeoutSecs  int `yaml:"overall_timeout_secs" mapstructure:"overall_timeout_secs"`
}

// ScoringConfig configures the search-signal revenue gate.
type ScoringConfig struct {
	MinRevenueUSD  float64 `yaml:"min_revenue_usd" mapstructure:"min_revenue_usd"`
	RecencyYears   int     `yaml:"recency_years" mapstructure:"recency_years"`
	MinPressHits   int     `yaml:"min_press_hits" mapstructure:"min_press_hits"`
	DefaultApprove bool    `yaml:"default_approve" mapstructure:"default_approve"`
}

// DispatchConfig configures outbound webhook delivery.
type DispatchConfig struct {
	QueueSize    int `yaml:"queue_size" mapstructure:"queue_size"`
	MaxAttempts  int `yaml:"max_attempts" mapstructure:"max_attempts"`
	TimeoutSecs  int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BackoffMsecs int `yaml:"backoff_msecs" mapstructure:"backoff_msecs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "tally-enricher.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	// AutomaticEnv only surfaces keys viper already knows about, so
	// secrets that have no meaningful default still need an empty one
	// for TALLY_* env vars to reach Unmarshal.
	v.SetDefault("pdl.key", "")
	v.SetDefault("serp.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("clay.webhook_url", "")
	v.SetDefault("slack.webhook_url", "")
	v.SetDefault("pdl.base_url", "https://api.peopledatalabs.com/v5")
	v.SetDefault("serp.base_url", "https://serpapi.com")
	v.SetDefault("serp.num_results", 10)
	v.SetDefault("serp.rate_per_sec", 5.0)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("enrich.provider_timeout_secs", 20)
	v.SetDefault("enrich.overall_timeout_secs", 30)
	v.SetDefault("scoring.min_revenue_usd", 50_000_000)
	v.SetDefault("scoring.recency_years", 3)
	v.SetDefault("scoring.min_press_hits", 5)
	v.SetDefault("scoring.default_approve", false)
	v.SetDefault("dispatch.queue_size", 256)
	v.SetDefault("dispatch.max_attempts", 3)
	v.SetDefault("dispatch.timeout_secs", 10)
	v.SetDefault("dispatch.backoff_msecs", 300)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a given mode needs before startup. Modes:
// "serve" runs the full HTTP pipeline, "qualify" runs one lead from the
// CLI, "workspace" only touches the store.
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			missing = append(missing, "server.port must be between 1 and 65535")
		}
		fallthrough
	case "qualify":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
		if c.Enrich.ProviderTimeoutSecs <= 0 {
			missing = append(missing, "enrich.provider_timeout_secs must be > 0")
		}
		if c.Dispatch.MaxAttempts < 1 {
			missing = append(missing, "dispatch.max_attempts must be >= 1")
		}
	case "workspace":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: invalid configuration:\n  - %s", strings.Join(missing, "\n  - "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

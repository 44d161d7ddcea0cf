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
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Verify    VerifyConfig    `yaml:"verify" mapstructure:"verify"`
	Discover  DiscoverConfig  `yaml:"discover" mapstructure:"discover"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SearchConfig selects and tunes the web-search answering service.
type SearchConfig struct {
	Backend      string           `yaml:"backend" mapstructure:"backend"`
	Perplexica   PerplexicaConfig `yaml:"perplexica" mapstructure:"perplexica"`
	Perplexity   PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	MaxAttempts  int              `yaml:"max_attempts" mapstructure:"max_attempts"`
	DelaySecs    int              `yaml:"delay_secs" mapstructure:"delay_secs"`
	TimeoutSecs  int              `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit    float64          `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	SystemPrompt string           `yaml:"system_prompt" mapstructure:"system_prompt"`
}

// PerplexicaConfig holds the Perplexica /api/search settings.
type PerplexicaConfig struct {
	URL               string `yaml:"url" mapstructure:"url"`
	ChatProvider      string `yaml:"chat_provider" mapstructure:"chat_provider"`
	ChatModel         string `yaml:"chat_model" mapstructure:"chat_model"`
	EmbeddingProvider string `yaml:"embedding_provider" mapstructure:"embedding_provider"`
	EmbeddingModel    string `yaml:"embedding_model" mapstructure:"embedding_model"`
	OptimizationMode  string `yaml:"optimization_mode" mapstructure:"optimization_mode"`
	FocusMode         string `yaml:"focus_mode" mapstructure:"focus_mode"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// VerifyConfig tunes scoring and validation.
type VerifyConfig struct {
	Preset            string   `yaml:"preset" mapstructure:"preset"`
	PresetsFile       string   `yaml:"presets_file" mapstructure:"presets_file"`
	DualPass          bool     `yaml:"dual_pass" mapstructure:"dual_pass"`
	DualPassThreshold float64  `yaml:"dual_pass_threshold" mapstructure:"dual_pass_threshold"`
	RequireConfidence bool     `yaml:"require_confidence" mapstructure:"require_confidence"`
	RecentYears       []string `yaml:"recent_years" mapstructure:"recent_years"`
}

// DiscoverConfig tunes holding brand discovery queries.
type DiscoverConfig struct {
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	DelaySecs   int `yaml:"delay_secs" mapstructure:"delay_secs"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds the optional JSON repair settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	RepairModel string `yaml:"repair_model" mapstructure:"repair_model"`
}

// RegistryConfig enables trademark register evidence.
type RegistryConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	WIPOURL     string `yaml:"wipo_url" mapstructure:"wipo_url"`
	Country     string `yaml:"country" mapstructure:"country"`
	SireneURL   string `yaml:"sirene_url" mapstructure:"sirene_url"`
	SireneToken string `yaml:"sirene_token" mapstructure:"sirene_token"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Workers       int `yaml:"workers" mapstructure:"workers"` // 0 = number of CPUs
	CacheTTLHours int `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres or none
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
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
	v.SetEnvPrefix("BRANDV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("search.backend", "perplexica")
	v.SetDefault("search.perplexica.url", "http://localhost:3000/api/search")
	v.SetDefault("search.perplexica.chat_provider", "openai")
	v.SetDefault("search.perplexica.chat_model", "gpt-4o-mini")
	v.SetDefault("search.perplexica.embedding_provider", "openai")
	v.SetDefault("search.perplexica.embedding_model", "text-embedding-3-large")
	v.SetDefault("search.perplexica.optimization_mode", "speed")
	v.SetDefault("search.perplexica.focus_mode", "webSearch")
	v.SetDefault("search.perplexity.key", "")
	v.SetDefault("search.perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("search.perplexity.model", "sonar-pro")
	v.SetDefault("search.max_attempts", 3)
	v.SetDefault("search.delay_secs", 2)
	v.SetDefault("search.timeout_secs", 60)
	v.SetDefault("search.rate_limit", 0)
	v.SetDefault("verify.preset", "ownership")
	v.SetDefault("verify.dual_pass", true)
	v.SetDefault("verify.dual_pass_threshold", 70)
	v.SetDefault("verify.require_confidence", false)
	v.SetDefault("verify.presets_file", "")
	v.SetDefault("discover.max_attempts", 3)
	v.SetDefault("discover.delay_secs", 30)
	v.SetDefault("discover.timeout_secs", 300)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.repair_model", "claude-haiku-4-5-20251001")
	v.SetDefault("registry.enabled", false)
	v.SetDefault("registry.wipo_url", "https://www3.wipo.int")
	v.SetDefault("registry.country", "France")
	v.SetDefault("registry.sirene_url", "https://api.insee.fr")
	v.SetDefault("registry.sirene_token", "")
	v.SetDefault("batch.workers", 0)
	v.SetDefault("batch.cache_ttl_hours", 168)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "brand_verification.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Search.Backend {
	case "perplexica", "perplexity":
	default:
		return eris.Errorf("config: unknown search.backend %q", c.Search.Backend)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Search.MaxAttempts <= 0 {
		return eris.New("config: search.max_attempts must be > 0")
	}
	if c.Verify.DualPassThreshold < 0 || c.Verify.DualPassThreshold > 100 {
		return eris.New("config: verify.dual_pass_threshold must be within [0,100]")
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

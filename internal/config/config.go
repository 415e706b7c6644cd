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
	Places     PlacesConfig     `yaml:"places" mapstructure:"places"`
	CMS        CMSConfig        `yaml:"cms" mapstructure:"cms"`
	News       NewsConfig       `yaml:"news" mapstructure:"news"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Profile    ProfileConfig    `yaml:"profile" mapstructure:"profile"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PlacesConfig holds the place-directory source settings. An empty key is a
// supported degraded mode: the directory adapter returns no data and makes
// no network calls.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CMSConfig holds the regulatory dataset source settings. The provider-data
// API is public; no credential exists.
type CMSConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	DatasetID   string `yaml:"dataset_id" mapstructure:"dataset_id"`
	HCAHPSID    string `yaml:"hcahps_id" mapstructure:"hcahps_id"`
	SnapshotURL string `yaml:"snapshot_url" mapstructure:"snapshot_url"`
	MirrorURL   string `yaml:"mirror_url" mapstructure:"mirror_url"`
}

// NewsConfig holds the news search feed settings. An empty key is a
// supported degraded mode, same as PlacesConfig.
type NewsConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Market  string `yaml:"market" mapstructure:"market"`
}

// JinaConfig holds Jina AI Reader settings for the website probe.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings for the briefing command.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// SalesforceConfig holds Salesforce JWT auth settings for the push step.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// NotionConfig holds the Notion rule-registry settings.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	RuleDB string `yaml:"rule_db" mapstructure:"rule_db"`
}

// StoreConfig configures the regulatory snapshot store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ProfileConfig tunes the profile engine.
type ProfileConfig struct {
	Themes    int    `yaml:"themes" mapstructure:"themes"`
	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`
}

// FetchConfig tunes the outbound fetch layer.
type FetchConfig struct {
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the profile HTTP server.
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
	v.SetEnvPrefix("PROFILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("cms.base_url", "https://data.cms.gov/provider-data/api/1")
	v.SetDefault("cms.dataset_id", "xubh-q36u")
	v.SetDefault("cms.hcahps_id", "dgck-syfz")
	v.SetDefault("cms.snapshot_url", "https://data.cms.gov/provider-data/sites/default/files/resources/Hospital_General_Information.csv")
	v.SetDefault("news.base_url", "https://api.bing.microsoft.com/v7.0")
	v.SetDefault("news.market", "en-US")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "profiler.db")
	v.SetDefault("profile.themes", 5)
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.requests_per_sec", 4)
	v.SetDefault("fetch.user_agent", "profiler-cli/1.0 (+https://sellsadvisors.com)")
	v.SetDefault("batch.max_concurrent", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

	return &cfg, nil
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

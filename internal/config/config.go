package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Evidence policies for the narrative validator.
const (
	EvidenceStrict   = "strict"
	EvidenceAdvisory = "advisory"
)

// Primary text-generation providers.
const (
	ProviderPollinations = "pollinations"
	ProviderGemini       = "gemini"
)

// Config represents the complete application configuration
type Config struct {
	App          App          `mapstructure:"app"`
	DataProvider DataProvider `mapstructure:"data_provider"`
	AI           AI           `mapstructure:"ai"`
	Narrative    Narrative    `mapstructure:"narrative"`
	Output       Output       `mapstructure:"output"`
	Database     Database     `mapstructure:"database"`
	Ledger       Ledger       `mapstructure:"ledger"`
	Server       Server       `mapstructure:"server"`
	PostHog      PostHog      `mapstructure:"posthog"`
	Logging      Logging      `mapstructure:"logging"`
}

// App contains general application settings
type App struct {
	Debug   bool   `mapstructure:"debug"`
	DataDir string `mapstructure:"data_dir"`
}

// DataProvider contains API-Football settings
type DataProvider struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
	CacheDir        string        `mapstructure:"cache_dir"`
	MockDir         string        `mapstructure:"mock_dir"`
}

// AI contains text-generation provider settings
type AI struct {
	Primary      string             `mapstructure:"primary"`
	Pollinations PollinationsConfig `mapstructure:"pollinations"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Gemini       GeminiConfig       `mapstructure:"gemini"`
	Temperature  float64            `mapstructure:"temperature"`
}

// PollinationsConfig configures the default chat completion provider
type PollinationsConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig configures the alternate deep-analysis provider
type OpenAIConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// GeminiConfig configures Gemini as an optional primary provider
type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Narrative controls the generate/validate loop
type Narrative struct {
	MaxAttempts    int    `mapstructure:"max_attempts"`
	EvidencePolicy string `mapstructure:"evidence_policy"`
}

// Output contains output locations
type Output struct {
	ContentDir   string `mapstructure:"content_dir"`
	PublicDir    string `mapstructure:"public_dir"`
	PublicPrefix string `mapstructure:"public_prefix"`
}

// Database contains optional Postgres settings
type Database struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Enabled reports whether a Postgres connection string is configured.
func (d Database) Enabled() bool { return d.URL != "" }

// Ledger configures the local SQLite run history
type Ledger struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Server contains HTTP server settings
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORS          `mapstructure:"cors"`
}

// CORS configures cross-origin access to the content API
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PostHog contains product analytics settings
type PostHog struct {
	APIKey string `mapstructure:"api_key"`
	Host   string `mapstructure:"host"`
}

// Enabled reports whether analytics events should be sent.
func (p PostHog) Enabled() bool { return p.APIKey != "" }

// Logging contains logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from an optional file, .env and the environment.
// Nothing is cached; callers pass the returned Config to constructors.
func Load(configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".goalgazer")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	postProcessConfig(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	postProcessConfig(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.debug", false)
	v.SetDefault("app.data_dir", ".goalgazer")

	v.SetDefault("data_provider.base_url", "https://v3.football.api-sports.io")
	v.SetDefault("data_provider.timeout", "30s")
	v.SetDefault("data_provider.request_interval", "400ms")
	v.SetDefault("data_provider.cache_dir", "data/cache")
	v.SetDefault("data_provider.mock_dir", "mock_data")

	v.SetDefault("ai.primary", ProviderPollinations)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.pollinations.model", "grok")
	v.SetDefault("ai.pollinations.endpoint", "https://gen.pollinations.ai/v1/chat/completions")
	v.SetDefault("ai.pollinations.timeout", "120s")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("ai.openai.timeout", "120s")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.timeout", "120s")

	v.SetDefault("narrative.max_attempts", 3)
	v.SetDefault("narrative.evidence_policy", EvidenceStrict)

	v.SetDefault("output.content_dir", "apps/web/content")
	v.SetDefault("output.public_dir", "apps/web/public/generated/matches")
	v.SetDefault("output.public_prefix", "/generated/matches")

	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.path", "")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.cors.enabled", true)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("posthog.host", "https://us.i.posthog.com")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// bindEnvironmentVariables maps the conventional variable names onto keys.
func bindEnvironmentVariables(v *viper.Viper) {
	bindEnvKeys(v, "data_provider.api_key", []string{"API_FOOTBALL_KEY", "APISPORTS_KEY"})
	bindEnvKeys(v, "ai.pollinations.api_key", []string{"POLLINATIONS_API_KEY"})
	bindEnvKeys(v, "ai.pollinations.model", []string{"POLLINATIONS_MODEL"})
	bindEnvKeys(v, "ai.openai.api_key", []string{"OPENAI_API_KEY"})
	bindEnvKeys(v, "ai.openai.model", []string{"OPENAI_MODEL"})
	bindEnvKeys(v, "ai.gemini.api_key", []string{"GEMINI_API_KEY", "GOOGLE_AI_API_KEY"})
	bindEnvKeys(v, "ai.primary", []string{"LLM_PRIMARY"})
	bindEnvKeys(v, "narrative.evidence_policy", []string{"EVIDENCE_POLICY"})
	bindEnvKeys(v, "database.url", []string{"DATABASE_URL", "POSTGRES_URL"})
	bindEnvKeys(v, "posthog.api_key", []string{"POSTHOG_API_KEY"})
	bindEnvKeys(v, "posthog.host", []string{"POSTHOG_HOST"})
	bindEnvKeys(v, "app.debug", []string{"DEBUG", "GOALGAZER_DEBUG"})
	bindEnvKeys(v, "logging.level", []string{"LOG_LEVEL"})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(v *viper.Viper, viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			v.Set(viperKey, value)
			return
		}
	}
}

func postProcessConfig(cfg *Config) {
	cfg.App.DataDir = expandPath(cfg.App.DataDir)
	cfg.DataProvider.CacheDir = expandPath(cfg.DataProvider.CacheDir)
	cfg.DataProvider.MockDir = expandPath(cfg.DataProvider.MockDir)
	cfg.Output.ContentDir = expandPath(cfg.Output.ContentDir)
	cfg.Output.PublicDir = expandPath(cfg.Output.PublicDir)
	cfg.Output.PublicPrefix = strings.TrimRight(cfg.Output.PublicPrefix, "/")
	if cfg.Ledger.Path == "" && cfg.App.DataDir != "" {
		cfg.Ledger.Path = filepath.Join(cfg.App.DataDir, "runs.db")
	}
	cfg.Ledger.Path = expandPath(cfg.Ledger.Path)
	cfg.AI.Primary = strings.ToLower(strings.TrimSpace(cfg.AI.Primary))
	cfg.Narrative.EvidencePolicy = strings.ToLower(strings.TrimSpace(cfg.Narrative.EvidencePolicy))
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig checks values that would otherwise fail deep in a run.
// Missing credentials are not errors here: the pipeline degrades to mock data
// or the deterministic narrative.
func validateConfig(cfg *Config) error {
	var problems []string

	switch cfg.Narrative.EvidencePolicy {
	case EvidenceStrict, EvidenceAdvisory:
	default:
		problems = append(problems, fmt.Sprintf("Unknown evidence policy: %s. Supported: strict, advisory", cfg.Narrative.EvidencePolicy))
	}

	switch cfg.AI.Primary {
	case ProviderPollinations:
	case ProviderGemini:
		if cfg.AI.Gemini.APIKey == "" {
			problems = append(problems, "Gemini primary provider requires an API key. Set GEMINI_API_KEY or ai.gemini.api_key")
		}
	default:
		problems = append(problems, fmt.Sprintf("Unknown primary provider: %s. Supported: pollinations, gemini", cfg.AI.Primary))
	}

	if cfg.Narrative.MaxAttempts < 1 {
		problems = append(problems, "narrative.max_attempts must be at least 1")
	}
	if cfg.DataProvider.RequestInterval < 0 {
		problems = append(problems, "data_provider.request_interval must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// HasDataProviderKey reports whether live API-Football data can be fetched.
func (c *Config) HasDataProviderKey() bool {
	return isValidAPIKey(c.DataProvider.APIKey)
}

// HasAlternateProvider reports whether the deep-analysis provider is usable.
func (c *Config) HasAlternateProvider() bool {
	return isValidAPIKey(c.AI.OpenAI.APIKey)
}

// isValidAPIKey checks if an API key is valid (not empty and not a placeholder)
func isValidAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}
	placeholders := []string{
		"your-api-key", "your-openai-key", "YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}
	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}
	return true
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the orchestration engine
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Search     SearchConfig     `mapstructure:"search"`
	Generation GenerationConfig `mapstructure:"generation"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Env       string `mapstructure:"env"`
	JWTSecret string `mapstructure:"jwt_secret"` // JWT secret for auth
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

func (p PostgresConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("postgres.host required when postgres is enabled")
	}
	if strings.TrimSpace(p.DB) == "" {
		return fmt.Errorf("postgres.db required when postgres is enabled")
	}
	return nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	ResultTTL time.Duration `mapstructure:"result_ttl"`
}

func (r RedisConfig) Validate() error {
	if r.Enabled && strings.TrimSpace(r.Addr) == "" {
		return fmt.Errorf("redis.addr required when redis is enabled")
	}
	return nil
}

// SearchConfig tunes the fan-out, filtering and provider adapters
type SearchConfig struct {
	Region         string                `mapstructure:"region"`
	Language       string                `mapstructure:"language"`
	QueryHint      string                `mapstructure:"query_hint"`
	MaxPerProvider int                   `mapstructure:"max_per_provider"`
	SnippetMax     int                   `mapstructure:"snippet_max"`
	ContentMax     int                   `mapstructure:"content_max"`
	ViralTop       int                   `mapstructure:"viral_top"`
	Timeout        time.Duration         `mapstructure:"timeout"`
	ReenableAfter  time.Duration         `mapstructure:"reenable_after"`
	BlocklistExtra []string              `mapstructure:"blocklist_extra"`
	Providers      SearchProvidersConfig `mapstructure:"providers"`
}

func (s SearchConfig) Validate() error {
	if s.MaxPerProvider < 1 {
		return fmt.Errorf("search.max_per_provider must be at least 1")
	}
	return nil
}

// SearchProvidersConfig carries per-adapter settings. Credentials are never
// kept here; they come from the environment key pools.
type SearchProvidersConfig struct {
	Serper    ProviderConfig          `mapstructure:"serper"`
	Google    GoogleProviderConfig    `mapstructure:"google"`
	Firecrawl FirecrawlProviderConfig `mapstructure:"firecrawl"`
	Exa       ExaProviderConfig       `mapstructure:"exa"`
	Jina      JinaProviderConfig      `mapstructure:"jina"`
	YouTube   YouTubeProviderConfig   `mapstructure:"youtube"`
	Supadata  SupadataProviderConfig  `mapstructure:"supadata"`
	X         XProviderConfig         `mapstructure:"x"`
}

// ProviderConfig is the common shape shared by every search adapter
type ProviderConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Limit   int           `mapstructure:"limit"`
}

type GoogleProviderConfig struct {
	ProviderConfig `mapstructure:",squash"`
	CSEID          string `mapstructure:"cse_id"`
	DateRestrict   string `mapstructure:"date_restrict"`
}

type FirecrawlProviderConfig struct {
	ProviderConfig `mapstructure:",squash"`
	ScrapeLimit    int `mapstructure:"scrape_limit"`
}

type ExaProviderConfig struct {
	ProviderConfig     `mapstructure:",squash"`
	IncludeDomains     []string `mapstructure:"include_domains"`
	StartPublishedDate string   `mapstructure:"start_published_date"`
}

type JinaProviderConfig struct {
	ProviderConfig `mapstructure:",squash"`
	Target         string `mapstructure:"target"`
}

type YouTubeProviderConfig struct {
	ProviderConfig `mapstructure:",squash"`
	RegionCode     string `mapstructure:"region_code"`
	PublishedAfter string `mapstructure:"published_after"`
}

type SupadataProviderConfig struct {
	ProviderConfig `mapstructure:",squash"`
	Platforms      []string `mapstructure:"platforms"`
}

type XProviderConfig struct {
	ProviderConfig `mapstructure:",squash"`
	Lang           string `mapstructure:"lang"`
}

// GenerationConfig tunes the model fallback chain and the tool loop
type GenerationConfig struct {
	MaxIterations int                        `mapstructure:"max_iterations"`
	Temperature   float64                    `mapstructure:"temperature"`
	MaxTokens     int                        `mapstructure:"max_tokens"`
	Timeout       time.Duration              `mapstructure:"timeout"`
	ReenableAfter time.Duration              `mapstructure:"reenable_after"`
	ToolWebTop    int                        `mapstructure:"tool_web_top"`
	ToolVideoTop  int                        `mapstructure:"tool_video_top"`
	ToolSocialTop int                        `mapstructure:"tool_social_top"`
	ToolViralTop  int                        `mapstructure:"tool_viral_top"`
	Providers     []GenerationProviderConfig `mapstructure:"providers"`
}

func (g GenerationConfig) Validate() error {
	if g.MaxIterations < 1 {
		return fmt.Errorf("generation.max_iterations must be at least 1")
	}
	for _, p := range g.Providers {
		if p.Type != "openai" && p.Type != "gemini" {
			return fmt.Errorf("generation provider %q has unknown type %q", p.ID, p.Type)
		}
	}
	return nil
}

// GenerationProviderConfig declares one model provider in the fallback chain.
// Type selects the wire dialect: "openai" for chat-completions compatibles
// (OpenRouter, Groq, OpenAI itself), "gemini" for the native Google API.
type GenerationProviderConfig struct {
	ID            string        `mapstructure:"id"`
	Type          string        `mapstructure:"type"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Priority      int           `mapstructure:"priority"`
	Tools         bool          `mapstructure:"tools"`
	Enabled       bool          `mapstructure:"enabled"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CredentialEnv string        `mapstructure:"credential_env"`
}

// CaptureConfig controls the headless screenshot pass over viral content
type CaptureConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Dir      string        `mapstructure:"dir"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Max      int           `mapstructure:"max"`
	MaxChars int           `mapstructure:"max_chars"`
}

func (c CaptureConfig) Validate() error {
	if c.Enabled && strings.TrimSpace(c.Dir) == "" {
		return fmt.Errorf("capture.dir required when capture is enabled")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from the given file, or from config.json on the
// default search path when path is empty. A missing default file is fine;
// environment variables and built-in defaults still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, ".."))
		v.AddConfigPath("/etc/trender")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("TRENDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	config.normalize()

	if err := config.Postgres.Validate(); err != nil {
		return nil, err
	}
	if err := config.Redis.Validate(); err != nil {
		return nil, err
	}
	if err := config.Search.Validate(); err != nil {
		return nil, err
	}
	if err := config.Generation.Validate(); err != nil {
		return nil, err
	}
	if err := config.Capture.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.env", "dev")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "trender")
	v.SetDefault("postgres.db", "trender")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.result_ttl", "24h")

	v.SetDefault("search.region", "br")
	v.SetDefault("search.language", "pt")
	v.SetDefault("search.query_hint", "")
	v.SetDefault("search.max_per_provider", 15)
	v.SetDefault("search.snippet_max", 300)
	v.SetDefault("search.content_max", 2000)
	v.SetDefault("search.viral_top", 10)
	v.SetDefault("search.timeout", "30s")
	v.SetDefault("search.reenable_after", "0s")
	v.SetDefault("search.blocklist_extra", []string{})

	for _, name := range []string{"serper", "google", "firecrawl", "exa", "jina", "youtube", "supadata", "x"} {
		v.SetDefault("search.providers."+name+".enabled", true)
	}
	v.SetDefault("search.providers.firecrawl.timeout", "45s")
	v.SetDefault("search.providers.firecrawl.scrape_limit", 3)
	v.SetDefault("search.providers.jina.timeout", "20s")
	v.SetDefault("search.providers.supadata.timeout", "45s")
	v.SetDefault("search.providers.youtube.limit", 25)
	v.SetDefault("search.providers.youtube.published_after", "2023-01-01T00:00:00Z")
	v.SetDefault("search.providers.google.date_restrict", "m6")

	v.SetDefault("generation.max_iterations", 3)
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.max_tokens", 8192)
	v.SetDefault("generation.timeout", "60s")
	v.SetDefault("generation.reenable_after", "0s")
	v.SetDefault("generation.tool_web_top", 10)
	v.SetDefault("generation.tool_video_top", 5)
	v.SetDefault("generation.tool_social_top", 5)
	v.SetDefault("generation.tool_viral_top", 5)

	v.SetDefault("capture.enabled", false)
	v.SetDefault("capture.dir", "captures")
	v.SetDefault("capture.timeout", "30s")
	v.SetDefault("capture.max", 10)
	v.SetDefault("capture.max_chars", 5000)

	v.SetDefault("telemetry.enabled", true)
}

// DefaultGenerationProviders is the built-in model fallback chain, used when
// the config file does not declare one.
func DefaultGenerationProviders() []GenerationProviderConfig {
	return []GenerationProviderConfig{
		{ID: "openrouter_grok", Type: "openai", BaseURL: "https://openrouter.ai/api/v1",
			Model: "x-ai/grok-4-fast:free", Priority: 1, Tools: true, Enabled: true, CredentialEnv: "OPENROUTER"},
		{ID: "openrouter_gemini", Type: "openai", BaseURL: "https://openrouter.ai/api/v1",
			Model: "google/gemini-2.0-flash-exp:free", Priority: 2, Tools: true, Enabled: true, CredentialEnv: "OPENROUTER"},
		{ID: "gemini", Type: "gemini", BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Model: "gemini-2.0-flash-exp", Priority: 3, Tools: true, Enabled: true, CredentialEnv: "GEMINI"},
		{ID: "groq", Type: "openai", BaseURL: "https://api.groq.com/openai/v1",
			Model: "llama3-70b-8192", Priority: 4, Tools: false, Enabled: false, CredentialEnv: "GROQ"},
		{ID: "openai", Type: "openai", BaseURL: "https://api.openai.com/v1",
			Model: "gpt-4o", Priority: 5, Tools: true, Enabled: true, CredentialEnv: "OPENAI"},
	}
}

func (c *Config) normalize() {
	if c.Server.JWTSecret == "" {
		c.Server.JWTSecret = c.General.JWTSecret
	}
	if c.Search.Providers.Google.CSEID == "" {
		c.Search.Providers.Google.CSEID = os.Getenv("GOOGLE_CSE_ID")
	}
	if len(c.Generation.Providers) == 0 {
		c.Generation.Providers = DefaultGenerationProviders()
	}
	for i := range c.Generation.Providers {
		p := &c.Generation.Providers[i]
		if p.Timeout <= 0 {
			p.Timeout = c.Generation.Timeout
		}
		if p.CredentialEnv == "" {
			p.CredentialEnv = strings.ToUpper(p.ID)
		}
	}
}

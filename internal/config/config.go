package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "MAITRED_"

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Database   DatabaseConfig   `yaml:"database" envPrefix:"DATABASE_"`
	LLM        LLMConfig        `yaml:"llm" envPrefix:"LLM_"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" envPrefix:"RETRIEVAL_"`
	Extraction ExtractionConfig `yaml:"extraction" envPrefix:"EXTRACTION_"`
	Upsell     UpsellConfig     `yaml:"upsell" envPrefix:"UPSELL_"`
	Sessions   SessionConfig    `yaml:"sessions" envPrefix:"SESSIONS_"`
	Geo        GeoConfig        `yaml:"geo"`
	Payment    PaymentConfig    `yaml:"payment" envPrefix:"PAYMENT_"`
	Auth       AuthConfig       `yaml:"auth" envPrefix:"AUTH_"`
	Metrics    MetricsConfig    `yaml:"metrics" envPrefix:"METRICS_"`
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	URL    string `yaml:"url" env:"URL"`
	Debug  bool   `yaml:"debug" env:"DEBUG"`
}

// LLMConfig selects the language-model backend used for extraction and upsell copy
type LLMConfig struct {
	Provider        string  `yaml:"provider" env:"PROVIDER"`
	Model           string  `yaml:"model" env:"MODEL"`
	APIKey          string  `yaml:"api_key" env:"API_KEY"`
	BaseURL         string  `yaml:"base_url" env:"BASE_URL"`
	AzureEndpoint   string  `yaml:"azure_endpoint" env:"AZURE_ENDPOINT"`
	AzureDeployment string  `yaml:"azure_deployment" env:"AZURE_DEPLOYMENT"`
	Temperature     float64 `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens       int     `yaml:"max_tokens" env:"MAX_TOKENS"`
}

type RetrievalConfig struct {
	CandidateLimit int `yaml:"candidate_limit" env:"CANDIDATE_LIMIT"`
	CacheSize      int `yaml:"cache_size" env:"CACHE_SIZE"`
}

type ExtractionConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type UpsellConfig struct {
	Enabled          bool          `yaml:"enabled" env:"ENABLED"`
	GenerateMessages bool          `yaml:"generate_messages" env:"GENERATE_MESSAGES"`
	CooldownOrders   int           `yaml:"cooldown_orders" env:"COOLDOWN_ORDERS"`
	SampleSize       int           `yaml:"sample_size" env:"SAMPLE_SIZE"`
	MinCoOccurrence  int           `yaml:"min_co_occurrence" env:"MIN_CO_OCCURRENCE"`
	Timeout          time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type SessionConfig struct {
	IdleTTL            time.Duration `yaml:"idle_ttl" env:"IDLE_TTL"`
	ConflictRetryDelay time.Duration `yaml:"conflict_retry_delay" env:"CONFLICT_RETRY_DELAY"`
	HistorySize        int           `yaml:"history_size" env:"HISTORY_SIZE"`
}

// GeoConfig lists the stores whose delivery radius defines each tenant's service area
type GeoConfig struct {
	Stores []StoreConfig `yaml:"stores"`
}

type StoreConfig struct {
	TenantID    string          `yaml:"tenant_id"`
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Lat         float64         `yaml:"lat"`
	Lng         float64         `yaml:"lng"`
	RadiusKm    float64         `yaml:"radius_km"`
	DeliveryFee decimal.Decimal `yaml:"delivery_fee"`
}

type PaymentConfig struct {
	CheckoutURL string `yaml:"checkout_url" env:"CHECKOUT_URL"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Port    int    `yaml:"port" env:"PORT"`
	Path    string `yaml:"path" env:"PATH"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server:     ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
		Database:   DatabaseConfig{Driver: "sqlite3", URL: "maitred.db"},
		LLM:        LLMConfig{Provider: "none", Model: "gpt-4o-mini", MaxTokens: 800},
		Retrieval:  RetrievalConfig{CandidateLimit: 20, CacheSize: 256},
		Extraction: ExtractionConfig{Timeout: 15 * time.Second},
		Upsell: UpsellConfig{
			Enabled:          true,
			GenerateMessages: true,
			CooldownOrders:   3,
			SampleSize:       200,
			MinCoOccurrence:  3,
			Timeout:          8 * time.Second,
		},
		Sessions: SessionConfig{
			IdleTTL:            30 * time.Minute,
			ConflictRetryDelay: 50 * time.Millisecond,
			HistorySize:        10,
		},
		Payment: PaymentConfig{CheckoutURL: "https://pay.example.com/checkout/%s"},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads the yaml file at path (optional) and applies MAITRED_* environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// fall through to defaults + env
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.New("database url is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Upsell.CooldownOrders < 0 || c.Upsell.SampleSize <= 0 || c.Upsell.MinCoOccurrence <= 0 {
		return errors.New("upsell cooldown_orders, sample_size and min_co_occurrence must be positive")
	}
	if c.Retrieval.CandidateLimit <= 0 {
		return fmt.Errorf("invalid retrieval candidate_limit %d", c.Retrieval.CandidateLimit)
	}
	for _, s := range c.Geo.Stores {
		if s.TenantID == "" || s.ID == "" || s.RadiusKm <= 0 {
			return fmt.Errorf("geo store %q needs tenant_id, id and a positive radius_km", s.ID)
		}
	}
	return nil
}

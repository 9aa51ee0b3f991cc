package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/growthops/mercadoads/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Mercado    MercadoConfig    `yaml:"mercado"`
	Automation AutomationConfig `yaml:"automation"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds optional Redis settings for the per-workspace run lock.
// When Addr is empty the lock falls back to Postgres advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MercadoConfig holds Mercado Livre API settings.
type MercadoConfig struct {
	BaseURL      string `yaml:"base_url"`
	SiteID       string `yaml:"site_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// AdvertiserID forces a fixed advertiser for every workspace; normally
	// empty, in which case the advertiser is resolved per workspace.
	AdvertiserID string `yaml:"advertiser_id"`
}

// AutomationConfig holds curve budgets and bids for the automation engine.
type AutomationConfig struct {
	BudgetA float64 `yaml:"budget_a"`
	BudgetB float64 `yaml:"budget_b"`
	BudgetC float64 `yaml:"budget_c"`

	MaxCPCA float64 `yaml:"max_cpc_a"`
	MaxCPCB float64 `yaml:"max_cpc_b"`
	MaxCPCC float64 `yaml:"max_cpc_c"`

	// BudgetCooldownHours is the minimum interval between budget-optimizer
	// adjustments for the same campaign.
	BudgetCooldownHours int `yaml:"budget_cooldown_hours"`
}

// BudgetFor returns the configured daily budget for a tier.
func (a AutomationConfig) BudgetFor(t domain.Tier) float64 {
	switch t {
	case domain.TierA:
		return a.BudgetA
	case domain.TierB:
		return a.BudgetB
	case domain.TierC:
		return a.BudgetC
	}
	return a.BudgetC
}

// MaxCPCFor returns the configured max-CPC bid for a tier.
func (a AutomationConfig) MaxCPCFor(t domain.Tier) float64 {
	switch t {
	case domain.TierA:
		return a.MaxCPCA
	case domain.TierB:
		return a.MaxCPCB
	case domain.TierC:
		return a.MaxCPCC
	}
	return a.MaxCPCC
}

// Default budgets and bids applied when neither config file nor environment
// provides a value.
const (
	defaultBudgetA = 65
	defaultBudgetB = 25
	defaultBudgetC = 10

	defaultMaxCPCA = 1.5
	defaultMaxCPCB = 0.9
	defaultMaxCPCC = 0.5
)

// Load reads a YAML config file. A missing file is not an error: all
// settings can come from the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// LoadFromEnv loads the YAML config and applies environment overrides.
// A .env file is honored when present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MERCADO_LIVRE_BASE_URL"); v != "" {
		cfg.Mercado.BaseURL = v
	}
	if v := os.Getenv("MERCADO_LIVRE_SITE_ID"); v != "" {
		cfg.Mercado.SiteID = v
	}
	if v := os.Getenv("MERCADO_LIVRE_CLIENT_ID"); v != "" {
		cfg.Mercado.ClientID = v
	}
	if v := os.Getenv("MERCADO_LIVRE_CLIENT_SECRET"); v != "" {
		cfg.Mercado.ClientSecret = v
	}
	if v := os.Getenv("MERCADO_ADS_ADVERTISER_ID"); v != "" {
		cfg.Mercado.AdvertiserID = v
	}

	cfg.Automation.BudgetA = envFloat("ML_ADS_BUDGET_A", cfg.Automation.BudgetA)
	cfg.Automation.BudgetB = envFloat("ML_ADS_BUDGET_B", cfg.Automation.BudgetB)
	cfg.Automation.BudgetC = envFloat("ML_ADS_BUDGET_C", cfg.Automation.BudgetC)
	cfg.Automation.MaxCPCA = envFloat("ML_ADS_MAX_CPC_A", cfg.Automation.MaxCPCA)
	cfg.Automation.MaxCPCB = envFloat("ML_ADS_MAX_CPC_B", cfg.Automation.MaxCPCB)
	cfg.Automation.MaxCPCC = envFloat("ML_ADS_MAX_CPC_C", cfg.Automation.MaxCPCC)

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Mercado.BaseURL == "" {
		c.Mercado.BaseURL = "https://api.mercadolibre.com"
	}
	if c.Mercado.SiteID == "" {
		c.Mercado.SiteID = "MLB"
	}
	if c.Automation.BudgetA == 0 {
		c.Automation.BudgetA = defaultBudgetA
	}
	if c.Automation.BudgetB == 0 {
		c.Automation.BudgetB = defaultBudgetB
	}
	if c.Automation.BudgetC == 0 {
		c.Automation.BudgetC = defaultBudgetC
	}
	if c.Automation.MaxCPCA == 0 {
		c.Automation.MaxCPCA = defaultMaxCPCA
	}
	if c.Automation.MaxCPCB == 0 {
		c.Automation.MaxCPCB = defaultMaxCPCB
	}
	if c.Automation.MaxCPCC == 0 {
		c.Automation.MaxCPCC = defaultMaxCPCC
	}
	if c.Automation.BudgetCooldownHours == 0 {
		c.Automation.BudgetCooldownHours = 24
	}
}

// envFloat parses a float override from the environment, keeping the current
// value on absence or parse failure.
func envFloat(key string, current float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return current
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return current
	}
	return parsed
}

// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Username string  `yaml:"username"`
	AdminIDs []int64 `yaml:"admin_ids"`
}

type YooKassaConfig struct {
	ShopID        string `yaml:"shop_id"`
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	ReturnURL     string `yaml:"return_url"`
	BaseURL       string `yaml:"base_url"` // override for tests; default production API
}

type StarsConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

type PaymentConfig struct {
	YooKassa YooKassaConfig `yaml:"yookassa"`
	Stars    StarsConfig    `yaml:"stars"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type OpsConfig struct {
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type JobsConfig struct {
	RenewalInterval time.Duration `yaml:"renewal_interval"`
	RenewalHorizon  time.Duration `yaml:"renewal_horizon"`
	ExpiryInterval  time.Duration `yaml:"expiry_interval"`
}

// ProductConfig feeds the static product catalog. Prices are minor units per
// currency code ("RUB" kopeks, "XTR" stars).
type ProductConfig struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	DurationDays int              `yaml:"duration_days"`
	Prices       map[string]int64 `yaml:"prices"`
	IsRecurring  bool             `yaml:"is_recurring"`
}

type Config struct {
	Log      LogConfig       `yaml:"log"`
	Database DatabaseConfig  `yaml:"database"`
	Redis    RedisConfig     `yaml:"redis"`
	Bot      BotConfig       `yaml:"bot"`
	Payment  PaymentConfig   `yaml:"payment"`
	Web      WebConfig       `yaml:"web"`
	Ops      OpsConfig       `yaml:"ops"`
	Jobs     JobsConfig      `yaml:"jobs"`
	Products []ProductConfig `yaml:"products"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Jobs.RenewalInterval <= 0 {
		cfg.Jobs.RenewalInterval = time.Hour
	}
	if cfg.Jobs.RenewalHorizon <= 0 {
		cfg.Jobs.RenewalHorizon = 24 * time.Hour
	}
	if cfg.Jobs.ExpiryInterval <= 0 {
		cfg.Jobs.ExpiryInterval = 15 * time.Minute
	}
	if cfg.Ops.SessionTTL <= 0 {
		cfg.Ops.SessionTTL = 30 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Payment.YooKassa.ShopID == "" || cfg.Payment.YooKassa.SecretKey == "" {
		return nil, errors.New("payment.yookassa.shop_id and secret_key are required")
	}
	if cfg.Payment.YooKassa.WebhookSecret == "" {
		return nil, errors.New("payment.yookassa.webhook_secret is required")
	}
	if cfg.Payment.Stars.WebhookSecret == "" {
		return nil, errors.New("payment.stars.webhook_secret is required")
	}
	if len(cfg.Products) == 0 {
		return nil, errors.New("at least one product is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

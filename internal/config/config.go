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

type BotConfig struct {
	Token    string  `yaml:"token"`
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port       int           `yaml:"port"`
	JWTSecret  string        `yaml:"jwt_secret"`
	Password   string        `yaml:"password"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// BillingConfig is the immutable money policy injected into the use cases.
// Amounts are integer Telegram Stars.
type BillingConfig struct {
	Currency          string `yaml:"currency"`
	CommissionPercent int    `yaml:"commission_percent"`
	MinPrice          int64  `yaml:"min_price"`
	MaxPrice          int64  `yaml:"max_price"`
	MinWithdraw       int64  `yaml:"min_withdraw"`
	MaxWithdraw       int64  `yaml:"max_withdraw"`
}

type SchedulerConfig struct {
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	PaymentTimeout   time.Duration `yaml:"payment_timeout"`
	PromoSweepPeriod time.Duration `yaml:"promo_sweep_period"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Billing   BillingConfig   `yaml:"billing"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// Pre-set to a sentinel so an explicit commission_percent of 0 is
	// distinguishable from the key being absent.
	cfg := Config{Billing: BillingConfig{CommissionPercent: -1}}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	cfg.Billing = normalizeBilling(cfg.Billing)
	if cfg.Scheduler.SweepInterval <= 0 {
		cfg.Scheduler.SweepInterval = 5 * time.Minute
	}
	if cfg.Scheduler.PaymentTimeout <= 0 {
		cfg.Scheduler.PaymentTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.PromoSweepPeriod <= 0 {
		cfg.Scheduler.PromoSweepPeriod = time.Hour
	}

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Billing.CommissionPercent < 0 || cfg.Billing.CommissionPercent > 100 {
		return nil, errors.New("billing.commission_percent must be within [0,100]")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeBilling(b BillingConfig) BillingConfig {
	if b.Currency == "" {
		b.Currency = "XTR"
	}
	if b.CommissionPercent == -1 {
		b.CommissionPercent = 5
	}
	if b.MinPrice <= 0 {
		b.MinPrice = 1
	}
	if b.MaxPrice <= 0 {
		b.MaxPrice = 10000
	}
	if b.MinWithdraw <= 0 {
		b.MinWithdraw = 100
	}
	if b.MaxWithdraw <= 0 {
		b.MaxWithdraw = 50000
	}
	return b
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

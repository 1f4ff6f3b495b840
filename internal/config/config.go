// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token" env:"BOT_TOKEN"`
	Mode     string  `yaml:"mode" env:"BOT_MODE"` // polling | noop
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // update workers, sharded by chat
	OwnerID  int64   `yaml:"owner_id" env:"OWNER_ID"`
	AdminIDs []int64 `yaml:"admin_ids" env:"ADMIN_IDS" envSeparator:","`
	// PackSuffix is appended to cloned pack names, Telegram requires "_by_<bot>".
	PackSuffix string `yaml:"pack_suffix"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"` // trace|debug|info|warn|error
	Format   string `yaml:"format"`                // json|console
	Sampling bool   `yaml:"sampling"`              // enable sampling in prod
}

type StoreConfig struct {
	Backend string        `yaml:"backend" env:"STORE_BACKEND"` // file | redis | postgres
	Path    string        `yaml:"path" env:"STORE_PATH"`       // file backend
	Key     string        `yaml:"key"`                         // redis key / postgres row id
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
	// AcquireTimeout bounds one attempt to enter the critical section.
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	// Distributed adds a redis lock around every update.
	Distributed bool          `yaml:"distributed"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}

type RedisConfig struct {
	URL      string `yaml:"url" env:"REDIS_URL"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

// LimitsConfig holds deployment ceilings. Runtime caps that admins may change
// live in the ledger settings instead.
type LimitsConfig struct {
	Backend            string        `yaml:"backend" env:"LIMITS_BACKEND"` // memory | redis
	Window             time.Duration `yaml:"window"`
	CloneNormal        int           `yaml:"clone_normal"`
	ClonePremium       int           `yaml:"clone_premium"`
	Redeem             int           `yaml:"redeem"`
	Other              int           `yaml:"other"`
	BulkMax            int           `yaml:"bulk_max"`
	ActivationDelayMax int           `yaml:"activation_delay_max"`
	AdminQuotaTTL      time.Duration `yaml:"admin_quota_ttl"`
}

type AdminConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret" env:"ADMIN_JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type SchedulerConfig struct {
	PlanExpiryInterval time.Duration `yaml:"plan_expiry_interval"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
}

// WizardConfig selects where in-flight wizard sessions are kept.
type WizardConfig struct {
	Backend string        `yaml:"backend" env:"WIZARD_BACKEND"` // memory | redis
	TTL     time.Duration `yaml:"ttl"`
}

type BroadcastConfig struct {
	Workers   int `yaml:"workers"`
	PerSecond int `yaml:"per_second"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Limits    LimitsConfig    `yaml:"limits"`
	Admin     AdminConfig     `yaml:"admin"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Wizard    WizardConfig    `yaml:"wizard"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

// Load reads the yaml file (optional), overlays environment variables and
// applies defaults and validation.
func Load(path string, dev bool) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "file"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "bot_data.json"
	}
	if cfg.Store.Key == "" {
		cfg.Store.Key = "sticker_bot:document"
	}
	if cfg.Store.Retries <= 0 {
		cfg.Store.Retries = 3
	}
	cfg.Store.Backoff = normalizeDuration(cfg.Store.Backoff, 50*time.Millisecond)
	cfg.Store.AcquireTimeout = normalizeDuration(cfg.Store.AcquireTimeout, 2*time.Second)
	cfg.Store.LockTTL = normalizeDuration(cfg.Store.LockTTL, 10*time.Second)

	if cfg.Limits.Backend == "" {
		cfg.Limits.Backend = "memory"
	}
	cfg.Limits.Window = normalizeDuration(cfg.Limits.Window, time.Hour)
	if cfg.Limits.CloneNormal <= 0 {
		cfg.Limits.CloneNormal = 3
	}
	if cfg.Limits.ClonePremium <= 0 {
		cfg.Limits.ClonePremium = 10
	}
	if cfg.Limits.Redeem <= 0 {
		cfg.Limits.Redeem = 5
	}
	if cfg.Limits.Other <= 0 {
		cfg.Limits.Other = 10
	}
	if cfg.Limits.BulkMax <= 0 {
		cfg.Limits.BulkMax = 100
	}
	if cfg.Limits.ActivationDelayMax <= 0 {
		cfg.Limits.ActivationDelayMax = 365
	}
	cfg.Limits.AdminQuotaTTL = normalizeDuration(cfg.Limits.AdminQuotaTTL, 48*time.Hour)

	cfg.Admin.TokenTTL = normalizeDuration(cfg.Admin.TokenTTL, 24*time.Hour)
	cfg.Scheduler.PlanExpiryInterval = normalizeDuration(cfg.Scheduler.PlanExpiryInterval, 10*time.Minute)
	cfg.Scheduler.SweepInterval = normalizeDuration(cfg.Scheduler.SweepInterval, 15*time.Minute)

	if cfg.Broadcast.Workers <= 0 {
		cfg.Broadcast.Workers = 4
	}
	if cfg.Broadcast.PerSecond <= 0 {
		cfg.Broadcast.PerSecond = 25
	}
	if cfg.Wizard.Backend == "" {
		cfg.Wizard.Backend = "memory"
	}
	cfg.Wizard.TTL = normalizeDuration(cfg.Wizard.TTL, 15*time.Minute)
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Bot.Mode != "polling" && c.Bot.Mode != "noop" {
		return fmt.Errorf("bot.mode %q is not supported", c.Bot.Mode)
	}
	if c.Bot.Mode == "polling" && c.Bot.Token == "" {
		return errors.New("bot.token is required")
	}
	if c.Bot.OwnerID <= 0 {
		return errors.New("bot.owner_id is required")
	}
	switch c.Store.Backend {
	case "file":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for the redis store")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres store")
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}
	switch c.Limits.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for redis limits")
		}
	default:
		return fmt.Errorf("limits.backend %q is not supported", c.Limits.Backend)
	}
	switch c.Wizard.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for redis wizard sessions")
		}
	default:
		return fmt.Errorf("wizard.backend %q is not supported", c.Wizard.Backend)
	}
	if c.Store.Distributed && c.Redis.URL == "" {
		return errors.New("redis.url is required for a distributed store lock")
	}
	if c.Admin.Port > 0 && c.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required when the admin api is enabled")
	}
	return nil
}

// NeedsRedis reports whether any component is configured against redis.
func (c *Config) NeedsRedis() bool {
	return c.Store.Backend == "redis" || c.Limits.Backend == "redis" || c.Wizard.Backend == "redis" || c.Store.Distributed
}

func (c *Config) IsOwner(id int64) bool { return id == c.Bot.OwnerID }

func (c *Config) IsAdmin(id int64) bool {
	if c.IsOwner(id) {
		return true
	}
	for _, a := range c.Bot.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

func normalizeDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

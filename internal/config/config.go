package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"brewpos/internal/domain"
)

const EnvPrefix = "BREWPOS"

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Checkout CheckoutConfig
}

type AppConfig struct {
	Env       string `envconfig:"BREWPOS_APP_ENV" default:"dev"`
	Port      string `envconfig:"BREWPOS_APP_PORT" default:"8080"`
	LogLevel  string `envconfig:"BREWPOS_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"BREWPOS_LOG_FORMAT" default:"json"`
	LogFile   string `envconfig:"BREWPOS_LOG_FILE" default:"./brewpos.log"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, "dev")
}

type DBConfig struct {
	// sqlite file in project root
	DSN  string `envconfig:"BREWPOS_DB_DSN" default:"brewpos.db"`
	Seed bool   `envconfig:"BREWPOS_DB_SEED" default:"true"`
}

// RedisConfig is optional; without a URL commit claims are kept in memory.
type RedisConfig struct {
	URL         string        `envconfig:"BREWPOS_REDIS_URL"`
	DialTimeout time.Duration `envconfig:"BREWPOS_REDIS_DIAL_TIMEOUT" default:"2s"`
}

type CheckoutConfig struct {
	TerminalID     string        `envconfig:"BREWPOS_TERMINAL_ID" default:"terminal-1"`
	CashierID      string        `envconfig:"BREWPOS_CASHIER_ID" default:"cashier-1"`
	CashierName    string        `envconfig:"BREWPOS_CASHIER_NAME" default:"Cashier"`
	AtomicCommit   bool          `envconfig:"BREWPOS_CHECKOUT_ATOMIC_COMMIT" default:"false"`
	Consumables    bool          `envconfig:"BREWPOS_CHECKOUT_CONSUMABLES" default:"true"`
	CashStageDelay time.Duration `envconfig:"BREWPOS_CHECKOUT_CASH_STAGE_DELAY" default:"500ms"`
	StageDelay     time.Duration `envconfig:"BREWPOS_CHECKOUT_STAGE_DELAY" default:"1s"`
	ProbeURL       string        `envconfig:"BREWPOS_CHECKOUT_PROBE_URL" default:"https://clients3.google.com/generate_204"`
	ProbeTimeout   time.Duration `envconfig:"BREWPOS_CHECKOUT_PROBE_TIMEOUT" default:"3s"`
	IdempotencyTTL time.Duration `envconfig:"BREWPOS_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
}

func (c CheckoutConfig) SessionContext() domain.SessionContext {
	return domain.SessionContext{TerminalID: c.TerminalID, CashierID: c.CashierID, CashierName: c.CashierName}
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Checkout.StageDelay < 0 || cfg.Checkout.CashStageDelay < 0 {
		return Config{}, fmt.Errorf("stage delays must not be negative")
	}
	return cfg, nil
}

// Fields renders the config for the startup log line. Secrets stay out.
func (c Config) Fields() map[string]any {
	return map[string]any{
		"port":          c.App.Port,
		"env":           c.App.Env,
		"db_dsn":        c.DB.DSN,
		"log_file":      c.App.LogFile,
		"redis":         c.Redis.URL != "",
		"terminal_id":   c.Checkout.TerminalID,
		"atomic_commit": c.Checkout.AtomicCommit,
		"probe_url":     c.Checkout.ProbeURL,
	}
}

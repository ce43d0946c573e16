// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/reconcile"
)

// Client configures the POS client.
type Client struct {
	RemoteURL      string        `env:"POS_REMOTE_URL"           envDefault:"http://localhost:5000/api"`
	PageSize       int           `env:"POS_PAGE_SIZE"            envDefault:"20"`
	RequestTimeout time.Duration `env:"POS_REQUEST_TIMEOUT"      envDefault:"10s"`
	SettleDelay    time.Duration `env:"POS_SETTLE_DELAY"         envDefault:"1s"`
	PollInterval   time.Duration `env:"POS_POLL_INTERVAL"        envDefault:"30s"`
	ProbeInterval  time.Duration `env:"POS_PROBE_INTERVAL"       envDefault:"5s"`
	SyncAttempts   int           `env:"POS_SYNC_MAX_ATTEMPTS"    envDefault:"4"`
	InitialBackoff time.Duration `env:"POS_SYNC_INITIAL_BACKOFF" envDefault:"500ms"`
	MaxBackoff     time.Duration `env:"POS_SYNC_MAX_BACKOFF"     envDefault:"8s"`
	StatePath      string        `env:"POS_STATE_PATH"           envDefault:"pos-state.db"`
	Actor          string        `env:"POS_ACTOR"                envDefault:"pos"`
}

func LoadClient() (Client, error) {
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return Client{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Client) Validate() error {
	var errs []error
	if c.RemoteURL == "" {
		errs = append(errs, errors.New("POS_REMOTE_URL is required"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("POS_PAGE_SIZE must be positive, got %d", c.PageSize))
	}
	if c.SyncAttempts <= 0 {
		errs = append(errs, fmt.Errorf("POS_SYNC_MAX_ATTEMPTS must be positive, got %d", c.SyncAttempts))
	}
	if c.ProbeInterval <= 0 {
		errs = append(errs, fmt.Errorf("POS_PROBE_INTERVAL must be positive, got %s", c.ProbeInterval))
	}
	if c.MaxBackoff < c.InitialBackoff {
		errs = append(errs, errors.New("POS_SYNC_MAX_BACKOFF must not be below POS_SYNC_INITIAL_BACKOFF"))
	}
	return errors.Join(errs...)
}

// Sync returns the reconciler settings.
func (c Client) Sync() reconcile.Config {
	return reconcile.Config{
		SettleDelay:    c.SettleDelay,
		MaxAttempts:    c.SyncAttempts,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
		AttemptTimeout: c.RequestTimeout,
	}
}

// RemoteStore configures the reference remote store process.
type RemoteStore struct {
	HTTPAddr        string `env:"HTTP_ADDR"         envDefault:":5000"`
	DatabaseDSN     string `env:"DATABASE_DSN"`
	RunMigrations   bool   `env:"RUN_MIGRATIONS"    envDefault:"true"`
	RabbitURL       string `env:"RABBITMQ_URL"`
	DefaultPageSize int    `env:"DEFAULT_PAGE_SIZE" envDefault:"20"`
}

func LoadRemoteStore() (RemoteStore, error) {
	var cfg RemoteStore
	if err := env.Parse(&cfg); err != nil {
		return RemoteStore{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DefaultPageSize <= 0 {
		return cfg, fmt.Errorf("DEFAULT_PAGE_SIZE must be positive, got %d", cfg.DefaultPageSize)
	}
	return cfg, nil
}

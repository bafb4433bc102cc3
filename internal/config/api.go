// Package config loads settings for the portal API server and the portalctl client.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// API configures cmd/api. Every field comes from a PORTAL_* environment variable.
type API struct {
	HTTPAddr string `env:"PORTAL_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"PORTAL_GRPC_ADDR" envDefault:":9090"`
	Version  string `env:"PORTAL_VERSION"`

	// PGDSN selects the PostgreSQL store; empty keeps accounts in memory.
	PGDSN       string `env:"PORTAL_PG_DSN"`
	AutoMigrate bool   `env:"PORTAL_AUTO_MIGRATE" envDefault:"false"`

	SessionSecret  string        `env:"PORTAL_SESSION_SECRET"`
	SessionTTL     time.Duration `env:"PORTAL_SESSION_TTL"     envDefault:"168h"`
	CodeTTL        time.Duration `env:"PORTAL_CODE_TTL"        envDefault:"10m"`
	CookieSecure   bool          `env:"PORTAL_COOKIE_SECURE"   envDefault:"false"`
	AllowedOrigins []string      `env:"PORTAL_ALLOWED_ORIGINS" envSeparator:","`

	// NATSURL enables code delivery over NATS; empty logs codes instead.
	NATSURL     string `env:"PORTAL_NATS_URL"`
	NATSSubject string `env:"PORTAL_NATS_SUBJECT" envDefault:"portal.auth.codes"`

	RateBurst     int           `env:"PORTAL_RATE_BURST"       envDefault:"20"`
	RatePerSecond float64       `env:"PORTAL_RATE_PER_SEC"     envDefault:"10"`
	ReadyInterval time.Duration `env:"PORTAL_READY_INTERVAL"   envDefault:"10s"`
	ShutdownGrace time.Duration `env:"PORTAL_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadAPI reads the API configuration from the environment and validates it.
func LoadAPI() (API, error) {
	var cfg API
	if err := env.Parse(&cfg); err != nil {
		return API{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return API{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c API) Validate() error {
	var errs []error
	if strings.TrimSpace(c.SessionSecret) == "" {
		errs = append(errs, errors.New("PORTAL_SESSION_SECRET is required"))
	} else if len(c.SessionSecret) < 16 {
		errs = append(errs, errors.New("PORTAL_SESSION_SECRET must be at least 16 bytes"))
	}
	if _, _, err := net.SplitHostPort(c.HTTPAddr); err != nil {
		errs = append(errs, fmt.Errorf("PORTAL_HTTP_ADDR: %w", err))
	}
	if _, _, err := net.SplitHostPort(c.GRPCAddr); err != nil {
		errs = append(errs, fmt.Errorf("PORTAL_GRPC_ADDR: %w", err))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("PORTAL_SESSION_TTL must be positive"))
	}
	if c.CodeTTL <= 0 {
		errs = append(errs, errors.New("PORTAL_CODE_TTL must be positive"))
	}
	if c.RateBurst <= 0 || c.RatePerSecond <= 0 {
		errs = append(errs, errors.New("PORTAL_RATE_BURST and PORTAL_RATE_PER_SEC must be positive"))
	}
	for _, o := range c.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o != "" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			errs = append(errs, fmt.Errorf("PORTAL_ALLOWED_ORIGINS: %q is not an http(s) origin", o))
		}
	}
	if c.AutoMigrate && c.PGDSN == "" {
		errs = append(errs, errors.New("PORTAL_AUTO_MIGRATE requires PORTAL_PG_DSN"))
	}
	return errors.Join(errs...)
}

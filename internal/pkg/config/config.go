// Package config builds the application configuration once at startup.
// Components receive the section they need and validate it in their
// constructors, so a missing value fails loudly instead of silently no-oping.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/env"
)

const (
	defaultPaymentAPIBaseURL = "https://api.checkout.example/v1"
	defaultRequestTimeout    = 15 * time.Second
	defaultListingCacheTTL   = 30 * time.Second
	defaultTierSweepInterval = 5 * time.Minute
)

type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	Payment     PaymentConfig
	Identity    IdentityConfig
	Maintenance MaintenanceConfig
}

type AppConfig struct {
	Host           string        `env:"APP_HOST" validate:"required"`
	Port           string        `env:"APP_PORT" validate:"required,numeric"`
	Env            string        `env:"APP_ENV"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT_SECONDS" validate:"gt=0"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" validate:"required"`
	Port     string `env:"DB_PORT" validate:"required,numeric"`
	User     string `env:"DB_USER" validate:"required"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" validate:"required"`
}

// DSN returns the MySQL data source name.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type CacheConfig struct {
	Host       string        `env:"CACHE_HOST"`
	Port       string        `env:"CACHE_PORT"`
	Password   string        `env:"CACHE_PASSWORD"`
	ListingTTL time.Duration `env:"LISTING_CACHE_TTL_SECONDS"`
}

// Enabled reports whether a cache endpoint is configured.
func (c CacheConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type PaymentConfig struct {
	Provider      string `env:"PAYMENT_PROVIDER_NAME" validate:"required"`
	APIKey        string `env:"PAYMENT_API_KEY" validate:"required"`
	StoreID       string `env:"PAYMENT_STORE_ID" validate:"required"`
	APIBaseURL    string `env:"PAYMENT_API_BASE_URL" validate:"required,url"`
	WebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET" validate:"required"`
}

// ValidateWebhook checks the fields the webhook handler needs.
func (p PaymentConfig) ValidateWebhook() error {
	return validatePartial(p, "Provider", "WebhookSecret")
}

// ValidateClient checks the fields needed for calls to the provider API.
func (p PaymentConfig) ValidateClient() error {
	return validatePartial(p, "Provider", "APIKey", "StoreID", "APIBaseURL")
}

// IdentityConfig selects how bearer tokens are verified: locally against a
// shared JWT secret, or remotely against the identity provider's user endpoint.
type IdentityConfig struct {
	JWTSecret  string `env:"IDENTITY_JWT_SECRET" validate:"required_without=URL"`
	URL        string `env:"IDENTITY_URL" validate:"required_without=JWTSecret,omitempty,url"`
	ServiceKey string `env:"IDENTITY_SERVICE_KEY" validate:"required_with=URL"`
}

func (i IdentityConfig) Validate() error {
	return validateStruct(i)
}

type MaintenanceConfig struct {
	TierSweepInterval time.Duration `env:"TIER_SWEEP_INTERVAL_MINUTES"`
}

// Load reads the configuration from the loaded .env file and the process environment.
func Load() (*Config, error) {
	requestTimeout, err := durationFromEnv("REQUEST_TIMEOUT_SECONDS", time.Second, defaultRequestTimeout)
	if err != nil {
		return nil, err
	}
	listingTTL, err := durationFromEnv("LISTING_CACHE_TTL_SECONDS", time.Second, defaultListingCacheTTL)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := durationFromEnv("TIER_SWEEP_INTERVAL_MINUTES", time.Minute, defaultTierSweepInterval)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Host:           env.GetEnv("APP_HOST", "localhost"),
			Port:           env.GetEnv("APP_PORT", "4000"),
			Env:            env.GetEnv("APP_ENV", "prod"),
			RequestTimeout: requestTimeout,
		},
		Database: DatabaseConfig{
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", "3306"),
			User:     env.GetEnv("DB_USER", ""),
			Password: env.GetEnv("DB_PASSWORD", ""),
			Name:     env.GetEnv("DB_NAME", ""),
		},
		Cache: CacheConfig{
			Host:       env.GetEnv("CACHE_HOST", ""),
			Port:       env.GetEnv("CACHE_PORT", "6379"),
			Password:   env.GetEnv("CACHE_PASSWORD", ""),
			ListingTTL: listingTTL,
		},
		Payment: PaymentConfig{
			Provider:      strings.ToLower(strings.TrimSpace(env.GetEnv("PAYMENT_PROVIDER_NAME", "checkout"))),
			APIKey:        strings.TrimSpace(env.GetEnv("PAYMENT_API_KEY", "")),
			StoreID:       strings.TrimSpace(env.GetEnv("PAYMENT_STORE_ID", "")),
			APIBaseURL:    strings.TrimRight(strings.TrimSpace(env.GetEnv("PAYMENT_API_BASE_URL", defaultPaymentAPIBaseURL)), "/"),
			WebhookSecret: strings.TrimSpace(env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")),
		},
		Identity: IdentityConfig{
			JWTSecret:  strings.TrimSpace(env.GetEnv("IDENTITY_JWT_SECRET", "")),
			URL:        strings.TrimRight(strings.TrimSpace(env.GetEnv("IDENTITY_URL", "")), "/"),
			ServiceKey: strings.TrimSpace(env.GetEnv("IDENTITY_SERVICE_KEY", "")),
		},
		Maintenance: MaintenanceConfig{
			TierSweepInterval: sweepInterval,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the sections every process needs. Route-specific sections
// (payment, identity) are validated by the components that use them.
func (c *Config) Validate() error {
	if err := validateStruct(c.App); err != nil {
		return err
	}
	return validateStruct(c.Database)
}

func (c *Config) IsDev() bool {
	return c.App.Env == "dev"
}

func durationFromEnv(key string, unit time.Duration, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("config: %s must be a non-negative integer, got %q", key, raw)
	}
	return time.Duration(n) * unit, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report env keys instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

func validateStruct(s interface{}) error {
	return describe(validate.Struct(s))
}

func validatePartial(s interface{}, fields ...string) error {
	return describe(validate.StructPartial(s, fields...))
}

func describe(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	keys := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		keys = append(keys, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("config: missing or invalid %s", strings.Join(keys, ", "))
}

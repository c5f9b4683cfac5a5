// Package config loads the gateway configuration from YAML, then applies
// CHECKOUT_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/davidahmann/checkout/internal/gateway/adyen"
	"github.com/davidahmann/checkout/internal/gateway/paypal"
)

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	ProcessorPayPal = "paypal"
	ProcessorAdyen  = "adyen"
)

type Config struct {
	ListenAddr    string        `yaml:"listen_addr"`
	Environment   string        `yaml:"environment"`
	Processor     string        `yaml:"processor"`
	SessionBudget time.Duration `yaml:"session_budget"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`

	Experience ExperienceConfig  `yaml:"experience"`
	Catalog    []ProductConfig   `yaml:"catalog"`
	TaxRates   map[string]string `yaml:"tax_rates"`

	PayPal  PayPalConfig  `yaml:"paypal"`
	Adyen   AdyenConfig   `yaml:"adyen"`
	Secrets SecretsConfig `yaml:"secrets"`
	Auth    AuthConfig    `yaml:"auth"`
}

type ExperienceConfig struct {
	BrandName string `yaml:"brand_name"`
	ReturnURL string `yaml:"return_url"`
	CancelURL string `yaml:"cancel_url"`
}

type ProductConfig struct {
	Ref      string `yaml:"ref"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Currency string `yaml:"currency"`
}

type PayPalConfig struct {
	// BaseURL overrides the environment default.
	BaseURL string `yaml:"base_url"`
}

type AdyenConfig struct {
	BaseURL     string `yaml:"base_url"`
	LivePrefix  string `yaml:"live_prefix"`
	Origin      string `yaml:"origin"`
	CountryCode string `yaml:"country_code"`
}

type SecretsConfig struct {
	// Source is "env" or "aws".
	Source   string `yaml:"source"`
	Region   string `yaml:"region"`
	SecretID string `yaml:"secret_id"`
}

type AuthConfig struct {
	DevToken    string `yaml:"dev_token"`
	JWTSecret   string `yaml:"jwt_secret"`
	JWTIssuer   string `yaml:"jwt_issuer"`
	JWTAudience string `yaml:"jwt_audience"`
}

func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		Environment:   EnvSandbox,
		Processor:     ProcessorPayPal,
		SessionBudget: 3 * time.Hour,
		HTTPTimeout:   10 * time.Second,
		Experience:    ExperienceConfig{BrandName: "Your Store"},
		Adyen:         AdyenConfig{CountryCode: "US"},
		Secrets:       SecretsConfig{Source: "env"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CHECKOUT_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.ListenAddr, "CHECKOUT_LISTEN_ADDR")
	set(&c.Environment, "CHECKOUT_ENVIRONMENT")
	set(&c.Processor, "CHECKOUT_PROCESSOR")
	set(&c.Auth.DevToken, "CHECKOUT_DEV_TOKEN")
	set(&c.Auth.JWTSecret, "CHECKOUT_JWT_SECRET")
	set(&c.Secrets.Source, "CHECKOUT_SECRETS_SOURCE")
	set(&c.Secrets.Region, "CHECKOUT_AWS_REGION")
	set(&c.Secrets.SecretID, "CHECKOUT_SECRET_ID")

	if v := strings.TrimSpace(getenv("CHECKOUT_SESSION_BUDGET")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CHECKOUT_SESSION_BUDGET: %w", err)
		}
		c.SessionBudget = d
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Environment {
	case EnvSandbox, EnvProduction:
	default:
		return fmt.Errorf("environment must be %s or %s, got %q", EnvSandbox, EnvProduction, c.Environment)
	}
	switch c.Processor {
	case ProcessorPayPal, ProcessorAdyen:
	default:
		return fmt.Errorf("unsupported processor %q", c.Processor)
	}
	switch c.Secrets.Source {
	case "env":
	case "aws":
		if c.Secrets.Region == "" || c.Secrets.SecretID == "" {
			return fmt.Errorf("aws secrets source needs region and secret_id")
		}
	default:
		return fmt.Errorf("unsupported secrets source %q", c.Secrets.Source)
	}
	if c.SessionBudget < 0 {
		return fmt.Errorf("session_budget must not be negative")
	}
	return nil
}

func (c Config) PayPalBaseURL() string {
	if c.PayPal.BaseURL != "" {
		return c.PayPal.BaseURL
	}
	if c.Environment == EnvProduction {
		return paypal.ProductionBaseURL
	}
	return paypal.SandboxBaseURL
}

// AdyenBaseURL picks the live endpoint in production. The live prefix may
// come from the credential store instead of the config file.
func (c Config) AdyenBaseURL(livePrefix string) (string, error) {
	if c.Adyen.BaseURL != "" {
		return c.Adyen.BaseURL, nil
	}
	if c.Environment != EnvProduction {
		return adyen.TestBaseURL, nil
	}
	prefix := firstNonEmpty(c.Adyen.LivePrefix, livePrefix)
	if prefix == "" {
		return "", fmt.Errorf("adyen live_prefix is required in production")
	}
	return adyen.LiveBaseURL(prefix), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

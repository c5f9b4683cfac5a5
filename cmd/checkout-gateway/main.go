package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidahmann/checkout/internal/api"
	"github.com/davidahmann/checkout/internal/auth"
	"github.com/davidahmann/checkout/internal/catalog"
	"github.com/davidahmann/checkout/internal/checkout"
	"github.com/davidahmann/checkout/internal/config"
	"github.com/davidahmann/checkout/internal/gateway"
	"github.com/davidahmann/checkout/internal/gateway/adyen"
	"github.com/davidahmann/checkout/internal/gateway/paypal"
	"github.com/davidahmann/checkout/internal/secrets"
	"github.com/davidahmann/checkout/internal/session"
	"github.com/davidahmann/checkout/internal/tax"
)

type envFn func(string) string

type listenFn func(*http.Server) error

type serverFactory func(config.Config, envFn) (*http.Server, error)

var (
	runFn  = run
	fatalf = log.Fatalf

	// newSecretsManager is swapped in tests to avoid AWS config loading.
	newSecretsManager = func(region, secretID string) (secrets.Source, error) {
		src, err := secrets.NewSecretsManagerSource(region, secretID)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe, newServer); err != nil {
		fatalf("checkout-gateway: %v", err)
	}
}

func run(args []string, getenv envFn, listen listenFn, factory serverFactory) error {
	fs := flag.NewFlagSet("checkout-gateway", flag.ContinueOnError)
	configPath := fs.String("config", getenv("CHECKOUT_CONFIG"), "path to YAML config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	server, err := factory(cfg, getenv)
	if err != nil {
		return err
	}

	slog.Info("checkout-gateway listening",
		"addr", server.Addr,
		"processor", cfg.Processor,
		"environment", cfg.Environment)
	if err := listen(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return logErrorf("server error: %v", err)
	}
	return nil
}

func newServer(cfg config.Config, getenv envFn) (*http.Server, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("processor", cfg.Processor)

	prices, err := priceSource(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	policy := tax.Default()
	if len(cfg.TaxRates) > 0 {
		if policy, err = tax.FromPercent(cfg.TaxRates); err != nil {
			return nil, err
		}
	}

	source, err := secretSource(cfg, getenv)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	creds, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if err := creds.Require(cfg.Processor); err != nil {
		return nil, err
	}

	experience := gateway.Experience{
		BrandName: cfg.Experience.BrandName,
		ReturnURL: cfg.Experience.ReturnURL,
		CancelURL: cfg.Experience.CancelURL,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var gw gateway.Gateway
	var vaultGw gateway.VaultGateway
	switch cfg.Processor {
	case config.ProcessorPayPal:
		client := paypal.New(creds.PayPal.ClientID, creds.PayPal.ClientSecret,
			gateway.NewHTTPTransport(cfg.PayPalBaseURL(), httpClient))
		gw, vaultGw = client, client
	case config.ProcessorAdyen:
		baseURL, err := cfg.AdyenBaseURL(creds.Adyen.LivePrefix)
		if err != nil {
			return nil, err
		}
		client := adyen.New(creds.Adyen.APIKey, creds.Adyen.MerchantAccount,
			gateway.NewHTTPTransport(baseURL, httpClient))
		client.ReturnURL = cfg.Experience.ReturnURL
		client.Origin = cfg.Adyen.Origin
		client.CountryCode = firstNonEmpty(cfg.Adyen.CountryCode, client.CountryCode)
		gw = client
	default:
		return nil, fmt.Errorf("unsupported processor %q", cfg.Processor)
	}

	orders := checkout.NewOrders(gw, prices, policy, session.Guard{Budget: cfg.SessionBudget})
	orders.Experience = experience
	orders.Logger = logger

	h := &api.Handler{
		Auth:   auth.NewAuthenticator(cfg.Auth.DevToken, cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience),
		Orders: orders,
		Logger: logger,
	}
	if vaultGw != nil {
		h.Vault = checkout.NewVault(vaultGw, orders.Store)
		h.Vault.Experience = experience
		h.Vault.Logger = logger
	}
	if cfg.Auth.DevToken == "" && cfg.Auth.JWTSecret == "" {
		logger.Warn("no dev token or jwt secret configured; every /v1 request will be rejected")
	}

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}

func priceSource(products []config.ProductConfig) (catalog.PriceSource, error) {
	if len(products) == 0 {
		return catalog.Demo(), nil
	}
	items := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: invalid price %q", p.Ref, p.Price)
		}
		items = append(items, catalog.Product{
			Ref:      p.Ref,
			Name:     p.Name,
			Price:    price,
			Currency: firstNonEmpty(p.Currency, "USD"),
		})
	}
	static, err := catalog.NewStatic(items)
	if err != nil {
		return nil, err
	}
	return static, nil
}

func secretSource(cfg config.Config, getenv envFn) (secrets.Source, error) {
	if cfg.Secrets.Source == "aws" {
		return newSecretsManager(cfg.Secrets.Region, cfg.Secrets.SecretID)
	}
	return secrets.EnvSource{Getenv: getenv}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func listenAndServe(server *http.Server) error {
	return server.ListenAndServe()
}

func logErrorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	slog.Error(err.Error())
	return err
}

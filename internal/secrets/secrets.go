// Package secrets supplies processor credentials. Nothing here is ever
// embedded in source; credentials come from the environment in development
// and from AWS Secrets Manager otherwise.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

type PayPal struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type Adyen struct {
	APIKey          string `json:"api_key"`
	MerchantAccount string `json:"merchant_account"`
	// LivePrefix selects the merchant-specific live endpoint.
	LivePrefix string `json:"live_prefix,omitempty"`
}

type Credentials struct {
	PayPal PayPal `json:"paypal"`
	Adyen  Adyen  `json:"adyen"`
}

// Require reports a descriptive error when the named processor has no
// usable credentials.
func (c Credentials) Require(processor string) error {
	switch strings.ToLower(processor) {
	case "paypal":
		if c.PayPal.ClientID == "" || c.PayPal.ClientSecret == "" {
			return fmt.Errorf("missing paypal client credentials")
		}
	case "adyen":
		if c.Adyen.APIKey == "" || c.Adyen.MerchantAccount == "" {
			return fmt.Errorf("missing adyen api key or merchant account")
		}
	default:
		return fmt.Errorf("unknown processor %q", processor)
	}
	return nil
}

type Source interface {
	Load(ctx context.Context) (Credentials, error)
}

// EnvSource reads credentials from environment variables for local
// development.
type EnvSource struct {
	Getenv func(string) string
}

func (s EnvSource) Load(_ context.Context) (Credentials, error) {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return Credentials{
		PayPal: PayPal{
			ClientID:     strings.TrimSpace(getenv("PAYPAL_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(getenv("PAYPAL_CLIENT_SECRET")),
		},
		Adyen: Adyen{
			APIKey:          strings.TrimSpace(getenv("ADYEN_API_KEY")),
			MerchantAccount: strings.TrimSpace(getenv("ADYEN_MERCHANT_ACCOUNT")),
			LivePrefix:      strings.TrimSpace(getenv("ADYEN_LIVE_PREFIX")),
		},
	}, nil
}

// Package adyen implements the unified-checkout processor gateway on top of
// the Adyen Checkout API.
package adyen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/davidahmann/checkout/internal/gateway"
)

const (
	TestBaseURL = "https://checkout-test.adyen.com/v71"

	processorName = "adyen"
)

// LiveBaseURL returns the live endpoint for the merchant-specific prefix.
func LiveBaseURL(prefix string) string {
	return fmt.Sprintf("https://%s-checkout-live.adyenpayments.com/checkout/v71", strings.TrimSpace(prefix))
}

// Client authenticates every call with a pre-shared API key. There is no
// token exchange.
type Client struct {
	APIKey          string
	MerchantAccount string
	Transport       gateway.Transport

	// ReturnURL and Origin are sent on payment initiation.
	ReturnURL   string
	Origin      string
	CountryCode string

	// NewReference produces merchant references; defaults to UUIDv4.
	NewReference func() string
}

var _ gateway.Gateway = (*Client)(nil)

func New(apiKey, merchantAccount string, transport gateway.Transport) *Client {
	return &Client{
		APIKey:          apiKey,
		MerchantAccount: merchantAccount,
		Transport:       transport,
		CountryCode:     "US",
	}
}

func (c *Client) Name() string { return processorName }

type callOptions struct {
	omitMerchant bool
}

type CallOption func(*callOptions)

// WithoutMerchantAccount leaves merchantAccount out of the body. The PayPal
// order update endpoint rejects it.
func WithoutMerchantAccount() CallOption {
	return func(o *callOptions) { o.omitMerchant = true }
}

// Call POSTs body to endpoint and returns the raw response of a successful
// call. merchantAccount is injected unless WithoutMerchantAccount is given.
func (c *Client) Call(ctx context.Context, endpoint string, body map[string]any, opts ...CallOption) ([]byte, error) {
	if c.APIKey == "" || c.MerchantAccount == "" {
		return nil, fmt.Errorf("missing adyen api key or merchant account")
	}
	if c.Transport == nil {
		return nil, fmt.Errorf("missing adyen transport")
	}
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	out := make(map[string]any, len(body)+1)
	for k, v := range body {
		out[k] = v
	}
	if o.omitMerchant {
		delete(out, "merchantAccount")
	} else {
		out["merchantAccount"] = c.MerchantAccount
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	res, err := c.Transport.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   endpoint,
		Header: http.Header{
			"Content-Type": {"application/json"},
			"X-API-Key":    {c.APIKey},
		},
		Body: payload,
	})
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, gateway.NewRemoteError(processorName, strings.TrimPrefix(endpoint, "/"), res)
	}
	return res.Body, nil
}

func (c *Client) reference() string {
	if c.NewReference != nil {
		return c.NewReference()
	}
	return uuid.NewString()
}

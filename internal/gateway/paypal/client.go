// Package paypal implements the orders/wallet processor gateway on top of the
// PayPal Orders v2 and Vault v3 REST APIs.
package paypal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/davidahmann/checkout/internal/gateway"
)

const (
	SandboxBaseURL    = "https://api-m.sandbox.paypal.com"
	ProductionBaseURL = "https://api-m.paypal.com"

	processorName = "paypal"
)

// Client authenticates with a client-credentials exchange before every
// logical operation. Tokens are not cached between operations.
type Client struct {
	ClientID     string
	ClientSecret string
	Transport    gateway.Transport

	// NewRequestID produces PayPal-Request-Id values; defaults to UUIDv4.
	NewRequestID func() string
}

var (
	_ gateway.Gateway      = (*Client)(nil)
	_ gateway.VaultGateway = (*Client)(nil)
)

func New(clientID, clientSecret string, transport gateway.Transport) *Client {
	return &Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Transport:    transport,
	}
}

func (c *Client) Name() string { return processorName }

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return "", fmt.Errorf("missing paypal client credentials")
	}
	if c.Transport == nil {
		return "", fmt.Errorf("missing paypal transport")
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.ClientID + ":" + c.ClientSecret))
	form := url.Values{"grant_type": {"client_credentials"}}
	res, err := c.Transport.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/v1/oauth2/token",
		Header: http.Header{
			"Authorization": {"Basic " + basic},
			"Content-Type":  {"application/x-www-form-urlencoded"},
		},
		Body: []byte(form.Encode()),
	})
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", gateway.NewRemoteError(processorName, "token", res)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return "", fmt.Errorf("decode paypal token: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("missing paypal access token")
	}
	return out.AccessToken, nil
}

// call performs one authenticated JSON exchange and returns the raw
// response body of a successful call.
func (c *Client) call(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	header := http.Header{
		"Authorization": {"Bearer " + token},
		"Content-Type":  {"application/json"},
	}
	if method == http.MethodPost {
		header.Set("PayPal-Request-Id", c.requestID())
	}

	res, err := c.Transport.Do(ctx, gateway.Request{Method: method, Path: path, Header: header, Body: payload})
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, gateway.NewRemoteError(processorName, op, res)
	}
	return res.Body, nil
}

func (c *Client) requestID() string {
	if c.NewRequestID != nil {
		return c.NewRequestID()
	}
	return uuid.NewString()
}

func escapeID(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}

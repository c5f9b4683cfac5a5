package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/davidahmann/checkout/internal/gateway"
)

type setupTokenResponse struct {
	ID     string         `json:"id"`
	Status setupStatus    `json:"status"`
	Links  []gateway.Link `json:"links,omitempty"`
}

func (c *Client) CreateSetupToken(ctx context.Context, usage gateway.UsageContext) (gateway.SetupToken, error) {
	pref := usage.ShippingPreference
	if pref == "" {
		pref = gateway.ShippingFromFile
	}
	req := map[string]any{
		"payment_source": paymentSource{PayPal: &walletSource{
			UsageType: firstNonEmpty(usage.UsageType, "MERCHANT"),
			ExperienceContext: &experienceContext{
				BrandName:          usage.Experience.BrandName,
				ShippingPreference: string(pref),
				ReturnURL:          usage.Experience.ReturnURL,
				CancelURL:          usage.Experience.CancelURL,
			},
		}},
	}
	body, err := c.call(ctx, "create_setup_token", http.MethodPost, "/v3/vault/setup-tokens", req)
	if err != nil {
		return gateway.SetupToken{}, err
	}
	return decodeSetupToken(body)
}

func (c *Client) FetchSetupToken(ctx context.Context, id string) (gateway.SetupToken, error) {
	if strings.TrimSpace(id) == "" {
		return gateway.SetupToken{}, fmt.Errorf("missing setup token id")
	}
	body, err := c.call(ctx, "get_setup_token", http.MethodGet, "/v3/vault/setup-tokens/"+escapeID(id), nil)
	if err != nil {
		return gateway.SetupToken{}, err
	}
	return decodeSetupToken(body)
}

func (c *Client) CreatePaymentToken(ctx context.Context, setupTokenID string) (gateway.PaymentToken, error) {
	if strings.TrimSpace(setupTokenID) == "" {
		return gateway.PaymentToken{}, fmt.Errorf("missing setup token id")
	}
	req := map[string]any{
		"payment_source": paymentSource{Token: &tokenSource{ID: setupTokenID, Type: "SETUP_TOKEN"}},
	}
	body, err := c.call(ctx, "create_payment_token", http.MethodPost, "/v3/vault/payment-tokens", req)
	if err != nil {
		return gateway.PaymentToken{}, err
	}

	var out struct {
		ID       string `json:"id"`
		Customer struct {
			ID string `json:"id"`
		} `json:"customer"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return gateway.PaymentToken{}, fmt.Errorf("decode paypal payment token: %w", err)
	}
	if out.ID == "" {
		return gateway.PaymentToken{}, fmt.Errorf("missing paypal payment token id")
	}
	return gateway.PaymentToken{ID: out.ID, CustomerID: out.Customer.ID}, nil
}

// ChargePaymentToken creates an order paid by the vaulted method. PayPal
// captures it in the same call, so no approval or capture step follows.
func (c *Client) ChargePaymentToken(ctx context.Context, req gateway.ChargeRequest) (gateway.Settlement, error) {
	if strings.TrimSpace(req.PaymentTokenID) == "" {
		return gateway.Settlement{}, fmt.Errorf("missing payment token id")
	}
	payload := orderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Description: req.Description,
			Amount:      amount{CurrencyCode: req.Amount.Currency, Value: req.Amount.Value.StringFixed(2)},
		}},
		PaymentSource: &paymentSource{PayPal: &walletSource{VaultID: req.PaymentTokenID}},
	}
	body, err := c.call(ctx, "charge_vault", http.MethodPost, "/v2/checkout/orders", payload)
	if err != nil {
		return gateway.Settlement{}, err
	}
	return decodeSettlement(body)
}

func decodeSetupToken(body []byte) (gateway.SetupToken, error) {
	var st setupTokenResponse
	if err := json.Unmarshal(body, &st); err != nil {
		return gateway.SetupToken{}, fmt.Errorf("decode paypal setup token: %w", err)
	}
	if st.ID == "" {
		return gateway.SetupToken{}, fmt.Errorf("missing paypal setup token id")
	}
	return gateway.SetupToken{
		ID:        st.ID,
		Status:    st.Status.status(),
		RawStatus: string(st.Status),
		Links:     st.Links,
	}, nil
}

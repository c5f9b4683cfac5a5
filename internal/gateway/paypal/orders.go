package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/davidahmann/checkout/internal/gateway"
)

const (
	MethodPayPal = "paypal"
	MethodVenmo  = "venmo"
)

// SelfAddressing reports true for Venmo, which always ships to the address
// on file.
func (c *Client) SelfAddressing(paymentMethod string) bool {
	return strings.EqualFold(paymentMethod, MethodVenmo)
}

func (c *Client) CreateIntent(ctx context.Context, req gateway.CreateRequest) (gateway.RemoteIntent, error) {
	body, err := c.call(ctx, "create_order", http.MethodPost, "/v2/checkout/orders", c.buildOrderRequest(req))
	if err != nil {
		return gateway.RemoteIntent{}, err
	}
	return decodeIntent(body)
}

// AmendIntent replaces the full amount of the default purchase unit and, when
// given, its shipping address. PayPal answers 204 on success.
func (c *Client) AmendIntent(ctx context.Context, id string, req gateway.AmendRequest) (gateway.AmendResult, error) {
	if strings.TrimSpace(id) == "" {
		return gateway.AmendResult{}, fmt.Errorf("missing order id")
	}
	ops := []patchOp{{
		Op:    "replace",
		Path:  defaultUnitPath + "/amount",
		Value: toAmount(req.Amount, true),
	}}
	if req.Shipping != nil {
		ops = append(ops, patchOp{
			Op:    "replace",
			Path:  defaultUnitPath + "/shipping/address",
			Value: toShippingAddress(req.Shipping),
		})
	}

	body, err := c.call(ctx, "update_order", http.MethodPatch, "/v2/checkout/orders/"+escapeID(id), ops)
	if err != nil {
		return gateway.AmendResult{}, err
	}
	return gateway.AmendResult{Raw: gateway.RawPayload(body)}, nil
}

func (c *Client) FinalizeIntent(ctx context.Context, id string, _ gateway.FinalizeRequest) (gateway.Settlement, error) {
	if strings.TrimSpace(id) == "" {
		return gateway.Settlement{}, fmt.Errorf("missing order id")
	}
	body, err := c.call(ctx, "capture_order", http.MethodPost, "/v2/checkout/orders/"+escapeID(id)+"/capture", nil)
	if err != nil {
		return gateway.Settlement{}, err
	}
	return decodeSettlement(body)
}

func (c *Client) FetchIntent(ctx context.Context, id string) (gateway.RemoteIntent, error) {
	if strings.TrimSpace(id) == "" {
		return gateway.RemoteIntent{}, fmt.Errorf("missing order id")
	}
	body, err := c.call(ctx, "get_order", http.MethodGet, "/v2/checkout/orders/"+escapeID(id), nil)
	if err != nil {
		return gateway.RemoteIntent{}, err
	}
	return decodeIntent(body)
}

func (c *Client) buildOrderRequest(req gateway.CreateRequest) orderRequest {
	pref := req.ShippingPreference
	if pref == "" {
		pref = gateway.ShippingFromFile
	}
	currency := req.Amount.Currency
	withDetail := pref != gateway.ShippingNone

	unit := purchaseUnit{
		ReferenceID: "default",
		CustomID:    req.Reference,
		Description: req.Description,
		Amount:      toAmount(req.Amount, withDetail),
	}
	// NO_SHIPPING orders stay minimal: no breakdown, items or shipping.
	if withDetail {
		unit.Items = []item{{
			Name:       req.Description,
			UnitAmount: fmtMoney(currency, req.Amount.Subtotal),
			Quantity:   "1",
			Category:   "PHYSICAL_GOODS",
		}}
		if req.Shipping != nil && !c.SelfAddressing(req.PaymentMethod) {
			unit.Shipping = toShipping(req.Shipping)
		}
	}

	wallet := &walletSource{
		ExperienceContext: &experienceContext{
			BrandName:          req.Experience.BrandName,
			LandingPage:        "NO_PREFERENCE",
			UserAction:         "PAY_NOW",
			ShippingPreference: string(pref),
			ReturnURL:          req.Experience.ReturnURL,
			CancelURL:          req.Experience.CancelURL,
		},
	}
	if req.Vault != nil {
		wallet.Attributes = &attributes{Vault: &vaultAttr{
			StoreInVault: "ON_SUCCESS",
			UsageType:    firstNonEmpty(req.Vault.UsageType, "MERCHANT"),
			CustomerType: firstNonEmpty(req.Vault.CustomerType, "CONSUMER"),
		}}
	}

	source := &paymentSource{PayPal: wallet}
	if c.SelfAddressing(req.PaymentMethod) {
		source = &paymentSource{Venmo: wallet}
	}

	return orderRequest{
		Intent:        "CAPTURE",
		PurchaseUnits: []purchaseUnit{unit},
		PaymentSource: source,
	}
}

func decodeIntent(body []byte) (gateway.RemoteIntent, error) {
	var o order
	if err := json.Unmarshal(body, &o); err != nil {
		return gateway.RemoteIntent{}, fmt.Errorf("decode paypal order: %w", err)
	}
	if o.ID == "" {
		return gateway.RemoteIntent{}, fmt.Errorf("missing paypal order id")
	}
	out := gateway.RemoteIntent{
		ID:        o.ID,
		Status:    o.Status.status(),
		RawStatus: string(o.Status),
		Links:     o.Links,
		Raw:       gateway.RawPayload(body),
	}
	if len(o.PurchaseUnits) > 0 {
		out.Amount = o.PurchaseUnits[0].Amount.breakdown()
	}
	return out, nil
}

func decodeSettlement(body []byte) (gateway.Settlement, error) {
	var o order
	if err := json.Unmarshal(body, &o); err != nil {
		return gateway.Settlement{}, fmt.Errorf("decode paypal capture: %w", err)
	}
	if o.ID == "" {
		return gateway.Settlement{}, fmt.Errorf("missing paypal order id")
	}
	out := gateway.Settlement{
		ID:        o.ID,
		Status:    o.Status.status(),
		RawStatus: string(o.Status),
		Payer:     o.Payer.toGateway(),
		Raw:       gateway.RawPayload(body),
	}
	for _, pu := range o.PurchaseUnits {
		if pu.Payments == nil {
			continue
		}
		for _, c := range pu.Payments.Captures {
			out.Captures = append(out.Captures, c.toGateway())
		}
	}
	if w := o.PaymentSource.wallet(); w != nil && w.Attributes != nil && w.Attributes.Vault != nil {
		out.VaultID = w.Attributes.Vault.ID
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

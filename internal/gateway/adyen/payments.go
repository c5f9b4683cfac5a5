package adyen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/davidahmann/checkout/internal/gateway"
)

type resultCode string

const (
	resultAuthorised       resultCode = "Authorised"
	resultReceived         resultCode = "Received"
	resultPending          resultCode = "Pending"
	resultRedirectShopper  resultCode = "RedirectShopper"
	resultIdentifyShopper  resultCode = "IdentifyShopper"
	resultChallengeShopper resultCode = "ChallengeShopper"
	resultPresentToShopper resultCode = "PresentToShopper"
	resultRefused          resultCode = "Refused"
	resultError            resultCode = "Error"
	resultCancelled        resultCode = "Cancelled"
)

func (r resultCode) status() gateway.Status {
	switch r {
	case resultAuthorised:
		return gateway.StatusFinalized
	case resultRefused, resultError, resultCancelled:
		return gateway.StatusFailed
	case resultReceived, resultPending,
		resultRedirectShopper, resultIdentifyShopper, resultChallengeShopper, resultPresentToShopper:
		return gateway.StatusCreated
	}
	return gateway.StatusCreated
}

// Methods whose wallet supplies the buyer's address.
var selfAddressing = map[string]bool{
	"paypal":        true,
	"venmo":         true,
	"paywithgoogle": true,
}

func (c *Client) SelfAddressing(paymentMethod string) bool {
	return selfAddressing[strings.ToLower(strings.TrimSpace(paymentMethod))]
}

// PaymentMethod returns the explicit method, or else the type of the payment
// method blob the widget put in ClientData.
func (c *Client) PaymentMethod(req gateway.CreateRequest) string {
	if req.PaymentMethod != "" {
		return req.PaymentMethod
	}
	var cd struct {
		PaymentMethod struct {
			Type string `json:"type"`
		} `json:"paymentMethod"`
	}
	if len(req.ClientData) == 0 || json.Unmarshal(req.ClientData, &cd) != nil {
		return ""
	}
	return cd.PaymentMethod.Type
}

type amount struct {
	Currency string `json:"currency"`
	Value    int64  `json:"value"`
}

type deliveryAddress struct {
	Street            string `json:"street"`
	HouseNumberOrName string `json:"houseNumberOrName"`
	City              string `json:"city"`
	StateOrProvince   string `json:"stateOrProvince,omitempty"`
	PostalCode        string `json:"postalCode"`
	Country           string `json:"country"`
}

type clientData struct {
	PaymentMethod json.RawMessage `json:"paymentMethod"`
	BrowserInfo   json.RawMessage `json:"browserInfo,omitempty"`
	ShopperName   json.RawMessage `json:"shopperName,omitempty"`
	ShopperEmail  string          `json:"shopperEmail,omitempty"`
}

type paymentResponse struct {
	PSPReference   string            `json:"pspReference"`
	ResultCode     resultCode        `json:"resultCode"`
	MerchantRef    string            `json:"merchantReference"`
	Amount         *amount           `json:"amount,omitempty"`
	Action         json.RawMessage   `json:"action,omitempty"`
	PaymentData    string            `json:"paymentData,omitempty"`
	RefusalReason  string            `json:"refusalReason,omitempty"`
	AdditionalData map[string]string `json:"additionalData,omitempty"`
	Tokenization   *struct {
		StoredPaymentMethodID string `json:"storedPaymentMethodId"`
		ShopperReference      string `json:"shopperReference"`
	} `json:"tokenization,omitempty"`
}

func (p paymentResponse) handle() string {
	if p.PaymentData != "" {
		return p.PaymentData
	}
	if len(p.Action) == 0 {
		return ""
	}
	var a struct {
		PaymentData string `json:"paymentData"`
	}
	_ = json.Unmarshal(p.Action, &a)
	return a.PaymentData
}

// CreateIntent initiates a payment. The payment method blob and browser info
// come from ClientData as collected by the storefront widget.
func (c *Client) CreateIntent(ctx context.Context, req gateway.CreateRequest) (gateway.RemoteIntent, error) {
	var cd clientData
	if len(req.ClientData) > 0 {
		if err := json.Unmarshal(req.ClientData, &cd); err != nil {
			return gateway.RemoteIntent{}, fmt.Errorf("decode adyen client data: %w", err)
		}
	}
	if len(cd.PaymentMethod) == 0 {
		return gateway.RemoteIntent{}, fmt.Errorf("missing adyen payment method")
	}
	method := c.PaymentMethod(req)

	ref := req.Reference
	if ref == "" {
		ref = c.reference()
	}
	body := map[string]any{
		"amount":         amount{Currency: req.Amount.Currency, Value: minorUnits(req.Amount.Currency, req.Amount.Total)},
		"reference":      ref,
		"paymentMethod":  cd.PaymentMethod,
		"channel":        "Web",
		"countryCode":    c.CountryCode,
		"additionalData": map[string]string{"paypal.intent": "sale"},
	}
	if c.ReturnURL != "" || req.Experience.ReturnURL != "" {
		body["returnUrl"] = firstNonEmpty(req.Experience.ReturnURL, c.ReturnURL)
	}
	if c.Origin != "" {
		body["origin"] = c.Origin
	}
	if len(cd.BrowserInfo) > 0 {
		body["browserInfo"] = cd.BrowserInfo
	}
	if len(cd.ShopperName) > 0 {
		body["shopperName"] = cd.ShopperName
	}
	if cd.ShopperEmail != "" {
		body["shopperEmail"] = cd.ShopperEmail
	}
	if req.Description != "" {
		body["shopperStatement"] = req.Description
	}
	if req.Vault != nil {
		body["shopperReference"] = firstNonEmpty(req.Vault.ShopperReference, ref)
		body["recurringProcessingModel"] = "Subscription"
		body["storePaymentMethod"] = true
		body["shopperInteraction"] = "Ecommerce"
	}
	if req.Shipping != nil && req.ShippingPreference != gateway.ShippingNone && !c.SelfAddressing(method) {
		body["deliveryAddress"] = toDeliveryAddress(req.Shipping)
	}

	raw, err := c.Call(ctx, "/payments", body)
	if err != nil {
		return gateway.RemoteIntent{}, err
	}
	var res paymentResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return gateway.RemoteIntent{}, fmt.Errorf("decode adyen payment: %w", err)
	}

	out := gateway.RemoteIntent{
		ID:        firstNonEmpty(res.PSPReference, res.MerchantRef, ref),
		Status:    res.ResultCode.status(),
		RawStatus: string(res.ResultCode),
		Handle:    res.handle(),
		Action:    res.Action,
		Raw:       gateway.RawPayload(raw),
	}
	if res.Amount != nil {
		total := majorUnits(res.Amount.Currency, res.Amount.Value)
		out.Amount = &gateway.Breakdown{Currency: res.Amount.Currency, Subtotal: total, Total: total}
	}
	return out, nil
}

// AmendIntent pushes a new total to the wallet order. The endpoint requires
// the latest paymentData and answers with a fresh one.
func (c *Client) AmendIntent(ctx context.Context, id string, req gateway.AmendRequest) (gateway.AmendResult, error) {
	if strings.TrimSpace(id) == "" {
		return gateway.AmendResult{}, fmt.Errorf("missing psp reference")
	}
	if req.Handle == "" {
		return gateway.AmendResult{}, fmt.Errorf("missing adyen paymentData")
	}
	body := map[string]any{
		"paymentData":  req.Handle,
		"pspReference": id,
		"amount":       amount{Currency: req.Amount.Currency, Value: minorUnits(req.Amount.Currency, req.Amount.Total)},
	}
	raw, err := c.Call(ctx, "/paypal/updateOrder", body, WithoutMerchantAccount())
	if err != nil {
		return gateway.AmendResult{}, err
	}
	var res struct {
		PaymentData string `json:"paymentData"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return gateway.AmendResult{}, fmt.Errorf("decode adyen update order: %w", err)
	}
	if strings.EqualFold(res.Status, "error") {
		return gateway.AmendResult{}, &gateway.RemoteError{
			Processor:  processorName,
			Op:         "paypal/updateOrder",
			StatusCode: 200,
			Payload:    gateway.RawPayload(raw),
			Message:    "order update rejected",
		}
	}
	return gateway.AmendResult{Handle: firstNonEmpty(res.PaymentData, req.Handle), Raw: gateway.RawPayload(raw)}, nil
}

// FinalizeIntent submits the details the widget collected after approval.
func (c *Client) FinalizeIntent(ctx context.Context, id string, req gateway.FinalizeRequest) (gateway.Settlement, error) {
	body := map[string]any{}
	if len(req.Details) > 0 {
		if err := json.Unmarshal(req.Details, &body); err != nil {
			return gateway.Settlement{}, fmt.Errorf("decode adyen details: %w", err)
		}
	}
	if _, ok := body["details"]; !ok {
		return gateway.Settlement{}, fmt.Errorf("missing adyen payment details")
	}
	if _, ok := body["paymentData"]; !ok && req.Handle != "" {
		body["paymentData"] = req.Handle
	}

	raw, err := c.Call(ctx, "/payments/details", body)
	if err != nil {
		return gateway.Settlement{}, err
	}
	var res paymentResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return gateway.Settlement{}, fmt.Errorf("decode adyen payment details: %w", err)
	}

	out := gateway.Settlement{
		ID:        firstNonEmpty(res.PSPReference, id),
		Status:    res.ResultCode.status(),
		RawStatus: string(res.ResultCode),
		Payer: gateway.Payer{
			ID:    res.AdditionalData["paypalPayerId"],
			Email: firstNonEmpty(res.AdditionalData["paypalEmail"], res.AdditionalData["shopperEmail"]),
		},
		VaultID: res.AdditionalData["recurring.recurringDetailReference"],
		Raw:     gateway.RawPayload(raw),
	}
	if res.Tokenization != nil && res.Tokenization.StoredPaymentMethodID != "" {
		out.VaultID = res.Tokenization.StoredPaymentMethodID
	}
	if out.Status == gateway.StatusFinalized && res.Amount != nil {
		out.Captures = []gateway.Capture{{
			ID:           out.ID,
			Status:       string(res.ResultCode),
			Amount:       gateway.Money{Currency: res.Amount.Currency, Value: majorUnits(res.Amount.Currency, res.Amount.Value)},
			FinalCapture: true,
		}}
	}
	return out, nil
}

// FetchIntent is not offered: payment state arrives through notifications.
func (c *Client) FetchIntent(context.Context, string) (gateway.RemoteIntent, error) {
	return gateway.RemoteIntent{}, gateway.ErrUnsupported
}

// Currencies without minor units. Everything else uses two decimals.
var zeroDecimal = map[string]bool{"JPY": true, "KRW": true, "VND": true, "CLP": true, "ISK": true}

func exponent(currency string) int32 {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

func minorUnits(currency string, v decimal.Decimal) int64 {
	return v.Shift(exponent(currency)).Round(0).IntPart()
}

func majorUnits(currency string, v int64) decimal.Decimal {
	return decimal.New(v, -exponent(currency))
}

func toDeliveryAddress(a *gateway.Address) deliveryAddress {
	return deliveryAddress{
		Street:            a.Line1,
		HouseNumberOrName: a.Line2,
		City:              a.City,
		StateOrProvince:   a.Region,
		PostalCode:        a.PostalCode,
		Country:           a.CountryCode,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

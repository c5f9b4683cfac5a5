// Package gateway defines the contract between the checkout lifecycles and a
// payment processor. Processor packages translate their own status strings
// into Status at this boundary; nothing above it branches on raw remote values.
package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusApproved  Status = "APPROVED"
	StatusFinalized Status = "FINALIZED"
	StatusExpired   Status = "EXPIRED"
	StatusFailed    Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusFinalized || s == StatusExpired || s == StatusFailed
}

type ShippingPreference string

const (
	ShippingFromFile        ShippingPreference = "GET_FROM_FILE"
	ShippingProvidedAddress ShippingPreference = "SET_PROVIDED_ADDRESS"
	ShippingNone            ShippingPreference = "NO_SHIPPING"
)

func (p ShippingPreference) Valid() bool {
	switch p {
	case ShippingFromFile, ShippingProvidedAddress, ShippingNone:
		return true
	}
	return false
}

type Money struct {
	Currency string
	Value    decimal.Decimal
}

// Breakdown is the full amount sent on create and on every amend. Amends
// never send deltas.
type Breakdown struct {
	Currency string
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

type Address struct {
	Name        string `json:"name,omitempty"`
	Line1       string `json:"address_line_1,omitempty"`
	Line2       string `json:"address_line_2,omitempty"`
	City        string `json:"admin_area_2,omitempty"`
	Region      string `json:"admin_area_1,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// StreetLevel reports whether the address is concrete enough to ship to, as
// opposed to a bare region or country code.
func (a *Address) StreetLevel() bool {
	if a == nil {
		return false
	}
	for _, v := range []string{a.Line1, a.City, a.PostalCode, a.CountryCode} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type Experience struct {
	BrandName string
	ReturnURL string
	CancelURL string
}

type VaultOnSuccess struct {
	UsageType    string
	CustomerType string
	// ShopperReference identifies the stored method at processors that key
	// recurring details by shopper.
	ShopperReference string
}

type CreateRequest struct {
	Reference          string
	Description        string
	Amount             Breakdown
	PaymentMethod      string
	ShippingPreference ShippingPreference
	// Shipping is nil when no shipping object must be sent.
	Shipping   *Address
	Vault      *VaultOnSuccess
	Experience Experience
	// ClientData is processor-specific data collected by the storefront
	// widget (for example a payment method blob and browser info).
	ClientData json.RawMessage
}

type AmendRequest struct {
	Amount   Breakdown
	Shipping *Address
	// Handle is the continuation data returned by the previous remote call,
	// for processors that require it.
	Handle string
}

type AmendResult struct {
	Handle string
	Raw    json.RawMessage
}

type FinalizeRequest struct {
	Handle  string
	Details json.RawMessage
}

// RemoteIntent is the processor's view of an intent.
type RemoteIntent struct {
	ID        string
	Status    Status
	RawStatus string
	Amount    *Breakdown
	Links     []Link
	Handle    string
	Action    json.RawMessage
	Raw       json.RawMessage
}

type Payer struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type Capture struct {
	ID           string
	Status       string
	Amount       Money
	FinalCapture bool
}

// Settlement is the result of a funds movement.
type Settlement struct {
	ID        string
	Status    Status
	RawStatus string
	Payer     Payer
	Captures  []Capture
	VaultID   string
	Raw       json.RawMessage
}

// Gateway turns one lifecycle verb into one authenticated remote call. It
// never retries.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, req CreateRequest) (RemoteIntent, error)
	AmendIntent(ctx context.Context, id string, req AmendRequest) (AmendResult, error)
	FinalizeIntent(ctx context.Context, id string, req FinalizeRequest) (Settlement, error)
	// FetchIntent returns ErrUnsupported for processors without a read API.
	FetchIntent(ctx context.Context, id string) (RemoteIntent, error)
	// SelfAddressing reports whether the payment method resolves the buyer's
	// address itself, in which case no shipping object may be sent.
	SelfAddressing(paymentMethod string) bool
}

// MethodResolver is implemented by gateways that can name the payment method
// from widget client data when the request does not name one.
type MethodResolver interface {
	PaymentMethod(req CreateRequest) string
}

// ResolveMethod returns the payment method a create request will be charged
// through.
func ResolveMethod(g Gateway, req CreateRequest) string {
	if r, ok := g.(MethodResolver); ok {
		return r.PaymentMethod(req)
	}
	return req.PaymentMethod
}

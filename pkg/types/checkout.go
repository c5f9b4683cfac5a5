// Package types holds the JSON shapes exchanged between the storefront and
// the checkout API. Amounts are decimal strings with two fractional digits.
package types

import "encoding/json"

type Address struct {
	Name        string `json:"name,omitempty"`
	Line1       string `json:"address_line_1,omitempty"`
	Line2       string `json:"address_line_2,omitempty"`
	City        string `json:"admin_area_2,omitempty"`
	Region      string `json:"admin_area_1,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type CreateOrderRequest struct {
	ProductRef         string   `json:"product_ref"`
	Region             string   `json:"region,omitempty"`
	PaymentMethod      string   `json:"payment_method,omitempty"`
	ShippingPreference string   `json:"shipping_preference,omitempty"`
	Shipping           *Address `json:"shipping_address,omitempty"`
	// Vault asks the processor to store the payment method on success.
	Vault            bool            `json:"vault,omitempty"`
	ShopperReference string          `json:"shopper_reference,omitempty"`
	ClientData       json.RawMessage `json:"client_data,omitempty"`
	// Amount is accepted for compatibility and never used for pricing.
	Amount string `json:"amount,omitempty"`
}

type AmendOrderRequest struct {
	Region   string   `json:"region,omitempty"`
	Shipping *Address `json:"shipping_address,omitempty"`
}

type FinalizeOrderRequest struct {
	Details json.RawMessage `json:"details,omitempty"`
}

type Amounts struct {
	Currency string `json:"currency"`
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

type Order struct {
	ID           string          `json:"id"`
	Processor    string          `json:"processor"`
	Status       string          `json:"status"`
	RemoteStatus string          `json:"remote_status,omitempty"`
	ProductRef   string          `json:"product_ref,omitempty"`
	Amounts      Amounts         `json:"amounts"`
	Region       string          `json:"region,omitempty"`
	ApprovalURL  string          `json:"approval_url,omitempty"`
	Links        []Link          `json:"links,omitempty"`
	Action       json.RawMessage `json:"action,omitempty"`
	CreatedAt    string          `json:"created_at,omitempty"`
	Settlement   *Settlement     `json:"settlement,omitempty"`
}

type Payer struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type Capture struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	FinalCapture bool   `json:"final_capture"`
}

type Settlement struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	RemoteStatus string    `json:"remote_status,omitempty"`
	Payer        *Payer    `json:"payer,omitempty"`
	Captures     []Capture `json:"captures,omitempty"`
	VaultID      string    `json:"vault_id,omitempty"`
}

type SetupTokenRequest struct {
	UsageType          string `json:"usage_type,omitempty"`
	CustomerType       string `json:"customer_type,omitempty"`
	ShippingPreference string `json:"shipping_preference,omitempty"`
}

type SetupToken struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ApprovalURL string `json:"approval_url,omitempty"`
	Links       []Link `json:"links,omitempty"`
}

type PaymentToken struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id,omitempty"`
}

type ChargeRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description,omitempty"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
	// Kind is set for validation failures.
	Kind string `json:"kind,omitempty"`

	Processor    string          `json:"processor,omitempty"`
	RemoteStatus int             `json:"remote_status,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`

	ElapsedMinutes float64 `json:"elapsed_minutes,omitempty"`
	BudgetMinutes  float64 `json:"budget_minutes,omitempty"`
}

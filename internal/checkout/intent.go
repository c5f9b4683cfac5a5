// Package checkout runs the purchase-intent and vault lifecycles against a
// processor gateway. Prices come from the catalog and tax from the tax
// policy; nothing the client sends about amounts is trusted.
package checkout

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidahmann/checkout/internal/gateway"
)

// Intent is the local record of one checkout. Subtotal is fixed at create;
// Tax and Total move with the shipping region.
type Intent struct {
	ID           string
	Processor    string
	Status       gateway.Status
	RemoteStatus string

	ProductRef  string
	Description string
	Currency    string
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal

	Region             string
	PaymentMethod      string
	ShippingPreference gateway.ShippingPreference
	Shipping           *gateway.Address

	Links  []gateway.Link
	Handle string
	Action json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time

	// Settlement is set once the intent is FINALIZED.
	Settlement *gateway.Settlement
	// Failure is the error that moved the intent to FAILED or EXPIRED.
	Failure error
}

func (i Intent) Breakdown() gateway.Breakdown {
	return gateway.Breakdown{Currency: i.Currency, Subtotal: i.Subtotal, Tax: i.Tax, Total: i.Total}
}

// ApprovalURL returns the link the buyer follows to approve, if any.
func (i Intent) ApprovalURL() string {
	for _, l := range i.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

func (i Intent) clone() Intent {
	out := i
	if i.Shipping != nil {
		addr := *i.Shipping
		out.Shipping = &addr
	}
	if i.Links != nil {
		out.Links = append([]gateway.Link(nil), i.Links...)
	}
	if i.Action != nil {
		out.Action = append(json.RawMessage(nil), i.Action...)
	}
	if i.Settlement != nil {
		s := *i.Settlement
		s.Captures = append([]gateway.Capture(nil), i.Settlement.Captures...)
		out.Settlement = &s
	}
	return out
}

var transitions = map[gateway.Status][]gateway.Status{
	gateway.StatusCreated:  {gateway.StatusApproved, gateway.StatusFinalized, gateway.StatusFailed, gateway.StatusExpired},
	gateway.StatusApproved: {gateway.StatusFinalized, gateway.StatusFailed, gateway.StatusExpired},
}

// CanTransition reports whether from may move to to. Terminal states never
// move and a state never moves to itself.
func CanTransition(from, to gateway.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

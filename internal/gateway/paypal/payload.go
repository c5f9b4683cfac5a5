package paypal

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/davidahmann/checkout/internal/gateway"
)

type orderStatus string

const (
	orderCreated             orderStatus = "CREATED"
	orderSaved               orderStatus = "SAVED"
	orderPayerActionRequired orderStatus = "PAYER_ACTION_REQUIRED"
	orderApproved            orderStatus = "APPROVED"
	orderVoided              orderStatus = "VOIDED"
	orderCompleted           orderStatus = "COMPLETED"
)

// status maps the order status to the core enum. Unrecognized values are
// treated as still open.
func (s orderStatus) status() gateway.Status {
	switch s {
	case orderApproved:
		return gateway.StatusApproved
	case orderCompleted:
		return gateway.StatusFinalized
	case orderVoided:
		return gateway.StatusFailed
	case orderCreated, orderSaved, orderPayerActionRequired:
		return gateway.StatusCreated
	}
	return gateway.StatusCreated
}

type setupStatus string

const (
	setupCreated             setupStatus = "CREATED"
	setupPayerActionRequired setupStatus = "PAYER_ACTION_REQUIRED"
	setupApproved            setupStatus = "APPROVED"
	setupVaulted             setupStatus = "VAULTED"
)

func (s setupStatus) status() gateway.SetupStatus {
	switch s {
	case setupApproved:
		return gateway.SetupApproved
	case setupVaulted:
		return gateway.SetupConsumed
	case setupCreated, setupPayerActionRequired:
		return gateway.SetupPending
	}
	return gateway.SetupPending
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type amountBreakdown struct {
	ItemTotal money `json:"item_total"`
	TaxTotal  money `json:"tax_total"`
}

type amount struct {
	CurrencyCode string           `json:"currency_code"`
	Value        string           `json:"value"`
	Breakdown    *amountBreakdown `json:"breakdown,omitempty"`
}

type item struct {
	Name       string `json:"name"`
	UnitAmount money  `json:"unit_amount"`
	Quantity   string `json:"quantity"`
	Category   string `json:"category,omitempty"`
}

type shippingName struct {
	FullName string `json:"full_name"`
}

type shippingAddress struct {
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	AdminArea2   string `json:"admin_area_2,omitempty"`
	AdminArea1   string `json:"admin_area_1,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
}

type shipping struct {
	Name    *shippingName   `json:"name,omitempty"`
	Address shippingAddress `json:"address"`
}

type capture struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Amount       money  `json:"amount"`
	FinalCapture bool   `json:"final_capture"`
}

type payments struct {
	Captures []capture `json:"captures,omitempty"`
}

type purchaseUnit struct {
	ReferenceID string    `json:"reference_id,omitempty"`
	CustomID    string    `json:"custom_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Amount      amount    `json:"amount"`
	Items       []item    `json:"items,omitempty"`
	Shipping    *shipping `json:"shipping,omitempty"`
	Payments    *payments `json:"payments,omitempty"`
}

type experienceContext struct {
	BrandName          string `json:"brand_name,omitempty"`
	LandingPage        string `json:"landing_page,omitempty"`
	UserAction         string `json:"user_action,omitempty"`
	ShippingPreference string `json:"shipping_preference,omitempty"`
	ReturnURL          string `json:"return_url,omitempty"`
	CancelURL          string `json:"cancel_url,omitempty"`
}

type vaultAttr struct {
	ID           string `json:"id,omitempty"`
	Status       string `json:"status,omitempty"`
	StoreInVault string `json:"store_in_vault,omitempty"`
	UsageType    string `json:"usage_type,omitempty"`
	CustomerType string `json:"customer_type,omitempty"`
}

type attributes struct {
	Vault *vaultAttr `json:"vault,omitempty"`
}

type walletSource struct {
	UsageType         string             `json:"usage_type,omitempty"`
	VaultID           string             `json:"vault_id,omitempty"`
	ExperienceContext *experienceContext `json:"experience_context,omitempty"`
	Attributes        *attributes        `json:"attributes,omitempty"`
}

type tokenSource struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type paymentSource struct {
	PayPal *walletSource `json:"paypal,omitempty"`
	Venmo  *walletSource `json:"venmo,omitempty"`
	Token  *tokenSource  `json:"token,omitempty"`
}

func (p *paymentSource) wallet() *walletSource {
	if p == nil {
		return nil
	}
	if p.PayPal != nil {
		return p.PayPal
	}
	return p.Venmo
}

type orderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
	PaymentSource *paymentSource `json:"payment_source,omitempty"`
}

type payerName struct {
	GivenName string `json:"given_name,omitempty"`
	Surname   string `json:"surname,omitempty"`
}

type payer struct {
	PayerID      string     `json:"payer_id,omitempty"`
	EmailAddress string     `json:"email_address,omitempty"`
	Name         *payerName `json:"name,omitempty"`
}

type order struct {
	ID            string         `json:"id"`
	Status        orderStatus    `json:"status"`
	PurchaseUnits []purchaseUnit `json:"purchase_units,omitempty"`
	Links         []gateway.Link `json:"links,omitempty"`
	Payer         *payer         `json:"payer,omitempty"`
	PaymentSource *paymentSource `json:"payment_source,omitempty"`
}

type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

const defaultUnitPath = "/purchase_units/@reference_id=='default'"

func fmtMoney(currency string, v decimal.Decimal) money {
	return money{CurrencyCode: currency, Value: v.StringFixed(2)}
}

func toAmount(b gateway.Breakdown, withBreakdown bool) amount {
	a := amount{CurrencyCode: b.Currency, Value: b.Total.StringFixed(2)}
	if withBreakdown {
		a.Breakdown = &amountBreakdown{
			ItemTotal: fmtMoney(b.Currency, b.Subtotal),
			TaxTotal:  fmtMoney(b.Currency, b.Tax),
		}
	}
	return a
}

func toShippingAddress(a *gateway.Address) shippingAddress {
	return shippingAddress{
		AddressLine1: a.Line1,
		AddressLine2: a.Line2,
		AdminArea2:   a.City,
		AdminArea1:   a.Region,
		PostalCode:   a.PostalCode,
		CountryCode:  a.CountryCode,
	}
}

func toShipping(a *gateway.Address) *shipping {
	s := &shipping{Address: toShippingAddress(a)}
	if strings.TrimSpace(a.Name) != "" {
		s.Name = &shippingName{FullName: a.Name}
	}
	return s
}

func (a amount) breakdown() *gateway.Breakdown {
	total, err := decimal.NewFromString(a.Value)
	if err != nil {
		return nil
	}
	out := &gateway.Breakdown{Currency: a.CurrencyCode, Total: total, Subtotal: total}
	if a.Breakdown != nil {
		if v, err := decimal.NewFromString(a.Breakdown.ItemTotal.Value); err == nil {
			out.Subtotal = v
		}
		if v, err := decimal.NewFromString(a.Breakdown.TaxTotal.Value); err == nil {
			out.Tax = v
		}
	}
	return out
}

func (p *payer) toGateway() gateway.Payer {
	if p == nil {
		return gateway.Payer{}
	}
	out := gateway.Payer{ID: p.PayerID, Email: p.EmailAddress}
	if p.Name != nil {
		out.Name = strings.TrimSpace(p.Name.GivenName + " " + p.Name.Surname)
	}
	return out
}

func (c capture) toGateway() gateway.Capture {
	v, _ := decimal.NewFromString(c.Amount.Value)
	return gateway.Capture{
		ID:           c.ID,
		Status:       c.Status,
		Amount:       gateway.Money{Currency: c.Amount.CurrencyCode, Value: v},
		FinalCapture: c.FinalCapture,
	}
}

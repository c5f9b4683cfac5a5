package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/davidahmann/checkout/internal/gateway"
)

// Vault stores a buyer's payment method for later merchant-initiated
// charges. A setup token must be approved by the buyer before it can be
// exchanged for a payment token.
type Vault struct {
	Gateway    gateway.VaultGateway
	Store      *MemoryStore
	Experience gateway.Experience
	Logger     *slog.Logger
	// Processor names the gateway in remote errors raised here.
	Processor string
}

func NewVault(gw gateway.VaultGateway, store *MemoryStore) *Vault {
	if store == nil {
		store = NewMemoryStore()
	}
	v := &Vault{Gateway: gw, Store: store, Logger: slog.Default()}
	if n, ok := gw.(interface{ Name() string }); ok {
		v.Processor = n.Name()
	}
	return v
}

type ChargeInput struct {
	PaymentTokenID string
	Amount         decimal.Decimal
	Currency       string
	Description    string
}

func (v *Vault) CreateSetup(ctx context.Context, usage gateway.UsageContext) (gateway.SetupToken, error) {
	if usage.ShippingPreference != "" && !usage.ShippingPreference.Valid() {
		return gateway.SetupToken{}, invalid(KindInvalidInput, "unknown shipping preference %q", usage.ShippingPreference)
	}
	if usage.Experience == (gateway.Experience{}) {
		usage.Experience = v.Experience
	}
	st, err := v.Gateway.CreateSetupToken(ctx, usage)
	if err != nil {
		v.logger().Error("create setup token failed", "error", err)
		return gateway.SetupToken{}, err
	}
	v.Store.PutSetup(SetupRecord{SetupTokenID: st.ID, Status: st.Status})
	v.logger().Info("setup token created", "setup_token", st.ID, "status", st.RawStatus)
	return st, nil
}

// Tokenize exchanges an approved setup token for a durable payment token. A
// setup token is consumed once; repeating the call returns the same payment
// token without a remote call.
func (v *Vault) Tokenize(ctx context.Context, setupTokenID string) (gateway.PaymentToken, error) {
	if strings.TrimSpace(setupTokenID) == "" {
		return gateway.PaymentToken{}, invalid(KindInvalidInput, "setup token id is required")
	}

	unlock := v.Store.Lock("setup:" + setupTokenID)
	defer unlock()

	if rec, ok := v.Store.GetSetup(setupTokenID); ok && rec.Status == gateway.SetupConsumed {
		return rec.PaymentToken, nil
	}

	st, err := v.Gateway.FetchSetupToken(ctx, setupTokenID)
	if err != nil {
		return gateway.PaymentToken{}, err
	}
	if st.Status != gateway.SetupApproved {
		return gateway.PaymentToken{}, invalid(KindSetupNotApproved, "setup token %s is %s", setupTokenID, firstNonEmpty(st.RawStatus, string(st.Status)))
	}

	pt, err := v.Gateway.CreatePaymentToken(ctx, setupTokenID)
	if err != nil {
		v.logger().Error("create payment token failed", "setup_token", setupTokenID, "error", err)
		return gateway.PaymentToken{}, err
	}
	v.Store.PutSetup(SetupRecord{SetupTokenID: setupTokenID, Status: gateway.SetupConsumed, PaymentToken: pt})
	v.logger().Info("payment token created", "setup_token", setupTokenID, "payment_token", pt.ID)
	return pt, nil
}

// Charge moves funds with a stored payment token, without buyer approval.
func (v *Vault) Charge(ctx context.Context, in ChargeInput) (gateway.Settlement, error) {
	if strings.TrimSpace(in.PaymentTokenID) == "" {
		return gateway.Settlement{}, invalid(KindInvalidInput, "payment token id is required")
	}
	if !in.Amount.IsPositive() {
		return gateway.Settlement{}, invalid(KindInvalidInput, "amount must be positive")
	}
	if !in.Amount.Equal(in.Amount.Round(2)) {
		return gateway.Settlement{}, invalid(KindInvalidInput, "amount has more than two fractional digits")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return gateway.Settlement{}, invalid(KindInvalidInput, "currency must be an ISO 4217 code")
	}

	s, err := v.Gateway.ChargePaymentToken(ctx, gateway.ChargeRequest{
		PaymentTokenID: in.PaymentTokenID,
		Amount:         gateway.Money{Currency: currency, Value: in.Amount},
		Description:    in.Description,
	})
	if err != nil {
		v.logger().Error("vault charge failed", "payment_token", in.PaymentTokenID, "error", err)
		return gateway.Settlement{}, err
	}
	if s.Status != gateway.StatusFinalized {
		return gateway.Settlement{}, &gateway.RemoteError{
			Processor:  v.Processor,
			Op:         "charge",
			StatusCode: 200,
			Payload:    s.Raw,
			Message:    fmt.Sprintf("processor reported %s", s.RawStatus),
		}
	}
	v.logger().Info("vault charge settled", "payment_token", in.PaymentTokenID, "settlement", s.ID)
	return s, nil
}

func (v *Vault) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}

func firstNonEmpty(values ...string) string {
	for _, s := range values {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

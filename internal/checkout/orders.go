package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidahmann/checkout/internal/catalog"
	"github.com/davidahmann/checkout/internal/gateway"
	"github.com/davidahmann/checkout/internal/session"
	"github.com/davidahmann/checkout/internal/tax"
)

// Orders owns the purchase-intent lifecycle for one processor.
type Orders struct {
	Gateway    gateway.Gateway
	Prices     catalog.PriceSource
	Tax        tax.Policy
	Guard      session.Guard
	Store      *MemoryStore
	Experience gateway.Experience
	Logger     *slog.Logger
	Now        func() time.Time
}

func NewOrders(gw gateway.Gateway, prices catalog.PriceSource, policy tax.Policy, guard session.Guard) *Orders {
	return &Orders{
		Gateway: gw,
		Prices:  prices,
		Tax:     policy,
		Guard:   guard,
		Store:   NewMemoryStore(),
		Logger:  slog.Default(),
		Now:     time.Now,
	}
}

type CreateInput struct {
	ProductRef         string
	Region             string
	PaymentMethod      string
	ShippingPreference gateway.ShippingPreference
	Shipping           *gateway.Address
	Vault              *gateway.VaultOnSuccess
	ClientData         json.RawMessage
	// ClaimedAmount is whatever total the client believes in. It is never
	// used for pricing.
	ClaimedAmount *decimal.Decimal
}

type AmendInput struct {
	IntentID string
	Region   string
	Shipping *gateway.Address
}

type FinalizeInput struct {
	IntentID string
	// Details carries processor-specific approval data, such as the result
	// of a wallet redirect.
	Details json.RawMessage
}

func (o *Orders) Create(ctx context.Context, in CreateInput) (Intent, error) {
	if strings.TrimSpace(in.ProductRef) == "" {
		return Intent{}, invalid(KindInvalidInput, "product ref is required")
	}
	pref := in.ShippingPreference
	if pref == "" {
		pref = gateway.ShippingFromFile
	}
	if !pref.Valid() {
		return Intent{}, invalid(KindInvalidInput, "unknown shipping preference %q", pref)
	}

	product, err := o.Prices.Lookup(in.ProductRef)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownProduct) {
			return Intent{}, &ValidationError{Kind: KindUnknownProduct, Message: in.ProductRef, Err: err}
		}
		return Intent{}, err
	}

	method := gateway.ResolveMethod(o.Gateway, gateway.CreateRequest{PaymentMethod: in.PaymentMethod, ClientData: in.ClientData})
	selfAddressed := o.Gateway.SelfAddressing(method)
	if pref == gateway.ShippingProvidedAddress && !selfAddressed && !in.Shipping.StreetLevel() {
		return Intent{}, invalid(KindMissingAddress, "a street-level shipping address is required")
	}

	region := regionOf(in.Region, in.Shipping)
	sub, taxAmt, total := o.Tax.Breakdown(product.Price, region)
	if in.ClaimedAmount != nil && !in.ClaimedAmount.Equal(total) {
		o.logger().Warn("client amount ignored",
			"product", product.Ref,
			"claimed", in.ClaimedAmount.String(),
			"total", tax.Format(total))
	}

	amount := gateway.Breakdown{Currency: product.Currency, Subtotal: sub, Tax: taxAmt, Total: total}
	remote, err := o.Gateway.CreateIntent(ctx, gateway.CreateRequest{
		Description:        product.Name,
		Amount:             amount,
		PaymentMethod:      method,
		ShippingPreference: pref,
		Shipping:           o.shippingFor(method, pref, in.Shipping),
		Vault:              in.Vault,
		Experience:         o.Experience,
		ClientData:         in.ClientData,
	})
	if err != nil {
		o.logger().Error("create intent failed", "processor", o.Gateway.Name(), "error", err)
		return Intent{}, err
	}

	now := o.now()
	rec := Intent{
		ID:                 remote.ID,
		Processor:          o.Gateway.Name(),
		Status:             gateway.StatusCreated,
		RemoteStatus:       remote.RawStatus,
		ProductRef:         product.Ref,
		Description:        product.Name,
		Currency:           product.Currency,
		Subtotal:           sub,
		Tax:                taxAmt,
		Total:              total,
		Region:             region,
		PaymentMethod:      method,
		ShippingPreference: pref,
		Shipping:           in.Shipping,
		Links:              remote.Links,
		Handle:             remote.Handle,
		Action:             remote.Action,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// Some processors settle or refuse synchronously on create.
	var outcome error
	switch remote.Status {
	case gateway.StatusApproved:
		rec.Status = gateway.StatusApproved
	case gateway.StatusFinalized:
		rec.Status = gateway.StatusFinalized
		rec.Settlement = &gateway.Settlement{ID: remote.ID, Status: remote.Status, RawStatus: remote.RawStatus, Raw: remote.Raw}
	case gateway.StatusFailed:
		outcome = o.outcomeError("create", remote.RawStatus, remote.Raw)
		rec.Status = gateway.StatusFailed
		rec.Failure = outcome
	}
	o.Store.Put(rec)

	o.logger().Info("intent created",
		"intent", rec.ID,
		"processor", rec.Processor,
		"status", rec.Status,
		"region", region,
		"total", tax.Format(total))
	if outcome != nil {
		return Intent{}, outcome
	}
	return rec.clone(), nil
}

// Amend recomputes tax and total for a new region from the subtotal fixed at
// create. Local state changes only after the processor accepted the update.
func (o *Orders) Amend(ctx context.Context, in AmendInput) (Intent, error) {
	region := regionOf(in.Region, in.Shipping)
	if region == "" {
		return Intent{}, invalid(KindInvalidInput, "region is required")
	}

	unlock := o.Store.Lock(in.IntentID)
	defer unlock()

	rec, ok := o.Store.Get(in.IntentID)
	if !ok {
		return Intent{}, fmt.Errorf("%w: %s", ErrIntentNotFound, in.IntentID)
	}
	if rec.Status.Terminal() {
		return Intent{}, invalid(KindIntentClosed, "intent %s is %s", rec.ID, rec.Status)
	}

	sub, taxAmt, total := o.Tax.Breakdown(rec.Subtotal, region)
	res, err := o.Gateway.AmendIntent(ctx, rec.ID, gateway.AmendRequest{
		Amount:   gateway.Breakdown{Currency: rec.Currency, Subtotal: sub, Tax: taxAmt, Total: total},
		Shipping: o.shippingFor(rec.PaymentMethod, rec.ShippingPreference, in.Shipping),
		Handle:   rec.Handle,
	})
	if err != nil {
		o.logger().Error("amend intent failed", "intent", rec.ID, "region", region, "error", err)
		return Intent{}, err
	}

	rec.Tax = taxAmt
	rec.Total = total
	rec.Region = region
	if in.Shipping != nil {
		rec.Shipping = in.Shipping
	}
	if res.Handle != "" {
		rec.Handle = res.Handle
	}
	rec.UpdatedAt = o.now()
	o.Store.Put(rec)

	o.logger().Info("intent amended", "intent", rec.ID, "region", region, "tax", tax.Format(taxAmt), "total", tax.Format(total))
	return rec.clone(), nil
}

// Finalize captures funds at most once. A FINALIZED intent returns its cached
// settlement and a FAILED or EXPIRED one its cached error, both without a
// remote call. An outcome the processor has not decided yet returns a
// PendingError and leaves the intent open.
func (o *Orders) Finalize(ctx context.Context, in FinalizeInput) (gateway.Settlement, error) {
	unlock := o.Store.Lock(in.IntentID)
	defer unlock()

	rec, ok := o.Store.Get(in.IntentID)
	if !ok {
		return gateway.Settlement{}, fmt.Errorf("%w: %s", ErrIntentNotFound, in.IntentID)
	}
	switch rec.Status {
	case gateway.StatusFinalized:
		if rec.Settlement == nil {
			return gateway.Settlement{ID: rec.ID, Status: rec.Status, RawStatus: rec.RemoteStatus}, nil
		}
		return *rec.Settlement, nil
	case gateway.StatusFailed, gateway.StatusExpired:
		if rec.Failure != nil {
			return gateway.Settlement{}, rec.Failure
		}
		return gateway.Settlement{}, invalid(KindIntentClosed, "intent %s is %s", rec.ID, rec.Status)
	}

	guard := o.Guard
	if guard.Now == nil {
		guard.Now = o.now
	}
	if err := guard.Check(rec.CreatedAt); err != nil {
		o.fail(&rec, gateway.StatusExpired, err)
		o.logger().Warn("intent expired", "intent", rec.ID, "error", err)
		return gateway.Settlement{}, err
	}

	s, err := o.Gateway.FinalizeIntent(ctx, rec.ID, gateway.FinalizeRequest{Handle: rec.Handle, Details: in.Details})
	if err != nil {
		o.fail(&rec, gateway.StatusFailed, err)
		o.logger().Error("finalize intent failed", "intent", rec.ID, "error", err)
		return gateway.Settlement{}, err
	}
	switch s.Status {
	case gateway.StatusFinalized:
	case gateway.StatusFailed, gateway.StatusExpired:
		err := o.outcomeError("finalize", s.RawStatus, s.Raw)
		o.fail(&rec, gateway.StatusFailed, err)
		o.logger().Error("finalize intent not completed", "intent", rec.ID, "remote_status", s.RawStatus)
		return gateway.Settlement{}, err
	default:
		// Undecided at the processor: keep the intent open so a later
		// finalize asks again.
		rec.RemoteStatus = s.RawStatus
		rec.UpdatedAt = o.now()
		o.Store.Put(rec)
		o.logger().Info("settlement pending", "intent", rec.ID, "remote_status", s.RawStatus)
		return gateway.Settlement{}, &PendingError{IntentID: rec.ID, RawStatus: s.RawStatus}
	}

	rec.Status = gateway.StatusFinalized
	rec.RemoteStatus = s.RawStatus
	rec.Settlement = &s
	rec.UpdatedAt = o.now()
	o.Store.Put(rec)

	o.logger().Info("intent finalized", "intent", rec.ID, "settlement", s.ID, "captures", len(s.Captures))
	return s, nil
}

// Fetch asks the processor for the intent's status. The processor wins for
// non-terminal local states; amounts are always the local ones. An intent
// unknown locally is mirrored from the processor but not stored.
func (o *Orders) Fetch(ctx context.Context, id string) (Intent, error) {
	if strings.TrimSpace(id) == "" {
		return Intent{}, invalid(KindInvalidInput, "intent id is required")
	}

	remote, err := o.Gateway.FetchIntent(ctx, id)
	if errors.Is(err, gateway.ErrUnsupported) {
		rec, ok := o.Store.Get(id)
		if !ok {
			return Intent{}, fmt.Errorf("%w: %s", ErrIntentNotFound, id)
		}
		return rec, nil
	}
	if err != nil {
		return Intent{}, err
	}

	unlock := o.Store.Lock(id)
	defer unlock()

	rec, ok := o.Store.Get(id)
	if !ok {
		return o.mirror(remote), nil
	}

	if rec.Status.Terminal() {
		if remote.Status != rec.Status {
			o.logger().Warn("remote status disagrees with terminal intent",
				"intent", id, "local", rec.Status, "remote", remote.RawStatus)
		}
		return rec, nil
	}

	if remote.Status != rec.Status {
		if !CanTransition(rec.Status, remote.Status) {
			o.logger().Warn("ignoring remote status regression", "intent", id, "local", rec.Status, "remote", remote.RawStatus)
			return rec, nil
		}
		rec.Status = remote.Status
		switch remote.Status {
		case gateway.StatusFinalized:
			rec.Settlement = &gateway.Settlement{ID: remote.ID, Status: remote.Status, RawStatus: remote.RawStatus, Raw: remote.Raw}
		case gateway.StatusFailed:
			rec.Failure = o.outcomeError("fetch", remote.RawStatus, remote.Raw)
		}
	}
	rec.RemoteStatus = remote.RawStatus
	if len(remote.Links) > 0 {
		rec.Links = remote.Links
	}
	rec.UpdatedAt = o.now()
	o.Store.Put(rec)
	return rec.clone(), nil
}

func (o *Orders) mirror(remote gateway.RemoteIntent) Intent {
	out := Intent{
		ID:           remote.ID,
		Processor:    o.Gateway.Name(),
		Status:       remote.Status,
		RemoteStatus: remote.RawStatus,
		Links:        remote.Links,
		Handle:       remote.Handle,
	}
	if remote.Amount != nil {
		out.Currency = remote.Amount.Currency
		out.Subtotal = remote.Amount.Subtotal
		out.Tax = remote.Amount.Tax
		out.Total = remote.Amount.Total
	}
	return out
}

// shippingFor returns the address to send, or nil when the method resolves
// its own address, shipping is off, or the address is not street-level.
func (o *Orders) shippingFor(method string, pref gateway.ShippingPreference, addr *gateway.Address) *gateway.Address {
	if pref == gateway.ShippingNone || o.Gateway.SelfAddressing(method) || !addr.StreetLevel() {
		return nil
	}
	return addr
}

func (o *Orders) fail(rec *Intent, status gateway.Status, err error) {
	rec.Status = status
	rec.Failure = err
	rec.UpdatedAt = o.now()
	o.Store.Put(*rec)
}

// outcomeError reports a call that succeeded at the HTTP level but left the
// payment in a non-success state.
func (o *Orders) outcomeError(op, rawStatus string, payload json.RawMessage) *gateway.RemoteError {
	return &gateway.RemoteError{
		Processor:  o.Gateway.Name(),
		Op:         op,
		StatusCode: http.StatusOK,
		Payload:    payload,
		Message:    fmt.Sprintf("processor reported %s", rawStatus),
	}
}

func (o *Orders) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orders) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func regionOf(region string, addr *gateway.Address) string {
	if r := strings.TrimSpace(region); r != "" {
		return strings.ToUpper(r)
	}
	if addr != nil {
		return strings.ToUpper(strings.TrimSpace(addr.Region))
	}
	return ""
}

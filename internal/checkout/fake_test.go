package checkout

import (
	"context"
	"strings"
	"sync"

	"github.com/davidahmann/checkout/internal/gateway"
)

// fakeGateway records calls and answers from canned results.
type fakeGateway struct {
	mu sync.Mutex

	created   []gateway.CreateRequest
	amended   []gateway.AmendRequest
	finalized []gateway.FinalizeRequest
	fetched   int

	createResult   gateway.RemoteIntent
	createErr      error
	amendResult    gateway.AmendResult
	amendErr       error
	finalizeResult gateway.Settlement
	finalizeErr    error
	fetchResult    gateway.RemoteIntent
	fetchErr       error

	setupStatus   gateway.SetupStatus
	setupFetches  int
	paymentTokens int
	charges       []gateway.ChargeRequest
	chargeResult  gateway.Settlement
	chargeErr     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		createResult:   gateway.RemoteIntent{ID: "ORDER-1", Status: gateway.StatusCreated, RawStatus: "PAYER_ACTION_REQUIRED", Links: []gateway.Link{{Href: "https://approve.test/ORDER-1", Rel: "payer-action"}}},
		finalizeResult: gateway.Settlement{ID: "ORDER-1", Status: gateway.StatusFinalized, RawStatus: "COMPLETED", Captures: []gateway.Capture{{ID: "CAP-1", Status: "COMPLETED"}}},
		setupStatus:    gateway.SetupPending,
		chargeResult:   gateway.Settlement{ID: "ORDER-V", Status: gateway.StatusFinalized, RawStatus: "COMPLETED"},
	}
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) SelfAddressing(method string) bool {
	return strings.EqualFold(method, "venmo")
}

func (f *fakeGateway) CreateIntent(_ context.Context, req gateway.CreateRequest) (gateway.RemoteIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	return f.createResult, f.createErr
}

func (f *fakeGateway) AmendIntent(_ context.Context, _ string, req gateway.AmendRequest) (gateway.AmendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.amended = append(f.amended, req)
	return f.amendResult, f.amendErr
}

func (f *fakeGateway) FinalizeIntent(_ context.Context, _ string, req gateway.FinalizeRequest) (gateway.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = append(f.finalized, req)
	return f.finalizeResult, f.finalizeErr
}

func (f *fakeGateway) FetchIntent(_ context.Context, _ string) (gateway.RemoteIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched++
	return f.fetchResult, f.fetchErr
}

func (f *fakeGateway) CreateSetupToken(_ context.Context, _ gateway.UsageContext) (gateway.SetupToken, error) {
	return gateway.SetupToken{ID: "SETUP-1", Status: gateway.SetupPending, RawStatus: "PAYER_ACTION_REQUIRED", Links: []gateway.Link{{Href: "https://approve.test/SETUP-1", Rel: "approve"}}}, nil
}

func (f *fakeGateway) FetchSetupToken(_ context.Context, id string) (gateway.SetupToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupFetches++
	return gateway.SetupToken{ID: id, Status: f.setupStatus, RawStatus: string(f.setupStatus)}, nil
}

func (f *fakeGateway) CreatePaymentToken(_ context.Context, _ string) (gateway.PaymentToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentTokens++
	return gateway.PaymentToken{ID: "PT-1", CustomerID: "CUST-1"}, nil
}

func (f *fakeGateway) ChargePaymentToken(_ context.Context, req gateway.ChargeRequest) (gateway.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges = append(f.charges, req)
	return f.chargeResult, f.chargeErr
}

func (f *fakeGateway) finalizeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.finalized)
}

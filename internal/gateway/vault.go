package gateway

import "context"

type SetupStatus string

const (
	SetupPending  SetupStatus = "PENDING"
	SetupApproved SetupStatus = "APPROVED"
	SetupConsumed SetupStatus = "CONSUMED"
)

type UsageContext struct {
	UsageType          string
	CustomerType       string
	ShippingPreference ShippingPreference
	Experience         Experience
}

type SetupToken struct {
	ID        string
	Status    SetupStatus
	RawStatus string
	Links     []Link
}

type PaymentToken struct {
	ID         string
	CustomerID string
}

type ChargeRequest struct {
	PaymentTokenID string
	Amount         Money
	Description    string
}

// VaultGateway stores a payment method for reuse and charges it later without
// a buyer approval step.
type VaultGateway interface {
	CreateSetupToken(ctx context.Context, usage UsageContext) (SetupToken, error)
	FetchSetupToken(ctx context.Context, id string) (SetupToken, error)
	CreatePaymentToken(ctx context.Context, setupTokenID string) (PaymentToken, error)
	ChargePaymentToken(ctx context.Context, req ChargeRequest) (Settlement, error)
}

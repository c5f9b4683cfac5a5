package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/checkout/internal/gateway"
)

func TestVaultTokenizeRequiresApproval(t *testing.T) {
	gw := newFakeGateway()
	v := NewVault(gw, nil)
	ctx := context.Background()

	st, err := v.CreateSetup(ctx, gateway.UsageContext{})
	require.NoError(t, err)
	assert.Equal(t, "SETUP-1", st.ID)
	assert.Equal(t, "fake", v.Processor)

	_, err = v.Tokenize(ctx, st.ID)
	assert.True(t, IsKind(err, KindSetupNotApproved))
	assert.Zero(t, gw.paymentTokens, "no payment token before approval")

	gw.setupStatus = gateway.SetupApproved
	pt, err := v.Tokenize(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "PT-1", pt.ID)
	assert.Equal(t, 1, gw.paymentTokens)
}

func TestVaultTokenizeConsumesOnce(t *testing.T) {
	gw := newFakeGateway()
	gw.setupStatus = gateway.SetupApproved
	v := NewVault(gw, nil)
	ctx := context.Background()

	first, err := v.Tokenize(ctx, "SETUP-1")
	require.NoError(t, err)
	second, err := v.Tokenize(ctx, "SETUP-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, gw.setupFetches)
	assert.Equal(t, 1, gw.paymentTokens)

	rec, ok := v.Store.GetSetup("SETUP-1")
	require.True(t, ok)
	assert.Equal(t, gateway.SetupConsumed, rec.Status)
}

func TestVaultTokenizeRemoteConsumedIsNotApproved(t *testing.T) {
	gw := newFakeGateway()
	gw.setupStatus = gateway.SetupConsumed
	v := NewVault(gw, nil)

	_, err := v.Tokenize(context.Background(), "SETUP-9")
	assert.True(t, IsKind(err, KindSetupNotApproved))
	assert.Zero(t, gw.paymentTokens)
}

func TestVaultCharge(t *testing.T) {
	gw := newFakeGateway()
	v := NewVault(gw, nil)

	s, err := v.Charge(context.Background(), ChargeInput{PaymentTokenID: "PT-1", Amount: money("5.00"), Description: "renewal"})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-V", s.ID)
	require.Len(t, gw.charges, 1)
	assert.Equal(t, "USD", gw.charges[0].Amount.Currency)
	assert.Equal(t, "PT-1", gw.charges[0].PaymentTokenID)
}

func TestVaultChargeValidation(t *testing.T) {
	gw := newFakeGateway()
	v := NewVault(gw, nil)
	ctx := context.Background()

	for _, in := range []ChargeInput{
		{Amount: money("1.00")},
		{PaymentTokenID: "PT-1", Amount: money("0")},
		{PaymentTokenID: "PT-1", Amount: money("1.005")},
		{PaymentTokenID: "PT-1", Amount: money("1.00"), Currency: "US"},
	} {
		_, err := v.Charge(ctx, in)
		assert.True(t, IsKind(err, KindInvalidInput), "%+v", in)
	}
	assert.Empty(t, gw.charges)
}

func TestVaultChargeNotCompleted(t *testing.T) {
	gw := newFakeGateway()
	gw.chargeResult = gateway.Settlement{ID: "ORDER-V", Status: gateway.StatusFailed, RawStatus: "DECLINED"}
	v := NewVault(gw, nil)

	_, err := v.Charge(context.Background(), ChargeInput{PaymentTokenID: "PT-1", Amount: money("5.00")})
	var remote *gateway.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "fake", remote.Processor)
	assert.Contains(t, remote.Error(), "DECLINED")
}

func TestVaultCreateSetupRejectsBadPreference(t *testing.T) {
	v := NewVault(newFakeGateway(), nil)
	_, err := v.CreateSetup(context.Background(), gateway.UsageContext{ShippingPreference: "ANYWHERE"})
	assert.True(t, IsKind(err, KindInvalidInput))
}

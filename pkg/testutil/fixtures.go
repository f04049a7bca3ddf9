// Package testutil provides shared fixtures for tests that need fully
// signed mandate chains.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aval/internal/keyring"
	"aval/internal/ledger"
	"aval/internal/mandate"
	"aval/internal/mandate/builder"
	"aval/internal/proof"
)

// Issuer identities used across fixtures.
const (
	IssuerWallet    = "issuer:user-wallet"
	IssuerMerchant  = "issuer:merchant"
	IssuerProcessor = "issuer:processor"
	IssuerNetting   = "issuer:netting"
)

// Fixture bundles a key registry with signers and a mandate builder pinned to
// a fixed clock, so signatures and timestamps are reproducible within a test.
type Fixture struct {
	Registry  *keyring.Registry
	TrustRoot map[string]string

	Wallet    *proof.Signer
	Merchant  *proof.Signer
	Processor *proof.Signer
	Clearing  *proof.Signer

	Builder *builder.Builder
	Now     time.Time
}

// NewFixture generates keypairs for all issuers and returns a ready fixture.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	reg := keyring.New()
	for _, issuer := range []string{IssuerWallet, IssuerMerchant, IssuerProcessor, IssuerNetting} {
		require.NoError(t, reg.Generate(issuer))
	}

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	return &Fixture{
		Registry:  reg,
		TrustRoot: reg.ExportPublicKeys(),
		Wallet:    proof.NewSigner(reg, IssuerWallet, proof.WithClock(clock)),
		Merchant:  proof.NewSigner(reg, IssuerMerchant, proof.WithClock(clock)),
		Processor: proof.NewSigner(reg, IssuerProcessor, proof.WithClock(clock)),
		Clearing:  proof.NewSigner(reg, IssuerNetting, proof.WithClock(clock)),
		Builder:   builder.New(IssuerWallet, builder.WithClock(clock)),
		Now:       now,
	}
}

// Clock returns a clock function frozen at the fixture's timestamp.
func (f *Fixture) Clock() func() time.Time {
	return func() time.Time { return f.Now }
}

// Chain builds a signed intent→cart→payment chain with consistent terms.
func (f *Fixture) Chain(t *testing.T, txnID, receiver string, amount float64, currency string) []mandate.Mandate {
	t.Helper()

	intent, err := f.Builder.Intent(f.Wallet, receiver, amount, currency, "test purchase", nil)
	require.NoError(t, err)
	cart, err := f.Builder.Cart(f.Merchant, receiver, amount, currency, intent.ID, "test purchase")
	require.NoError(t, err)
	payment, err := f.Builder.Payment(f.Processor, receiver, amount, currency, txnID, cart.ID, cart)
	require.NoError(t, err)

	return []mandate.Mandate{intent, cart, payment}
}

// PaymentBatch wraps a signed chain in a transaction batch.
func (f *Fixture) PaymentBatch(t *testing.T, txnID, receiver string, amount float64, currency string) *ledger.TransactionBatch {
	t.Helper()
	return &ledger.TransactionBatch{
		TransactionID: txnID,
		Sender:        IssuerWallet,
		Receiver:      receiver,
		Amount:        amount,
		Currency:      currency,
		Mandates:      f.Chain(t, txnID, receiver, amount, currency),
	}
}

// NettingBatch builds a four-mandate chain that routes the payment through a
// netting leg for the given settlement run.
func (f *Fixture) NettingBatch(t *testing.T, txnID, receiver string, amount float64, currency, settlementRun string) *ledger.TransactionBatch {
	t.Helper()

	intent, err := f.Builder.Intent(f.Wallet, receiver, amount, currency, "test purchase", nil)
	require.NoError(t, err)
	cart, err := f.Builder.Cart(f.Merchant, receiver, amount, currency, intent.ID, "test purchase")
	require.NoError(t, err)
	netting, err := f.Builder.Netting(f.Clearing, []string{cart.ID}, receiver, currency, amount, settlementRun)
	require.NoError(t, err)
	payment, err := f.Builder.Payment(f.Processor, receiver, amount, currency, txnID, netting.ID, cart)
	require.NoError(t, err)

	return &ledger.TransactionBatch{
		TransactionID: txnID,
		Sender:        IssuerWallet,
		Receiver:      receiver,
		Amount:        amount,
		Currency:      currency,
		Mandates:      []mandate.Mandate{intent, cart, netting, payment},
	}
}

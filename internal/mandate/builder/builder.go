// Package builder assembles well-formed, signed mandate records.
//
// The builder shapes data and delegates signing; it performs no trust or
// consistency validation. All acceptance checks happen in the ledger.
package builder

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"aval/internal/mandate"
	"aval/internal/mandate/canonical"
	"aval/internal/proof"
)

const (
	schemaID   = "https://ap2-protocol.org/schemas/mandate-schema.json"
	schemaType = "JsonSchemaValidator2018"
	statusID   = "https://ap2-protocol.org/status/registry#revocation-list-1"
	statusType = "RevocationList2020Status"

	// DefaultTTL is the expiration horizon stamped on mandates unless
	// overridden.
	DefaultTTL = time.Hour
)

// RawIntent carries the structured fields of a user-captured intent request.
type RawIntent struct {
	NaturalDescription       string
	IntentExpiry             string
	CartConfirmationRequired *bool
	Merchants                []string
	SKUs                     []string
	RequiredRefundability    *bool
}

// Builder constructs mandates for one user identity. It is deterministic
// except for fresh ids and wall-clock timestamps.
type Builder struct {
	userID string
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

// Option configures a Builder.
type Option func(*Builder)

// WithTTL overrides the default expiration horizon.
func WithTTL(ttl time.Duration) Option {
	return func(b *Builder) {
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// WithClock overrides the timestamp clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// New constructs a Builder acting for the given user identity.
func New(userID string, opts ...Option) *Builder {
	b := &Builder{
		userID: userID,
		ttl:    DefaultTTL,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Expiry returns the default expiration timestamp relative to now.
func (b *Builder) Expiry() string {
	return mandate.FormatTimestamp(b.now().Add(b.ttl))
}

func (b *Builder) timestamp() string {
	return mandate.FormatTimestamp(b.now())
}

// wrap places the subject in the credential envelope and signs it.
func (b *Builder) wrap(signer *proof.Signer, typ mandate.Type, subject mandate.Subject, expiration string) (mandate.Mandate, error) {
	if expiration == "" {
		expiration = b.Expiry()
	}
	m := mandate.Mandate{
		Context:        canonical.DefaultContexts(),
		ID:             "urn:uuid:" + b.newID(),
		Types:          []string{"VerifiableCredential", string(typ)},
		Issuer:         signer.IssuerID(),
		IssuanceDate:   b.timestamp(),
		ExpirationDate: expiration,
		Schema:         mandate.SchemaRef{ID: schemaID, Type: schemaType},
		Status:         mandate.StatusRef{ID: statusID, Type: statusType},
		Subject:        subject,
	}
	signed, err := signer.Sign(m)
	if err != nil {
		return mandate.Mandate{}, fmt.Errorf("sign %s: %w", typ, err)
	}
	return signed, nil
}

// Intent builds the IntentMandate that starts a payment chain. When raw is
// non-nil its structured fields are folded into the subject and its expiry,
// if set, overrides the default horizon.
func (b *Builder) Intent(signer *proof.Signer, receiver string, amount float64, currency, note string, raw *RawIntent) (mandate.Mandate, error) {
	desc := note
	expiration := ""
	if raw != nil {
		if raw.NaturalDescription != "" {
			desc = raw.NaturalDescription
		}
		expiration = raw.IntentExpiry
	}

	itemDesc := desc
	if itemDesc == "" {
		itemDesc = "unspecified item"
	}

	subject := &mandate.IntentSubject{
		Label:         "User intent to initiate payment",
		Note:          desc,
		MandateID:     b.newID(),
		PrevMandateID: nil,
		MerchantID:    receiver,
		PayerInfo: mandate.PartyInfo{
			UserID:             b.userID,
			CredentialProvider: "issuer:user-wallet",
		},
		PayeeInfo:      mandate.PartyInfo{MerchantID: receiver},
		PaymentMethods: []string{"card", "wallet"},
		Shopping: mandate.ShoppingIntent{
			Items: []mandate.LineItem{{Description: itemDesc, Price: amount, Currency: currency}},
			Total: amount,
		},
		PromptPlayback: fmt.Sprintf("Send %v %s to %s", amount, currency, receiver),
		TTL:            b.Expiry(),
		Details: mandate.IntentDetails{
			Action:      "send",
			Amount:      amount,
			Currency:    currency,
			Destination: receiver,
			Note:        desc,
		},
	}
	if raw != nil {
		subject.CartConfirmationRequired = raw.CartConfirmationRequired
		subject.NaturalDescription = raw.NaturalDescription
		subject.Merchants = raw.Merchants
		subject.SKUs = raw.SKUs
		subject.RequiredRefundability = raw.RequiredRefundability
		subject.IntentExpiry = raw.IntentExpiry
		if raw.IntentExpiry != "" {
			subject.TTL = raw.IntentExpiry
		}
	}

	return b.wrap(signer, mandate.TypeIntent, subject, expiration)
}

// Cart builds the CartMandate confirming a checkout, linked to the intent's
// credential id.
func (b *Builder) Cart(signer *proof.Signer, receiver string, amount float64, currency, prevMandateID, itemDesc string) (mandate.Mandate, error) {
	if itemDesc == "" {
		itemDesc = "Generic Item"
	}
	cartID := b.newID()
	request := mandate.PaymentRequest{
		ID:         cartID,
		MethodData: []mandate.MethodData{{SupportedMethods: []string{"basic-card", "https://example.com/pay"}}},
		Details: mandate.PaymentRequestDetails{
			DisplayItems: []mandate.DisplayItem{{
				Label:  itemDesc,
				Amount: mandate.MonetaryAmount{Currency: currency, Value: amount},
			}},
			Total: mandate.DisplayItem{
				Label:  "Total",
				Amount: mandate.MonetaryAmount{Currency: currency, Value: amount},
			},
		},
	}
	subject := &mandate.CartSubject{
		Label:             "Merchant checkout confirmation",
		Note:              itemDesc,
		MandateID:         b.newID(),
		PrevMandateID:     &prevMandateID,
		MerchantID:        receiver,
		Contents:          mandate.CartContents{ID: cartID, PaymentRequest: request},
		MerchantSignature: "sig-" + b.newID(),
		Timestamp:         b.timestamp(),
	}
	return b.wrap(signer, mandate.TypeCart, subject, "")
}

// Payment builds the PaymentMandate finalizing a transaction, linked to its
// predecessor (cart or netting) and carrying a hash of the signed cart.
func (b *Builder) Payment(signer *proof.Signer, receiver string, amount float64, currency, txnID, prevMandateID string, cart mandate.Mandate) (mandate.Mandate, error) {
	subject := &mandate.PaymentSubject{
		Label:           fmt.Sprintf("Finalized payment for transaction %s", txnID),
		Note:            fmt.Sprintf("Payment of %v %s to %s", amount, currency, receiver),
		MandateID:       b.newID(),
		PrevMandateID:   &prevMandateID,
		MerchantID:      receiver,
		CartMandateHash: hashMandate(cart),
		PaymentDetails: mandate.PaymentDetails{
			TransactionID:  txnID,
			Status:         "SUCCESS",
			Amount:         amount,
			Currency:       currency,
			SettlementTime: b.timestamp(),
		},
		PaymentMethod: "visa-****1111",
		RiskInfo:      mandate.RiskInfo{FraudScore: 0.01, GeoCheck: "pass"},
		AgentCard:     mandate.MerchantAgentCard{AcquirerID: "bank-xyz", TerminalID: "term-123"},
	}
	return b.wrap(signer, mandate.TypePayment, subject, "")
}

// Refund builds a RefundMandate against an accepted payment.
func (b *Builder) Refund(signer *proof.Signer, originalPaymentID, prevMandateID string, amount float64, currency, merchantID, reason string) (mandate.Mandate, error) {
	subject := &mandate.RefundSubject{
		Label:             fmt.Sprintf("Refund issued for payment %s", originalPaymentID),
		Note:              reason,
		RefundID:          b.newID(),
		OriginalPaymentID: originalPaymentID,
		PrevMandateID:     &prevMandateID,
		RefundAmount:      amount,
		Currency:          currency,
		RefundReason:      reason,
		MerchantID:        merchantID,
		Timestamp:         b.timestamp(),
	}
	return b.wrap(signer, mandate.TypeRefund, subject, "")
}

// FraudFlag builds a FraudFlag record pointing at a suspect mandate.
func (b *Builder) FraudFlag(signer *proof.Signer, flaggedMandateID, prevMandateID, reason string, evidence map[string]any, merchantID, currency string) (mandate.Mandate, error) {
	subject := &mandate.FraudFlagSubject{
		Label:            fmt.Sprintf("Fraud flag raised for mandate %s", flaggedMandateID),
		Note:             reason,
		FlagID:           b.newID(),
		FlaggedMandateID: flaggedMandateID,
		PrevMandateID:    &prevMandateID,
		FraudReason:      reason,
		Evidence:         evidence,
		MerchantID:       merchantID,
		Currency:         currency,
		Timestamp:        b.timestamp(),
	}
	return b.wrap(signer, mandate.TypeFraudFlag, subject, "")
}

// Netting builds a NettingMandate covering the given predecessor ids.
// prev_mandate_id mirrors the first entry so pairwise chain linkage holds.
func (b *Builder) Netting(signer *proof.Signer, prevIDs []string, counterparty, currency string, amount float64, settlementRun string) (mandate.Mandate, error) {
	if len(prevIDs) == 0 {
		return mandate.Mandate{}, fmt.Errorf("netting requires at least one predecessor id")
	}
	first := prevIDs[0]
	subject := &mandate.NettingSubject{
		Label:          fmt.Sprintf("Netting obligation for settlement run %s", settlementRun),
		Note:           fmt.Sprintf("Netting %v", amount),
		MandateID:      b.newID(),
		PrevMandateID:  &first,
		PrevMandateIDs: prevIDs,
		Timestamp:      b.timestamp(),
		MerchantID:     counterparty,
		Details: mandate.NettingDetails{
			Amount:        amount,
			Currency:      currency,
			Counterparty:  counterparty,
			SettlementRun: settlementRun,
		},
	}
	return b.wrap(signer, mandate.TypeNetting, subject, "")
}

// hashMandate digests the signed cart for inclusion in the payment subject.
func hashMandate(m mandate.Mandate) string {
	raw, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return base58.Encode(sum[:])
}

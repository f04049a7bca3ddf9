// Package mandate defines the mandate record model: a typed, signed payment
// authorization credential in the AP2 style.
//
// A Mandate is a verifiable-credential envelope around one of six subject
// variants (intent, cart, payment, refund, fraud flag, netting). Once signed,
// the signable content must never be mutated; operations that need a modified
// record (such as stripping the proof for verification) return a new value.
package mandate

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies a mandate variant. It appears as the last entry of the
// credential's "type" array.
type Type string

const (
	TypeIntent    Type = "IntentMandate"
	TypeCart      Type = "CartMandate"
	TypePayment   Type = "PaymentMandate"
	TypeRefund    Type = "RefundMandate"
	TypeFraudFlag Type = "FraudFlag"
	TypeNetting   Type = "NettingMandate"
)

// TimestampLayout is the fixed wire format for all mandate timestamps:
// UTC, second precision, literal Z suffix. Any other shape is a parse failure.
const TimestampLayout = "2006-01-02T15:04:05Z"

// ParseTimestamp parses a mandate timestamp in the fixed wire format.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// FormatTimestamp renders t in the fixed wire format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Proof is the signature envelope attached to a mandate. The signature covers
// the canonicalized bytes of the mandate with the proof field removed.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue"`
}

// SchemaRef points at the JSON schema the credential claims conformance with.
type SchemaRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// StatusRef points at the revocation registry entry for the credential.
type StatusRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Mandate is the credential envelope common to all six variants.
type Mandate struct {
	Context        []string  `json:"@context"`
	ID             string    `json:"id"`
	Types          []string  `json:"type"`
	Issuer         string    `json:"issuer"`
	IssuanceDate   string    `json:"issuanceDate"`
	ExpirationDate string    `json:"expirationDate,omitempty"`
	Schema         SchemaRef `json:"credentialSchema"`
	Status         StatusRef `json:"credentialStatus"`
	Subject        Subject   `json:"credentialSubject"`
	Proof          *Proof    `json:"proof,omitempty"`
}

// Variant returns the mandate type tag, taken from the last entry of the
// credential type array.
func (m Mandate) Variant() Type {
	if len(m.Types) == 0 {
		return ""
	}
	return Type(m.Types[len(m.Types)-1])
}

// WithoutProof returns a copy of the mandate with the proof removed. The
// subject is shared; subjects are never mutated after construction.
func (m Mandate) WithoutProof() Mandate {
	m.Proof = nil
	return m
}

// WithProof returns a copy of the mandate carrying the given proof.
func (m Mandate) WithProof(p Proof) Mandate {
	m.Proof = &p
	return m
}

// Subject is the variant-specific payload of a mandate. Implementations are
// the six concrete subject structs below.
type Subject interface {
	// SelfID returns the subject's own mandate/refund/flag id.
	SelfID() string
	// PrevID returns the backward link to the predecessor mandate's
	// credential id, or "" when the subject starts a chain.
	PrevID() string
	// Merchant returns the merchant / counterparty identifier.
	Merchant() string
}

// PartyInfo identifies the paying or receiving party of an intent.
type PartyInfo struct {
	UserID             string `json:"user_id,omitempty"`
	MerchantID         string `json:"merchant_id,omitempty"`
	CredentialProvider string `json:"credential_provider,omitempty"`
}

// LineItem is a single entry of a shopping intent.
type LineItem struct {
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
}

// ShoppingIntent summarizes what the user intends to buy.
type ShoppingIntent struct {
	Items []LineItem `json:"items"`
	Total float64    `json:"total"`
}

// IntentDetails carries the normalized terms of an intent.
type IntentDetails struct {
	Action      string  `json:"action"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Destination string  `json:"destination"`
	Note        string  `json:"note,omitempty"`
}

// IntentSubject is the payload of an IntentMandate: the user's authorization
// to initiate a payment. It starts a chain, so PrevMandateID is always nil.
type IntentSubject struct {
	Label          string         `json:"label"`
	Note           string         `json:"note,omitempty"`
	MandateID      string         `json:"mandate_id"`
	PrevMandateID  *string        `json:"prev_mandate_id"`
	MerchantID     string         `json:"merchant_id"`
	PayerInfo      PartyInfo      `json:"payer_info"`
	PayeeInfo      PartyInfo      `json:"payee_info"`
	PaymentMethods []string       `json:"payment_methods"`
	Shopping       ShoppingIntent `json:"shopping_intent"`
	PromptPlayback string         `json:"prompt_playback,omitempty"`
	TTL            string         `json:"ttl,omitempty"`
	Details        IntentDetails  `json:"details"`

	// Raw-intent extensions, present only when the intent was captured from
	// a structured user request.
	CartConfirmationRequired *bool    `json:"user_cart_confirmation_required,omitempty"`
	NaturalDescription       string   `json:"natural_language_description,omitempty"`
	Merchants                []string `json:"merchants,omitempty"`
	SKUs                     []string `json:"skus,omitempty"`
	RequiredRefundability    *bool    `json:"required_refundability,omitempty"`
	IntentExpiry             string   `json:"intent_expiry,omitempty"`
}

func (s *IntentSubject) SelfID() string   { return s.MandateID }
func (s *IntentSubject) PrevID() string   { return deref(s.PrevMandateID) }
func (s *IntentSubject) Merchant() string { return s.MerchantID }

// MonetaryAmount is a currency/value pair in the W3C payment-request shape.
type MonetaryAmount struct {
	Currency string  `json:"currency"`
	Value    float64 `json:"value"`
}

// DisplayItem is a labeled amount in a payment request.
type DisplayItem struct {
	Label  string         `json:"label"`
	Amount MonetaryAmount `json:"amount"`
}

// MethodData advertises the payment methods a merchant accepts.
type MethodData struct {
	SupportedMethods []string `json:"supportedMethods"`
}

// PaymentRequestDetails carries the itemized totals of a cart.
type PaymentRequestDetails struct {
	DisplayItems []DisplayItem `json:"displayItems"`
	Total        DisplayItem   `json:"total"`
}

// PaymentRequest is the merchant's W3C-style payment request.
type PaymentRequest struct {
	ID         string                `json:"id"`
	MethodData []MethodData          `json:"method_data"`
	Details    PaymentRequestDetails `json:"details"`
}

// CartContents wraps the payment request with the cart id.
type CartContents struct {
	ID             string         `json:"id"`
	PaymentRequest PaymentRequest `json:"payment_request"`
}

// CartSubject is the payload of a CartMandate: the merchant's checkout
// confirmation, linked back to the intent.
type CartSubject struct {
	Label             string       `json:"label"`
	Note              string       `json:"note,omitempty"`
	MandateID         string       `json:"mandate_id"`
	PrevMandateID     *string      `json:"prev_mandate_id"`
	MerchantID        string       `json:"merchant_id"`
	Contents          CartContents `json:"contents"`
	MerchantSignature string       `json:"merchant_signature"`
	Timestamp         string       `json:"timestamp"`
}

func (s *CartSubject) SelfID() string   { return s.MandateID }
func (s *CartSubject) PrevID() string   { return deref(s.PrevMandateID) }
func (s *CartSubject) Merchant() string { return s.MerchantID }

// PaymentDetails carries the settled terms of a payment.
type PaymentDetails struct {
	TransactionID  string  `json:"transaction_id"`
	Status         string  `json:"status"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	SettlementTime string  `json:"settlement_time"`
}

// RiskInfo carries the processor's fraud assessment of a payment.
type RiskInfo struct {
	FraudScore float64 `json:"fraud_score"`
	GeoCheck   string  `json:"geo_check"`
}

// MerchantAgentCard identifies the acquiring side of a payment.
type MerchantAgentCard struct {
	AcquirerID string `json:"acquirer_id"`
	TerminalID string `json:"terminal_id"`
}

// PaymentSubject is the payload of a PaymentMandate: the finalized payment,
// linked back to the cart (or netting) mandate.
type PaymentSubject struct {
	Label           string            `json:"label"`
	Note            string            `json:"note,omitempty"`
	MandateID       string            `json:"mandate_id"`
	PrevMandateID   *string           `json:"prev_mandate_id"`
	MerchantID      string            `json:"merchant_id"`
	CartMandateHash string            `json:"cart_mandate_hash"`
	PaymentDetails  PaymentDetails    `json:"payment_details"`
	PaymentMethod   string            `json:"payment_method"`
	RiskInfo        RiskInfo          `json:"risk_info"`
	AgentCard       MerchantAgentCard `json:"merchant_agent_card"`
}

func (s *PaymentSubject) SelfID() string   { return s.MandateID }
func (s *PaymentSubject) PrevID() string   { return deref(s.PrevMandateID) }
func (s *PaymentSubject) Merchant() string { return s.MerchantID }

// RefundSubject is the payload of a RefundMandate, linked back to the
// original payment.
type RefundSubject struct {
	Label             string  `json:"label"`
	Note              string  `json:"note,omitempty"`
	RefundID          string  `json:"refund_id"`
	OriginalPaymentID string  `json:"original_payment_id"`
	PrevMandateID     *string `json:"prev_mandate_id"`
	RefundAmount      float64 `json:"refund_amount"`
	Currency          string  `json:"currency"`
	RefundReason      string  `json:"refund_reason"`
	MerchantID        string  `json:"merchant_id"`
	Timestamp         string  `json:"timestamp"`
}

func (s *RefundSubject) SelfID() string   { return s.RefundID }
func (s *RefundSubject) PrevID() string   { return deref(s.PrevMandateID) }
func (s *RefundSubject) Merchant() string { return s.MerchantID }

// FraudFlagSubject is the payload of a FraudFlag, pointing at the mandate
// under suspicion.
type FraudFlagSubject struct {
	Label            string         `json:"label"`
	Note             string         `json:"note,omitempty"`
	FlagID           string         `json:"flag_id"`
	FlaggedMandateID string         `json:"flagged_mandate_id"`
	PrevMandateID    *string        `json:"prev_mandate_id"`
	FraudReason      string         `json:"fraud_reason"`
	Evidence         map[string]any `json:"evidence"`
	MerchantID       string         `json:"merchant_id"`
	Currency         string         `json:"currency"`
	Timestamp        string         `json:"timestamp"`
}

func (s *FraudFlagSubject) SelfID() string   { return s.FlagID }
func (s *FraudFlagSubject) PrevID() string   { return deref(s.PrevMandateID) }
func (s *FraudFlagSubject) Merchant() string { return s.MerchantID }

// NettingDetails carries the netted obligation of a settlement run.
type NettingDetails struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Counterparty  string  `json:"counterparty"`
	SettlementRun string  `json:"settlement_run"`
}

// NettingSubject is the payload of a NettingMandate: a netted obligation
// covering one or more predecessor mandates. PrevMandateID mirrors the first
// entry of PrevMandateIDs so pairwise chain linkage still holds.
type NettingSubject struct {
	Label          string         `json:"label"`
	Note           string         `json:"note,omitempty"`
	MandateID      string         `json:"mandate_id"`
	PrevMandateID  *string        `json:"prev_mandate_id"`
	PrevMandateIDs []string       `json:"prev_mandate_ids"`
	Timestamp      string         `json:"timestamp"`
	MerchantID     string         `json:"merchant_id"`
	Details        NettingDetails `json:"payment_details"`
}

func (s *NettingSubject) SelfID() string   { return s.MandateID }
func (s *NettingSubject) PrevID() string   { return deref(s.PrevMandateID) }
func (s *NettingSubject) Merchant() string { return s.MerchantID }

// mandateEnvelope mirrors Mandate with the subject left raw so UnmarshalJSON
// can dispatch on the type tag before decoding the payload.
type mandateEnvelope struct {
	Context        []string        `json:"@context"`
	ID             string          `json:"id"`
	Types          []string        `json:"type"`
	Issuer         string          `json:"issuer"`
	IssuanceDate   string          `json:"issuanceDate"`
	ExpirationDate string          `json:"expirationDate,omitempty"`
	Schema         SchemaRef       `json:"credentialSchema"`
	Status         StatusRef       `json:"credentialStatus"`
	Subject        json.RawMessage `json:"credentialSubject"`
	Proof          *Proof          `json:"proof,omitempty"`
}

// UnmarshalJSON decodes a mandate, dispatching the credentialSubject payload
// into the variant struct named by the type tag. Unknown variants fail
// rather than degrading to an untyped map.
func (m *Mandate) UnmarshalJSON(data []byte) error {
	var env mandateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	m.Context = env.Context
	m.ID = env.ID
	m.Types = env.Types
	m.Issuer = env.Issuer
	m.IssuanceDate = env.IssuanceDate
	m.ExpirationDate = env.ExpirationDate
	m.Schema = env.Schema
	m.Status = env.Status
	m.Proof = env.Proof

	subject, err := unmarshalSubject(m.Variant(), env.Subject)
	if err != nil {
		return err
	}
	m.Subject = subject
	return nil
}

func unmarshalSubject(variant Type, raw json.RawMessage) (Subject, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("mandate has no credentialSubject")
	}

	var subject Subject
	switch variant {
	case TypeIntent:
		subject = &IntentSubject{}
	case TypeCart:
		subject = &CartSubject{}
	case TypePayment:
		subject = &PaymentSubject{}
	case TypeRefund:
		subject = &RefundSubject{}
	case TypeFraudFlag:
		subject = &FraudFlagSubject{}
	case TypeNetting:
		subject = &NettingSubject{}
	default:
		return nil, fmt.Errorf("unknown mandate type %q", variant)
	}

	if err := json.Unmarshal(raw, subject); err != nil {
		return nil, fmt.Errorf("decode %s subject: %w", variant, err)
	}
	return subject, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

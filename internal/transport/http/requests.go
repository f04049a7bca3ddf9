package httptransport

import (
	"strings"

	"aval/internal/mandate"
	"aval/internal/processor"
	dErrors "aval/pkg/domain-errors"
)

// PaymentRequest is the wire shape of a payment submission. The intent
// fields mirror a user-captured intent: a natural-language description,
// allowed merchants and SKUs, and an explicit expiry for the intent mandate.
type PaymentRequest struct {
	Sender        string  `json:"sender,omitempty"`
	Receiver      string  `json:"receiver"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency,omitempty"`
	Note          string  `json:"note,omitempty"`
	SettlementRun string  `json:"settlement_run,omitempty"`

	Description  string   `json:"description,omitempty"`
	Merchants    []string `json:"merchants,omitempty"`
	SKUs         []string `json:"skus,omitempty"`
	IntentExpiry string   `json:"intent_expiry,omitempty"`
}

// Normalize trims identifiers and upcases the currency code.
func (r *PaymentRequest) Normalize() {
	r.Receiver = strings.TrimSpace(r.Receiver)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.SettlementRun = strings.ToUpper(strings.TrimSpace(r.SettlementRun))
	r.Description = strings.TrimSpace(r.Description)
	r.IntentExpiry = strings.TrimSpace(r.IntentExpiry)
}

// Validate checks the request fields.
func (r *PaymentRequest) Validate() error {
	if r.Receiver == "" {
		return dErrors.New(dErrors.CodeBadRequest, "receiver is required")
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount must be positive")
	}
	if r.IntentExpiry != "" {
		if _, err := mandate.ParseTimestamp(r.IntentExpiry); err != nil {
			return dErrors.New(dErrors.CodeBadRequest,
				"intent_expiry must be an RFC3339 UTC timestamp with second precision")
		}
	}
	return nil
}

// ToProcessor converts the wire request to the service request.
func (r *PaymentRequest) ToProcessor() processor.PaymentRequest {
	return processor.PaymentRequest{
		Sender:        r.Sender,
		Receiver:      r.Receiver,
		Amount:        r.Amount,
		Currency:      r.Currency,
		Note:          r.Note,
		SettlementRun: r.SettlementRun,
		Description:   r.Description,
		Merchants:     r.Merchants,
		SKUs:          r.SKUs,
		IntentExpiry:  r.IntentExpiry,
	}
}

// RefundRequest is the wire shape of a refund submission.
type RefundRequest struct {
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Reason    string  `json:"reason,omitempty"`
}

// Validate checks the request fields.
func (r *RefundRequest) Validate() error {
	if r.PaymentID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "payment_id is required")
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount must be positive")
	}
	if r.Currency == "" {
		return dErrors.New(dErrors.CodeBadRequest, "currency is required")
	}
	return nil
}

// ToProcessor converts the wire request to the service request.
func (r *RefundRequest) ToProcessor() processor.RefundRequest {
	return processor.RefundRequest{
		PaymentID: r.PaymentID,
		Amount:    r.Amount,
		Currency:  r.Currency,
		Reason:    r.Reason,
	}
}

// FraudFlagRequest is the wire shape of a fraud-flag submission.
type FraudFlagRequest struct {
	MandateID string         `json:"mandate_id"`
	Reason    string         `json:"reason"`
	Evidence  map[string]any `json:"evidence,omitempty"`
}

// Validate checks the request fields.
func (r *FraudFlagRequest) Validate() error {
	if r.MandateID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "mandate_id is required")
	}
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeBadRequest, "reason is required")
	}
	return nil
}

// ToProcessor converts the wire request to the service request.
func (r *FraudFlagRequest) ToProcessor() processor.FraudFlagRequest {
	return processor.FraudFlagRequest{
		MandateID: r.MandateID,
		Reason:    r.Reason,
		Evidence:  r.Evidence,
	}
}

// RevokeRequest is the wire shape of an admin revocation.
type RevokeRequest struct {
	MandateID string `json:"mandate_id"`
}

// Validate checks the request fields.
func (r *RevokeRequest) Validate() error {
	if r.MandateID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "mandate_id is required")
	}
	return nil
}

package ledger

import (
	"fmt"

	"aval/internal/mandate"
)

// Reason is a stable rejection reason code surfaced to callers and audit.
type Reason string

const (
	ReasonEmptyBatch        Reason = "empty_batch"
	ReasonUntrustedIssuer   Reason = "untrusted_issuer"
	ReasonExpired           Reason = "expired"
	ReasonRevoked           Reason = "revoked"
	ReasonInvalidSignature  Reason = "invalid_signature"
	ReasonChainBroken       Reason = "chain_broken"
	ReasonInconsistentTerms Reason = "inconsistent_terms"
	ReasonDuplicate         Reason = "duplicate_transaction"
)

// Result is the outcome of one batch submission. A rejected batch carries the
// reason code plus the identifiers of the offending mandate or pair, so the
// caller can log an auditable trail. Rejection is a terminal outcome for the
// submission; nothing is stored and nothing is retried.
type Result struct {
	Accepted  bool   `json:"accepted"`
	Reason    Reason `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
	MandateID string `json:"mandate_id,omitempty"`
}

func accepted() Result {
	return Result{Accepted: true}
}

func rejected(reason Reason, mandateID, format string, args ...any) Result {
	return Result{
		Accepted:  false,
		Reason:    reason,
		Detail:    fmt.Sprintf(format, args...),
		MandateID: mandateID,
	}
}

// TransactionBatch is an ordered group of mandates representing one logical
// payment event, plus denormalized summary fields. Batches are immutable
// once accepted.
type TransactionBatch struct {
	TransactionID string            `json:"transaction_id"`
	Sender        string            `json:"sender"`
	Receiver      string            `json:"receiver"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Mandates      []mandate.Mandate `json:"mandates"`
}

// BatchReport is the per-batch line of a ledger report.
type BatchReport struct {
	TransactionID string   `json:"transaction_id"`
	Sender        string   `json:"sender"`
	Receiver      string   `json:"receiver"`
	Amount        float64  `json:"amount"`
	Currency      string   `json:"currency"`
	MandateTypes  []string `json:"mandate_types"`
	Consistent    bool     `json:"consistent"`
}

// Report summarizes the accepted transaction sequence with re-derived
// consistency verdicts.
type Report struct {
	Total        int           `json:"total"`
	Consistent   int           `json:"consistent"`
	Inconsistent int           `json:"inconsistent"`
	Batches      []BatchReport `json:"batches"`
}

// Package processor orchestrates mandate construction for the three request
// flows: payments (intent→cart→payment, with an optional netting leg),
// refunds, and fraud flags. It builds and signs the batch, submits it to the
// ledger, and persists accepted batches to the append log.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"aval/internal/ledger"
	"aval/internal/mandate"
	"aval/internal/mandate/builder"
	"aval/internal/proof"
	dErrors "aval/pkg/domain-errors"
	"aval/pkg/platform/sentinel"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Ledger

// Ledger is the verification engine the processor submits batches to.
type Ledger interface {
	Submit(ctx context.Context, batch *ledger.TransactionBatch) (ledger.Result, error)
	FindMandate(ctx context.Context, credentialID string) (mandate.Mandate, error)
}

// Signers binds one signing identity per flow leg.
type Signers struct {
	Wallet    *proof.Signer // signs intents on behalf of the user wallet
	Merchant  *proof.Signer // signs cart confirmations
	Processor *proof.Signer // signs payments, refunds, and fraud flags
	Clearing  *proof.Signer // signs netting mandates
}

// settlement runs that settle directly, without a netting leg
var directRuns = map[string]struct{}{"": {}, "MISC": {}, "ADD1": {}}

// PaymentRequest describes one payment to process. The intent fields are
// optional; when any is set the IntentMandate carries the structured
// user-captured intent instead of the bare note.
type PaymentRequest struct {
	Sender        string
	Receiver      string
	Amount        float64
	Currency      string
	Note          string
	SettlementRun string

	Description  string // natural-language description of the intent
	Merchants    []string
	SKUs         []string
	IntentExpiry string // overrides the default expiry horizon
}

// RefundRequest describes a refund against an accepted payment mandate.
type RefundRequest struct {
	PaymentID string // full credential id (urn:uuid:...)
	Amount    float64
	Currency  string
	Reason    string
}

// FraudFlagRequest describes a fraud flag against any accepted mandate.
type FraudFlagRequest struct {
	MandateID string // full credential id (urn:uuid:...)
	Reason    string
	Evidence  map[string]any
}

// Option configures the Service.
type Option func(*Service)

// WithLogFile sets the append log accepted batches are persisted to.
func WithLogFile(lf *ledger.LogFile) Option {
	return func(s *Service) { s.logFile = lf }
}

// Service builds, signs, and submits transaction batches.
type Service struct {
	ledger  Ledger
	builder *builder.Builder
	signers Signers
	logFile *ledger.LogFile
	logger  *slog.Logger
	newID   func() string
}

// NewService constructs the processor.
func NewService(l Ledger, b *builder.Builder, signers Signers, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		ledger:  l,
		builder: b,
		signers: signers,
		logger:  logger,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessPayment builds the intent→cart→payment chain (inserting a netting
// leg when the settlement run requires one), submits it, and returns the
// batch with the ledger's verdict.
func (s *Service) ProcessPayment(ctx context.Context, req PaymentRequest) (*ledger.TransactionBatch, ledger.Result, error) {
	if req.Currency == "" {
		req.Currency = "EUR"
	}
	if req.Sender == "" {
		req.Sender = "issuer:user-wallet"
	}
	txnID := "txn-" + s.newID()

	var raw *builder.RawIntent
	if req.Description != "" || req.IntentExpiry != "" || len(req.Merchants) > 0 || len(req.SKUs) > 0 {
		raw = &builder.RawIntent{
			NaturalDescription: req.Description,
			IntentExpiry:       req.IntentExpiry,
			Merchants:          req.Merchants,
			SKUs:               req.SKUs,
		}
	}
	intent, err := s.builder.Intent(s.signers.Wallet, req.Receiver, req.Amount, req.Currency, req.Note, raw)
	if err != nil {
		return nil, ledger.Result{}, fmt.Errorf("build intent: %w", err)
	}
	cart, err := s.builder.Cart(s.signers.Merchant, req.Receiver, req.Amount, req.Currency, intent.ID, req.Note)
	if err != nil {
		return nil, ledger.Result{}, fmt.Errorf("build cart: %w", err)
	}

	mandates := []mandate.Mandate{intent, cart}
	paymentPrev := cart.ID
	if _, direct := directRuns[req.SettlementRun]; !direct {
		netting, err := s.builder.Netting(s.signers.Clearing, []string{cart.ID}, req.Receiver, req.Currency, req.Amount, req.SettlementRun)
		if err != nil {
			return nil, ledger.Result{}, fmt.Errorf("build netting: %w", err)
		}
		mandates = append(mandates, netting)
		paymentPrev = netting.ID
	}

	payment, err := s.builder.Payment(s.signers.Processor, req.Receiver, req.Amount, req.Currency, txnID, paymentPrev, cart)
	if err != nil {
		return nil, ledger.Result{}, fmt.Errorf("build payment: %w", err)
	}
	mandates = append(mandates, payment)

	batch := &ledger.TransactionBatch{
		TransactionID: txnID,
		Sender:        req.Sender,
		Receiver:      req.Receiver,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Mandates:      mandates,
	}
	return s.commit(ctx, batch)
}

// ProcessRefund locates the original payment mandate and submits a refund
// batch linked back to it.
func (s *Service) ProcessRefund(ctx context.Context, req RefundRequest) (*ledger.TransactionBatch, ledger.Result, error) {
	if err := requireCredentialID(req.PaymentID); err != nil {
		return nil, ledger.Result{}, err
	}

	original, err := s.ledger.FindMandate(ctx, req.PaymentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ledger.Result{}, dErrors.New(dErrors.CodeNotFound,
				fmt.Sprintf("no mandate found with credential id %s", req.PaymentID))
		}
		return nil, ledger.Result{}, err
	}
	if original.Variant() != mandate.TypePayment {
		return nil, ledger.Result{}, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("mandate %s is not a PaymentMandate", req.PaymentID))
	}

	merchantID := original.Subject.Merchant()
	refund, err := s.builder.Refund(s.signers.Processor, original.ID, original.ID, req.Amount, req.Currency, merchantID, req.Reason)
	if err != nil {
		return nil, ledger.Result{}, fmt.Errorf("build refund: %w", err)
	}

	batch := &ledger.TransactionBatch{
		TransactionID: "refund-" + s.newID(),
		Sender:        refund.Issuer,
		Receiver:      merchantID,
		Amount:        -req.Amount,
		Currency:      req.Currency,
		Mandates:      []mandate.Mandate{refund},
	}
	return s.commit(ctx, batch)
}

// ProcessFraudFlag locates the flagged mandate and submits a fraud-flag
// batch pointing at it.
func (s *Service) ProcessFraudFlag(ctx context.Context, req FraudFlagRequest) (*ledger.TransactionBatch, ledger.Result, error) {
	if err := requireCredentialID(req.MandateID); err != nil {
		return nil, ledger.Result{}, err
	}

	flagged, err := s.ledger.FindMandate(ctx, req.MandateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ledger.Result{}, dErrors.New(dErrors.CodeNotFound,
				fmt.Sprintf("no mandate found with credential id %s", req.MandateID))
		}
		return nil, ledger.Result{}, err
	}

	merchantID := flagged.Subject.Merchant()
	currency := subjectCurrency(flagged.Subject)
	flag, err := s.builder.FraudFlag(s.signers.Processor, flagged.ID, flagged.ID, req.Reason, req.Evidence, merchantID, currency)
	if err != nil {
		return nil, ledger.Result{}, fmt.Errorf("build fraud flag: %w", err)
	}

	batch := &ledger.TransactionBatch{
		TransactionID: "fraud-" + s.newID(),
		Sender:        flag.Issuer,
		Receiver:      merchantID,
		Amount:        0,
		Currency:      currency,
		Mandates:      []mandate.Mandate{flag},
	}
	return s.commit(ctx, batch)
}

// commit submits the batch and, on acceptance, persists it to the append
// log. A log write failure is reported but does not un-accept the batch.
func (s *Service) commit(ctx context.Context, batch *ledger.TransactionBatch) (*ledger.TransactionBatch, ledger.Result, error) {
	res, err := s.ledger.Submit(ctx, batch)
	if err != nil {
		return batch, res, err
	}
	if res.Accepted && s.logFile != nil {
		if err := s.logFile.Append(batch); err != nil {
			s.logger.Error("failed to persist accepted batch",
				"transaction_id", batch.TransactionID, "error", err)
		}
	}
	return batch, res, nil
}

func requireCredentialID(id string) error {
	if !strings.HasPrefix(id, "urn:uuid:") {
		return dErrors.New(dErrors.CodeBadRequest,
			"a full credential id is required (urn:uuid:...)")
	}
	return nil
}

// subjectCurrency pulls the currency of a mandate's terms, for fraud-flag
// records that must echo the flagged mandate's currency.
func subjectCurrency(s mandate.Subject) string {
	switch v := s.(type) {
	case *mandate.IntentSubject:
		return v.Details.Currency
	case *mandate.CartSubject:
		return v.Contents.PaymentRequest.Details.Total.Amount.Currency
	case *mandate.PaymentSubject:
		return v.PaymentDetails.Currency
	case *mandate.NettingSubject:
		return v.Details.Currency
	case *mandate.RefundSubject:
		return v.Currency
	case *mandate.FraudFlagSubject:
		return v.Currency
	default:
		return ""
	}
}

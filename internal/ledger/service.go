// Package ledger implements the verification and integrity engine for
// transaction batches of signed mandates.
//
// Submit runs the acceptance pipeline in a fixed order, short-circuiting on
// the first failure: structural check, per-mandate trust/expiration/
// revocation/signature checks, chain linkage, and the cross-record business
// invariant. A batch is accepted whole or rejected whole; rejection is a
// terminal outcome for that submission and carries a stable reason code.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"aval/internal/audit"
	"aval/internal/ledger/revocation"
	"aval/internal/mandate"
	"aval/internal/platform/metrics"
	"aval/internal/platform/tracer"
	"aval/pkg/platform/sentinel"
)

// Store is the persistence interface for the accepted transaction sequence.
//
// Error Contract:
// - Append returns nil on success or a wrapped error on infrastructure failure
// - Exists reports whether a transaction id is already in the sequence
// - List returns batches in acceptance order
type Store interface {
	Append(ctx context.Context, batch *TransactionBatch) error
	Exists(ctx context.Context, transactionID string) (bool, error)
	List(ctx context.Context) ([]*TransactionBatch, error)
}

// Verifier checks a single mandate's signature proof.
type Verifier interface {
	Verify(m mandate.Mandate) bool
}

// KeyResolver resolves a verification-method reference to raw public key
// bytes.
type KeyResolver interface {
	ResolveVerificationMethod(vmRef string) ([]byte, error)
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer sets the tracer used around submissions.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithAuditor sets the audit publisher.
func WithAuditor(a *audit.Publisher) Option {
	return func(s *Service) { s.auditor = a }
}

// WithClock overrides the expiration clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the trust-anchored verifier and append-only transaction ledger.
//
// The trust root is fixed at construction and never mutated by verification.
// The revocation set grows through Revoke. Submissions are serialized by a
// single mutex around verify+append so a batch is accepted at most once and
// the sequence's order stays meaningful for chain auditing.
type Service struct {
	mu          sync.Mutex
	trustRoot   map[string]string
	revocations revocation.List
	store       Store
	verifier    Verifier
	resolver    KeyResolver
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      tracer.Tracer
	auditor     *audit.Publisher
	now         func() time.Time
}

// New constructs a ledger over the given trust root. The trust root maps
// issuer id to the base58-encoded public key the verifier accepts as
// authoritative; it is copied and never mutated.
func New(trustRoot map[string]string, revocations revocation.List, store Store, verifier Verifier, resolver KeyResolver, logger *slog.Logger, opts ...Option) *Service {
	root := make(map[string]string, len(trustRoot))
	for issuer, key := range trustRoot {
		root[issuer] = key
	}
	s := &Service{
		trustRoot:   root,
		revocations: revocations,
		store:       store,
		verifier:    verifier,
		resolver:    resolver,
		logger:      logger,
		tracer:      tracer.NewNoop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit verifies a batch end to end and appends it to the transaction
// sequence on success. The returned Result carries the rejection reason and
// offending identifiers; the error return is reserved for infrastructure
// failures (revocation backend, store).
func (s *Service) Submit(ctx context.Context, batch *TransactionBatch) (Result, error) {
	txnID := ""
	if batch != nil {
		txnID = batch.TransactionID
	}
	ctx, span := s.tracer.Start(ctx, "ledger.submit",
		tracer.String("transaction_id", txnID))
	// Latency is wall-clock; s.now is the expiry clock and may be overridden.
	start := time.Now()

	res, err := s.submit(ctx, batch, false)
	span.End(err)
	if s.metrics != nil {
		s.metrics.SubmitLatency.Observe(time.Since(start).Seconds())
	}
	s.record(ctx, batch, res, err, audit.ActionBatchAccepted)
	return res, err
}

// Replay re-verifies a previously accepted batch during startup log replay
// and appends it on success. The expiration check is skipped: expiry gates
// acceptance time, and historical records have necessarily aged past their
// horizon. Every other check runs in full.
func (s *Service) Replay(ctx context.Context, batch *TransactionBatch) (Result, error) {
	res, err := s.submit(ctx, batch, true)
	if s.metrics != nil && res.Accepted {
		s.metrics.BatchesReplayed.Inc()
	}
	s.record(ctx, batch, res, err, audit.ActionBatchReplayed)
	return res, err
}

func (s *Service) submit(ctx context.Context, batch *TransactionBatch, replay bool) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. Structural check.
	if batch == nil || len(batch.Mandates) == 0 {
		return rejected(ReasonEmptyBatch, "", "batch contains no mandates"), nil
	}

	// 2. Duplicate check: a transaction id is recorded at most once. During
	// replay a batch already in the durable sequence passed every check at
	// acceptance time, so replaying it is a no-op success.
	if batch.TransactionID != "" {
		exists, err := s.store.Exists(ctx, batch.TransactionID)
		if err != nil {
			return Result{}, fmt.Errorf("duplicate check for %s: %w", batch.TransactionID, err)
		}
		if exists {
			if replay {
				return accepted(), nil
			}
			return rejected(ReasonDuplicate, "",
				"transaction %s already recorded", batch.TransactionID), nil
		}
	}

	// 3. Per-mandate checks, in submission order.
	for _, m := range batch.Mandates {
		if res := s.checkTrust(m); !res.Accepted {
			return res, nil
		}
		if !replay {
			if res := s.checkExpiration(m); !res.Accepted {
				return res, nil
			}
		}
		res, err := s.checkRevocation(ctx, m)
		if err != nil {
			return Result{}, err
		}
		if !res.Accepted {
			return res, nil
		}
		if !s.verifier.Verify(m) {
			return rejected(ReasonInvalidSignature, m.ID,
				"signature verification failed for issuer %s", m.Issuer), nil
		}
		if s.metrics != nil {
			s.metrics.MandatesVerified.Inc()
		}
	}

	// 4. Chain linkage.
	if res := checkChain(batch.Mandates); !res.Accepted {
		return res, nil
	}

	// 5. Cross-record business invariant, for canonical payment shapes.
	if res := checkConsistency(batch.Mandates); !res.Accepted {
		return res, nil
	}

	// 6. Commit.
	if err := s.store.Append(ctx, batch); err != nil {
		return Result{}, fmt.Errorf("append batch %s: %w", batch.TransactionID, err)
	}
	if s.metrics != nil {
		s.metrics.BatchesAccepted.Inc()
	}
	return accepted(), nil
}

// checkTrust requires the issuer in the trust root and the proof's
// verification method to resolve to exactly the registered key.
func (s *Service) checkTrust(m mandate.Mandate) Result {
	if m.Issuer == "" || m.Proof == nil || m.Proof.VerificationMethod == "" {
		return rejected(ReasonUntrustedIssuer, m.ID, "missing issuer or verification method")
	}
	expected, ok := s.trustRoot[m.Issuer]
	if !ok {
		return rejected(ReasonUntrustedIssuer, m.ID, "issuer %s not in trust root", m.Issuer)
	}
	resolved, err := s.resolver.ResolveVerificationMethod(m.Proof.VerificationMethod)
	if err != nil {
		return rejected(ReasonUntrustedIssuer, m.ID,
			"failed to resolve %s: %v", m.Proof.VerificationMethod, err)
	}
	if base58.Encode(resolved) != expected {
		return rejected(ReasonUntrustedIssuer, m.ID,
			"verification method key mismatch for issuer %s", m.Issuer)
	}
	return accepted()
}

// checkExpiration requires the current time to be strictly before the
// expiration timestamp. No expiration field means non-expiring; a malformed
// timestamp fails closed and counts as expired.
func (s *Service) checkExpiration(m mandate.Mandate) Result {
	if m.ExpirationDate == "" {
		return accepted()
	}
	exp, err := mandate.ParseTimestamp(m.ExpirationDate)
	if err != nil {
		return rejected(ReasonExpired, m.ID,
			"malformed expirationDate %q", m.ExpirationDate)
	}
	if !s.now().UTC().Before(exp) {
		return rejected(ReasonExpired, m.ID, "expired at %s", m.ExpirationDate)
	}
	return accepted()
}

// checkRevocation rejects revoked ids. A mandate without an id cannot be
// checked against the revocation set and is treated as revoked.
func (s *Service) checkRevocation(ctx context.Context, m mandate.Mandate) (Result, error) {
	if m.ID == "" {
		return rejected(ReasonRevoked, "", "mandate has no credential id"), nil
	}
	revoked, err := s.revocations.IsRevoked(ctx, m.ID)
	if err != nil {
		return Result{}, fmt.Errorf("revocation check for %s: %w", m.ID, err)
	}
	if revoked {
		return rejected(ReasonRevoked, m.ID, "credential id is revoked"), nil
	}
	return accepted(), nil
}

// checkChain requires each mandate's backward link to equal its predecessor's
// credential id.
func checkChain(mandates []mandate.Mandate) Result {
	for i := 1; i < len(mandates); i++ {
		prev, curr := mandates[i-1], mandates[i]
		if curr.Subject == nil || curr.Subject.PrevID() != prev.ID {
			got := ""
			if curr.Subject != nil {
				got = curr.Subject.PrevID()
			}
			return rejected(ReasonChainBroken, curr.ID,
				"%s.prev=%s does not match %s.id=%s",
				curr.Variant(), got, prev.Variant(), prev.ID)
		}
	}
	return accepted()
}

// terms are the cross-checked fields of a payment chain record.
type terms struct {
	amount   float64
	currency string
	receiver string
}

// checkConsistency applies the amount/currency/receiver invariant when the
// batch is the canonical payment shape: first record an IntentMandate and at
// least three records. Other shapes (lone intents, refunds, fraud flags)
// skip the check.
func checkConsistency(mandates []mandate.Mandate) Result {
	if len(mandates) < 3 || mandates[0].Variant() != mandate.TypeIntent {
		return accepted()
	}

	extracted := make([]terms, 0, 3)
	for _, m := range mandates[:3] {
		t, err := extractTerms(m)
		if err != nil {
			return rejected(ReasonInconsistentTerms, m.ID, "%v", err)
		}
		extracted = append(extracted, t)
	}

	first := extracted[0]
	for _, t := range extracted[1:] {
		if t.amount != first.amount || t.currency != first.currency || t.receiver != first.receiver {
			return rejected(ReasonInconsistentTerms, mandates[0].ID,
				"amount/currency/receiver mismatch across mandates")
		}
	}
	return accepted()
}

// extractTerms pulls amount, currency, and receiver from the fixed payload
// paths of each chain record. The third record of a four-mandate batch is a
// netting mandate; its payment_details carry the same term shape as a
// payment's.
func extractTerms(m mandate.Mandate) (terms, error) {
	switch s := m.Subject.(type) {
	case *mandate.IntentSubject:
		return terms{amount: s.Details.Amount, currency: s.Details.Currency, receiver: s.MerchantID}, nil
	case *mandate.CartSubject:
		total := s.Contents.PaymentRequest.Details.Total.Amount
		return terms{amount: total.Value, currency: total.Currency, receiver: s.MerchantID}, nil
	case *mandate.PaymentSubject:
		return terms{amount: s.PaymentDetails.Amount, currency: s.PaymentDetails.Currency, receiver: s.MerchantID}, nil
	case *mandate.NettingSubject:
		return terms{amount: s.Details.Amount, currency: s.Details.Currency, receiver: s.MerchantID}, nil
	default:
		return terms{}, fmt.Errorf("mandate %s has no extractable payment terms", m.ID)
	}
}

// Recheck re-derives the step-4 consistency verdict for a stored batch
// without re-verifying signatures. Given the same stored data it produces
// the same boolean Submit did at acceptance time.
func (s *Service) Recheck(batch *TransactionBatch) bool {
	if batch == nil {
		return false
	}
	return checkConsistency(batch.Mandates).Accepted
}

// Revoke adds a credential id to the revocation set. Future submissions
// containing a mandate with that id are rejected.
func (s *Service) Revoke(ctx context.Context, credentialID string) error {
	if err := s.revocations.Revoke(ctx, credentialID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.MandatesRevoked.Inc()
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:    audit.ActionMandateRevoked,
			MandateID: credentialID,
		})
	}
	s.logger.Info("mandate revoked", "mandate_id", credentialID)
	return nil
}

// Report summarizes the accepted transaction sequence with re-derived
// consistency verdicts.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	batches, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	report := &Report{Total: len(batches), Batches: make([]BatchReport, 0, len(batches))}
	for _, b := range batches {
		types := make([]string, 0, len(b.Mandates))
		for _, m := range b.Mandates {
			types = append(types, string(m.Variant()))
		}
		consistent := s.Recheck(b)
		if consistent {
			report.Consistent++
		} else {
			report.Inconsistent++
		}
		report.Batches = append(report.Batches, BatchReport{
			TransactionID: b.TransactionID,
			Sender:        b.Sender,
			Receiver:      b.Receiver,
			Amount:        b.Amount,
			Currency:      b.Currency,
			MandateTypes:  types,
			Consistent:    consistent,
		})
	}
	return report, nil
}

// FindMandate locates a mandate by credential id across the accepted
// sequence. Returns sentinel.ErrNotFound when absent.
func (s *Service) FindMandate(ctx context.Context, credentialID string) (mandate.Mandate, error) {
	batches, err := s.store.List(ctx)
	if err != nil {
		return mandate.Mandate{}, fmt.Errorf("list transactions: %w", err)
	}
	for _, b := range batches {
		for _, m := range b.Mandates {
			if m.ID == credentialID {
				return m, nil
			}
		}
	}
	return mandate.Mandate{}, sentinel.ErrNotFound
}

// record logs and audits a submission outcome.
func (s *Service) record(ctx context.Context, batch *TransactionBatch, res Result, err error, acceptAction audit.Action) {
	txnID := ""
	if batch != nil {
		txnID = batch.TransactionID
	}
	switch {
	case err != nil:
		s.logger.Error("batch submission failed", "transaction_id", txnID, "error", err)
	case res.Accepted:
		s.logger.Info("batch accepted", "transaction_id", txnID)
		if s.auditor != nil {
			_ = s.auditor.Emit(ctx, audit.Event{Action: acceptAction, TransactionID: txnID})
		}
	default:
		s.logger.Warn("batch rejected",
			"transaction_id", txnID,
			"reason", string(res.Reason),
			"mandate_id", res.MandateID,
			"detail", res.Detail,
		)
		if s.metrics != nil {
			s.metrics.ObserveRejection(string(res.Reason))
		}
		if s.auditor != nil {
			_ = s.auditor.Emit(ctx, audit.Event{
				Action:        audit.ActionBatchRejected,
				TransactionID: txnID,
				MandateID:     res.MandateID,
				Reason:        string(res.Reason),
				Detail:        res.Detail,
			})
		}
	}
}

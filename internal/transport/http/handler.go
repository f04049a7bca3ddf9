// Package httptransport is the thin HTTP layer. Handlers decode and validate
// requests, delegate to domain services, and translate outcomes to JSON; no
// business logic lives here.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"aval/internal/ledger"
	"aval/internal/processor"
	dErrors "aval/pkg/domain-errors"
)

// ProcessorService is the mandate processing surface the handler delegates to.
type ProcessorService interface {
	ProcessPayment(ctx context.Context, req processor.PaymentRequest) (*ledger.TransactionBatch, ledger.Result, error)
	ProcessRefund(ctx context.Context, req processor.RefundRequest) (*ledger.TransactionBatch, ledger.Result, error)
	ProcessFraudFlag(ctx context.Context, req processor.FraudFlagRequest) (*ledger.TransactionBatch, ledger.Result, error)
}

// LedgerService is the admin and reporting surface the handler delegates to.
type LedgerService interface {
	Revoke(ctx context.Context, credentialID string) error
	Report(ctx context.Context) (*ledger.Report, error)
}

// Handler handles the payment, refund, fraud-flag, and admin endpoints.
type Handler struct {
	logger    *slog.Logger
	processor ProcessorService
	ledger    LedgerService
}

// NewHandler creates the HTTP handler over the given services.
func NewHandler(p ProcessorService, l LedgerService, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		processor: p,
		ledger:    l,
	}
}

// submissionResponse is the envelope returned for every batch submission.
type submissionResponse struct {
	TransactionID string        `json:"transaction_id"`
	Result        ledger.Result `json:"result"`
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return
	}

	batch, res, err := h.processor.ProcessPayment(r.Context(), req.ToProcessor())
	if err != nil {
		WriteError(w, err)
		return
	}
	h.writeVerdict(w, batch, res)
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return
	}

	batch, res, err := h.processor.ProcessRefund(r.Context(), req.ToProcessor())
	if err != nil {
		WriteError(w, err)
		return
	}
	h.writeVerdict(w, batch, res)
}

func (h *Handler) handleFraudFlag(w http.ResponseWriter, r *http.Request) {
	var req FraudFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return
	}

	batch, res, err := h.processor.ProcessFraudFlag(r.Context(), req.ToProcessor())
	if err != nil {
		WriteError(w, err)
		return
	}
	h.writeVerdict(w, batch, res)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req RevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.ledger.Revoke(r.Context(), req.MandateID); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"mandate_id": req.MandateID,
		"status":     "revoked",
	})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.Report(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// writeVerdict maps the ledger verdict to a status code: accepted batches are
// 201, rejected ones 422 with the structured rejection in the body.
func (h *Handler) writeVerdict(w http.ResponseWriter, batch *ledger.TransactionBatch, res ledger.Result) {
	status := http.StatusCreated
	if !res.Accepted {
		status = http.StatusUnprocessableEntity
	}
	WriteJSON(w, status, submissionResponse{
		TransactionID: batch.TransactionID,
		Result:        res,
	})
}

package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"aval/internal/ledger"
	"aval/internal/platform/health"
	"aval/internal/platform/middleware"
	"aval/internal/processor"
	dErrors "aval/pkg/domain-errors"
)

const testAdminKey = "test-admin-key"

// stubProcessor records the last request and returns a canned verdict.
type stubProcessor struct {
	lastPayment   processor.PaymentRequest
	lastRefund    processor.RefundRequest
	lastFraudFlag processor.FraudFlagRequest
	result        ledger.Result
	err           error
}

func (s *stubProcessor) ProcessPayment(_ context.Context, req processor.PaymentRequest) (*ledger.TransactionBatch, ledger.Result, error) {
	s.lastPayment = req
	return &ledger.TransactionBatch{TransactionID: "txn-1"}, s.result, s.err
}

func (s *stubProcessor) ProcessRefund(_ context.Context, req processor.RefundRequest) (*ledger.TransactionBatch, ledger.Result, error) {
	s.lastRefund = req
	return &ledger.TransactionBatch{TransactionID: "refund-1"}, s.result, s.err
}

func (s *stubProcessor) ProcessFraudFlag(_ context.Context, req processor.FraudFlagRequest) (*ledger.TransactionBatch, ledger.Result, error) {
	s.lastFraudFlag = req
	return &ledger.TransactionBatch{TransactionID: "fraud-1"}, s.result, s.err
}

type stubLedger struct {
	revoked   []string
	revokeErr error
	report    *ledger.Report
}

func (s *stubLedger) Revoke(_ context.Context, credentialID string) error {
	if s.revokeErr != nil {
		return s.revokeErr
	}
	s.revoked = append(s.revoked, credentialID)
	return nil
}

func (s *stubLedger) Report(context.Context) (*ledger.Report, error) {
	if s.report != nil {
		return s.report, nil
	}
	return &ledger.Report{}, nil
}

type HandlerSuite struct {
	suite.Suite
	processor *stubProcessor
	ledger    *stubLedger
	router    http.Handler
}

func (s *HandlerSuite) SetupTest() {
	s.processor = &stubProcessor{result: ledger.Result{Accepted: true}}
	s.ledger = &stubLedger{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := NewHandler(s.processor, s.ledger, logger)
	s.router = NewRouter(h, RouterConfig{
		AdminJWTKey: testAdminKey,
		Health:      health.New("test"),
	}, logger)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) post(path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) adminToken() string {
	claims := jwt.MapClaims{
		"sub":   "ops",
		"scope": middleware.AdminScope,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAdminKey))
	s.Require().NoError(err)
	return token
}

func (s *HandlerSuite) TestPayment_Accepted() {
	rec := s.post("/payments", `{"receiver":"acme","amount":25,"currency":"eur","note":"coffee"}`, nil)

	s.Equal(http.StatusCreated, rec.Code)

	var resp submissionResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("txn-1", resp.TransactionID)
	s.True(resp.Result.Accepted)

	// Normalization upcases the currency before the service sees it.
	s.Equal("EUR", s.processor.lastPayment.Currency)
	s.Equal("acme", s.processor.lastPayment.Receiver)
}

func (s *HandlerSuite) TestPayment_IntentFieldsReachService() {
	rec := s.post("/payments",
		`{"receiver":"acme","amount":25,"description":"weekly groceries","merchants":["acme"],"skus":["sku-1"],"intent_expiry":"2026-03-14T18:00:00Z"}`,
		nil)

	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("weekly groceries", s.processor.lastPayment.Description)
	s.Equal([]string{"acme"}, s.processor.lastPayment.Merchants)
	s.Equal([]string{"sku-1"}, s.processor.lastPayment.SKUs)
	s.Equal("2026-03-14T18:00:00Z", s.processor.lastPayment.IntentExpiry)
}

func (s *HandlerSuite) TestPayment_BadIntentExpiryIs400() {
	rec := s.post("/payments", `{"receiver":"acme","amount":25,"intent_expiry":"tomorrow"}`, nil)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestPayment_RejectedIs422() {
	s.processor.result = ledger.Result{
		Accepted: false,
		Reason:   ledger.ReasonExpired,
		Detail:   "expired at 2026-03-14T13:00:00Z",
	}

	rec := s.post("/payments", `{"receiver":"acme","amount":25}`, nil)

	s.Equal(http.StatusUnprocessableEntity, rec.Code)

	var resp submissionResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.False(resp.Result.Accepted)
	s.Equal(ledger.ReasonExpired, resp.Result.Reason)
}

func (s *HandlerSuite) TestPayment_ValidationErrors() {
	cases := []struct {
		name string
		body string
	}{
		{"missing receiver", `{"amount":25}`},
		{"zero amount", `{"receiver":"acme","amount":0}`},
		{"negative amount", `{"receiver":"acme","amount":-5}`},
		{"invalid json", `{`},
	}
	for _, c := range cases {
		rec := s.post("/payments", c.body, nil)
		s.Equal(http.StatusBadRequest, rec.Code, c.name)
	}
}

func (s *HandlerSuite) TestPayment_ServiceErrorIs500() {
	s.processor.err = errors.New("store unavailable")

	rec := s.post("/payments", `{"receiver":"acme","amount":25}`, nil)

	s.Equal(http.StatusInternalServerError, rec.Code)
}

func (s *HandlerSuite) TestRefund_Accepted() {
	rec := s.post("/refunds", `{"payment_id":"urn:uuid:pay-1","amount":10,"currency":"EUR","reason":"damaged"}`, nil)

	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("urn:uuid:pay-1", s.processor.lastRefund.PaymentID)
	s.Equal("damaged", s.processor.lastRefund.Reason)
}

func (s *HandlerSuite) TestRefund_NotFoundMapsTo404() {
	s.processor.err = dErrors.New(dErrors.CodeNotFound, "no mandate found with credential id urn:uuid:missing")

	rec := s.post("/refunds", `{"payment_id":"urn:uuid:missing","amount":10,"currency":"EUR"}`, nil)

	s.Equal(http.StatusNotFound, rec.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("not_found", body["error"])
}

func (s *HandlerSuite) TestFraudFlag_Accepted() {
	rec := s.post("/fraud-flags", `{"mandate_id":"urn:uuid:pay-1","reason":"velocity","evidence":{"count":3}}`, nil)

	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("urn:uuid:pay-1", s.processor.lastFraudFlag.MandateID)
	s.Equal("velocity", s.processor.lastFraudFlag.Reason)
}

func (s *HandlerSuite) TestFraudFlag_RequiresReason() {
	rec := s.post("/fraud-flags", `{"mandate_id":"urn:uuid:pay-1"}`, nil)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestRevoke_RequiresAdminToken() {
	rec := s.post("/admin/revoke", `{"mandate_id":"urn:uuid:pay-1"}`, nil)

	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Empty(s.ledger.revoked)
}

func (s *HandlerSuite) TestRevoke_WithToken() {
	rec := s.post("/admin/revoke", `{"mandate_id":"urn:uuid:pay-1"}`, map[string]string{
		"Authorization": "Bearer " + s.adminToken(),
	})

	s.Equal(http.StatusOK, rec.Code)
	s.Equal([]string{"urn:uuid:pay-1"}, s.ledger.revoked)
}

func (s *HandlerSuite) TestReport() {
	s.ledger.report = &ledger.Report{
		Total:      2,
		Consistent: 2,
		Batches: []ledger.BatchReport{
			{TransactionID: "txn-1", Consistent: true},
			{TransactionID: "txn-2", Consistent: true},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)

	var report ledger.Report
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &report))
	s.Equal(2, report.Total)
	s.Len(report.Batches, 2)
}

func (s *HandlerSuite) TestHealthz() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
}

package httptransport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentRequest_Normalize(t *testing.T) {
	r := PaymentRequest{
		Receiver:      "  acme  ",
		Amount:        25,
		Currency:      "eur",
		SettlementRun: " eod1 ",
	}
	r.Normalize()

	assert.Equal(t, "acme", r.Receiver)
	assert.Equal(t, "EUR", r.Currency)
	assert.Equal(t, "EOD1", r.SettlementRun)
}

func TestPaymentRequest_Validate(t *testing.T) {
	valid := PaymentRequest{Receiver: "acme", Amount: 25}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&PaymentRequest{Amount: 25}).Validate())
	assert.Error(t, (&PaymentRequest{Receiver: "acme"}).Validate())
	assert.Error(t, (&PaymentRequest{Receiver: "acme", Amount: -1}).Validate())
}

func TestPaymentRequest_ValidateIntentExpiry(t *testing.T) {
	valid := PaymentRequest{Receiver: "acme", Amount: 25, IntentExpiry: "2026-03-14T18:00:00Z"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&PaymentRequest{Receiver: "acme", Amount: 25, IntentExpiry: "tomorrow"}).Validate())
	assert.Error(t, (&PaymentRequest{Receiver: "acme", Amount: 25, IntentExpiry: "2026-03-14T18:00:00+02:00"}).Validate())
}

func TestPaymentRequest_ToProcessorCarriesIntentFields(t *testing.T) {
	r := PaymentRequest{
		Receiver:     "acme",
		Amount:       25,
		Description:  "weekly groceries",
		Merchants:    []string{"acme"},
		SKUs:         []string{"sku-1"},
		IntentExpiry: "2026-03-14T18:00:00Z",
	}
	req := r.ToProcessor()

	assert.Equal(t, "weekly groceries", req.Description)
	assert.Equal(t, []string{"acme"}, req.Merchants)
	assert.Equal(t, []string{"sku-1"}, req.SKUs)
	assert.Equal(t, "2026-03-14T18:00:00Z", req.IntentExpiry)
}

func TestRefundRequest_Validate(t *testing.T) {
	valid := RefundRequest{PaymentID: "urn:uuid:x", Amount: 10, Currency: "EUR"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&RefundRequest{Amount: 10, Currency: "EUR"}).Validate())
	assert.Error(t, (&RefundRequest{PaymentID: "urn:uuid:x", Currency: "EUR"}).Validate())
	assert.Error(t, (&RefundRequest{PaymentID: "urn:uuid:x", Amount: 10}).Validate())
}

func TestFraudFlagRequest_Validate(t *testing.T) {
	valid := FraudFlagRequest{MandateID: "urn:uuid:x", Reason: "velocity"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&FraudFlagRequest{Reason: "velocity"}).Validate())
	assert.Error(t, (&FraudFlagRequest{MandateID: "urn:uuid:x"}).Validate())
}

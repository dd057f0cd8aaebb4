package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, EventSucceeded, Classify("checkout.session.completed"))
	assert.Equal(t, EventSucceeded, Classify("payment_intent.succeeded"))
	assert.Equal(t, EventFailed, Classify("payment_intent.payment_failed"))
	assert.Equal(t, EventOther, Classify("charge.refunded"))
	assert.Equal(t, EventOther, Classify(""))
}

func TestParseCheckoutCompleted(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1760000000,
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"payment_intent": "pi_1",
			"payment_status": "paid",
			"amount_total": 20000,
			"currency": "eur",
			"customer_details": {"email": "jane@example.com", "name": "Jane"},
			"metadata": {"request_id": "req-1", "payment_type": "full"}
		}}
	}`))
	require.NoError(t, err)

	assert.Equal(t, EventSucceeded, ev.Kind)
	assert.Equal(t, "req-1", ev.CorrelationKey)
	assert.Equal(t, "pi_1", ev.PaymentID, "intent id is shared by session and intent events")
	assert.EqualValues(t, 20000, ev.Amount)
	assert.Equal(t, "EUR", ev.Currency)
	assert.Equal(t, "jane@example.com", ev.Email)
	assert.True(t, ev.FullPayment)
	assert.Nil(t, ev.Deferred)
}

func TestParseUnpaidSessionIsIgnored(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_2","type":"checkout.session.completed","data":{"object":{
		"id":"cs_2","object":"checkout.session","payment_status":"unpaid","metadata":{"request_id":"req-2"}}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventOther, ev.Kind)
}

func TestParsePaymentFailed(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_3","type":"payment_intent.payment_failed","data":{"object":{
		"id":"pi_3","object":"payment_intent","amount":5000,
		"last_payment_error":{"message":"Your card was declined."},
		"metadata":{"request_id":"req-3"}}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventFailed, ev.Kind)
	assert.Equal(t, "pi_3", ev.PaymentID)
	assert.Equal(t, "Your card was declined.", ev.FailureReason)
	assert.False(t, ev.FullPayment)
}

func TestParseDeferredBooking(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_4","type":"payment_intent.succeeded","data":{"object":{
		"id":"pi_4","object":"payment_intent","amount_received":15000,"currency":"eur","receipt_email":"buyer@example.com",
		"metadata":{"type":"deferred_booking","slot_id":"slot-9","customer_name":"Sam",
		"scheduled_date":"2026-11-05","scheduled_time":"14:00"}}}}`))
	require.NoError(t, err)

	require.NotNil(t, ev.Deferred)
	assert.Equal(t, "slot-9", ev.Deferred.SlotID)
	assert.Equal(t, "Sam", ev.Deferred.CustomerName)
	assert.Equal(t, "buyer@example.com", ev.Deferred.CustomerEmail)
	assert.Equal(t, "2026-11-05", ev.Deferred.ScheduledDate)
	assert.Empty(t, ev.CorrelationKey)
	assert.EqualValues(t, 15000, ev.Amount)
}

func TestParseRejectsBadPayloads(t *testing.T) {
	_, err := ParseEvent([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = ParseEvent([]byte(`{"type":"payment_intent.succeeded"}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = ParseEvent([]byte(`{"id":"evt_5","type":"payment_intent.succeeded"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParseOtherSkipsObject(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_6","type":"customer.created","data":{"object":"garbage"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventOther, ev.Kind)
}

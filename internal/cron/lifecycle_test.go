package cron

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylink/internal/email"
	"paylink/internal/models"
	"paylink/internal/payment"
	"paylink/internal/repository"
	"paylink/internal/testutil"
	"paylink/internal/webhook"
)

// A record reminded once, then paid, gets no further mail from later sweeps.
func TestReminderThenPaymentThenQuietSweeps(t *testing.T) {
	const secret = "whsec_test"
	f := newSweepFixture(t)
	issued := sweepNow
	testutil.SeedRecord(t, f.db, testutil.PendingRecord("req-1", issued))

	reconciler := webhook.NewReconciler(webhook.Deps{
		Records:  repository.NewPaymentRecordRepository(f.db),
		Events:   repository.NewWebhookEventRepository(f.db),
		Gateway:  f.gateway,
		Mailer:   f.mailer,
		Renderer: email.NewRenderer("Studio"),
		Clock:    f.clock,
		Logger:   testutil.Logger(),
	}, secret, 5*time.Minute)

	// T0+3d: first reminder.
	f.clock.Advance(3 * day)
	summary, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Reminder1Sent)

	// T0+3d+1h: the customer pays.
	f.clock.Advance(time.Hour)
	payload, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": map[string]any{
			"id":             "cs_1",
			"object":         "checkout.session",
			"payment_intent": "pi_1",
			"payment_status": "paid",
			"amount_total":   20000,
			"currency":       "eur",
			"metadata":       map[string]any{"request_id": "req-1"},
		}},
	})
	require.NoError(t, err)
	res, err := reconciler.Handle(context.Background(), payload, payment.SignHeader(payload, secret, f.clock.Now()))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeProcessed, res.Outcome)

	// T0+10d: nothing left to do.
	f.clock.Set(issued.Add(10 * day))
	summary, err = f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Reminder1Sent)
	assert.Zero(t, summary.Reminder2Sent)
	assert.Zero(t, summary.AutoCanceled)
	assert.Zero(t, f.gateway.DeactivatedCount())

	rec := testutil.Reload(t, f.db, "req-1")
	assert.Equal(t, models.StatusDepositPaid, rec.Status)
	assert.NotNil(t, rec.Reminder1SentAt)
	assert.Nil(t, rec.Reminder2SentAt)
	assert.Nil(t, rec.AutoCanceledAt)

	sent := f.mailer.SentTo("req-1@example.com")
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Subject, "Payment received")
}

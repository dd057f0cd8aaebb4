package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylink/internal/apperr"
	"paylink/internal/models"
	"paylink/internal/payment"
	"paylink/internal/testutil"
)

func TestReconcileSessionAppliesMissedPayment(t *testing.T) {
	f := newFixture(t)
	testutil.SeedRecord(t, f.db, testutil.PendingRecord("req-1", now.Add(-time.Hour)))
	f.gateway.Sessions["plink_req-1"] = &payment.SessionStatus{SessionID: "cs_1", Paid: true, Amount: 20000}

	res, err := f.reconciler.ReconcileSession(context.Background(), "req-1")
	require.NoError(t, err)
	assert.True(t, res.Transitioned)
	assert.Equal(t, models.StatusDepositPaid, res.Record.Status)

	rec := testutil.Reload(t, f.db, "req-1")
	assert.Equal(t, models.StatusDepositPaid, rec.Status)
	assert.EqualValues(t, 1, testutil.CountActivity(t, f.db, "req-1", models.ActionReconciledManually))
	assert.Equal(t, 1, f.mailer.Count())

	// The webhook arriving afterwards changes nothing.
	assert.Equal(t, models.OutcomeNoop, f.deliver(t, intentSucceeded(t, "evt_late", "req-1")).Outcome)

	res, err = f.reconciler.ReconcileSession(context.Background(), "req-1")
	require.NoError(t, err)
	assert.False(t, res.Transitioned)
	assert.Equal(t, 1, f.mailer.Count())
}

func TestReconcileSessionUnpaid(t *testing.T) {
	f := newFixture(t)
	testutil.SeedRecord(t, f.db, testutil.PendingRecord("req-1", now.Add(-time.Hour)))
	f.gateway.Sessions["plink_req-1"] = &payment.SessionStatus{}

	res, err := f.reconciler.ReconcileSession(context.Background(), "req-1")
	require.NoError(t, err)
	assert.False(t, res.Transitioned)
	assert.Equal(t, models.StatusPending, testutil.Reload(t, f.db, "req-1").Status)
}

func TestReconcileSessionErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.reconciler.ReconcileSession(context.Background(), "missing")
	assert.True(t, apperr.IsNotFound(err))

	rec := testutil.PendingRecord("nolink", now)
	rec.LinkReference = ""
	testutil.SeedRecord(t, f.db, rec)
	_, err = f.reconciler.ReconcileSession(context.Background(), "nolink")
	assert.True(t, apperr.IsValidation(err))

	testutil.SeedRecord(t, f.db, testutil.PendingRecord("req-2", now))
	_, err = f.reconciler.ReconcileSession(context.Background(), "req-2")
	assert.True(t, apperr.IsGateway(err))
}

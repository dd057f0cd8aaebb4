package links

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylink/internal/apperr"
	"paylink/internal/clock"
	"paylink/internal/email"
	"paylink/internal/models"
	"paylink/internal/payment"
	"paylink/internal/repository"
	"paylink/internal/testutil"
)

var now = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fixture struct {
	service *Service
	gateway *testutil.FakeGateway
	mailer  *testutil.FakeSender
	records *repository.PaymentRecordRepository
	appts   *repository.AppointmentRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		gateway: testutil.NewFakeGateway(),
		mailer:  testutil.NewFakeSender(),
		records: repository.NewPaymentRecordRepository(db),
		appts:   repository.NewAppointmentRepository(db),
	}
	f.service = NewService(Deps{
		Records:      f.records,
		Appointments: f.appts,
		Activity:     repository.NewActivityLogRepository(db),
		Gateway:      f.gateway,
		Mailer:       f.mailer,
		Renderer:     email.NewRenderer("Studio"),
		Clock:        clock.NewFakeClock(now),
		Logger:       testutil.Logger(),

		CheckoutSuccessURL: "https://example.com/ok",
		CheckoutCancelURL:  "https://example.com/no",
	}, "EUR")
	return f
}

func validRequest() IssueRequest {
	return IssueRequest{
		CorrelationID: "req-1",
		Email:         "jane@example.com",
		CustomerName:  "Jane",
		Amount:        20000,
		ScheduledDate: "2026-11-02",
		ScheduledTime: "10:30",
	}
}

func TestIssueCreatesPendingRecord(t *testing.T) {
	f := newFixture(t)

	resp, err := f.service.Issue(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.CorrelationID)
	assert.Equal(t, "https://buy.stripe.com/test_1", resp.PaymentLink)

	require.Len(t, f.gateway.Issued, 1)
	assert.Equal(t, "req-1", f.gateway.Issued[0].Metadata[payment.MetaRequestID])
	assert.Equal(t, "eur", f.gateway.Issued[0].Currency)
	assert.EqualValues(t, 20000, f.gateway.Issued[0].Amount)

	rec, err := f.records.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.Equal(t, "plink_test_1", rec.LinkReference)
	require.NotNil(t, rec.LinkIssuedAt)
	assert.True(t, rec.LinkIssuedAt.Equal(now))
	assert.True(t, rec.RemindersEnabled)

	sent := f.mailer.SentTo("jane@example.com")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].HTML, "https://buy.stripe.com/test_1")
}

func TestIssueValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		edit  func(*IssueRequest)
		field string
	}{
		{name: "missing correlation id", edit: func(r *IssueRequest) { r.CorrelationID = "" }, field: "correlation_id"},
		{name: "missing email", edit: func(r *IssueRequest) { r.Email = "" }, field: "email"},
		{name: "bad email", edit: func(r *IssueRequest) { r.Email = "not-an-email" }, field: "email"},
		{name: "missing name", edit: func(r *IssueRequest) { r.CustomerName = "" }, field: "customer_name"},
		{name: "zero amount", edit: func(r *IssueRequest) { r.Amount = 0 }, field: "amount"},
		{name: "missing date", edit: func(r *IssueRequest) { r.ScheduledDate = "" }, field: "scheduled_date"},
		{name: "bad date", edit: func(r *IssueRequest) { r.ScheduledDate = "02/11/2026" }, field: "scheduled_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.edit(&req)
			_, err := f.service.Issue(context.Background(), req)

			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
	assert.Empty(t, f.gateway.Issued, "invalid requests never reach the gateway")
}

func TestIssueRejectsDuplicateCorrelationID(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Issue(context.Background(), validRequest())
	require.NoError(t, err)

	_, err = f.service.Issue(context.Background(), validRequest())
	assert.True(t, apperr.IsValidation(err))
	assert.Len(t, f.gateway.Issued, 1)
}

func TestIssueGatewayErrorIsReturned(t *testing.T) {
	f := newFixture(t)
	f.gateway.IssueErr = &apperr.GatewayError{Code: "card_declined", Message: "nope"}

	_, err := f.service.Issue(context.Background(), validRequest())
	assert.True(t, apperr.IsGateway(err))

	_, err = f.records.FindByID(context.Background(), "req-1")
	assert.True(t, apperr.IsNotFound(err))
}

func TestIssueSurvivesEmailFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.Fail("jane@example.com")

	resp, err := f.service.Issue(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.PaymentLink)
}

func TestIssueWithRemindersDisabled(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	off := false
	req.RemindersEnabled = &off

	_, err := f.service.Issue(context.Background(), req)
	require.NoError(t, err)

	rec, err := f.records.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.False(t, rec.RemindersEnabled)
}

func TestStatusMergesSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Issue(context.Background(), validRequest())
	require.NoError(t, err)

	view, err := f.service.Status(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, view.Status)
	assert.Nil(t, view.Session)
	assert.NotEmpty(t, view.SessionError)
	require.NotNil(t, view.Appointment)
	assert.Equal(t, models.AppointmentAwaitingPayment, view.Appointment.Status)
	assert.Equal(t, "2026-11-02", view.Appointment.ScheduledDate)
	require.Len(t, view.Activity, 1)
	assert.Equal(t, models.ActionPaymentLinkSent, view.Activity[0].Action)

	f.gateway.Sessions["plink_test_1"] = &payment.SessionStatus{SessionID: "cs_1", Paid: true}
	view, err = f.service.Status(context.Background(), "req-1")
	require.NoError(t, err)
	require.NotNil(t, view.Session)
	assert.True(t, view.Session.Paid)

	_, err = f.service.Status(context.Background(), "missing")
	assert.True(t, apperr.IsNotFound(err))
}

package links

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylink/internal/apperr"
	"paylink/internal/models"
	"paylink/internal/payment"
)

func checkoutRequest() CheckoutRequest {
	return CheckoutRequest{
		CustomerName:  "Sam",
		Email:         "sam@example.com",
		ScheduledDate: "2026-11-06",
		ScheduledTime: "14:00",
	}
}

func TestStartCheckoutCarriesBookingInMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.appts.CreateSlot(ctx, &models.Slot{ID: "slot-1", Title: "Friday 14:00", Price: 15000, Status: models.SlotAvailable}))

	checkout, err := f.service.StartCheckout(ctx, "slot-1", checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", checkout.SessionID)
	assert.NotEmpty(t, checkout.URL)

	require.Len(t, f.gateway.Checkouts, 1)
	req := f.gateway.Checkouts[0]
	assert.EqualValues(t, 15000, req.Amount)
	assert.Equal(t, "eur", req.Currency)
	assert.Equal(t, "Friday 14:00", req.Description)
	assert.Equal(t, "https://example.com/ok", req.SuccessURL)
	assert.Equal(t, "https://example.com/no", req.CancelURL)
	assert.Equal(t, map[string]string{
		payment.MetaType:          payment.TypeDeferredBooking,
		payment.MetaSlotID:        "slot-1",
		payment.MetaCustomerName:  "Sam",
		payment.MetaCustomerEmail: "sam@example.com",
		payment.MetaScheduledDate: "2026-11-06",
		payment.MetaScheduledTime: "14:00",
	}, req.Metadata)

	// Nothing is booked until the session completes.
	slot, err := f.appts.FindSlot(ctx, "slot-1")
	require.NoError(t, err)
	assert.Equal(t, models.SlotAvailable, slot.Status)
}

func TestStartCheckoutRejectsSoldSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.appts.CreateSlot(ctx, &models.Slot{ID: "slot-1", Title: "Friday", Price: 15000, Status: models.SlotSold}))

	_, err := f.service.StartCheckout(ctx, "slot-1", checkoutRequest())
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "slot_id")
	assert.Empty(t, f.gateway.Checkouts)
}

func TestStartCheckoutUnknownSlot(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.StartCheckout(context.Background(), "missing", checkoutRequest())
	assert.True(t, apperr.IsNotFound(err))
	assert.Empty(t, f.gateway.Checkouts)
}

func TestStartCheckoutValidatesRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.StartCheckout(context.Background(), "slot-1", CheckoutRequest{Email: "nope"})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "customer_name")
	assert.Contains(t, verr.Fields, "scheduled_date")
}

package links

import (
	"context"

	"go.uber.org/zap"

	"paylink/internal/apperr"
	"paylink/internal/models"
	"paylink/internal/payment"
	"paylink/internal/pkg/utils"
)

// CheckoutRequest opens a hosted checkout for one slot. Nothing is stored
// until the gateway reports the completed session.
type CheckoutRequest struct {
	CustomerName  string `json:"customer_name" validate:"required,max=255"`
	Email         string `json:"email" validate:"required,email"`
	ScheduledDate string `json:"scheduled_date" validate:"required,datetime=2006-01-02"`
	ScheduledTime string `json:"scheduled_time" validate:"omitempty,datetime=15:04"`
}

// StartCheckout creates a checkout session for an available slot. The slot
// and booking details travel in the session metadata so the webhook can
// create the booking once payment completes.
func (s *Service) StartCheckout(ctx context.Context, slotID string, req CheckoutRequest) (*payment.Checkout, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	slot, err := s.appointments.FindSlot(ctx, slotID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, err
		}
		return nil, apperr.Transient("find slot", err)
	}
	if slot.Status != models.SlotAvailable {
		return nil, apperr.NewValidation("slot_id", "slot is no longer available")
	}

	checkout, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		Amount:        slot.Price,
		Currency:      s.currency,
		Description:   slot.Title,
		CustomerEmail: req.Email,
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
		Metadata: map[string]string{
			payment.MetaType:          payment.TypeDeferredBooking,
			payment.MetaSlotID:        slot.ID,
			payment.MetaCustomerName:  req.CustomerName,
			payment.MetaCustomerEmail: req.Email,
			payment.MetaScheduledDate: req.ScheduledDate,
			payment.MetaScheduledTime: req.ScheduledTime,
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Checkout session created",
		zap.String("slot_id", slot.ID),
		zap.String("session_id", checkout.SessionID),
		zap.String("email", utils.MaskEmail(req.Email)),
	)
	return checkout, nil
}

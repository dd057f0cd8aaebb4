package webhook

import (
	"context"

	"go.uber.org/zap"

	"paylink/internal/apperr"
	"paylink/internal/models"
	"paylink/internal/payment"
	"paylink/internal/repository"
)

// ReconcileResult is the outcome of a manual reconciliation.
type ReconcileResult struct {
	Record       *models.PaymentRecord  `json:"record"`
	Session      *payment.SessionStatus `json:"session"`
	Transitioned bool                   `json:"transitioned"`
}

// ReconcileSession asks the gateway whether a record's link was paid and, if
// so, applies the same guarded transition a webhook would. It covers missed
// or lost webhook deliveries.
func (r *Reconciler) ReconcileSession(ctx context.Context, recordID string) (*ReconcileResult, error) {
	ctx, cancel := detach(ctx)
	defer cancel()

	rec, err := r.records.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.LinkReference == "" {
		return nil, apperr.NewValidation("link_reference", "record has no payment link")
	}

	session, err := r.gateway.RetrieveSession(ctx, rec.LinkReference)
	if err != nil {
		return nil, err
	}

	res := &ReconcileResult{Record: rec, Session: session}
	if !session.Paid || rec.IsTerminal() {
		return res, nil
	}

	now := r.clock.Now()
	won, err := r.records.MarkSucceeded(ctx, rec.ID, models.StatusDepositPaid, session.SessionID, now, repository.Activity{
		Action: models.ActionReconciledManually,
		Details: map[string]interface{}{
			"session_id": session.SessionID,
			"amount":     session.Amount,
		},
	})
	if err != nil {
		return nil, apperr.Transient("mark payment succeeded", err)
	}
	if won {
		rec.Status = models.StatusDepositPaid
		rec.PaidAt = &now
		r.logger.Info("Payment reconciled from gateway session",
			zap.String("record_id", rec.ID),
			zap.String("session_id", session.SessionID),
		)
		r.afterPaid(ctx, rec, session.Email)
	}
	res.Transitioned = won
	return res, nil
}

package webhook

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paylink/internal/apperr"
	"paylink/internal/clock"
	"paylink/internal/email"
	"paylink/internal/events"
	"paylink/internal/metrics"
	"paylink/internal/models"
	"paylink/internal/payment"
	"paylink/internal/pkg/utils"
	"paylink/internal/repository"
)

// processTimeout bounds one delivery. Processing is detached from the
// caller's context: a dropped connection must not abort a transition whose
// email already went out.
const processTimeout = 30 * time.Second

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrMissingSecret    = errors.New("webhook secret not configured")
)

// Result describes how a delivery was handled.
type Result struct {
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Outcome   string `json:"outcome"`
	RecordID  string `json:"record_id,omitempty"`
}

// Deps bundles the collaborators of a Reconciler.
type Deps struct {
	Records   *repository.PaymentRecordRepository
	Events    *repository.WebhookEventRepository
	Gateway   payment.Gateway
	Mailer    email.Sender
	Renderer  *email.Renderer
	Publisher events.Publisher
	Deduper   EventDeduper
	Clock     clock.Clock
	Logger    *zap.Logger
}

// Reconciler applies authenticated gateway events to payment records. Each
// logical payment produces at most one transition, one activity entry and one
// confirmation email, however often the gateway delivers it.
type Reconciler struct {
	records   *repository.PaymentRecordRepository
	events    *repository.WebhookEventRepository
	gateway   payment.Gateway
	mailer    email.Sender
	renderer  *email.Renderer
	publisher events.Publisher
	deduper   EventDeduper
	clock     clock.Clock
	secret    string
	tolerance time.Duration
	logger    *zap.Logger
}

func NewReconciler(deps Deps, secret string, tolerance time.Duration) *Reconciler {
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if deps.Deduper == nil {
		deps.Deduper = NewEventDeduper(nil, 0)
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &Reconciler{
		records:   deps.Records,
		events:    deps.Events,
		gateway:   deps.Gateway,
		mailer:    deps.Mailer,
		renderer:  deps.Renderer,
		publisher: deps.Publisher,
		deduper:   deps.Deduper,
		clock:     deps.Clock,
		secret:    secret,
		tolerance: tolerance,
		logger:    deps.Logger.Named("webhook"),
	}
}

// Handle verifies and applies one delivery. Only authentication problems are
// returned as errors; everything past verification is reported in Result so
// the caller can acknowledge the delivery.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) (*Result, error) {
	if r.secret == "" {
		return nil, ErrMissingSecret
	}
	if signature == "" {
		return nil, ErrMissingSignature
	}
	if err := payment.VerifySignature(payload, signature, r.secret, r.tolerance, r.clock.Now()); err != nil {
		metrics.WebhookEvents.WithLabelValues("signature_invalid").Inc()
		return nil, err
	}

	ctx, cancel := detach(ctx)
	defer cancel()

	res := r.handleVerified(ctx, payload)
	metrics.WebhookEvents.WithLabelValues(res.Outcome).Inc()
	return res, nil
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), processTimeout)
}

func (r *Reconciler) handleVerified(ctx context.Context, payload []byte) *Result {
	ev, err := payment.ParseEvent(payload)
	if err != nil {
		r.logger.Warn("Undecodable webhook payload", zap.Error(err))
		return &Result{Outcome: models.OutcomeError}
	}

	res := &Result{EventID: ev.ID, EventType: ev.Type}
	if ev.Kind == payment.EventOther {
		res.Outcome = models.OutcomeIgnored
		return res
	}

	provider := r.gateway.Name()
	if r.alreadyProcessed(ctx, provider, ev.ID) {
		res.Outcome = models.OutcomeDuplicate
		return res
	}

	first, err := r.events.Claim(ctx, &models.WebhookEvent{
		Provider:       provider,
		EventID:        ev.ID,
		EventType:      ev.Type,
		CorrelationKey: ev.CorrelationKey,
	})
	if err != nil {
		// The status compare-and-set still guards the transition.
		r.logger.Error("Failed to record webhook event", zap.String("event_id", ev.ID), zap.Error(err))
		first = true
	}
	if !first {
		res.Outcome = models.OutcomeDuplicate
		return res
	}

	outcome, recordID, applyErr := r.apply(ctx, ev)
	res.Outcome = outcome
	res.RecordID = recordID

	if applyErr != nil {
		r.logger.Error("Webhook processing failed",
			zap.String("event_id", ev.ID),
			zap.String("event_type", ev.Type),
			zap.String("correlation_key", ev.CorrelationKey),
			zap.Error(applyErr),
		)
		if err := r.events.MarkAttemptFailed(ctx, provider, ev.ID, applyErr.Error()); err != nil {
			r.logger.Error("Failed to record webhook failure", zap.String("event_id", ev.ID), zap.Error(err))
		}
		return res
	}

	if err := r.events.MarkProcessed(ctx, provider, ev.ID, outcome, "", r.clock.Now()); err != nil {
		r.logger.Error("Failed to mark webhook event processed", zap.String("event_id", ev.ID), zap.Error(err))
		return res
	}
	if err := r.deduper.Remember(ctx, ev.ID); err != nil {
		r.logger.Warn("Failed to cache processed event id", zap.String("event_id", ev.ID), zap.Error(err))
	}
	return res
}

// alreadyProcessed checks the dedup cache and confirms a hit against the
// ledger. A cached id without a processed ledger row is handled again.
func (r *Reconciler) alreadyProcessed(ctx context.Context, provider, eventID string) bool {
	hit, err := r.deduper.Seen(ctx, eventID)
	if err != nil {
		r.logger.Warn("Event dedup unavailable", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	if !hit {
		return false
	}
	row, err := r.events.FindByEventID(ctx, provider, eventID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Warn("Ledger lookup failed", zap.String("event_id", eventID), zap.Error(err))
		}
		return false
	}
	return row.ProcessedAt != nil
}

// apply routes an event to its transition. An existing record matching the
// correlation key always wins over a deferred-creation block.
func (r *Reconciler) apply(ctx context.Context, ev *payment.Event) (string, string, error) {
	var rec *models.PaymentRecord
	if ev.CorrelationKey != "" {
		found, err := r.records.FindByID(ctx, ev.CorrelationKey)
		switch {
		case err == nil:
			rec = found
		case apperr.IsNotFound(err):
		default:
			return models.OutcomeError, ev.CorrelationKey, apperr.Transient("load payment record", err)
		}
	}

	switch ev.Kind {
	case payment.EventSucceeded:
		switch {
		case rec != nil:
			return r.applySucceeded(ctx, rec, ev)
		case ev.Deferred != nil:
			return r.applyDeferred(ctx, ev)
		}
	case payment.EventFailed:
		if rec != nil {
			return r.applyFailed(ctx, rec, ev)
		}
	}

	if ev.CorrelationKey == "" {
		r.logger.Warn("Unroutable webhook event", zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
		return models.OutcomeUnroutable, "", nil
	}
	r.logger.Warn("Webhook event for unknown record",
		zap.String("event_id", ev.ID),
		zap.String("correlation_key", ev.CorrelationKey),
	)
	return models.OutcomeNotFound, ev.CorrelationKey, nil
}

func (r *Reconciler) applySucceeded(ctx context.Context, rec *models.PaymentRecord, ev *payment.Event) (string, string, error) {
	if rec.IsTerminal() {
		if !rec.IsPaid() {
			r.logger.Warn("Payment received for closed record",
				zap.String("record_id", rec.ID),
				zap.String("status", rec.Status),
				zap.String("payment_id", ev.PaymentID),
			)
		}
		return models.OutcomeNoop, rec.ID, nil
	}

	status := models.StatusDepositPaid
	if ev.FullPayment {
		status = models.StatusPaid
	}
	now := r.clock.Now()
	won, err := r.records.MarkSucceeded(ctx, rec.ID, status, ev.PaymentID, now, repository.Activity{
		Action: models.ActionPaymentReceived,
		Details: map[string]interface{}{
			"payment_id": ev.PaymentID,
			"amount":     ev.Amount,
			"event_type": ev.Type,
			"event_id":   ev.ID,
		},
	})
	if err != nil {
		return models.OutcomeError, rec.ID, apperr.Transient("mark payment succeeded", err)
	}
	if !won {
		return models.OutcomeNoop, rec.ID, nil
	}

	rec.Status = status
	rec.PaidAt = &now
	r.logger.Info("Payment received",
		zap.String("record_id", rec.ID),
		zap.String("status", status),
		zap.String("payment_id", ev.PaymentID),
	)
	r.afterPaid(ctx, rec, ev.Email)
	return models.OutcomeProcessed, rec.ID, nil
}

func (r *Reconciler) applyDeferred(ctx context.Context, ev *payment.Event) (string, string, error) {
	d := ev.Deferred
	now := r.clock.Now()

	paymentID := ev.PaymentID
	if paymentID == "" {
		paymentID = ev.ID
	}
	status := models.StatusDepositPaid
	if ev.FullPayment {
		status = models.StatusPaid
	}

	rec := &models.PaymentRecord{
		ID:                utils.GenerateUUID(),
		Status:            status,
		Amount:            ev.Amount,
		Currency:          ev.Currency,
		CustomerEmail:     d.CustomerEmail,
		CustomerName:      d.CustomerName,
		ScheduledDate:     d.ScheduledDate,
		ScheduledTime:     d.ScheduledTime,
		RemindersEnabled:  false,
		PaidAt:            &now,
		ExternalPaymentID: &paymentID,
	}
	appt := &models.Appointment{
		ID:              utils.GenerateUUID(),
		PaymentRecordID: rec.ID,
		CustomerName:    d.CustomerName,
		CustomerEmail:   d.CustomerEmail,
		ScheduledDate:   d.ScheduledDate,
		ScheduledTime:   d.ScheduledTime,
		Status:          models.AppointmentConfirmed,
	}
	if d.SlotID != "" {
		slotID := d.SlotID
		appt.SlotID = &slotID
	}

	res, err := r.records.CreateDeferred(ctx, rec, appt, repository.Activity{
		Action: models.ActionDeferredBookingCreated,
		Details: map[string]interface{}{
			"payment_id": paymentID,
			"amount":     ev.Amount,
			"event_type": ev.Type,
			"slot_id":    d.SlotID,
		},
	})
	if err != nil {
		return models.OutcomeError, "", apperr.Transient("create deferred booking", err)
	}
	if !res.Created {
		return models.OutcomeNoop, "", nil
	}
	if d.SlotID != "" && !res.SlotConsumed {
		r.logger.Warn("Deferred booking slot was not available",
			zap.String("record_id", rec.ID),
			zap.String("slot_id", d.SlotID),
		)
	}

	r.logger.Info("Deferred booking created", zap.String("record_id", rec.ID), zap.String("slot_id", d.SlotID))
	r.afterPaid(ctx, rec, ev.Email)
	return models.OutcomeProcessed, rec.ID, nil
}

func (r *Reconciler) applyFailed(ctx context.Context, rec *models.PaymentRecord, ev *payment.Event) (string, string, error) {
	if rec.IsTerminal() {
		return models.OutcomeNoop, rec.ID, nil
	}

	reason := ev.FailureReason
	if reason == "" {
		reason = "unknown"
	}
	now := r.clock.Now()
	won, err := r.records.MarkFailed(ctx, rec.ID, reason, now, repository.Activity{
		Action: models.ActionPaymentFailed,
		Details: map[string]interface{}{
			"payment_id": ev.PaymentID,
			"error":      reason,
			"event_type": ev.Type,
			"event_id":   ev.ID,
		},
	})
	if err != nil {
		return models.OutcomeError, rec.ID, apperr.Transient("mark payment failed", err)
	}
	if !won {
		return models.OutcomeNoop, rec.ID, nil
	}

	r.logger.Info("Payment failed", zap.String("record_id", rec.ID), zap.String("reason", reason))
	r.publish(ctx, events.KeyPaymentFailed, rec, models.StatusFailed, now)
	return models.OutcomeProcessed, rec.ID, nil
}

// afterPaid runs the side effects owned by the caller that won the paid
// transition: one confirmation email and one published event.
func (r *Reconciler) afterPaid(ctx context.Context, rec *models.PaymentRecord, fallbackEmail string) {
	now := r.clock.Now()
	if rec.CustomerEmail == "" {
		rec.CustomerEmail = fallbackEmail
	}
	if err := r.sendConfirmation(ctx, rec); err != nil {
		r.logger.Error("Confirmation email failed", zap.String("record_id", rec.ID), zap.Error(err))
	} else if rec.CustomerEmail != "" {
		if err := r.records.MarkConfirmationSent(ctx, rec.ID, now); err != nil {
			r.logger.Error("Failed to stamp confirmation", zap.String("record_id", rec.ID), zap.Error(err))
		}
	}
	r.publish(ctx, events.KeyPaymentPaid, rec, rec.Status, now)
}

func (r *Reconciler) sendConfirmation(ctx context.Context, rec *models.PaymentRecord) error {
	if rec.CustomerEmail == "" || r.mailer == nil || r.renderer == nil {
		return nil
	}
	msg, err := r.renderer.Render(email.KindConfirmation, rec)
	if err != nil {
		return err
	}
	return apperr.Transient("send confirmation email", r.mailer.Send(ctx, msg))
}

func (r *Reconciler) publish(ctx context.Context, key string, rec *models.PaymentRecord, status string, at time.Time) {
	err := r.publisher.Publish(ctx, key, events.PaymentEvent{
		PaymentRecordID: rec.ID,
		Status:          status,
		Amount:          rec.Amount,
		Currency:        rec.Currency,
		OccurredAt:      at,
	})
	if err != nil {
		r.logger.Warn("Failed to publish payment event", zap.String("key", key), zap.String("record_id", rec.ID), zap.Error(err))
	}
}

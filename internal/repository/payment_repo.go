package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"paylink/internal/apperr"
	"paylink/internal/models"
)

// errNotApplied rolls back a transaction whose guarded update matched no row.
var errNotApplied = errors.New("transition not applied")

// PaymentRecordRepository handles payment record persistence. Every state
// change is a conditional update on the current status, so concurrent callers
// cannot apply the same transition twice.
type PaymentRecordRepository struct {
	db *gorm.DB
}

func NewPaymentRecordRepository(db *gorm.DB) *PaymentRecordRepository {
	return &PaymentRecordRepository{db: db}
}

// FindByID returns a record or a NotFoundError.
func (r *PaymentRecordRepository) FindByID(ctx context.Context, id string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Kind: "payment record", ID: id}
		}
		return nil, err
	}
	return &rec, nil
}

// FindByLinkReference returns the record holding a gateway link reference.
func (r *PaymentRecordRepository) FindByLinkReference(ctx context.Context, ref string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	if err := r.db.WithContext(ctx).Where("link_reference = ?", ref).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Kind: "payment link", ID: ref}
		}
		return nil, err
	}
	return &rec, nil
}

// CreateWithAppointment stores a freshly issued record, its appointment and the
// issuance log entry in one transaction.
func (r *PaymentRecordRepository) CreateWithAppointment(ctx context.Context, rec *models.PaymentRecord, appt *models.Appointment, act Activity, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		if appt != nil {
			if err := tx.Create(appt).Error; err != nil {
				return err
			}
		}
		return insertActivity(tx, rec.ID, act, at)
	})
}

// ListReminderCandidates returns pending records the reminder sweep may act on.
func (r *PaymentRecordRepository) ListReminderCandidates(ctx context.Context) ([]models.PaymentRecord, error) {
	var recs []models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND auto_canceled_at IS NULL AND reminders_enabled = ?", models.StatusPending, true).
		Where("link_reference <> '' AND link_issued_at IS NOT NULL AND customer_email <> ''").
		Order("link_issued_at ASC").
		Find(&recs).Error
	return recs, err
}

// MarkSucceeded moves a pending record to status (paid or deposit_paid),
// confirms its appointment and logs the transition. It reports false when the
// record was no longer pending.
func (r *PaymentRecordRepository) MarkSucceeded(ctx context.Context, id, status, paymentID string, paidAt time.Time, act Activity) (bool, error) {
	updates := map[string]interface{}{
		"status":  status,
		"paid_at": paidAt,
	}
	if paymentID != "" {
		updates["external_payment_id"] = paymentID
	}
	return r.guarded(ctx, id, updates, paidAt, act, func(tx *gorm.DB) error {
		return tx.Model(&models.Appointment{}).
			Where("payment_record_id = ? AND status = ?", id, models.AppointmentAwaitingPayment).
			Update("status", models.AppointmentConfirmed).Error
	})
}

// MarkFailed moves a pending record to failed.
func (r *PaymentRecordRepository) MarkFailed(ctx context.Context, id, reason string, at time.Time, act Activity) (bool, error) {
	return r.guarded(ctx, id, map[string]interface{}{
		"status":         models.StatusFailed,
		"failure_reason": reason,
	}, at, act, nil)
}

// StampReminder1 records the first reminder once.
func (r *PaymentRecordRepository) StampReminder1(ctx context.Context, id string, at time.Time, act Activity) (bool, error) {
	return r.guardedWhere(ctx, id, "reminder1_sent_at IS NULL", map[string]interface{}{
		"reminder1_sent_at": at,
	}, at, act, nil)
}

// StampReminder2 records the escalation reminder once. A record that skipped
// the first tier gets reminder1_sent_at filled with the same instant.
func (r *PaymentRecordRepository) StampReminder2(ctx context.Context, id string, at time.Time, act Activity) (bool, error) {
	return r.guardedWhere(ctx, id, "reminder2_sent_at IS NULL", map[string]interface{}{
		"reminder2_sent_at": at,
		"reminder1_sent_at": gorm.Expr("COALESCE(reminder1_sent_at, ?)", at),
	}, at, act, nil)
}

// AutoCancel cancels a pending record and its appointment.
func (r *PaymentRecordRepository) AutoCancel(ctx context.Context, id string, at time.Time, act Activity) (bool, error) {
	return r.guarded(ctx, id, map[string]interface{}{
		"status":           models.StatusCanceled,
		"auto_canceled_at": at,
	}, at, act, func(tx *gorm.DB) error {
		return tx.Model(&models.Appointment{}).
			Where("payment_record_id = ? AND status <> ?", id, models.AppointmentCanceled).
			Updates(map[string]interface{}{
				"status":        models.AppointmentCanceled,
				"cancel_reason": models.CancelReasonNoPayment,
				"canceled_at":   at,
			}).Error
	})
}

// MarkConfirmationSent stamps the confirmation email delivery once.
func (r *PaymentRecordRepository) MarkConfirmationSent(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.PaymentRecord{}).
		Where("id = ? AND confirmation_sent_at IS NULL", id).
		Update("confirmation_sent_at", at).Error
}

// DeferredResult reports what CreateDeferred did.
type DeferredResult struct {
	Created      bool
	SlotConsumed bool
}

// CreateDeferred creates a record that only comes into existence once paid,
// together with its appointment, and consumes the slot it was sold from. A
// record already holding the external payment id makes this a no-op.
func (r *PaymentRecordRepository) CreateDeferred(ctx context.Context, rec *models.PaymentRecord, appt *models.Appointment, act Activity) (*DeferredResult, error) {
	res := &DeferredResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rec.ExternalPaymentID != nil {
			var count int64
			if err := tx.Model(&models.PaymentRecord{}).
				Where("external_payment_id = ?", *rec.ExternalPaymentID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}
		}

		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		if err := tx.Create(appt).Error; err != nil {
			return err
		}

		if appt.SlotID != nil && *appt.SlotID != "" {
			upd := tx.Model(&models.Slot{}).
				Where("id = ? AND status = ?", *appt.SlotID, models.SlotAvailable).
				Updates(map[string]interface{}{
					"status":         models.SlotSold,
					"sold_at":        rec.PaidAt,
					"appointment_id": appt.ID,
				})
			if upd.Error != nil {
				return upd.Error
			}
			res.SlotConsumed = upd.RowsAffected > 0
		}

		if act.Details == nil {
			act.Details = map[string]interface{}{}
		}
		act.Details["slot_consumed"] = res.SlotConsumed
		if err := insertActivity(tx, rec.ID, act, *rec.PaidAt); err != nil {
			return err
		}
		res.Created = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *PaymentRecordRepository) guarded(ctx context.Context, id string, updates map[string]interface{}, at time.Time, act Activity, also func(tx *gorm.DB) error) (bool, error) {
	return r.guardedWhere(ctx, id, "", updates, at, act, also)
}

// guardedWhere applies updates only while the record is pending and not
// auto-canceled (plus an optional extra condition), then runs also and
// appends the activity entry in the same transaction.
func (r *PaymentRecordRepository) guardedWhere(ctx context.Context, id, extra string, updates map[string]interface{}, at time.Time, act Activity, also func(tx *gorm.DB) error) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.PaymentRecord{}).
			Where("id = ? AND status = ? AND auto_canceled_at IS NULL", id, models.StatusPending)
		if extra != "" {
			q = q.Where(extra)
		}
		res := q.Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotApplied
		}
		if also != nil {
			if err := also(tx); err != nil {
				return err
			}
		}
		return insertActivity(tx, id, act, at)
	})
	if errors.Is(err, errNotApplied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActorSystem is the actor recorded for every automated transition.
const ActorSystem = "system"

// Activity log actions.
const (
	ActionPaymentLinkSent        = "payment_link_sent"
	ActionPaymentReceived        = "payment_received"
	ActionPaymentFailed          = "payment_failed"
	ActionAutoReminder1          = "auto_reminder_1"
	ActionAutoReminder2          = "auto_reminder_2"
	ActionAutoCanceled           = "auto_canceled"
	ActionDeferredBookingCreated = "deferred_booking_created"
	ActionReconciledManually     = "payment_reconciled_manually"
)

// ActivityLogEntry is an append-only audit row. It is never updated.
type ActivityLogEntry struct {
	ID              uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PaymentRecordID string         `gorm:"column:payment_record_id;size:64;index:idx_activity_logs_record" json:"payment_record_id"`
	Action          string         `gorm:"column:action;size:64;index:idx_activity_logs_action" json:"action"`
	Actor           string         `gorm:"column:actor;size:32" json:"actor"`
	Details         datatypes.JSON `gorm:"column:details" json:"details"`
	CreatedAt       time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (ActivityLogEntry) TableName() string {
	return "activity_logs"
}

package models

import "time"

// Payment record statuses.
const (
	StatusPending     = "pending"
	StatusDepositPaid = "deposit_paid"
	StatusPaid        = "paid"
	StatusFailed      = "failed"
	StatusCanceled    = "canceled"
)

// PaymentRecord tracks one payable booking from link issuance to a terminal state.
type PaymentRecord struct {
	ID                 string     `gorm:"column:id;primaryKey;size:64" json:"id"`
	Status             string     `gorm:"column:status;size:30;index:idx_payment_records_status" json:"status"`
	Amount             int64      `gorm:"column:amount" json:"amount"`
	Currency           string     `gorm:"column:currency;size:8" json:"currency"`
	CustomerEmail      string     `gorm:"column:customer_email;size:255" json:"customer_email"`
	CustomerName       string     `gorm:"column:customer_name;size:255" json:"customer_name"`
	Description        string     `gorm:"column:description;size:500" json:"description"`
	ScheduledDate      string     `gorm:"column:scheduled_date;size:20" json:"scheduled_date"`
	ScheduledTime      string     `gorm:"column:scheduled_time;size:20" json:"scheduled_time"`
	LinkReference      string     `gorm:"column:link_reference;size:255;index:idx_payment_records_link_reference" json:"link_reference"`
	LinkURL            string     `gorm:"column:link_url;size:1000" json:"link_url"`
	LinkIssuedAt       *time.Time `gorm:"column:link_issued_at" json:"link_issued_at"`
	Reminder1SentAt    *time.Time `gorm:"column:reminder1_sent_at" json:"reminder1_sent_at"`
	Reminder2SentAt    *time.Time `gorm:"column:reminder2_sent_at" json:"reminder2_sent_at"`
	AutoCanceledAt     *time.Time `gorm:"column:auto_canceled_at" json:"auto_canceled_at"`
	RemindersEnabled   bool       `gorm:"column:reminders_enabled" json:"reminders_enabled"`
	PaidAt             *time.Time `gorm:"column:paid_at" json:"paid_at"`
	ExternalPaymentID  *string    `gorm:"column:external_payment_id;size:255;uniqueIndex:ux_payment_records_external_payment_id" json:"external_payment_id"`
	FailureReason      string     `gorm:"column:failure_reason;type:text" json:"failure_reason"`
	ConfirmationSentAt *time.Time `gorm:"column:confirmation_sent_at" json:"confirmation_sent_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (PaymentRecord) TableName() string {
	return "payment_records"
}

// IsPaid reports whether the record reached a paid state.
func (p *PaymentRecord) IsPaid() bool {
	return p.Status == StatusPaid || p.Status == StatusDepositPaid
}

// IsTerminal reports whether no further transition may touch the record.
func (p *PaymentRecord) IsTerminal() bool {
	return p.Status != StatusPending || p.AutoCanceledAt != nil
}

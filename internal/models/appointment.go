package models

import "time"

// Appointment statuses.
const (
	AppointmentAwaitingPayment = "awaiting_payment"
	AppointmentConfirmed       = "confirmed"
	AppointmentCanceled        = "canceled"
)

// CancelReasonNoPayment is stored on appointments canceled by the reminder sweep.
const CancelReasonNoPayment = "auto_canceled_no_payment"

// Appointment is the scheduled booking a payment record pays for.
type Appointment struct {
	ID              string     `gorm:"column:id;primaryKey;size:64" json:"id"`
	PaymentRecordID string     `gorm:"column:payment_record_id;size:64;uniqueIndex:ux_appointments_payment_record" json:"payment_record_id"`
	SlotID          *string    `gorm:"column:slot_id;size:64;index" json:"slot_id"`
	CustomerName    string     `gorm:"column:customer_name;size:255" json:"customer_name"`
	CustomerEmail   string     `gorm:"column:customer_email;size:255" json:"customer_email"`
	ScheduledDate   string     `gorm:"column:scheduled_date;size:20" json:"scheduled_date"`
	ScheduledTime   string     `gorm:"column:scheduled_time;size:20" json:"scheduled_time"`
	Status          string     `gorm:"column:status;size:30" json:"status"`
	CancelReason    string     `gorm:"column:cancel_reason;size:100" json:"cancel_reason"`
	CanceledAt      *time.Time `gorm:"column:canceled_at" json:"canceled_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// Slot statuses.
const (
	SlotAvailable = "available"
	SlotSold      = "sold"
)

// Slot is a reservable inventory item sold through the deferred booking flow.
type Slot struct {
	ID            string     `gorm:"column:id;primaryKey;size:64" json:"id"`
	Title         string     `gorm:"column:title;size:255" json:"title"`
	Price         int64      `gorm:"column:price" json:"price"`
	Status        string     `gorm:"column:status;size:20" json:"status"`
	SoldAt        *time.Time `gorm:"column:sold_at" json:"sold_at"`
	AppointmentID *string    `gorm:"column:appointment_id;size:64" json:"appointment_id"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Slot) TableName() string {
	return "slots"
}

package models

import "time"

// Webhook processing outcomes.
const (
	OutcomeProcessed  = "processed"
	OutcomeDuplicate  = "duplicate"
	OutcomeIgnored    = "ignored"
	OutcomeUnroutable = "unroutable"
	OutcomeNotFound   = "not_found"
	OutcomeNoop       = "noop"
	OutcomeError      = "error"
)

// WebhookEvent is the idempotency ledger keyed by the provider's event id.
type WebhookEvent struct {
	ID             uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Provider       string     `gorm:"column:provider;size:20;uniqueIndex:ux_webhook_events_provider_event,priority:1" json:"provider"`
	EventID        string     `gorm:"column:event_id;size:191;uniqueIndex:ux_webhook_events_provider_event,priority:2" json:"event_id"`
	EventType      string     `gorm:"column:event_type;size:100;index" json:"event_type"`
	CorrelationKey string     `gorm:"column:correlation_key;size:64;index" json:"correlation_key"`
	Outcome        string     `gorm:"column:outcome;size:30" json:"outcome"`
	Error          string     `gorm:"column:error;type:text" json:"error"`
	ProcessedAt    *time.Time `gorm:"column:processed_at" json:"processed_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

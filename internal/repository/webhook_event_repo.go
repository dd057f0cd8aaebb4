package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paylink/internal/models"
)

// WebhookEventRepository is the provider event id ledger.
type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Claim registers an event id. It returns true when the event should be
// processed: either it is new, or an earlier delivery never finished.
func (r *WebhookEventRepository) Claim(ctx context.Context, ev *models.WebhookEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var existing models.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND event_id = ?", ev.Provider, ev.EventID).
		First(&existing).Error; err != nil {
		return false, err
	}
	return existing.ProcessedAt == nil, nil
}

// MarkProcessed records the final outcome of an event.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, provider, eventID, outcome, errMsg string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Updates(map[string]interface{}{
			"outcome":      outcome,
			"error":        errMsg,
			"processed_at": at,
		}).Error
}

// MarkAttemptFailed records an error but leaves the event claimable, so a
// redelivery is processed again.
func (r *WebhookEventRepository) MarkAttemptFailed(ctx context.Context, provider, eventID, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Updates(map[string]interface{}{
			"outcome": models.OutcomeError,
			"error":   errMsg,
		}).Error
}

// FindByEventID returns a ledger row.
func (r *WebhookEventRepository) FindByEventID(ctx context.Context, provider, eventID string) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND event_id = ?", provider, eventID).
		First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

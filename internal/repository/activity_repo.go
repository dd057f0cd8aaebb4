package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"paylink/internal/models"
)

// Activity describes a log row to append alongside a transition.
type Activity struct {
	Action  string
	Details map[string]interface{}
}

// ActivityLogRepository reads activity log entries. Rows are written by the
// transitions of PaymentRecordRepository in the same transaction.
type ActivityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository(db *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// ListByRecord returns the entries of a record in insertion order.
func (r *ActivityLogRepository) ListByRecord(ctx context.Context, recordID string) ([]models.ActivityLogEntry, error) {
	var entries []models.ActivityLogEntry
	err := r.db.WithContext(ctx).
		Where("payment_record_id = ?", recordID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func insertActivity(tx *gorm.DB, recordID string, act Activity, at time.Time) error {
	details := act.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return tx.Create(&models.ActivityLogEntry{
		PaymentRecordID: recordID,
		Action:          act.Action,
		Actor:           models.ActorSystem,
		Details:         datatypes.JSON(raw),
		CreatedAt:       at,
	}).Error
}

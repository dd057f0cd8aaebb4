package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"paylink/internal/apperr"
	"paylink/internal/models"
)

// AppointmentRepository reads appointments and inventory slots.
type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) FindByPaymentRecord(ctx context.Context, recordID string) (*models.Appointment, error) {
	var appt models.Appointment
	if err := r.db.WithContext(ctx).Where("payment_record_id = ?", recordID).First(&appt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Kind: "appointment", ID: recordID}
		}
		return nil, err
	}
	return &appt, nil
}

func (r *AppointmentRepository) CreateSlot(ctx context.Context, slot *models.Slot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

func (r *AppointmentRepository) FindSlot(ctx context.Context, id string) (*models.Slot, error) {
	var slot models.Slot
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&slot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Kind: "slot", ID: id}
		}
		return nil, err
	}
	return &slot, nil
}

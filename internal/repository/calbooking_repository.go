package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/model"
)

type CalBookingRepository interface {
	// Создать зеркальную запись бронирования.
	Create(ctx context.Context, booking *model.CalBooking) error
	// Зеркало по внутренней сессии.
	GetBySessionID(ctx context.Context, sessionID string) (*model.CalBooking, error)
	// Зеркало по нативному UID провайдера.
	GetByUID(ctx context.Context, uid string) (*model.CalBooking, error)
	// Обновить зеркалируемый статус.
	UpdateStatus(ctx context.Context, id string, status model.CalBookingStatus) error
}

type GormCalBookingRepository struct {
	db *gorm.DB
}

func NewGormCalBookingRepository(db *gorm.DB) *GormCalBookingRepository {
	return &GormCalBookingRepository{db: db}
}

func (r *GormCalBookingRepository) Create(ctx context.Context, booking *model.CalBooking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormCalBookingRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.CalBooking, error) {
	var b model.CalBooking
	if err := r.db.WithContext(ctx).First(&b, "session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormCalBookingRepository) GetByUID(ctx context.Context, uid string) (*model.CalBooking, error) {
	var b model.CalBooking
	if err := r.db.WithContext(ctx).First(&b, "cal_booking_uid = ?", uid).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormCalBookingRepository) UpdateStatus(ctx context.Context, id string, status model.CalBookingStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.CalBooking{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

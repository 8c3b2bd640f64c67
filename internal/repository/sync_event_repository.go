package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/model"
)

type SyncEventRepository interface {
	// Record записывает событие журнала. Возвращает false, если событие
	// с таким DedupeKey уже записано (повторная доставка вебхука).
	Record(ctx context.Context, event *model.SyncEvent) (bool, error)
	// События по нативному UID бронирования.
	ListByBookingUID(ctx context.Context, uid string) ([]model.SyncEvent, error)
}

type GormSyncEventRepository struct {
	db *gorm.DB
}

func NewGormSyncEventRepository(db *gorm.DB) *GormSyncEventRepository {
	return &GormSyncEventRepository{db: db}
}

func (r *GormSyncEventRepository) Record(ctx context.Context, event *model.SyncEvent) (bool, error) {
	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *GormSyncEventRepository) ListByBookingUID(ctx context.Context, uid string) ([]model.SyncEvent, error) {
	var events []model.SyncEvent
	err := r.db.WithContext(ctx).
		Where("booking_uid = ?", uid).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// isDuplicateKey распознаёт нарушение уникального индекса и для Postgres,
// и для sqlite в тестах.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

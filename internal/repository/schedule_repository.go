package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/model"
)

type ScheduleRepository interface {
	// Создать расписание.
	Create(ctx context.Context, schedule *model.CoachingSchedule) error
	// Обновить расписание целиком.
	Update(ctx context.Context, schedule *model.CoachingSchedule) error
	// Найти расписание по ID.
	GetByID(ctx context.Context, id string) (*model.CoachingSchedule, error)
	// Дефолтное активное расписание коуча.
	GetDefaultByCoach(ctx context.Context, coachID string) (*model.CoachingSchedule, error)
	// Расписание по внешнему ID провайдера.
	GetByExternalID(ctx context.Context, externalID int64) (*model.CoachingSchedule, error)
	// Активные расписания коуча.
	ListActiveByCoach(ctx context.Context, coachID string) ([]model.CoachingSchedule, error)
	// Деактивировать расписание (жёсткого удаления нет, пока на него
	// ссылаются бронирования).
	Deactivate(ctx context.Context, id string) error
	// Обновить метаданные синхронизации.
	TouchSync(ctx context.Context, id string, source model.SyncSource, syncedAt time.Time) error
}

// Реализация на GORM.
type GormScheduleRepository struct {
	db *gorm.DB
}

func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

func (r *GormScheduleRepository) Create(ctx context.Context, schedule *model.CoachingSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *GormScheduleRepository) Update(ctx context.Context, schedule *model.CoachingSchedule) error {
	return r.db.WithContext(ctx).Save(schedule).Error
}

func (r *GormScheduleRepository) GetByID(ctx context.Context, id string) (*model.CoachingSchedule, error) {
	var s model.CoachingSchedule
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormScheduleRepository) GetDefaultByCoach(ctx context.Context, coachID string) (*model.CoachingSchedule, error) {
	var s model.CoachingSchedule
	err := r.db.WithContext(ctx).
		Where("coach_id = ?", coachID).
		Where("is_default = ?", true).
		Where("active = ?", true).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormScheduleRepository) GetByExternalID(ctx context.Context, externalID int64) (*model.CoachingSchedule, error) {
	var s model.CoachingSchedule
	if err := r.db.WithContext(ctx).First(&s, "external_id = ?", externalID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormScheduleRepository) ListActiveByCoach(ctx context.Context, coachID string) ([]model.CoachingSchedule, error) {
	var schedules []model.CoachingSchedule
	err := r.db.WithContext(ctx).
		Where("coach_id = ?", coachID).
		Where("active = ?", true).
		Order("created_at DESC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *GormScheduleRepository) Deactivate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.CoachingSchedule{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": false, "is_default": false}).
		Error
}

func (r *GormScheduleRepository) TouchSync(ctx context.Context, id string, source model.SyncSource, syncedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.CoachingSchedule{}).
		Where("id = ?", id).
		Updates(map[string]any{"sync_source": source, "last_synced_at": syncedAt}).
		Error
}

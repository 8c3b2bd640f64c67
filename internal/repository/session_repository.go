package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/model"
)

type SessionRepository interface {
	// Создать сессию.
	Create(ctx context.Context, session *model.Session) error
	// Найти сессию по ID.
	GetByID(ctx context.Context, id string) (*model.Session, error)
	// Обновить статус сессии с метаданными отмены.
	UpdateStatus(ctx context.Context, id string, status model.SessionStatus, reason string, actorID *string, at *time.Time) error
	// Сессии коуча или менти, пересекающиеся с интервалом [from, to).
	// Используется советующей проверкой конфликтов перед бронированием.
	ListOverlapping(ctx context.Context, coachID, menteeID string, from, to time.Time) ([]model.Session, error)
	// Сессии коуча за период с пагинацией.
	ListByCoachRange(ctx context.Context, coachID string, from, to time.Time, limit, offset int) ([]model.Session, int64, error)
}

type GormSessionRepository struct {
	db *gorm.DB
}

func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

func (r *GormSessionRepository) Create(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *GormSessionRepository) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSessionRepository) UpdateStatus(
	ctx context.Context,
	id string,
	status model.SessionStatus,
	reason string,
	actorID *string,
	at *time.Time,
) error {
	update := map[string]any{
		"status": status,
	}
	if reason != "" {
		update["cancel_reason"] = reason
	}
	if actorID != nil {
		update["cancelled_by"] = *actorID
	}
	if at != nil {
		update["cancelled_at"] = *at
	}
	return r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ?", id).
		Updates(update).
		Error
}

func (r *GormSessionRepository) ListOverlapping(
	ctx context.Context,
	coachID, menteeID string,
	from, to time.Time,
) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.WithContext(ctx).
		Where("coach_id = ? OR mentee_id = ?", coachID, menteeID).
		Where("status IN ?", []model.SessionStatus{model.SessionStatusScheduled, model.SessionStatusRescheduled}).
		Where("starts_at < ? AND ends_at > ?", to, from).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *GormSessionRepository) ListByCoachRange(
	ctx context.Context,
	coachID string,
	from, to time.Time,
	limit, offset int,
) ([]model.Session, int64, error) {
	var (
		sessions []model.Session
		total    int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("coach_id = ?", coachID).
		Where("starts_at >= ? AND starts_at < ?", from, to)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("starts_at ASC").Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

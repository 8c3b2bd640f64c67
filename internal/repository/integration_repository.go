package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/model"
)

// ErrStaleTokenWrite возвращается, когда обновление токенов не прошло
// оптимистическую проверку: пара токенов уже изменена конкурентным запросом.
var ErrStaleTokenWrite = errors.New("integration tokens changed concurrently")

type IntegrationRepository interface {
	// Создать подключение после успешного OAuth-обмена.
	Create(ctx context.Context, integration *model.CalendarIntegration) error
	// Подключение коуча к провайдеру.
	GetByCoach(ctx context.Context, coachID, provider string) (*model.CalendarIntegration, error)
	// Подключение по managed-user провайдера.
	GetByExternalUserID(ctx context.Context, externalUserID int64) (*model.CalendarIntegration, error)
	// Обновить пару токенов. oldRefreshToken — оптимистическая проверка:
	// запись обновляется, только если refresh-токен в БД ещё тот, что мы читали.
	UpdateTokens(ctx context.Context, id string, oldRefreshToken, accessToken, refreshToken string, expiresAt time.Time) error
	// Обновить зеркалируемый профиль провайдера.
	Update(ctx context.Context, integration *model.CalendarIntegration) error
	// Отметить момент последней синхронизации.
	TouchSync(ctx context.Context, id string, syncedAt time.Time) error
}

type GormIntegrationRepository struct {
	db *gorm.DB
}

func NewGormIntegrationRepository(db *gorm.DB) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: db}
}

func (r *GormIntegrationRepository) Create(ctx context.Context, integration *model.CalendarIntegration) error {
	return r.db.WithContext(ctx).Create(integration).Error
}

func (r *GormIntegrationRepository) GetByCoach(ctx context.Context, coachID, provider string) (*model.CalendarIntegration, error) {
	var in model.CalendarIntegration
	err := r.db.WithContext(ctx).
		Where("coach_id = ?", coachID).
		Where("provider = ?", provider).
		First(&in).Error
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *GormIntegrationRepository) GetByExternalUserID(ctx context.Context, externalUserID int64) (*model.CalendarIntegration, error) {
	var in model.CalendarIntegration
	if err := r.db.WithContext(ctx).First(&in, "external_user_id = ?", externalUserID).Error; err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *GormIntegrationRepository) UpdateTokens(
	ctx context.Context,
	id string,
	oldRefreshToken, accessToken, refreshToken string,
	expiresAt time.Time,
) error {
	res := r.db.WithContext(ctx).
		Model(&model.CalendarIntegration{}).
		Where("id = ?", id).
		Where("refresh_token = ?", oldRefreshToken).
		Updates(map[string]any{
			"access_token":            accessToken,
			"refresh_token":           refreshToken,
			"access_token_expires_at": expiresAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTokenWrite
	}
	return nil
}

func (r *GormIntegrationRepository) Update(ctx context.Context, integration *model.CalendarIntegration) error {
	return r.db.WithContext(ctx).Save(integration).Error
}

func (r *GormIntegrationRepository) TouchSync(ctx context.Context, id string, syncedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.CalendarIntegration{}).
		Where("id = ?", id).
		Update("last_synced_at", syncedAt).
		Error
}

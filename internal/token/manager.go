package token

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/model"
	"github.com/coachbridge/coachcal/internal/provider"
	"github.com/coachbridge/coachcal/internal/repository"
)

var (
	// У коуча нет подключения к провайдеру.
	ErrNotConnected = errors.New("calendar integration not connected")
	// Обмен refresh-токена не удался; access-токен после этой ошибки
	// использовать нельзя.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Запас до истечения, при котором токен обновляется заранее.
const expiryBuffer = 5 * time.Minute

// Refresher — кусок клиента провайдера, нужный менеджеру.
type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (*provider.TokenPair, error)
}

// Manager владеет жизненным циклом OAuth-токенов подключения.
// Единственный писатель пары токенов в БД.
type Manager struct {
	integrations repository.IntegrationRepository
	refresher    Refresher
	providerName string

	// Подменяется в тестах.
	now func() time.Time
}

func NewManager(integrations repository.IntegrationRepository, refresher Refresher, providerName string) *Manager {
	return &Manager{
		integrations: integrations,
		refresher:    refresher,
		providerName: providerName,
		now:          time.Now,
	}
}

// EnsureValidToken возвращает действительный access-токен коуча,
// при необходимости обновив пару. Отсутствующий или нечитаемый срок
// истечения трактуется как истёкший.
func (m *Manager) EnsureValidToken(ctx context.Context, coachID string) (string, error) {
	integ, err := m.integrations.GetByCoach(ctx, coachID, m.providerName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotConnected
		}
		return "", fmt.Errorf("load integration: %w", err)
	}

	now := m.now()
	if !integ.TokenExpiringWithin(now, expiryBuffer) {
		return integ.AccessToken, nil
	}

	return m.refresh(ctx, integ)
}

// ForceRefresh обновляет пару независимо от срока истечения.
// Используется после 401/498 от провайдера: ровно один повтор вызова,
// второй отказ поднимается наружу без новых попыток.
func (m *Manager) ForceRefresh(ctx context.Context, coachID string) (string, error) {
	integ, err := m.integrations.GetByCoach(ctx, coachID, m.providerName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotConnected
		}
		return "", fmt.Errorf("load integration: %w", err)
	}
	return m.refresh(ctx, integ)
}

// refresh обменивает refresh-токен и сохраняет обе половины новой пары.
// Refresh-токены провайдера одноразовые, поэтому гонка двух запросов
// обрабатывается ровно одним повтором через свежее чтение записи:
// конкурент мог уже обновить пару за нас.
func (m *Manager) refresh(ctx context.Context, integ *model.CalendarIntegration) (string, error) {
	pair, err := m.refresher.RefreshTokens(ctx, integ.RefreshToken)
	if err != nil {
		fresh, rerr := m.integrations.GetByCoach(ctx, integ.CoachID.String(), m.providerName)
		if rerr != nil || fresh.RefreshToken == integ.RefreshToken {
			return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		}
		// Пара изменилась под нами: гонку выиграл конкурент.
		if !fresh.TokenExpiringWithin(m.now(), expiryBuffer) {
			return fresh.AccessToken, nil
		}
		pair, err = m.refresher.RefreshTokens(ctx, fresh.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		}
		integ = fresh
	}

	expiresAt := m.now().Add(time.Duration(pair.ExpiresIn) * time.Second)
	err = m.integrations.UpdateTokens(ctx, integ.ID.String(), integ.RefreshToken, pair.AccessToken, pair.RefreshToken, expiresAt)
	if err != nil {
		if errors.Is(err, repository.ErrStaleTokenWrite) {
			// Конкурент успел записать свою пару; читаем и используем её.
			fresh, rerr := m.integrations.GetByCoach(ctx, integ.CoachID.String(), m.providerName)
			if rerr == nil && !fresh.TokenExpiringWithin(m.now(), expiryBuffer) {
				return fresh.AccessToken, nil
			}
			return "", fmt.Errorf("%w: lost refresh race and stored token unusable", ErrRefreshFailed)
		}
		return "", fmt.Errorf("persist tokens: %w", err)
	}

	log.Printf("[token] refreshed pair for coach %s, expires %s", integ.CoachID, expiresAt.UTC().Format(time.RFC3339))
	return pair.AccessToken, nil
}

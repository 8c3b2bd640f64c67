package token

import (
	"context"
	"errors"

	"github.com/coachbridge/coachcal/internal/provider"
)

// Source выдаёт действующий access-токен подключения коуча.
type Source interface {
	EnsureValidToken(ctx context.Context, coachID string) (string, error)
	ForceRefresh(ctx context.Context, coachID string) (string, error)
}

// WithAuthRetry выполняет вызов провайдера, один раз обновляя токен
// после 401/498. Второй отказ аутентификации — жёсткая ошибка.
func WithAuthRetry(ctx context.Context, tokens Source, coachID string, call func(accessToken string) error) error {
	accessToken, err := tokens.EnsureValidToken(ctx, coachID)
	if err != nil {
		return err
	}

	err = call(accessToken)
	var pe *provider.Error
	if err != nil && errors.As(err, &pe) && pe.AuthError() {
		accessToken, err = tokens.ForceRefresh(ctx, coachID)
		if err != nil {
			return err
		}
		return call(accessToken)
	}
	return err
}

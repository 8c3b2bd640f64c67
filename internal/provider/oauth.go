package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// OAuthConfig собирает oauth2.Config под эндпоинты провайдера.
// Используется маршрутом подключения для обмена authorization code.
func (c *Client) OAuthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.baseURL + "/oauth/authorize",
			TokenURL: c.baseURL + "/oauth/token",
		},
	}
}

// ExchangeAuthCode меняет authorization code на пару токенов.
func (c *Client) ExchangeAuthCode(ctx context.Context, redirectURL, code string) (*TokenPair, error) {
	cfg := c.OAuthConfig(redirectURL)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, &Error{StatusCode: http.StatusUnauthorized, Message: fmt.Sprintf("code exchange failed: %v", err)}
	}

	pair := &TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		pair.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	return pair, nil
}

// RefreshTokens меняет refresh-токен на новую пару. Провайдер ротирует
// refresh-токены: ответ всегда содержит обе половины, и обе надо сохранить.
// Обмен идёт через do, чтобы ошибки нормализовались как у остальных вызовов.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body := map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"refresh_token": refreshToken,
	}
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/oauth/token", nil, body, &pair); err != nil {
		return nil, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "token endpoint returned incomplete pair"}
	}
	return &pair, nil
}

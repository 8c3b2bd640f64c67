package config

import (
	"fmt"
	"time"
)

// ProviderConfig — подключение к календарному провайдеру (OAuth-клиент
// платформы плюс параметры его API).
type ProviderConfig struct {
	BaseURL    string
	APIVersion string

	ClientID     string
	ClientSecret string
	RedirectURL  string

	WebhookURL    string
	WebhookSecret string

	HTTPTimeout time.Duration
}

func LoadProviderConfig() (*ProviderConfig, error) {
	cfg := &ProviderConfig{
		BaseURL:       getEnv("CAL_API_URL", "https://api.cal.com/v2"),
		APIVersion:    getEnv("CAL_API_VERSION", "2024-06-14"),
		ClientID:      getEnv("CAL_CLIENT_ID", ""),
		ClientSecret:  getEnv("CAL_CLIENT_SECRET", ""),
		RedirectURL:   getEnv("CAL_REDIRECT_URL", ""),
		WebhookURL:    getEnv("CAL_WEBHOOK_URL", ""),
		WebhookSecret: getEnv("CAL_WEBHOOK_SECRET", ""),
		HTTPTimeout:   time.Duration(getEnvInt("CAL_HTTP_TIMEOUT_SEC", 15)) * time.Second,
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("invalid provider config: CAL_CLIENT_ID/CAL_CLIENT_SECRET must be set")
	}

	return cfg, nil
}

// ServerConfig — HTTP-сервер платформы.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

func LoadServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:            getEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
	}
}

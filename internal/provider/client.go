package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Error — нормализованная ошибка провайдера: любой не-2xx ответ.
// Текст токена в Message не попадает никогда.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: status %d: %s", e.StatusCode, e.Message)
}

// AuthError — access-токен недействителен или истёк (401/498).
// Ровно один повтор после refresh; второй 401 — жёсткий отказ.
func (e *Error) AuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == 498
}

// Unavailable — транспорт/5xx, вызывающий может повторить с backoff.
func (e *Error) Unavailable() bool {
	return e.StatusCode >= 500
}

// Rejected — бизнес-отказ провайдера (4xx, кроме auth), не повторяется.
func (e *Error) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && !e.AuthError()
}

// Режим аутентификации запроса.
type authMode interface {
	apply(req *http.Request)
}

// Bearer access-токен managed-user'а: операции от имени коуча.
type bearerAuth struct {
	token string
}

func (a bearerAuth) apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.token)
}

// Client credentials платформы: операции уровня платформы
// (профиль managed-user'а, подписки вебхуков).
type clientCredentialsAuth struct {
	clientID string
	secret   string
}

func (a clientCredentialsAuth) apply(req *http.Request) {
	req.Header.Set("x-cal-client-id", a.clientID)
	req.Header.Set("x-cal-secret-key", a.secret)
}

// Client — stateless-обёртка над HTTP API провайдера.
// Проставляет версию API и аутентификацию, нормализует ошибки.
type Client struct {
	baseURL      string
	apiVersion   string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

func NewClient(baseURL, apiVersion, clientID, clientSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		apiVersion:   apiVersion,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Обёртка ответа провайдера: {"status": "...", "data": ...}.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Err    struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, auth authMode, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("cal-api-version", c.apiVersion)
	if auth != nil {
		auth.apply(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Таймаут и сетевые сбои считаем недоступностью провайдера.
		return &Error{StatusCode: http.StatusServiceUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: "read body: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &env) == nil && env.Err.Message != "" {
			msg = env.Err.Message
		}
		return &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
		return nil
	}
	// Некоторые эндпоинты отвечают без обёртки.
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Me возвращает профиль managed-user'а по его access-токену.
func (c *Client) Me(ctx context.Context, accessToken string) (*UserProfile, error) {
	var profile UserProfile
	if err := c.do(ctx, http.MethodGet, "/me", bearerAuth{accessToken}, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// EventTypes возвращает типы событий пользователя.
func (c *Client) EventTypes(ctx context.Context, username string) ([]EventType, error) {
	var types []EventType
	path := "/event-types?username=" + url.QueryEscape(username)
	if err := c.do(ctx, http.MethodGet, path, clientCredentialsAuth{c.clientID, c.clientSecret}, nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// GetSchedule возвращает расписание провайдера по его ID.
func (c *Client) GetSchedule(ctx context.Context, accessToken string, scheduleID int64) (*Schedule, error) {
	var s Schedule
	path := fmt.Sprintf("/schedules/%d", scheduleID)
	if err := c.do(ctx, http.MethodGet, path, bearerAuth{accessToken}, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSchedule создаёт расписание на стороне провайдера.
func (c *Client) CreateSchedule(ctx context.Context, accessToken string, schedule *Schedule) (*Schedule, error) {
	var created Schedule
	if err := c.do(ctx, http.MethodPost, "/schedules", bearerAuth{accessToken}, schedule, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateSchedule обновляет расписание на стороне провайдера.
func (c *Client) UpdateSchedule(ctx context.Context, accessToken string, scheduleID int64, schedule *Schedule) (*Schedule, error) {
	var updated Schedule
	path := fmt.Sprintf("/schedules/%d", scheduleID)
	if err := c.do(ctx, http.MethodPatch, path, bearerAuth{accessToken}, schedule, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// BusyTimes возвращает занятые интервалы event type за период
// (GET /event-types/{id}/availability).
func (c *Client) BusyTimes(ctx context.Context, accessToken string, eventTypeID int64, dateFrom, dateTo time.Time) ([]BusyTime, error) {
	var out struct {
		Busy []BusyTime `json:"busy"`
	}
	path := fmt.Sprintf(
		"/event-types/%d/availability?dateFrom=%s&dateTo=%s",
		eventTypeID,
		url.QueryEscape(dateFrom.UTC().Format(time.RFC3339)),
		url.QueryEscape(dateTo.UTC().Format(time.RFC3339)),
	)
	if err := c.do(ctx, http.MethodGet, path, bearerAuth{accessToken}, nil, &out); err != nil {
		return nil, err
	}
	return out.Busy, nil
}

// Calendars возвращает подключённые личные календари managed-user'а.
func (c *Client) Calendars(ctx context.Context, accessToken string) ([]ConnectedCalendar, error) {
	var out struct {
		ConnectedCalendars []ConnectedCalendar `json:"connectedCalendars"`
	}
	if err := c.do(ctx, http.MethodGet, "/calendars", bearerAuth{accessToken}, nil, &out); err != nil {
		return nil, err
	}
	return out.ConnectedCalendars, nil
}

// CreateBooking создаёт бронирование. Провайдер сам проверяет конфликт
// слота; отказ приходит как Rejected-ошибка.
func (c *Client) CreateBooking(ctx context.Context, accessToken string, req *CreateBookingRequest) (*Booking, error) {
	var b Booking
	if err := c.do(ctx, http.MethodPost, "/bookings", bearerAuth{accessToken}, req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// CancelBooking отменяет бронирование по нативному UID провайдера.
func (c *Client) CancelBooking(ctx context.Context, accessToken, bookingUID, reason string) error {
	body := map[string]string{"cancellationReason": reason}
	path := fmt.Sprintf("/bookings/%s/cancel", url.PathEscape(bookingUID))
	return c.do(ctx, http.MethodPost, path, bearerAuth{accessToken}, body, nil)
}

// Bookings возвращает бронирования managed-user'а за период.
func (c *Client) Bookings(ctx context.Context, accessToken string, from, to time.Time) ([]Booking, error) {
	var bookings []Booking
	path := fmt.Sprintf(
		"/bookings?afterStart=%s&beforeEnd=%s",
		url.QueryEscape(from.UTC().Format(time.RFC3339)),
		url.QueryEscape(to.UTC().Format(time.RFC3339)),
	)
	if err := c.do(ctx, http.MethodGet, path, bearerAuth{accessToken}, nil, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

package provider

import "time"

// Профиль managed-user'а (GET /me).
type UserProfile struct {
	ID                int64  `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	TimeZone          string `json:"timeZone"`
	WeekStart         string `json:"weekStart"`
	Locale            string `json:"locale"`
	DefaultScheduleID *int64 `json:"defaultScheduleId"`
}

// Тип события (event type) провайдера.
type EventType struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	LengthInMin int    `json:"lengthInMinutes"`
}

// Одно еженедельное окно доступности в представлении провайдера.
type ScheduleAvailability struct {
	Days      []string `json:"days"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
}

// Исключение по дате в представлении провайдера.
type ScheduleOverride struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// Расписание провайдера (GET/POST/PATCH /schedules).
type Schedule struct {
	ID           int64                  `json:"id,omitempty"`
	Name         string                 `json:"name"`
	TimeZone     string                 `json:"timeZone"`
	IsDefault    bool                   `json:"isDefault"`
	Availability []ScheduleAvailability `json:"availability"`
	Overrides    []ScheduleOverride     `json:"overrides,omitempty"`
}

// Занятый интервал из внешнего календаря (busy-сигнал провайдера).
type BusyTime struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Подключённый личный календарь managed-user'а (GET /calendars).
type ConnectedCalendar struct {
	ExternalID  string `json:"externalId"`
	Integration string `json:"integration"`
	Primary     bool   `json:"primary"`
}

// Участник бронирования.
type Attendee struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	TimeZone string `json:"timeZone"`
}

// Запрос на создание бронирования (POST /bookings).
type CreateBookingRequest struct {
	Start       time.Time         `json:"start"`
	EventTypeID int64             `json:"eventTypeId"`
	LengthInMin int               `json:"lengthInMinutes,omitempty"`
	Attendee    Attendee          `json:"attendee"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Бронирование провайдера. UID — единственный идентификатор,
// который принимают мутации /bookings/{uid}/*.
type Booking struct {
	UID    string    `json:"uid"`
	Status string    `json:"status"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Пара OAuth-токенов. Refresh-токены провайдера одноразовые:
// после обмена обе половины пары должны быть сохранены.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// Срок жизни access-токена в секундах.
	ExpiresIn int64 `json:"expiresIn"`
}

// Подписка на вебхуки провайдера.
type Webhook struct {
	ID            int64    `json:"id,omitempty"`
	SubscriberURL string   `json:"subscriberUrl"`
	Triggers      []string `json:"triggers"`
	Active        bool     `json:"active"`
	Secret        string   `json:"secret,omitempty"`
}

// Триггеры вебхуков, на которые подписывается ядро.
const (
	TriggerBookingCreated     = "BOOKING_CREATED"
	TriggerBookingRescheduled = "BOOKING_RESCHEDULED"
	TriggerBookingCancelled   = "BOOKING_CANCELLED"
)

// Событие вебхука, как его присылает провайдер.
type WebhookEvent struct {
	TriggerEvent string              `json:"triggerEvent"`
	CreatedAt    time.Time           `json:"createdAt"`
	Payload      WebhookEventPayload `json:"payload"`
}

type WebhookEventPayload struct {
	BookingUID string    `json:"bookingUid"`
	Status     string    `json:"status"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
}

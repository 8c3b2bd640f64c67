package model

import (
	"time"

	"github.com/google/uuid"
)

// calendar_integrations — подключение коуча к внешнему провайдеру расписаний.
// Не более одного подключения на пару (коуч, провайдер).
type CalendarIntegration struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	CoachID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_coach_provider"`
	Provider string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_coach_provider"`

	// Managed-user на стороне провайдера, созданный по client credentials.
	ExternalUserID   int64  `gorm:"not null"`
	ExternalUsername string `gorm:"type:varchar(255)"`

	AccessToken  string `gorm:"type:text;not null"`
	RefreshToken string `gorm:"type:text;not null"`
	// Момент истечения access-токена. NULL трактуется как "уже истёк".
	AccessTokenExpiresAt *time.Time `gorm:"type:timestamp with time zone"`

	// Дефолтное расписание managed-user'а на стороне провайдера.
	ExternalDefaultScheduleID *int64
	// Event type провайдера, через который создаются бронирования коуча.
	ExternalEventTypeID int64

	// Профиль провайдера, зеркалируется при подключении.
	TimeZone  string `gorm:"type:varchar(64)"`
	Locale    string `gorm:"type:varchar(16)"`
	WeekStart string `gorm:"type:varchar(16)"`

	SyncEnabled  bool       `gorm:"not null;default:true"`
	LastSyncedAt *time.Time `gorm:"type:timestamp with time zone"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Coach *Coach `gorm:"foreignKey:CoachID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TokenExpired сообщает, истёк ли access-токен к моменту now.
// Отсутствующий срок истечения считается истёкшим (fail-safe).
func (i *CalendarIntegration) TokenExpired(now time.Time) bool {
	if i.AccessTokenExpiresAt == nil {
		return true
	}
	return !now.Before(*i.AccessTokenExpiresAt)
}

// TokenExpiringWithin сообщает, истечёт ли access-токен в ближайшие buffer.
func (i *CalendarIntegration) TokenExpiringWithin(now time.Time, buffer time.Duration) bool {
	return i.TokenExpired(now.Add(buffer))
}

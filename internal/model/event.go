package model

import (
	"time"

	"github.com/google/uuid"
)

// Тип события синхронизации.
type SyncEventType string

const (
	SyncEventBookingCreated     SyncEventType = "booking_created"
	SyncEventBookingCancelled   SyncEventType = "booking_cancelled"
	SyncEventBookingRescheduled SyncEventType = "booking_rescheduled"
	SyncEventScheduleSynced     SyncEventType = "schedule_synced"
	SyncEventAnomaly            SyncEventType = "anomaly"
)

// sync_events — журнал событий синхронизации и вебхуков.
// DedupeKey служит ключом идемпотентности: повторная доставка того же
// события провайдером упирается в уникальный индекс и не применяется дважды.
type SyncEvent struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	EventType SyncEventType `gorm:"type:varchar(64);not null;index"`

	// Нативный UID бронирования провайдера, если событие о бронировании.
	BookingUID string `gorm:"type:varchar(128);index"`

	DedupeKey string `gorm:"type:varchar(255);uniqueIndex"`

	SessionID *uuid.UUID `gorm:"type:uuid;index"`
	CoachID   *uuid.UUID `gorm:"type:uuid;index"`

	Details string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`

	Session *Session `gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Coach   *Coach   `gorm:"foreignKey:CoachID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

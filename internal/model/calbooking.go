package model

import (
	"time"

	"github.com/google/uuid"
)

// Статус зеркальной записи бронирования у провайдера.
type CalBookingStatus string

const (
	CalBookingStatusAccepted  CalBookingStatus = "accepted"
	CalBookingStatusCancelled CalBookingStatus = "cancelled"
)

// cal_bookings — зеркало объекта бронирования внешнего провайдера.
// Отвязывает внутреннюю идентичность сессии от нативного ID провайдера:
// во все мутации на стороне провайдера уходит только CalBookingUID,
// внутренние ID туда не передаются никогда.
type CalBooking struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	SessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	// Нативный идентификатор бронирования у провайдера.
	CalBookingUID string `gorm:"type:varchar(128);not null;uniqueIndex"`

	Status CalBookingStatus `gorm:"type:varchar(32);not null;default:'accepted';index"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Session *Session `gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

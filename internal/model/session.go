package model

import (
	"time"

	"github.com/google/uuid"
)

// Статус сессии.
type SessionStatus string

const (
	SessionStatusScheduled   SessionStatus = "SCHEDULED"
	SessionStatusCompleted   SessionStatus = "COMPLETED"
	SessionStatusCancelled   SessionStatus = "CANCELLED"
	SessionStatusRescheduled SessionStatus = "RESCHEDULED"
)

// Таблица допустимых переходов статуса. Переходы монотонны,
// единственное исключение — RESCHEDULED → SCHEDULED.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusScheduled:   {SessionStatusCompleted, SessionStatusCancelled, SessionStatusRescheduled},
	SessionStatusRescheduled: {SessionStatusScheduled, SessionStatusCancelled},
	SessionStatusCompleted:   {},
	SessionStatusCancelled:   {},
}

// CanTransition проверяет переход по таблице. Недопустимые переходы
// отклоняются на границе, а не по дисциплине вызывающего кода.
func (s SessionStatus) CanTransition(to SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal сообщает, является ли статус конечным.
func (s SessionStatus) Terminal() bool {
	return len(sessionTransitions[s]) == 0
}

// sessions — одна коучинговая сессия между коучем и менти.
type Session struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	CoachID  uuid.UUID `gorm:"type:uuid;not null;index"`
	MenteeID uuid.UUID `gorm:"type:uuid;not null;index"`

	StartsAt    time.Time `gorm:"type:timestamp with time zone;not null;index"`
	EndsAt      time.Time `gorm:"type:timestamp with time zone;not null"`
	DurationMin int       `gorm:"not null"`

	Status SessionStatus `gorm:"type:varchar(32);not null;default:'SCHEDULED';index"`

	// Метаданные отмены, заполняются только при Status = CANCELLED.
	CancelReason string     `gorm:"type:text"`
	CancelledBy  *uuid.UUID `gorm:"type:uuid"`
	CancelledAt  *time.Time `gorm:"type:timestamp with time zone"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Coach      *Coach      `gorm:"foreignKey:CoachID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Mentee     *Mentee     `gorm:"foreignKey:MenteeID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	CalBooking *CalBooking `gorm:"foreignKey:SessionID"`
}

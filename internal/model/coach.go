package model

import (
	"time"

	"github.com/google/uuid"
)

// coaches — коуч маркетплейса. Профильные поля живут в CRUD-слое,
// ядру синхронизации нужен только якорь для внешних ключей и таймзона.
type Coach struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	DisplayName string `gorm:"type:varchar(255);not null"`
	Email       string `gorm:"type:varchar(255);not null;uniqueIndex"`
	TimeZone    string `gorm:"type:varchar(64);not null;default:'UTC'"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Schedules   []CoachingSchedule   `gorm:"foreignKey:CoachID"`
	Integration *CalendarIntegration `gorm:"foreignKey:CoachID"`
}

// mentees — менти маркетплейса, участник сессии.
type Mentee struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	DisplayName string `gorm:"type:varchar(255);not null"`
	Email       string `gorm:"type:varchar(255);not null;uniqueIndex"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

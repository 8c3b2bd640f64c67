package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Источник последней синхронизации расписания.
type SyncSource string

const (
	SyncSourceExternal   SyncSource = "external"
	SyncSourceInternal   SyncSource = "internal"
	SyncSourceReconciled SyncSource = "reconciled"
)

// WeeklySlot — одно окно еженедельной доступности в локальном времени расписания.
// Days хранит имена дней недели ("Monday", ...), время — строки "HH:MM".
type WeeklySlot struct {
	Days      []string `json:"days"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
}

// TimeWindow — интервал внутри одного дня, "HH:MM".
type TimeWindow struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// DateOverride — исключение для конкретной даты (YYYY-MM-DD).
// Unavailable = true означает, что дата полностью закрыта; иначе действуют Windows.
// Для одной даты исключение полностью замещает еженедельное правило.
type DateOverride struct {
	Date        string       `json:"date"`
	Unavailable bool         `json:"unavailable,omitempty"`
	Windows     []TimeWindow `json:"windows,omitempty"`
}

// coaching_schedules — определение доступности одного коуча.
type CoachingSchedule struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	CoachID uuid.UUID `gorm:"type:uuid;not null;index"`

	// ID расписания на стороне внешнего провайдера. NULL до первой синхронизации.
	ExternalID *int64 `gorm:"uniqueIndex"`

	Name     string `gorm:"type:varchar(255);not null"`
	TimeZone string `gorm:"type:varchar(64);not null;default:'UTC'"`

	// Еженедельные окна и исключения по датам (JSONB в Postgres).
	Availability datatypes.JSONType[[]WeeklySlot]   `gorm:"type:jsonb"`
	Overrides    datatypes.JSONType[[]DateOverride] `gorm:"type:jsonb"`

	IsDefault bool `gorm:"not null;default:false"`
	Active    bool `gorm:"not null;default:true;index"`

	// Коммерческая политика. Владелец этих полей — внутренняя система,
	// синхронизация с провайдером их не трогает. Всё в минутах.
	DefaultDuration     int  `gorm:"not null;default:60"`
	MinimumDuration     int  `gorm:"not null;default:30"`
	MaximumDuration     int  `gorm:"not null;default:120"`
	AllowCustomDuration bool `gorm:"not null;default:false"`

	BufferBefore int `gorm:"not null;default:0"`
	BufferAfter  int `gorm:"not null;default:0"`

	// Минимальный шаг нарезки слотов; 0 — шаг равен запрошенной длительности.
	SlotInterval int `gorm:"not null;default:0"`
	// Минимальное время до начала слота, раньше которого бронировать нельзя (минуты).
	MinimumNotice int `gorm:"not null;default:0"`

	SyncSource   SyncSource `gorm:"type:varchar(16);not null;default:'internal'"`
	LastSyncedAt *time.Time `gorm:"type:timestamp with time zone"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Coach *Coach `gorm:"foreignKey:CoachID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// WeeklySlots возвращает еженедельные окна без обёртки JSONType.
func (s *CoachingSchedule) WeeklySlots() []WeeklySlot {
	return s.Availability.Data()
}

// DateOverrides возвращает исключения по датам без обёртки JSONType.
func (s *CoachingSchedule) DateOverrides() []DateOverride {
	return s.Overrides.Data()
}

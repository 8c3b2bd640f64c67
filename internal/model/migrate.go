package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей ядра синхронизации.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Coach{},
		&Mentee{},
		&CalendarIntegration{},
		&CoachingSchedule{},
		&Session{},
		&CalBooking{},
		&SyncEvent{},
	)
}

package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей ядра бронирований.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Guide{},
		&Traveler{},
		&Tour{},
		&Schedule{},
		&AvailabilitySlot{},
		&Booking{},
		&Payment{},
		&Payout{},
		&GuideLedger{},
		&Event{},
	)
}

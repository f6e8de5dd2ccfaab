package database

import (
	"gorm.io/gorm"

	"propertyhub/internal/domain"
)

// Migrate creates the schema and the Postgres-only exclusion constraint that
// backs the no-overbooking guarantee. The row locks in the booking service
// are the primary mechanism; the constraint catches writers that bypass it.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Property{},
		&domain.Room{},
		&domain.Customer{},
		&domain.Booking{},
		&domain.Payment{},
		&domain.GatewayTransaction{},
		&domain.PropertyVisitPayment{},
		&domain.Lease{},
		&domain.AuditEvent{},
	); err != nil {
		return err
	}

	if db.Dialector.Name() == "postgres" {
		stmts := []string{
			`CREATE EXTENSION IF NOT EXISTS btree_gist`,
			`ALTER TABLE bookings DROP CONSTRAINT IF EXISTS idx_no_overbooking`,
			`ALTER TABLE bookings ADD CONSTRAINT idx_no_overbooking
				EXCLUDE USING gist (
					property_id WITH =,
					room_number WITH =,
					daterange(check_in_date::date, check_out_date::date, '[)') WITH &&
				)
				WHERE (booking_status IN ('pending','confirmed','checked_in')
					AND is_deleted = false AND room_number IS NOT NULL)`,
		}
		for _, s := range stmts {
			if err := db.Exec(s).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Deleting a complaint detaches its transaction instead of removing it, so
// the record of what was requested from the gateway survives.
func createTransactionsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_transactions_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS transactions (
					id SERIAL PRIMARY KEY,
					quote_id UUID NOT NULL,
					transfer_id BIGINT NOT NULL,
					target_account_id BIGINT NOT NULL,
					amount DECIMAL(19,4) NOT NULL,
					complaint_id INTEGER REFERENCES complaints(id) ON DELETE SET NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					CONSTRAINT uq_transactions_complaint_id UNIQUE (complaint_id)
				)
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec("DROP TABLE IF EXISTS transactions").Error
		},
	}
}

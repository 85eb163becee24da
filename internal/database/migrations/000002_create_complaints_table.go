package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createComplaintsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_complaints_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS complaints (
					id SERIAL PRIMARY KEY,
					title VARCHAR(120) NOT NULL,
					description TEXT NOT NULL,
					photo_url TEXT NOT NULL,
					amount DECIMAL(19,4) NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					complainer_id INTEGER NOT NULL REFERENCES users(id),
					CONSTRAINT ck_complaints_amount CHECK (amount >= 0),
					CONSTRAINT ck_complaints_status CHECK (status IN ('pending', 'approved', 'rejected'))
				);

				CREATE INDEX IF NOT EXISTS idx_complaints_complainer_id ON complaints(complainer_id);
				CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints(status);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec("DROP TABLE IF EXISTS complaints").Error
		},
	}
}

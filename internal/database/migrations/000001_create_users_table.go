package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createUsersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_users_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS users (
					id SERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL,
					first_name VARCHAR(200),
					last_name VARCHAR(200),
					phone VARCHAR(20),
					iban VARCHAR(200),
					role VARCHAR(20) NOT NULL DEFAULT 'complainer',
					password_hash VARCHAR(255) NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					CONSTRAINT uq_users_email UNIQUE (email),
					CONSTRAINT ck_users_role CHECK (role IN ('complainer', 'approver', 'admin'))
				)
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec("DROP TABLE IF EXISTS users").Error
		},
	}
}

package models

import (
	"strings"
	"time"
)

// Role is the capability tag carried by a user. Roles do not inherit from
// each other.
type Role string

const (
	RoleComplainer Role = "complainer"
	RoleApprover   Role = "approver"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleComplainer, RoleApprover, RoleAdmin:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FirstName    string    `gorm:"type:varchar(200)" json:"first_name"`
	LastName     string    `gorm:"type:varchar(200)" json:"last_name"`
	Phone        string    `gorm:"type:varchar(20)" json:"phone"`
	IBAN         *string   `gorm:"column:iban;type:varchar(200)" json:"iban"`
	Role         Role      `gorm:"type:varchar(20);not null;default:complainer" json:"role"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName is the account holder name sent to the transfer gateway
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasIBAN reports whether the user can receive a reimbursement
func (u *User) HasIBAN() bool {
	return u.IBAN != nil && strings.TrimSpace(*u.IBAN) != ""
}

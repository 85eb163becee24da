package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction links a complaint to the transfer issued for it on the payment
// gateway. Rows are written once and never updated.
type Transaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	QuoteID         uuid.UUID       `gorm:"type:uuid;not null" json:"quote_id"`
	TransferID      int64           `gorm:"not null" json:"transfer_id"`
	TargetAccountID int64           `gorm:"not null" json:"target_account_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(19,4);not null" json:"amount"`
	// ComplaintID is cleared when the complaint is deleted; the row itself stays.
	ComplaintID *uint      `gorm:"uniqueIndex" json:"complaint_id"`
	Complaint   *Complaint `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

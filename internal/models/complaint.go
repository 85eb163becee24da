package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComplaintStatus is the review state of a complaint
type ComplaintStatus string

const (
	ComplaintStatusPending  ComplaintStatus = "pending"
	ComplaintStatusApproved ComplaintStatus = "approved"
	ComplaintStatusRejected ComplaintStatus = "rejected"
)

// Valid reports whether s is one of the known statuses
func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintStatusPending, ComplaintStatusApproved, ComplaintStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s ComplaintStatus) Terminal() bool {
	return s == ComplaintStatusApproved || s == ComplaintStatusRejected
}

// complaintTransitions lists the allowed moves out of each status.
// APPROVED and REJECTED are terminal.
var complaintTransitions = map[ComplaintStatus][]ComplaintStatus{
	ComplaintStatusPending:  {ComplaintStatusApproved, ComplaintStatusRejected},
	ComplaintStatusApproved: {},
	ComplaintStatusRejected: {},
}

// CanTransition reports whether a complaint may move from one status to another
func CanTransition(from, to ComplaintStatus) bool {
	for _, s := range complaintTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Complaint is a reimbursement request raised by a complainer
type Complaint struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Title        string          `gorm:"type:varchar(120);not null" json:"title"`
	Description  string          `gorm:"type:text;not null" json:"description"`
	PhotoURL     string          `gorm:"type:text;not null" json:"photo_url"`
	Amount       decimal.Decimal `gorm:"type:decimal(19,4);not null" json:"amount"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	Status       ComplaintStatus `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	ComplainerID uint            `gorm:"not null;index" json:"complainer_id"`
}

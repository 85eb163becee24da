// Package store persists users, complaints and transactions. Every read is
// an explicit query; nothing is loaded through lazy relations.
package store

import (
	"errors"
	"strings"

	"github.com/reclaim/backend/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("record does not exist")
	// ErrAlreadyExists is returned when a uniqueness constraint is violated
	ErrAlreadyExists = errors.New("record already exists")
	// ErrImmutable is returned for writes to records that are never updated
	ErrImmutable = errors.New("record cannot be modified")
	// ErrStatusConflict is returned when a status change loses against a concurrent one
	ErrStatusConflict = errors.New("status changed concurrently")
	// ErrInvalidStatus is returned for a status that is not a valid initial value
	ErrInvalidStatus = errors.New("invalid status")
)

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// Query selects a page of records. Skip is a cursor: only records with an id
// greater than Skip are returned, ordered by id. It is not an offset. A nil
// Limit means DefaultLimit; a zero Limit selects an empty page.
type Query struct {
	Skip  uint
	Limit *int

	Status       *models.ComplaintStatus
	ComplainerID *uint
	ComplaintID  *uint
	Email        string
}

// WithStatus narrows the query to one complaint status
func (q Query) WithStatus(status models.ComplaintStatus) Query {
	q.Status = &status
	return q
}

// WithComplainer narrows the query to complaints owned by one user
func (q Query) WithComplainer(userID uint) Query {
	q.ComplainerID = &userID
	return q
}

// WithComplaint narrows the query to the transaction of one complaint
func (q Query) WithComplaint(complaintID uint) Query {
	q.ComplaintID = &complaintID
	return q
}

// WithLimit sets the page size
func (q Query) WithLimit(limit int) Query {
	q.Limit = &limit
	return q
}

func (q Query) limit() int {
	switch {
	case q.Limit == nil:
		return DefaultLimit
	case *q.Limit < 0:
		return 0
	case *q.Limit > MaxLimit:
		return MaxLimit
	}
	return *q.Limit
}

// paginate applies the cursor and page size
func (q Query) paginate(tx *gorm.DB, idColumn string) *gorm.DB {
	return tx.Where(idColumn+" > ?", q.Skip).Order(idColumn + " ASC").Limit(q.limit())
}

// translateError maps gorm errors onto the store's error kinds
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return ErrAlreadyExists
	}
	return err
}

// isUniqueViolation covers drivers that do not implement gorm's error translator
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

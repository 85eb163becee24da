package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/reclaim/backend/internal/models"
	"gorm.io/gorm"
)

// TransactionStore persists gateway transactions. There is at most one
// transaction per complaint and none is ever modified after creation.
type TransactionStore struct {
	db *gorm.DB
}

// NewTransactionStore creates a new transaction store
func NewTransactionStore(db *gorm.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// Create inserts a transaction. A second transaction for the same complaint
// fails with ErrAlreadyExists.
func (s *TransactionStore) Create(ctx context.Context, transaction *models.Transaction) error {
	if transaction.ComplaintID == nil {
		return errors.New("transaction must reference a complaint")
	}
	if transaction.ID != 0 {
		return ErrImmutable
	}

	if err := s.db.WithContext(ctx).Create(transaction).Error; err != nil {
		return fmt.Errorf("error creating transaction: %w", translateError(err))
	}
	return nil
}

// Update always fails: corrections go through the gateway (cancel or refund),
// never through a local write.
func (s *TransactionStore) Update(ctx context.Context, transaction *models.Transaction) error {
	return ErrImmutable
}

// Get gets a transaction by ID
func (s *TransactionStore) Get(ctx context.Context, id uint) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.WithContext(ctx).First(&transaction, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &transaction, nil
}

// GetByComplaintID gets the transaction issued for a complaint
func (s *TransactionStore) GetByComplaintID(ctx context.Context, complaintID uint) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.WithContext(ctx).First(&transaction, "complaint_id = ?", complaintID).Error; err != nil {
		return nil, translateError(err)
	}
	return &transaction, nil
}

// List returns one page of transactions matching q
func (s *TransactionStore) List(ctx context.Context, q Query) ([]models.Transaction, error) {
	tx := s.db.WithContext(ctx).Model(&models.Transaction{})
	if q.ComplaintID != nil {
		tx = tx.Where("complaint_id = ?", *q.ComplaintID)
	}

	transactions := make([]models.Transaction, 0)
	if q.limit() == 0 {
		return transactions, nil
	}
	if err := q.paginate(tx, "id").Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	return transactions, nil
}

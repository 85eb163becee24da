package store

import (
	"context"
	"fmt"
	"time"

	"github.com/reclaim/backend/internal/models"
	"gorm.io/gorm"
)

// ComplaintStore persists complaints and guards their status transitions
type ComplaintStore struct {
	db *gorm.DB
}

// NewComplaintStore creates a new complaint store
func NewComplaintStore(db *gorm.DB) *ComplaintStore {
	return &ComplaintStore{db: db}
}

// Create inserts a complaint. PENDING is the only accepted initial status.
func (s *ComplaintStore) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.Status == "" {
		complaint.Status = models.ComplaintStatusPending
	}
	if complaint.Status != models.ComplaintStatusPending {
		return fmt.Errorf("%w: complaints start as %s, got %s", ErrInvalidStatus, models.ComplaintStatusPending, complaint.Status)
	}
	if complaint.Amount.IsNegative() {
		return fmt.Errorf("complaint amount must not be negative")
	}

	if err := s.db.WithContext(ctx).Create(complaint).Error; err != nil {
		return fmt.Errorf("error creating complaint: %w", translateError(err))
	}
	return nil
}

// Get gets a complaint by ID
func (s *ComplaintStore) Get(ctx context.Context, id uint) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := s.db.WithContext(ctx).First(&complaint, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &complaint, nil
}

// List returns one page of complaints matching q
func (s *ComplaintStore) List(ctx context.Context, q Query) ([]models.Complaint, error) {
	tx := s.db.WithContext(ctx).Model(&models.Complaint{})
	if q.Status != nil {
		tx = tx.Where("status = ?", *q.Status)
	}
	if q.ComplainerID != nil {
		tx = tx.Where("complainer_id = ?", *q.ComplainerID)
	}

	complaints := make([]models.Complaint, 0)
	if q.limit() == 0 {
		return complaints, nil
	}
	if err := q.paginate(tx, "id").Find(&complaints).Error; err != nil {
		return nil, fmt.Errorf("error listing complaints: %w", err)
	}
	return complaints, nil
}

// Transition moves a complaint from one status to another. The update only
// applies while the stored status still equals from, so two reviewers racing
// on the same complaint cannot both win.
func (s *ComplaintStore) Transition(ctx context.Context, id uint, from, to models.ComplaintStatus) (*models.Complaint, error) {
	if !models.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, from, to)
	}

	result := s.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return nil, fmt.Errorf("error updating complaint status: %w", result.Error)
	}

	complaint, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return complaint, ErrStatusConflict
	}
	return complaint, nil
}

// Delete removes a complaint regardless of its status
func (s *ComplaintStore) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Complaint{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("error deleting complaint: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOrphaned returns pending complaints created before the cutoff that
// have no transaction. These are left behind when the gateway fails after
// the complaint row was written.
func (s *ComplaintStore) ListOrphaned(ctx context.Context, createdBefore time.Time) ([]models.Complaint, error) {
	complaints := make([]models.Complaint, 0)
	err := s.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Joins("LEFT JOIN transactions ON transactions.complaint_id = complaints.id").
		Where("transactions.id IS NULL").
		Where("complaints.status = ?", models.ComplaintStatusPending).
		Where("complaints.created_at < ?", createdBefore).
		Order("complaints.id ASC").
		Find(&complaints).Error
	if err != nil {
		return nil, fmt.Errorf("error listing orphaned complaints: %w", err)
	}
	return complaints, nil
}

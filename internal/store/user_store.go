package store

import (
	"context"
	"fmt"

	"github.com/reclaim/backend/internal/models"
	"gorm.io/gorm"
)

// UserStore persists users
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a new user store
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a user. A duplicate email fails with ErrAlreadyExists.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleComplainer
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("error creating user: %w", translateError(err))
	}
	return nil
}

// Get gets a user by ID
func (s *UserStore) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// GetByEmail gets a user by email
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// List returns one page of users matching q
func (s *UserStore) List(ctx context.Context, q Query) ([]models.User, error) {
	tx := s.db.WithContext(ctx).Model(&models.User{})
	if q.Email != "" {
		tx = tx.Where("email = ?", q.Email)
	}

	users := make([]models.User, 0)
	if q.limit() == 0 {
		return users, nil
	}
	if err := q.paginate(tx, "id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

// ChangeRole sets the role of a user
func (s *UserStore) ChangeRole(ctx context.Context, id uint, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if result.Error != nil {
		return nil, fmt.Errorf("error updating user role: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// ProfileUpdate holds the user-editable fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	IBAN      *string
}

// UpdateProfile applies a profile update to a user
func (s *UserStore) UpdateProfile(ctx context.Context, id uint, update ProfileUpdate) (*models.User, error) {
	fields := map[string]interface{}{}
	if update.FirstName != nil {
		fields["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		fields["last_name"] = *update.LastName
	}
	if update.Phone != nil {
		fields["phone"] = *update.Phone
	}
	if update.IBAN != nil {
		fields["iban"] = *update.IBAN
	}
	if len(fields) == 0 {
		return s.Get(ctx, id)
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return nil, fmt.Errorf("error updating user profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

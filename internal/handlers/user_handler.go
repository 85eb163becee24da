package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/reclaim/backend/internal/middleware"
	"github.com/reclaim/backend/internal/models"
	"github.com/reclaim/backend/internal/store"
	"github.com/reclaim/backend/internal/utils"
)

// UserStore persists users
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context, q store.Query) ([]models.User, error)
	ChangeRole(ctx context.Context, id uint, role models.Role) (*models.User, error)
	UpdateProfile(ctx context.Context, id uint, update store.ProfileUpdate) (*models.User, error)
}

// UserHandler handles user registration and administration
type UserHandler struct {
	users UserStore
}

// NewUserHandler creates a new user handler
func NewUserHandler(users UserStore) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required"`
	FirstName string  `json:"first_name" binding:"required"`
	LastName  string  `json:"last_name" binding:"required"`
	Phone     string  `json:"phone"`
	IBAN      *string `json:"iban"`
}

// ProfileUpdateRequest represents a request to update the caller's profile
type ProfileUpdateRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	IBAN      *string `json:"iban"`
}

// Register creates a complainer account
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	email := utils.NormalizeEmail(req.Email)
	if err := utils.ValidatePassword(req.Password, email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	user := &models.User{
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        req.Phone,
		IBAN:         normalizeIBAN(req.IBAN),
		Role:         models.RoleComplainer,
		PasswordHash: hash,
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Me returns the authenticated user
func (h *UserHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

// UpdateMe updates the authenticated user's profile
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.CurrentUser(c).ID, store.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		IBAN:      normalizeIBAN(req.IBAN),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// List lists users, optionally filtered by email
func (h *UserHandler) List(c *gin.Context) {
	q, ok := parsePage(c)
	if !ok {
		return
	}
	if email := c.Query("email"); email != "" {
		q.Email = utils.NormalizeEmail(email)
	}

	users, err := h.users.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// MakeAdmin grants the admin role
func (h *UserHandler) MakeAdmin(c *gin.Context) {
	h.changeRole(c, models.RoleAdmin)
}

// MakeApprover grants the approver role
func (h *UserHandler) MakeApprover(c *gin.Context) {
	h.changeRole(c, models.RoleApprover)
}

func (h *UserHandler) changeRole(c *gin.Context, role models.Role) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.users.ChangeRole(c.Request.Context(), id, role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// normalizeIBAN strips spaces and uppercases an IBAN
func normalizeIBAN(iban *string) *string {
	if iban == nil {
		return nil
	}
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(*iban), " ", ""))
	return &normalized
}

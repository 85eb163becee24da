package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reclaim/backend/internal/models"
	"github.com/reclaim/backend/internal/utils"
)

// CredentialStore looks up users by login name
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthHandler handles authentication related requests
type AuthHandler struct {
	users     CredentialStore
	jwtSecret string
	tokenTTL  time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users CredentialStore, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// Token exchanges form credentials for a bearer token
func (h *AuthHandler) Token(c *gin.Context) {
	username := utils.NormalizeEmail(c.PostForm("username"))
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), username)
	if err != nil || !utils.CheckPasswordHash(password, user.PasswordHash) {
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect username or password"})
		return
	}

	token, err := utils.GenerateToken(user, h.jwtSecret, h.tokenTTL)
	if err != nil {
		log.Printf("Error generating token for user %d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, token)
}

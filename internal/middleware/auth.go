package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/reclaim/backend/internal/models"
	"github.com/reclaim/backend/internal/utils"
)

const userKey = "user"

// UserLoader loads the user a token was issued to
type UserLoader interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// AuthMiddleware verifies JWT tokens and stores the current user in the context
func AuthMiddleware(secret string, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			abortCredentials(c)
			return
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			abortCredentials(c)
			return
		}

		// roles can change after the token was issued
		user, err := users.Get(c.Request.Context(), claims.UserID)
		if err != nil {
			abortCredentials(c)
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequireRole lets through users holding one of the given roles
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortCredentials(c)
			return
		}

		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{"error": "User does not have enough privileges"})
		c.Abort()
	}
}

// CurrentUser returns the authenticated user, or nil
func CurrentUser(c *gin.Context) *models.User {
	value, exists := c.Get(userKey)
	if !exists {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}

func abortCredentials(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "Could not validate credentials"})
	c.Abort()
}

// extractToken gets the token from the Authorization header
func extractToken(c *gin.Context) string {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

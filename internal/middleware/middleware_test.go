package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reclaim/backend/internal/models"
	"github.com/reclaim/backend/internal/store"
	"github.com/reclaim/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubUsers map[uint]*models.User

func (s stubUsers) Get(ctx context.Context, id uint) (*models.User, error) {
	if user, ok := s[id]; ok {
		return user, nil
	}
	return nil, store.ErrNotFound
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(users UserLoader, roles ...models.Role) *gin.Engine {
	r := gin.New()
	r.GET("/protected", AuthMiddleware(testSecret, users), RequireRole(roles...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": CurrentUser(c).Email})
	})
	return r
}

func bearer(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := utils.GenerateToken(user, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token.AccessToken
}

func TestAuthMiddleware(t *testing.T) {
	approver := &models.User{ID: 1, Email: "grace@example.com", Role: models.RoleApprover}
	complainer := &models.User{ID: 2, Email: "ada@example.com", Role: models.RoleComplainer}
	r := newRouter(stubUsers{1: approver, 2: complainer}, models.RoleApprover)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing token", "", http.StatusForbidden, "Could not validate credentials"},
		{"malformed token", "Bearer nope", http.StatusForbidden, "Could not validate credentials"},
		{"unknown user", bearer(t, &models.User{ID: 9, Role: models.RoleApprover}), http.StatusForbidden, "Could not validate credentials"},
		{"wrong role", bearer(t, complainer), http.StatusForbidden, "User does not have enough privileges"},
		{"allowed", bearer(t, approver), http.StatusOK, "grace@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestRoleIsReadFromStoreNotToken(t *testing.T) {
	demoted := &models.User{ID: 1, Email: "grace@example.com", Role: models.RoleComplainer}
	r := newRouter(stubUsers{1: demoted}, models.RoleApprover)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearer(t, &models.User{ID: 1, Role: models.RoleApprover}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestIPRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 60, 2, 1)
	defer rl.Stop()

	r := gin.New()
	r.Use(rl.IPRateLimiterMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestAuthRateLimiter(t *testing.T) {
	rl := NewRateLimiter(100, 1, 100, 1)
	defer rl.Stop()

	r := gin.New()
	r.POST("/token", rl.AuthRateLimiterMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	login := func(username string) int {
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader("username="+username+"&password=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, login("ada@example.com"))
	assert.Equal(t, http.StatusTooManyRequests, login("ada@example.com"))
	assert.Equal(t, http.StatusOK, login("grace@example.com"))
}

func TestSecureHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecureHeadersMiddleware(DefaultSecureHeadersConfig(true)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
}

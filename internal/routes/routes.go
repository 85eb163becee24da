package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reclaim/backend/internal/handlers"
	"github.com/reclaim/backend/internal/middleware"
	"github.com/reclaim/backend/internal/models"
	"github.com/reclaim/backend/internal/queue"
	"github.com/reclaim/backend/internal/services/complaint"
	"github.com/reclaim/backend/internal/store"
)

// QueueStats reports the backlog of a background queue
type QueueStats interface {
	Stats(ctx context.Context, queueName string) (*queue.Stats, error)
}

// Dependencies holds everything the HTTP surface is built from
type Dependencies struct {
	Users       *store.UserStore
	Complaints  *complaint.Service
	Queue       QueueStats
	JWTSecret   string
	TokenTTL    time.Duration
	RateLimiter *middleware.RateLimiter
}

// SetupRoutes registers every API route on the router
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.Users, deps.JWTSecret, deps.TokenTTL)
	userHandler := handlers.NewUserHandler(deps.Users)
	complaintHandler := handlers.NewComplaintHandler(deps.Complaints)

	router.GET("/health", health(deps.Queue))

	api := router.Group("/api/v1")
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.IPRateLimiterMiddleware())
	}

	authenticated := middleware.AuthMiddleware(deps.JWTSecret, deps.Users)

	// Auth routes
	authGroup := api.Group("/auth")
	if deps.RateLimiter != nil {
		authGroup.Use(deps.RateLimiter.AuthRateLimiterMiddleware())
	}
	{
		authGroup.POST("/token", authHandler.Token)
	}

	// User routes
	api.POST("/users/register", userHandler.Register)
	userGroup := api.Group("/users")
	userGroup.Use(authenticated)
	{
		userGroup.GET("/me", userHandler.Me)
		userGroup.PUT("/me", userHandler.UpdateMe)

		admin := middleware.RequireRole(models.RoleAdmin)
		userGroup.GET("", admin, userHandler.List)
		userGroup.PUT("/:id/make-admin", admin, userHandler.MakeAdmin)
		userGroup.PUT("/:id/make-approver", admin, userHandler.MakeApprover)
	}

	// Complaint routes
	complaintGroup := api.Group("/complaints")
	complaintGroup.Use(authenticated)
	{
		complaintGroup.GET("", complaintHandler.List)
		complaintGroup.POST("", middleware.RequireRole(models.RoleComplainer), complaintHandler.Create)

		approver := middleware.RequireRole(models.RoleApprover)
		complaintGroup.PUT("/:id/approve", approver, complaintHandler.Approve)
		complaintGroup.PUT("/:id/reject", approver, complaintHandler.Reject)
		complaintGroup.DELETE("/:id", middleware.RequireRole(models.RoleAdmin), complaintHandler.Delete)
	}
}

// health reports liveness and, when a queue is wired, the notification backlog.
// An unreachable queue marks the service degraded.
func health(q QueueStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		if q == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		stats, err := q.Stats(c.Request.Context(), queue.QueueNotifications)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "notification queue unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "notifications": stats})
	}
}

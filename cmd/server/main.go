package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/reclaim/backend/internal/config"
	"github.com/reclaim/backend/internal/database"
	"github.com/reclaim/backend/internal/database/migrations"
	"github.com/reclaim/backend/internal/jobs"
	"github.com/reclaim/backend/internal/middleware"
	"github.com/reclaim/backend/internal/queue"
	"github.com/reclaim/backend/internal/routes"
	"github.com/reclaim/backend/internal/services/complaint"
	"github.com/reclaim/backend/internal/services/email"
	"github.com/reclaim/backend/internal/services/storage"
	"github.com/reclaim/backend/internal/services/wise"
	"github.com/reclaim/backend/internal/store"
)

const notificationWorkers = 2

func main() {
	// Initialize configuration
	cfg := config.LoadConfig()
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := migrations.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis client
	redisOptions, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	redisOptions.DB = cfg.Redis.DB
	redisClient := redis.NewClient(redisOptions)

	ctx := context.Background()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	redisQueue := queue.NewRedisClient(redisClient)

	// Initialize AWS clients
	s3Client, sesClient, err := newAWSClients(ctx, cfg.AWS)
	if err != nil {
		log.Fatalf("Failed to load AWS configuration: %v", err)
	}

	// Initialize stores and services
	users := store.NewUserStore(db)
	complaints := store.NewComplaintStore(db)
	transactions := store.NewTransactionStore(db)

	wiseClient := wise.NewClient(wise.Config{
		Endpoint: cfg.Wise.Endpoint,
		Token:    cfg.Wise.Token,
		Currency: cfg.Wise.Currency,
		Timeout:  cfg.Wise.Timeout,
	})
	complaintService := complaint.NewService(
		complaints,
		transactions,
		users,
		wiseClient,
		storage.NewS3Service(s3Client, cfg.AWS.BucketName),
		queue.NewNotificationQueue(redisQueue, cfg.Jobs.NotificationMaxRetries),
		complaint.Options{GatewayTimeout: cfg.Wise.Timeout},
	)

	// Start background workers
	emailService := email.NewEmailService(sesClient, cfg.AWS.SESSender)
	runners, err := jobs.StartAll(
		queue.NewWorker(redisQueue, queue.QueueNotifications, queue.EmailHandler(emailService), notificationWorkers),
		jobs.NewReconcileJob(complaints, cfg.Jobs.ReconcileInterval),
	)
	if err != nil {
		log.Fatalf("Failed to start background jobs: %v", err)
	}

	rateLimiter := middleware.NewRateLimiter(
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.AuthPerMinute,
		cfg.RateLimit.Burst,
		cfg.RateLimit.AuthBurst,
	)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.SecureHeadersMiddleware(middleware.DefaultSecureHeadersConfig(cfg.Environment == "production")))

	routes.SetupRoutes(router, routes.Dependencies{
		Users:       users,
		Complaints:  complaintService,
		Queue:       redisQueue,
		JWTSecret:   cfg.JWT.Secret,
		TokenTTL:    time.Duration(cfg.JWT.ExpirationMinutes) * time.Minute,
		RateLimiter: rateLimiter,
	})

	// Start server
	srv := startServer(router, cfg.Server)

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	jobs.StopAll(runners)
	rateLimiter.Stop()
	if err := redisQueue.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Println("Server exiting")
}

// newAWSClients builds the S3 and SES clients. Static credentials are used
// when configured, otherwise the default AWS credential chain applies.
func newAWSClients(ctx context.Context, cfg config.AWSConfig) (*s3.Client, *ses.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	sesClient := ses.NewFromConfig(awsCfg, func(o *ses.Options) {
		o.Region = cfg.SESRegion
	})
	return s3.NewFromConfig(awsCfg), sesClient, nil
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, cfg config.ServerConfig) *http.Server {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Port)
	return srv
}

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter implements rate limiting for API endpoints
type RateLimiter struct {
	ipLimiters      map[string]*rate.Limiter
	authLimiters    map[string]*rate.Limiter
	ipMutex         sync.Mutex
	authMutex       sync.Mutex
	ipLimiterRate   rate.Limit
	authLimiterRate rate.Limit
	ipBurst         int
	authBurst       int
	cleanupTicker   *time.Ticker
	done            chan struct{}
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(ipRequestsPerSecond, authRequestsPerMinute float64, ipBurst, authBurst int) *RateLimiter {
	limiter := &RateLimiter{
		ipLimiters:      make(map[string]*rate.Limiter),
		authLimiters:    make(map[string]*rate.Limiter),
		ipLimiterRate:   rate.Limit(ipRequestsPerSecond),
		authLimiterRate: rate.Limit(authRequestsPerMinute / 60), // Convert to per-second rate
		ipBurst:         ipBurst,
		authBurst:       authBurst,
		cleanupTicker:   time.NewTicker(5 * time.Minute),
		done:            make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

// cleanup periodically drops all limiters so the maps do not grow without bound
func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.done:
			return
		case <-rl.cleanupTicker.C:
			rl.ipMutex.Lock()
			rl.ipLimiters = make(map[string]*rate.Limiter)
			rl.ipMutex.Unlock()

			rl.authMutex.Lock()
			rl.authLimiters = make(map[string]*rate.Limiter)
			rl.authMutex.Unlock()
		}
	}
}

// Stop stops the rate limiter cleanup
func (rl *RateLimiter) Stop() {
	rl.cleanupTicker.Stop()
	close(rl.done)
}

func limiterFor(mu *sync.Mutex, limiters map[string]*rate.Limiter, key string, limit rate.Limit, burst int) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	limiter, exists := limiters[key]
	if !exists {
		limiter = rate.NewLimiter(limit, burst)
		limiters[key] = limiter
	}
	return limiter
}

func (rl *RateLimiter) getIPLimiter(ip string) *rate.Limiter {
	return limiterFor(&rl.ipMutex, rl.ipLimiters, ip, rl.ipLimiterRate, rl.ipBurst)
}

func (rl *RateLimiter) getAuthLimiter(key string) *rate.Limiter {
	return limiterFor(&rl.authMutex, rl.authLimiters, key, rl.authLimiterRate, rl.authBurst)
}

// IPRateLimiterMiddleware limits requests based on IP address
func (rl *RateLimiter) IPRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getIPLimiter(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// AuthRateLimiterMiddleware limits login attempts per IP and username
func (rl *RateLimiter) AuthRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.PostForm("username")
		if username != "" {
			key := c.ClientIP() + ":" + username
			if !rl.getAuthLimiter(key).Allow() {
				c.JSON(http.StatusTooManyRequests, gin.H{
					"error": "too many authentication attempts, please try again later",
				})
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

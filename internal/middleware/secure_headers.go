package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// SecureHeadersConfig contains configuration for secure headers
type SecureHeadersConfig struct {
	UseHSTS    bool
	HSTSMaxAge time.Duration

	XFrameOptions  string
	ReferrerPolicy string
}

// DefaultSecureHeadersConfig returns the secure headers for a JSON API
func DefaultSecureHeadersConfig(production bool) SecureHeadersConfig {
	return SecureHeadersConfig{
		UseHSTS:        production,
		HSTSMaxAge:     365 * 24 * time.Hour,
		XFrameOptions:  "DENY",
		ReferrerPolicy: "strict-origin-when-cross-origin",
	}
}

// SecureHeadersMiddleware adds security headers to responses
func SecureHeadersMiddleware(config SecureHeadersConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.UseHSTS {
			c.Header("Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", int64(config.HSTSMaxAge.Seconds())))
		}
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", config.XFrameOptions)
		c.Header("Referrer-Policy", config.ReferrerPolicy)
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		c.Next()
	}
}

package server

import (
	"auction-live/utils"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	})
}

// UserIdentityMiddleware lifts the caller identity headers onto the request
// context. Auth proper is handled upstream at the gateway; the core trusts
// these headers.
func UserIdentityMiddleware(c *gin.Context) {
	if userID := c.GetHeader("X-User-ID"); userID != "" {
		c.Set("user_id", userID)
	}
	if username := c.GetHeader("X-Username"); username != "" {
		c.Set("username", username)
	}
	c.Next()
}

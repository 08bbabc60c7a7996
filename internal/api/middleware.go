package api

import (
	"crypto/subtle"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// requestID tags every request, reusing the caller's id when it sent one
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.LogRequest(
			l.WithField("request_id", c.GetString("request_id")),
			c.Request.Method,
			c.FullPath(),
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(start),
		)
	}
}

func recovery(l logger.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		l.ErrorWithFields("Handler panicked", map[string]interface{}{
			"request_id": c.GetString("request_id"),
			"panic":      fmt.Sprint(recovered),
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
		})
	})
}

func cors(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, X-Request-ID")
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// rateLimit answers 429 once a client IP exceeds its window
func rateLimit(k *ratelimit.Keyed) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := k.Allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", fmt.Sprint(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

func requireAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader("X-API-Key")), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid API key"})
			return
		}
		c.Next()
	}
}

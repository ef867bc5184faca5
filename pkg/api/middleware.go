package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// authMiddleware reads the identity the auth collaborator injects upstream.
// Requests without it are rejected before reaching any handler.
func authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication required."})
			return
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication required."})
			return
		}
		c.Set(userIDKey, uint(id))
		c.Next()
	}
}

func currentUser(c *gin.Context) uint {
	return c.GetUint(userIDKey)
}

// throttleMiddleware enforces the burst/rapid/daily tiers on order creation
// with fixed-window counters in Redis. Redis being down fails open; blunting
// abuse is not worth failing checkouts.
func throttleMiddleware(redis *repository.RedisRepository, cfg *config.ThrottleConfig, logger *zap.Logger) gin.HandlerFunc {
	type tier struct {
		name   string
		limit  int
		window time.Duration
	}
	tiers := []tier{
		{"burst", cfg.BurstLimit, cfg.BurstWindow},
		{"rapid", cfg.RapidLimit, cfg.RapidWindow},
		{"daily", cfg.DailyLimit, 24 * time.Hour},
	}

	return func(c *gin.Context) {
		if redis == nil {
			c.Next()
			return
		}
		userID := currentUser(c)
		for _, t := range tiers {
			if t.limit <= 0 || t.window <= 0 {
				continue
			}
			key := fmt.Sprintf("throttle:%s:%d", t.name, userID)
			count, err := redis.IncrWindow(c.Request.Context(), key, t.window)
			if err != nil {
				logger.Warn("Throttle counter unavailable", zap.String("tier", t.name), zap.Error(err))
				continue
			}
			if count > int64(t.limit) {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"detail": "Request was throttled.",
				})
				return
			}
		}
		c.Next()
	}
}

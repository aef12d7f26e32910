package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RateLimiter 固定窗口计数器，由 Redis 状态仓库实现
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 返回一个 Gin 中间件，按客户端 IP 限流。
// maxRequests: 在指定时间窗口内允许的最大请求数。
func RateLimit(limiter RateLimiter, maxRequests int, window time.Duration) gin.HandlerFunc {
	if limiter == nil {
		panic("RateLimiter cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		// 服务在反向代理后面时需要配置 gin 的 TrustedProxies，ClientIP 才是真实地址
		key := "ip:" + c.ClientIP()

		exceeded, err := limiter.CheckRateLimit(c.Request.Context(), key, maxRequests, window)
		if err != nil {
			logrus.WithError(err).Error("RateLimit: limiter check failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limiting error"})
			c.Abort()
			return
		}
		if exceeded {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}

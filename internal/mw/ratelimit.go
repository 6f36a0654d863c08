package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"trackline-backend/config"
)

// ClientLimiter keeps one token bucket per client IP.
type ClientLimiter struct {
	clients map[string]*rate.Limiter
	mu      sync.RWMutex
	r       rate.Limit
	b       int
}

// NewClientLimiter allows r requests per second per client with bursts of b.
func NewClientLimiter(r rate.Limit, b int) *ClientLimiter {
	return &ClientLimiter{
		clients: make(map[string]*rate.Limiter),
		r:       r,
		b:       b,
	}
}

// Limiter returns the bucket of ip, creating it on first use.
func (l *ClientLimiter) Limiter(ip string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.clients[ip]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.clients[ip]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(l.r, l.b)
	l.clients[ip] = limiter
	return limiter
}

// RateLimiter rejects requests above the configured per-IP rate with 429.
func RateLimiter(cfg config.ServerConfig) gin.HandlerFunc {
	limiter := NewClientLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / cfg.RateLimitPerSec)))
	return func(c *gin.Context) {
		if !limiter.Limiter(c.ClientIP()).Allow() {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

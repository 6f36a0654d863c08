package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"

	"trackline-backend/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(config.ServerConfig{RateLimitPerSec: 1, RateLimitBurst: 2}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes[i] = w.Code
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientLimiter_ReusesBuckets(t *testing.T) {
	l := NewClientLimiter(1, 1)
	assert.Same(t, l.Limiter("a"), l.Limiter("a"))
	assert.NotSame(t, l.Limiter("a"), l.Limiter("b"))
}

func TestResponseCache(t *testing.T) {
	calls := 0
	r := gin.New()
	r.Use(ResponseCache(cache.New(time.Minute, time.Minute), time.Minute))
	r.GET("/tracks", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/missing", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
		return w
	}

	first := get("/tracks?from=1")
	second := get("/tracks?from=1")
	assert.JSONEq(t, `{"calls":1}`, first.Body.String())
	assert.JSONEq(t, `{"calls":1}`, second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")

	assert.JSONEq(t, `{"calls":2}`, get("/tracks?from=2").Body.String())

	get("/missing")
	get("/missing")
	assert.Equal(t, 4, calls, "errors are not cached")
}

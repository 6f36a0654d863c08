package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trackline-backend/config"
	"trackline-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(cfg)
	cacheStore := cache.New(cfg.ResponseCache, 2*cfg.ResponseCache+time.Minute)
	caching := mw.ResponseCache(cacheStore, cfg.ResponseCache)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		users := api.Group("/users/:user_id")

		// POST /api/users/{user_id}/points/events
		users.POST("/points/events", h.PostPointEvents)

		// POST /api/users/{user_id}/tracks/generate
		users.POST("/tracks/generate", h.PostGenerate)

		// GET /api/users/{user_id}/track_generation/{session_id}
		users.GET("/track_generation/:session_id", h.GetGenerationStatus)

		// GET /api/users/{user_id}/tracks
		users.GET("/tracks", caching, h.GetTracks)
	}

	return r
}

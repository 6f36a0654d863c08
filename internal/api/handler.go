package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"trackline-backend/internal/debounce"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/store"
	"trackline-backend/internal/tracks"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine    *tracks.Engine
	debouncer *debounce.Debouncer
	store     store.Store
	log       *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(engine *tracks.Engine, debouncer *debounce.Debouncer, s store.Store, log *logger.Logger) *Handler {
	return &Handler{
		engine:    engine,
		debouncer: debouncer,
		store:     s,
		log:       log.With("component", "api"),
	}
}

func userIDParam(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return userID, true
}

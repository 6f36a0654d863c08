package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"trackline-backend/internal/debounce"
)

type pointEventRequest struct {
	Imported bool `json:"imported"`
}

// PostPointEvents handles POST /api/users/:user_id/points/events, sent after
// new points are stored.
func (h *Handler) PostPointEvents(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req pointEventRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.debouncer.Trigger(c.Request.Context(), debounce.Event{UserID: userID, Imported: req.Imported})
	c.JSON(http.StatusAccepted, gin.H{"result": res})
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trackline-backend/internal/session"
)

// sessionResponse is the flattened structure for the progress API.
type sessionResponse struct {
	SessionID       string           `json:"session_id"`
	Status          session.Status   `json:"status"`
	CompletedChunks int              `json:"completed_chunks"`
	TotalChunks     int              `json:"total_chunks"`
	TracksCreated   int              `json:"tracks_created"`
	Progress        float64          `json:"progress"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	Metadata        session.Metadata `json:"metadata"`
}

func newSessionResponse(s *session.Session) sessionResponse {
	return sessionResponse{
		SessionID:       s.ID,
		Status:          s.Status,
		CompletedChunks: s.CompletedChunks,
		TotalChunks:     s.TotalChunks,
		TracksCreated:   s.TracksCreated,
		Progress:        s.Progress(),
		ErrorMessage:    s.ErrorMessage,
		Metadata:        s.Metadata,
	}
}

// GetGenerationStatus handles GET /api/users/:user_id/track_generation/:session_id.
func (h *Handler) GetGenerationStatus(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	s, err := h.engine.Sessions.Get(c.Request.Context(), userID, c.Param("session_id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(s))
}

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"trackline-backend/internal/tracks"
)

type generateRequest struct {
	Mode    string `json:"mode"`
	StartAt *int64 `json:"start_at"`
	EndAt   *int64 `json:"end_at"`
}

// PostGenerate handles POST /api/users/:user_id/tracks/generate. Parallel
// runs answer 202 with the session to poll; incremental runs finish inline.
func (h *Handler) PostGenerate(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := tracks.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.engine.Generate(c.Request.Context(), tracks.Request{
		UserID:  userID,
		Mode:    mode,
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
	})
	if err != nil {
		if errors.Is(err, tracks.ErrBadRange) || errors.Is(err, tracks.ErrUnknownMode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("track generation failed", "user_id", userID, "mode", mode, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "track generation failed"})
		return
	}

	if res.Incremental != nil {
		c.JSON(http.StatusOK, res.Incremental)
		return
	}
	c.JSON(http.StatusAccepted, newSessionResponse(res.Session))
}

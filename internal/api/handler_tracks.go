package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"trackline-backend/internal/model"
)

// TrackResponse represents one track in the listing API.
type TrackResponse struct {
	ID            int64             `json:"id"`
	StartAt       time.Time         `json:"start_at"`
	EndAt         time.Time         `json:"end_at"`
	Distance      int               `json:"distance"`
	Duration      int64             `json:"duration"`
	AvgSpeed      float64           `json:"avg_speed"`
	ElevationGain float64           `json:"elevation_gain"`
	ElevationLoss float64           `json:"elevation_loss"`
	DominantMode  string            `json:"dominant_mode,omitempty"`
	Path          string            `json:"path"`
	Segments      []SegmentResponse `json:"segments"`
}

// SegmentResponse is one classified stretch of a track.
type SegmentResponse struct {
	Mode       string  `json:"mode"`
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
	Confidence float64 `json:"confidence"`
}

// GetTracks handles GET /api/users/:user_id/tracks?from=&to= with unix bounds.
func (h *Handler) GetTracks(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}

	list, err := h.store.ListTracks(c.Request.Context(), userID, from, to)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tracks"})
		return
	}

	responses := make([]TrackResponse, 0, len(list))
	for _, t := range list {
		responses = append(responses, newTrackResponse(t))
	}
	c.JSON(http.StatusOK, responses)
}

func newTrackResponse(t model.Track) TrackResponse {
	segments := make([]SegmentResponse, 0, len(t.Segments))
	for _, s := range t.Segments {
		segments = append(segments, SegmentResponse{Mode: s.Mode, StartIndex: s.StartIndex, EndIndex: s.EndIndex, Confidence: s.Confidence})
	}
	return TrackResponse{
		ID: t.ID, StartAt: t.StartAt, EndAt: t.EndAt,
		Distance: t.Distance, Duration: t.Duration, AvgSpeed: t.AvgSpeed,
		ElevationGain: t.ElevationGain, ElevationLoss: t.ElevationLoss,
		DominantMode: t.DominantMode, Path: t.OriginalPath,
		Segments: segments,
	}
}

func timeQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid '" + key + "' timestamp. Use unix seconds."})
		return nil, false
	}
	t := time.Unix(ts, 0).UTC()
	return &t, true
}

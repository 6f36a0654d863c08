package tracks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trackline-backend/internal/cache"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/model"
)

// SegmentHandler decides whether a segment is final and keeps the ones that
// may still grow.
type SegmentHandler interface {
	ShouldFinalize(segment []model.Point) bool
	HandleIncomplete(ctx context.Context, segment []model.Point) error
	// Cleanup drops buffered state consumed by the run.
	Cleanup(ctx context.Context) error
}

// IgnoreHandler finalizes every segment; used when the input range is closed.
type IgnoreHandler struct{}

func (IgnoreHandler) ShouldFinalize([]model.Point) bool                      { return true }
func (IgnoreHandler) HandleIncomplete(context.Context, []model.Point) error { return nil }
func (IgnoreHandler) Cleanup(context.Context) error                          { return nil }

const bufferTTL = 24 * time.Hour

// BufferKey is the cache key holding a user's pending segment for one UTC day.
func BufferKey(userID int64, day string) string {
	return fmt.Sprintf("track_buffer:user:%d:%s", userID, day)
}

type bufferedSegment struct {
	PointIDs  []int64   `json:"point_ids"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BufferingHandler holds back segments whose last point is younger than the
// grace period. One handler serves one run.
type BufferingHandler struct {
	userID int64
	cache  cache.Store
	grace  time.Duration
	now    func() time.Time
	log    *logger.Logger

	finalized map[string]struct{}
	buffered  map[string]struct{}
}

func NewBufferingHandler(userID int64, c cache.Store, grace time.Duration, now func() time.Time, log *logger.Logger) *BufferingHandler {
	if now == nil {
		now = time.Now
	}
	return &BufferingHandler{
		userID:    userID,
		cache:     c,
		grace:     grace,
		now:       now,
		log:       log.With("component", "BufferingHandler", "user_id", userID),
		finalized: make(map[string]struct{}),
		buffered:  make(map[string]struct{}),
	}
}

// ShouldFinalize reports whether the segment's last point is older than the
// grace period, and remembers the day of finalized segments for Cleanup.
func (h *BufferingHandler) ShouldFinalize(segment []model.Point) bool {
	if len(segment) == 0 {
		return false
	}
	last := time.Unix(segment[len(segment)-1].Timestamp, 0)
	if h.now().Sub(last) < h.grace {
		return false
	}
	h.finalized[dayOf(segment[0].Timestamp)] = struct{}{}
	return true
}

// HandleIncomplete overwrites the buffer of the segment's day.
func (h *BufferingHandler) HandleIncomplete(ctx context.Context, segment []model.Point) error {
	if len(segment) == 0 {
		return nil
	}
	day := dayOf(segment[0].Timestamp)
	raw, err := json.Marshal(bufferedSegment{PointIDs: pointIDs(segment), UpdatedAt: h.now().UTC()})
	if err != nil {
		return err
	}
	if err := h.cache.Set(ctx, BufferKey(h.userID, day), raw, bufferTTL); err != nil {
		return fmt.Errorf("buffer segment for %s: %w", day, err)
	}
	h.buffered[day] = struct{}{}
	h.log.Debug("buffered incomplete segment", "day", day, "points", len(segment))
	return nil
}

func (h *BufferingHandler) Cleanup(ctx context.Context) error {
	var keys []string
	for day := range h.finalized {
		if _, pending := h.buffered[day]; pending {
			continue
		}
		keys = append(keys, BufferKey(h.userID, day))
	}
	if len(keys) == 0 {
		return nil
	}
	return h.cache.Delete(ctx, keys...)
}

func dayOf(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

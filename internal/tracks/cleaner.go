package tracks

import (
	"context"
	"time"

	"trackline-backend/internal/store"
)

// TrackCleaner removes the tracks a run is about to supersede.
type TrackCleaner interface {
	Clean(ctx context.Context, s store.Store) (int, error)
}

// NoOpCleaner keeps every track.
type NoOpCleaner struct{}

func (NoOpCleaner) Clean(context.Context, store.Store) (int, error) { return 0, nil }

// ReplaceCleaner deletes tracks overlapping [StartAt, EndAt]; nil bounds are open.
type ReplaceCleaner struct {
	UserID  int64
	StartAt *int64
	EndAt   *int64
}

func (c ReplaceCleaner) Clean(ctx context.Context, s store.Store) (int, error) {
	var start, end *time.Time
	if c.StartAt != nil {
		t := time.Unix(*c.StartAt, 0).UTC()
		start = &t
	}
	if c.EndAt != nil {
		t := time.Unix(*c.EndAt, 0).UTC()
		end = &t
	}
	ids, err := s.TrackIDsOverlapping(ctx, c.UserID, start, end)
	if err != nil {
		return 0, err
	}
	return s.DeleteTracks(ctx, ids)
}

// DailyCleaner deletes tracks overlapping the whole UTC days that contain
// [StartAt, EndAt]. A track crossing midnight into the window is deleted too,
// so its points are released before the window is rebuilt.
type DailyCleaner struct {
	UserID  int64
	StartAt int64
	EndAt   int64
}

func (c DailyCleaner) Clean(ctx context.Context, s store.Store) (int, error) {
	from, to := DayAligned(c.StartAt, c.EndAt)
	start, end := time.Unix(from, 0).UTC(), time.Unix(to, 0).UTC()
	ids, err := s.TrackIDsOverlapping(ctx, c.UserID, &start, &end)
	if err != nil {
		return 0, err
	}
	return s.DeleteTracks(ctx, ids)
}

// DayAligned widens [start, end] to the start of its first UTC day and the
// last second of its last UTC day.
func DayAligned(start, end int64) (int64, int64) {
	const day = int64(24 * 60 * 60)
	from := start - mod(start, day)
	to := end - mod(end, day) + day - 1
	return from, to
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

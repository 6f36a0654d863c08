package tracks

import (
	"context"
	"sort"
	"time"

	"trackline-backend/internal/model"
	"trackline-backend/internal/store"
)

// PointLoader supplies the ordered, de-duplicated points of one run.
type PointLoader interface {
	Load(ctx context.Context, s store.Store) ([]model.Point, error)
}

// BulkLoader loads every unassigned point of a user, optionally bounded.
type BulkLoader struct {
	UserID  int64
	StartAt *int64
	EndAt   *int64
}

// Load returns the untracked points of the bounded range.
func (l BulkLoader) Load(ctx context.Context, s store.Store) ([]model.Point, error) {
	points, err := s.UntrackedPoints(ctx, l.UserID, l.StartAt, l.EndAt)
	if err != nil {
		return nil, err
	}
	return normalize(points), nil
}

// ChunkLoader loads all points in a chunk's buffered window, assigned or not.
type ChunkLoader struct {
	UserID int64
	Chunk  TimeChunk
}

// Load returns every point of the buffered chunk window.
func (l ChunkLoader) Load(ctx context.Context, s store.Store) ([]model.Point, error) {
	points, err := s.PointsBetween(ctx, l.UserID, l.Chunk.BufferStart, l.Chunk.BufferEnd)
	if err != nil {
		return nil, err
	}
	return normalize(points), nil
}

// UntrackedLoader loads unassigned points of the recent lookback window.
type UntrackedLoader struct {
	UserID   int64
	Lookback time.Duration
	Now      func() time.Time
}

// Load returns the untracked points of the lookback window ending now.
func (l UntrackedLoader) Load(ctx context.Context, s store.Store) ([]model.Point, error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	start := now.Add(-l.Lookback).Unix()
	end := now.Unix()
	points, err := s.UntrackedPoints(ctx, l.UserID, &start, &end)
	if err != nil {
		return nil, err
	}
	return normalize(points), nil
}

// normalize sorts by (timestamp, id) and drops repeated ids.
func normalize(points []model.Point) []model.Point {
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Timestamp != points[j].Timestamp {
			return points[i].Timestamp < points[j].Timestamp
		}
		return points[i].ID < points[j].ID
	})
	seen := make(map[int64]struct{}, len(points))
	out := points[:0]
	for _, p := range points {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

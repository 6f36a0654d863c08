// Package tracks turns stored points into tracks and reconciles the tracks
// produced by parallel and realtime runs.
package tracks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"trackline-backend/internal/geo"
	"trackline-backend/internal/model"
	"trackline-backend/internal/store"
)

var (
	ErrTooFewPoints = errors.New("a track needs at least 2 points")
	ErrInvalidRange = errors.New("track ends before it starts")
)

// ComputeTrack derives geometry and statistics for an ordered point run.
// It does not touch the database.
func ComputeTrack(userID int64, points []model.Point) (*model.Track, error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}
	first, last := points[0], points[len(points)-1]
	if last.Timestamp < first.Timestamp {
		return nil, ErrInvalidRange
	}

	coords := make([]geo.Coord, len(points))
	var distance float64
	for i, p := range points {
		coords[i] = geo.Coord{Lat: p.Latitude, Lon: p.Longitude}
		if i > 0 {
			distance += geo.Distance(coords[i-1], coords[i])
		}
	}

	duration := last.Timestamp - first.Timestamp
	var avgSpeed float64
	if duration > 0 {
		avgSpeed = math.Round(distance/float64(duration)*3.6*100) / 100
	}

	gain, loss, maxAlt, minAlt := elevation(points)

	return &model.Track{
		UserID:        userID,
		StartAt:       time.Unix(first.Timestamp, 0).UTC(),
		EndAt:         time.Unix(last.Timestamp, 0).UTC(),
		Distance:      int(math.Round(distance)),
		Duration:      duration,
		AvgSpeed:      avgSpeed,
		ElevationGain: gain,
		ElevationLoss: loss,
		ElevationMax:  maxAlt,
		ElevationMin:  minAlt,
		OriginalPath:  geo.LineString(coords),
	}, nil
}

// elevation sums deltas between consecutive known altitudes. Points without
// altitude are skipped; all four values are zero without altitude data.
func elevation(points []model.Point) (gain, loss, maxAlt, minAlt float64) {
	var prev *float64
	for _, p := range points {
		if p.Altitude == nil {
			continue
		}
		alt := *p.Altitude
		if prev == nil {
			maxAlt, minAlt = alt, alt
		} else {
			delta := alt - *prev
			if delta > 0 {
				gain += delta
			} else {
				loss -= delta
			}
			maxAlt = math.Max(maxAlt, alt)
			minAlt = math.Min(minAlt, alt)
		}
		prev = p.Altitude
	}
	return gain, loss, maxAlt, minAlt
}

// Builder persists computed tracks and claims their points.
type Builder struct {
	store store.Store
}

// NewBuilder returns a Builder persisting through s.
func NewBuilder(s store.Store) *Builder {
	return &Builder{store: s}
}

// Build creates the track for points. On error no point is claimed.
func (b *Builder) Build(ctx context.Context, userID int64, points []model.Point) (*model.Track, error) {
	track, err := ComputeTrack(userID, points)
	if err != nil {
		return nil, err
	}
	if err := b.store.CreateTrack(ctx, track, pointIDs(points)); err != nil {
		return nil, fmt.Errorf("build track for user %d: %w", userID, err)
	}
	return track, nil
}

func pointIDs(points []model.Point) []int64 {
	ids := make([]int64, len(points))
	for i, p := range points {
		ids[i] = p.ID
	}
	return ids
}

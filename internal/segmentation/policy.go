// Package segmentation decides where one track ends and the next begins.
package segmentation

import (
	"trackline-backend/internal/geo"
	"trackline-backend/internal/model"
)

const (
	DefaultTimeThresholdMinutes    = 60
	DefaultDistanceThresholdMeters = 500.0
)

// Thresholds are resolved once per run and passed to every component that splits or joins tracks.
type Thresholds struct {
	TimeMinutes    int     `json:"time_threshold_minutes"`
	DistanceMeters float64 `json:"distance_threshold_meters"`
}

// DefaultThresholds returns the 60 minute / 500 meter defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TimeMinutes:    DefaultTimeThresholdMinutes,
		DistanceMeters: DefaultDistanceThresholdMeters,
	}
}

// TimeSeconds returns the time threshold in seconds.
func (t Thresholds) TimeSeconds() int64 {
	return int64(t.TimeMinutes) * 60
}

// Policy is the pure boundary rule between consecutive points.
type Policy struct {
	thresholds Thresholds
}

// NewPolicy creates a policy; non-positive thresholds fall back to the defaults.
func NewPolicy(th Thresholds) *Policy {
	if th.TimeMinutes <= 0 {
		th.TimeMinutes = DefaultTimeThresholdMinutes
	}
	if th.DistanceMeters <= 0 {
		th.DistanceMeters = DefaultDistanceThresholdMeters
	}
	return &Policy{thresholds: th}
}

// Thresholds returns the effective thresholds.
func (p *Policy) Thresholds() Thresholds {
	return p.thresholds
}

// ShouldStartNewSegment reports whether cur opens a new segment after prev.
// A nil prev is the start of a run. A time gap of exactly the threshold already
// counts as a break; the distance has to exceed its threshold.
func (p *Policy) ShouldStartNewSegment(prev *model.Point, cur model.Point) bool {
	if prev == nil {
		return true
	}
	if cur.Timestamp-prev.Timestamp >= p.thresholds.TimeSeconds() {
		return true
	}
	return geo.HaversineMeters(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude) > p.thresholds.DistanceMeters
}

// Split cuts an ordered run into segments. Segments with fewer than 2 points are dropped.
func (p *Policy) Split(points []model.Point) [][]model.Point {
	var segments [][]model.Point
	var current []model.Point
	var prev *model.Point

	for i := range points {
		if p.ShouldStartNewSegment(prev, points[i]) {
			if len(current) >= 2 {
				segments = append(segments, current)
			}
			current = nil
		}
		current = append(current, points[i])
		prev = &points[i]
	}
	if len(current) >= 2 {
		segments = append(segments, current)
	}
	return segments
}

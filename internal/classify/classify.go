// Package classify connects finished tracks to an external
// transportation-mode classifier and stores its answer.
package classify

import (
	"context"
	"fmt"

	"trackline-backend/internal/model"
	"trackline-backend/internal/store"
)

// Segment is one sub-segment reported by a classifier. Indexes refer to the
// ordered points handed to Classify.
type Segment struct {
	Mode       string  `json:"mode"`
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
	Distance   int     `json:"distance"`
	Duration   int64   `json:"duration"`
	AvgSpeed   float64 `json:"avg_speed"`
	Confidence float64 `json:"confidence"`
}

// Classifier detects transportation modes on a finished track.
type Classifier interface {
	Classify(ctx context.Context, track *model.Track, points []model.Point) ([]Segment, error)
}

// NoopClassifier reports no segments.
type NoopClassifier struct{}

func (NoopClassifier) Classify(context.Context, *model.Track, []model.Point) ([]Segment, error) {
	return nil, nil
}

// Service applies a Classifier to tracks and persists the result.
type Service struct {
	classifier Classifier
	store      store.Store
}

// NewService wraps c and saves its results through s.
func NewService(c Classifier, s store.Store) *Service {
	if c == nil {
		c = NoopClassifier{}
	}
	return &Service{classifier: c, store: s}
}

// Apply classifies track and replaces its segments. A classifier returning no
// segments leaves the track untouched.
func (s *Service) Apply(ctx context.Context, track *model.Track, points []model.Point) error {
	segments, err := s.classifier.Classify(ctx, track, points)
	if err != nil {
		return fmt.Errorf("classify track %d: %w", track.ID, err)
	}
	if len(segments) == 0 {
		return nil
	}

	rows := make([]model.TrackSegment, 0, len(segments))
	for _, seg := range segments {
		rows = append(rows, model.TrackSegment{
			TrackID:    track.ID,
			Mode:       seg.Mode,
			StartIndex: seg.StartIndex,
			EndIndex:   seg.EndIndex,
			Distance:   seg.Distance,
			Duration:   seg.Duration,
			AvgSpeed:   seg.AvgSpeed,
			Confidence: seg.Confidence,
		})
	}
	mode := DominantMode(segments)
	if err := s.store.SaveClassification(ctx, track.ID, rows, mode); err != nil {
		return err
	}
	track.DominantMode = mode
	return nil
}

// DominantMode is the mode of the longest-duration segment. Ties keep the
// earlier segment.
func DominantMode(segments []Segment) string {
	var mode string
	var longest int64 = -1
	for _, seg := range segments {
		if seg.Duration > longest {
			longest = seg.Duration
			mode = seg.Mode
		}
	}
	return mode
}

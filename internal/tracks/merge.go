package tracks

import (
	"context"
	"fmt"

	"trackline-backend/internal/classify"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/model"
	"trackline-backend/internal/store"
)

// Merger replaces a group of tracks by one track built from all their points.
type Merger struct {
	store      store.Store
	classifier *classify.Service
	log        *logger.Logger
}

func NewMerger(s store.Store, classifier *classify.Service, log *logger.Logger) *Merger {
	return &Merger{store: s, classifier: classifier, log: log.With("component", "TrackMerger")}
}

// Merge builds a new track from the union of the group's points and destroys
// the group in the same transaction. Classification of the result is best
// effort.
func (m *Merger) Merge(ctx context.Context, userID int64, group []model.Track) (*model.Track, error) {
	ids := make([]int64, len(group))
	for i, t := range group {
		ids[i] = t.ID
	}

	points, err := m.store.PointsForTracks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("merge tracks %v: %w", ids, err)
	}
	points = normalize(points)

	merged, err := ComputeTrack(userID, points)
	if err != nil {
		return nil, fmt.Errorf("merge tracks %v: %w", ids, err)
	}
	if err := m.store.ReplaceTracks(ctx, merged, pointIDs(points), ids); err != nil {
		return nil, fmt.Errorf("merge tracks %v: %w", ids, err)
	}
	m.log.Info("merged tracks", "user_id", userID, "track_ids", ids, "merged_id", merged.ID, "points", len(points))

	if m.classifier != nil {
		if err := m.classifier.Apply(ctx, merged, points); err != nil {
			m.log.Warn("classification after merge failed", "track_id", merged.ID, "error", err)
		}
	}
	return merged, nil
}

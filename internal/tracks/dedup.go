package tracks

import (
	"context"

	"trackline-backend/internal/logger"
	"trackline-backend/internal/metrics"
	"trackline-backend/internal/store"
)

// Deduplicator collapses tracks of a user that share identical bounds onto
// the most recently created one.
type Deduplicator struct {
	store store.Store
	log   *logger.Logger
}

func NewDeduplicator(s store.Store, log *logger.Logger) *Deduplicator {
	return &Deduplicator{store: s, log: log.With("component", "Deduplicator")}
}

// Run returns the number of tracks removed. A failing group is logged and
// left for the next pass.
func (d *Deduplicator) Run(ctx context.Context, userID int64) (int, error) {
	groups, err := d.store.DuplicateTrackGroups(ctx, userID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, g := range groups {
		keep, drop := g.IDs[0], g.IDs[1:]
		n, err := d.store.CollapseDuplicates(ctx, keep, drop)
		if err != nil {
			d.log.Warn("failed to remove duplicates", "user_id", userID, "keep_id", keep, "drop_ids", drop, "error", err)
			continue
		}
		removed += n
	}
	if removed > 0 {
		d.log.Info("removed duplicate tracks", "user_id", userID, "count", removed)
	}
	metrics.RecordDuplicatesRemoved(removed)
	return removed, nil
}

package tracks

import (
	"context"
	"math"
	"sort"
	"time"

	"trackline-backend/config"
	"trackline-backend/internal/geo"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/metrics"
	"trackline-backend/internal/model"
	"trackline-backend/internal/segmentation"
	"trackline-backend/internal/store"
)

// BoundaryResolver stitches back tracks that were split at a chunk edge.
type BoundaryResolver struct {
	store       store.Store
	merger      *Merger
	window      time.Duration
	maxGroupGap time.Duration
	recent      time.Duration
	now         func() time.Time
	log         *logger.Logger
}

func NewBoundaryResolver(s store.Store, merger *Merger, cfg config.GenerationConfig, log *logger.Logger) *BoundaryResolver {
	return &BoundaryResolver{
		store:       s,
		merger:      merger,
		window:      cfg.BoundaryWindow,
		maxGroupGap: cfg.BoundaryMaxGroupGap,
		recent:      cfg.RecentTrackWindow,
		now:         time.Now,
		log:         log.With("component", "BoundaryResolver"),
	}
}

type endpointTrack struct {
	track       model.Track
	first, last geo.Coord
}

// Resolve merges every valid group of connected recent tracks and returns
// the number of groups merged.
func (r *BoundaryResolver) Resolve(ctx context.Context, userID int64, th segmentation.Thresholds) (int, error) {
	recent, err := r.store.TracksCreatedSince(ctx, userID, r.now().UTC().Add(-r.recent))
	if err != nil {
		return 0, err
	}

	candidates := make([]endpointTrack, 0, len(recent))
	for _, t := range recent {
		first, last, err := geo.Endpoints(t.OriginalPath)
		if err != nil {
			r.log.Warn("skipping track without usable path", "track_id", t.ID, "error", err)
			continue
		}
		candidates = append(candidates, endpointTrack{track: t, first: first, last: last})
	}
	if len(candidates) < 2 {
		return 0, nil
	}

	merged := 0
	for _, group := range r.groups(candidates, th.DistanceMeters) {
		if !r.validGroup(group) {
			r.log.Debug("rejecting group with large internal gap", "user_id", userID, "size", len(group))
			continue
		}
		if _, err := r.merger.Merge(ctx, userID, group); err != nil {
			r.log.Warn("boundary merge failed", "user_id", userID, "track_ids", trackIDs(group), "error", err)
			metrics.RecordMerge("boundary", false)
			continue
		}
		metrics.RecordMerge("boundary", true)
		merged++
	}
	return merged, nil
}

// groups returns the connected components with at least two tracks, each
// sorted by start time.
func (r *BoundaryResolver) groups(candidates []endpointTrack, maxDistance float64) [][]model.Track {
	parent := make([]int, len(candidates))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if r.connected(candidates[i], candidates[j], maxDistance) {
				parent[find(i)] = find(j)
			}
		}
	}

	byRoot := make(map[int][]model.Track)
	var roots []int
	for i, c := range candidates {
		root := find(i)
		if _, ok := byRoot[root]; !ok {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], c.track)
	}

	var out [][]model.Track
	for _, root := range roots {
		group := byRoot[root]
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(a, b int) bool {
			if !group[a].StartAt.Equal(group[b].StartAt) {
				return group[a].StartAt.Before(group[b].StartAt)
			}
			return group[a].ID < group[b].ID
		})
		out = append(out, group)
	}
	return out
}

// connected is true when the intervals are at most window apart (overlaps
// count) and the closest pair of endpoints is within maxDistance.
func (r *BoundaryResolver) connected(a, b endpointTrack, maxDistance float64) bool {
	if intervalGap(a.track, b.track) > r.window {
		return false
	}
	nearest := math.Inf(1)
	for _, p := range []geo.Coord{a.first, a.last} {
		for _, q := range []geo.Coord{b.first, b.last} {
			nearest = math.Min(nearest, geo.Distance(p, q))
		}
	}
	return nearest <= maxDistance
}

// validGroup rejects groups where consecutive tracks are more than
// maxGroupGap apart.
func (r *BoundaryResolver) validGroup(group []model.Track) bool {
	for i := 1; i < len(group); i++ {
		if group[i].StartAt.Sub(group[i-1].EndAt) > r.maxGroupGap {
			return false
		}
	}
	return true
}

// intervalGap is the time between two intervals, zero when they overlap.
func intervalGap(a, b model.Track) time.Duration {
	if a.StartAt.After(b.StartAt) {
		a, b = b, a
	}
	gap := b.StartAt.Sub(a.EndAt)
	if gap < 0 {
		return 0
	}
	return gap
}

func trackIDs(tracks []model.Track) []int64 {
	ids := make([]int64, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

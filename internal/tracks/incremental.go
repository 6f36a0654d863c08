package tracks

import (
	"context"
	"time"

	"trackline-backend/config"
	"trackline-backend/internal/cache"
	"trackline-backend/internal/classify"
	"trackline-backend/internal/debounce"
	"trackline-backend/internal/geo"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/metrics"
	"trackline-backend/internal/model"
	"trackline-backend/internal/segmentation"
	"trackline-backend/internal/store"
)

// IncrementalResult summarises one realtime pass.
type IncrementalResult struct {
	Created int `json:"tracks_created"`
	Merged  int `json:"tracks_merged"`
}

// IncrementalGenerator builds tracks from the recent unassigned points and
// joins each new track onto the track that ended just before it.
type IncrementalGenerator struct {
	store      store.Store
	cache      cache.Store
	merger     *Merger
	classifier *classify.Service
	defaults   segmentation.Thresholds
	cfg        config.RealtimeConfig
	now        func() time.Time
	root       *logger.Logger
	log        *logger.Logger
}

func (g *IncrementalGenerator) Run(ctx context.Context, userID int64) (IncrementalResult, error) {
	th := ResolveThresholds(ctx, g.store, userID, g.defaults, g.log)

	var handler SegmentHandler = IgnoreHandler{}
	if g.cfg.BufferIncompleteSegments {
		handler = NewBufferingHandler(userID, g.cache, g.cfg.Grace, g.now, g.root)
	}

	gen := NewGenerator(g.store, GeneratorOptions{
		UserID:     userID,
		Thresholds: th,
		Loader:     UntrackedLoader{UserID: userID, Lookback: g.cfg.Lookback, Now: g.now},
		Handler:    handler,
		Classifier: g.classifier,
		Logger:     g.root,
		Source:     "incremental",
	})
	created, err := gen.Run(ctx)
	if err != nil {
		return IncrementalResult{}, err
	}

	res := IncrementalResult{Created: len(created)}
	for _, t := range created {
		if g.mergeIntoPrevious(ctx, userID, t, th) {
			res.Merged++
		}
	}
	if res.Created > 0 {
		g.log.Info("incremental generation finished", "user_id", userID, "tracks_created", res.Created, "tracks_merged", res.Merged)
	}
	return res, nil
}

// mergeIntoPrevious merges t with the latest track that ended less than the
// time threshold before t started, if their facing endpoints are close.
func (g *IncrementalGenerator) mergeIntoPrevious(ctx context.Context, userID int64, t model.Track, th segmentation.Thresholds) bool {
	window := time.Duration(th.TimeSeconds()) * time.Second
	prev, err := g.store.LatestTrackEndingBetween(ctx, userID, t.StartAt.Add(-window), t.StartAt, t.ID)
	if err != nil {
		g.log.Warn("failed to look up preceding track", "track_id", t.ID, "error", err)
		return false
	}
	if prev == nil || t.StartAt.Sub(prev.EndAt) >= window {
		return false
	}

	_, prevEnd, err := geo.Endpoints(prev.OriginalPath)
	if err != nil {
		return false
	}
	start, _, err := geo.Endpoints(t.OriginalPath)
	if err != nil {
		return false
	}
	if geo.Distance(prevEnd, start) > th.DistanceMeters {
		return false
	}

	if _, err := g.merger.Merge(ctx, userID, []model.Track{*prev, t}); err != nil {
		g.log.Warn("incremental merge failed", "user_id", userID, "track_ids", []int64{prev.ID, t.ID}, "error", err)
		metrics.RecordMerge("incremental", false)
		return false
	}
	metrics.RecordMerge("incremental", true)
	return true
}

// IncrementalJob is the delayed realtime pass scheduled by the debouncer.
type IncrementalJob struct {
	UserID int64

	gen *IncrementalGenerator
}

func (j *IncrementalJob) Name() string { return "track_incremental" }

// Run clears the debounce key first so points written while the pass runs
// schedule a fresh one.
func (j *IncrementalJob) Run(ctx context.Context) error {
	if c := j.gen.cache; c != nil {
		if err := c.Delete(ctx, debounce.Key(j.UserID)); err != nil {
			j.gen.log.Warn("failed to clear debounce key", "user_id", j.UserID, "error", err)
		}
	}
	_, err := j.gen.Run(ctx, j.UserID)
	return err
}

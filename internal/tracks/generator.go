package tracks

import (
	"context"
	"fmt"
	"time"

	"trackline-backend/internal/classify"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/metrics"
	"trackline-backend/internal/model"
	"trackline-backend/internal/segmentation"
	"trackline-backend/internal/store"
)

// GeneratorOptions composes one generation run.
type GeneratorOptions struct {
	UserID     int64
	Thresholds segmentation.Thresholds
	Loader     PointLoader
	Handler    SegmentHandler
	Cleaner    TrackCleaner
	Classifier *classify.Service
	Logger     *logger.Logger
	// Source labels metrics and logs (bulk, chunk, incremental).
	Source string
}

// Generator runs clean, load, split, build for one user in a single
// transaction.
type Generator struct {
	store      store.Store
	userID     int64
	policy     *segmentation.Policy
	loader     PointLoader
	handler    SegmentHandler
	cleaner    TrackCleaner
	classifier *classify.Service
	source     string
	log        *logger.Logger
}

func NewGenerator(s store.Store, opts GeneratorOptions) *Generator {
	if opts.Handler == nil {
		opts.Handler = IgnoreHandler{}
	}
	if opts.Cleaner == nil {
		opts.Cleaner = NoOpCleaner{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Source == "" {
		opts.Source = "bulk"
	}
	return &Generator{
		store:      s,
		userID:     opts.UserID,
		policy:     segmentation.NewPolicy(opts.Thresholds),
		loader:     opts.Loader,
		handler:    opts.Handler,
		cleaner:    opts.Cleaner,
		classifier: opts.Classifier,
		source:     opts.Source,
		log:        opts.Logger.With("component", "TrackGenerator", "user_id", opts.UserID, "source", opts.Source),
	}
}

// Run returns the tracks created. Segments that fail to build are logged and
// skipped; their points stay unassigned.
func (g *Generator) Run(ctx context.Context) ([]model.Track, error) {
	started := time.Now()
	var created []model.Track
	var members [][]model.Point

	err := g.store.Transaction(ctx, func(tx store.Store) error {
		removed, err := g.cleaner.Clean(ctx, tx)
		if err != nil {
			return fmt.Errorf("clean tracks: %w", err)
		}
		if removed > 0 {
			g.log.Info("removed superseded tracks", "count", removed)
		}

		points, err := g.loader.Load(ctx, tx)
		if err != nil {
			return fmt.Errorf("load points: %w", err)
		}
		if len(points) == 0 {
			return nil
		}

		builder := NewBuilder(tx)
		for _, segment := range g.policy.Split(points) {
			if !g.handler.ShouldFinalize(segment) {
				if err := g.handler.HandleIncomplete(ctx, segment); err != nil {
					g.log.Warn("failed to buffer incomplete segment", "points", len(segment), "error", err)
				}
				continue
			}
			track, err := builder.Build(ctx, g.userID, segment)
			if err != nil {
				g.log.Warn("skipping segment", "points", len(segment), "error", err)
				metrics.RecordBuildFailure()
				continue
			}
			created = append(created, *track)
			members = append(members, segment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := g.handler.Cleanup(ctx); err != nil {
		g.log.Warn("failed to clean buffered segments", "error", err)
	}

	metrics.RecordTracksCreated(g.source, len(created))
	metrics.ObserveGeneration(g.source, time.Since(started))
	g.log.Debug("generation finished", "tracks_created", len(created), "elapsed", time.Since(started))

	if g.classifier != nil {
		for i := range created {
			if err := g.classifier.Apply(ctx, &created[i], members[i]); err != nil {
				g.log.Warn("classification failed", "track_id", created[i].ID, "error", err)
			}
		}
	}
	return created, nil
}

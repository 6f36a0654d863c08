package tracks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trackline-backend/config"
	"trackline-backend/internal/cache"
	"trackline-backend/internal/classify"
	"trackline-backend/internal/jobs"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/segmentation"
	"trackline-backend/internal/session"
	"trackline-backend/internal/store"
)

// Mode selects how a generation request is executed.
type Mode string

const (
	ModeBulk        Mode = "bulk"
	ModeDaily       Mode = "daily"
	ModeIncremental Mode = "incremental"
)

var (
	ErrUnknownMode = errors.New("unknown generation mode")
	ErrBadRange    = errors.New("start_at is after end_at")
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeBulk, ModeDaily, ModeIncremental:
		return m, nil
	case "":
		return ModeBulk, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Request asks for (re)generation of a user's tracks. Bounds are unix seconds.
type Request struct {
	UserID  int64
	Mode    Mode
	StartAt *int64
	EndAt   *int64
}

// Result carries the session of a parallel run or the counts of an
// incremental one.
type Result struct {
	Session     *session.Session
	Incremental *IncrementalResult
}

// Deps are the collaborators shared by every engine component.
type Deps struct {
	Store      store.Store
	Cache      cache.Store
	Scheduler  jobs.Scheduler
	Classifier classify.Classifier
	Config     *config.Config
	Logger     *logger.Logger
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Engine wires the generators, the reconcilers and the session manager.
type Engine struct {
	Sessions    *session.Manager
	Parallel    *ParallelGenerator
	Incremental *IncrementalGenerator
	Resolver    *BoundaryResolver
	Dedup       *Deduplicator
	Merger      *Merger
}

func NewEngine(d Deps) *Engine {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := d.Logger
	if log == nil {
		log = logger.NewNop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}

	defaults := segmentation.Thresholds{
		TimeMinutes:    cfg.Generation.TimeThresholdMinutes,
		DistanceMeters: cfg.Generation.DistanceThresholdMeters,
	}
	classifier := classify.NewService(d.Classifier, d.Store)
	sessions := session.NewManager(d.Cache, cfg.Cache.SessionTTL)
	merger := NewMerger(d.Store, classifier, log)
	resolver := NewBoundaryResolver(d.Store, merger, cfg.Generation, log)
	resolver.now = now
	dedup := NewDeduplicator(d.Store, log)

	return &Engine{
		Sessions: sessions,
		Merger:   merger,
		Resolver: resolver,
		Dedup:    dedup,
		Parallel: &ParallelGenerator{
			store:      d.Store,
			sessions:   sessions,
			scheduler:  d.Scheduler,
			chunker:    NewChunker(d.Store, cfg.Generation.ChunkSize, cfg.Generation.Buffer),
			resolver:   resolver,
			dedup:      dedup,
			classifier: classifier,
			defaults:   defaults,
			cfg:        cfg.Generation,
			now:        now,
			root:       log,
			log:        log.With("component", "ParallelGenerator"),
		},
		Incremental: &IncrementalGenerator{
			store:      d.Store,
			cache:      d.Cache,
			merger:     merger,
			classifier: classifier,
			defaults:   defaults,
			cfg:        cfg.Realtime,
			now:        now,
			root:       log,
			log:        log.With("component", "IncrementalGenerator"),
		},
	}
}

// Generate dispatches req to the parallel or the incremental generator.
func (e *Engine) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.StartAt != nil && req.EndAt != nil && *req.StartAt > *req.EndAt {
		return nil, fmt.Errorf("%w: %d > %d", ErrBadRange, *req.StartAt, *req.EndAt)
	}
	switch req.Mode {
	case ModeIncremental:
		res, err := e.Incremental.Run(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		return &Result{Incremental: &res}, nil
	case ModeBulk, ModeDaily:
		sess, err := e.Parallel.Start(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Result{Session: sess}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
}

// IncrementalJob builds the realtime job for userID.
func (e *Engine) IncrementalJob(userID int64) jobs.Job {
	return &IncrementalJob{UserID: userID, gen: e.Incremental}
}

package tracks

import (
	"context"
	"fmt"
	"time"

	"trackline-backend/config"
	"trackline-backend/internal/classify"
	"trackline-backend/internal/jobs"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/segmentation"
	"trackline-backend/internal/session"
	"trackline-backend/internal/store"
)

// ParallelGenerator fans a bulk or daily run out into chunk jobs and
// schedules the boundary pass that reconciles them.
type ParallelGenerator struct {
	store      store.Store
	sessions   *session.Manager
	scheduler  jobs.Scheduler
	chunker    *Chunker
	resolver   *BoundaryResolver
	dedup      *Deduplicator
	classifier *classify.Service
	defaults   segmentation.Thresholds
	cfg        config.GenerationConfig
	now        func() time.Time
	root       *logger.Logger
	log        *logger.Logger
}

// BoundaryDelay is how long the boundary pass waits after a run is enqueued.
func BoundaryDelay(totalChunks int, cfg config.GenerationConfig) time.Duration {
	return max(time.Duration(totalChunks)*cfg.BoundaryDelayPerChunk, cfg.BoundaryMinDelay)
}

// Start cleans the target range, creates the session and enqueues the jobs.
// Session failures are logged; the returned session may then be unsaved.
func (p *ParallelGenerator) Start(ctx context.Context, req Request) (*session.Session, error) {
	th := ResolveThresholds(ctx, p.store, req.UserID, p.defaults, p.log)
	start, end := req.StartAt, req.EndAt

	var cleaner TrackCleaner
	switch req.Mode {
	case ModeBulk:
		cleaner = ReplaceCleaner{UserID: req.UserID, StartAt: start, EndAt: end}
	case ModeDaily:
		from, to := p.dailyRange(start, end)
		start, end = &from, &to
		cleaner = DailyCleaner{UserID: req.UserID, StartAt: from, EndAt: to}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	removed, err := cleaner.Clean(ctx, p.store)
	if err != nil {
		return nil, fmt.Errorf("clean tracks for user %d: %w", req.UserID, err)
	}

	chunks, err := p.chunker.Chunks(ctx, req.UserID, start, end)
	if err != nil {
		return nil, fmt.Errorf("chunk range for user %d: %w", req.UserID, err)
	}

	log := p.log.With("user_id", req.UserID, "mode", req.Mode)
	meta := session.Metadata{
		Mode:                    string(req.Mode),
		StartAt:                 start,
		EndAt:                   end,
		TimeThresholdMinutes:    th.TimeMinutes,
		DistanceThresholdMeters: th.DistanceMeters,
	}
	sess, err := p.sessions.Create(ctx, req.UserID, len(chunks), meta)
	if err != nil {
		log.Warn("failed to store generation session", "session_id", sess.ID, "error", err)
	}

	if len(chunks) == 0 {
		if err := p.sessions.MarkCompleted(ctx, req.UserID, sess.ID); err != nil {
			log.Warn("failed to complete empty session", "session_id", sess.ID, "error", err)
		}
		sess.Status = session.StatusCompleted
		log.Info("nothing to generate", "session_id", sess.ID, "tracks_removed", removed)
		return sess, nil
	}

	if err := p.sessions.MarkProcessing(ctx, req.UserID, sess.ID); err != nil {
		log.Warn("failed to mark session processing", "session_id", sess.ID, "error", err)
	} else {
		sess.Status = session.StatusProcessing
	}

	for _, chunk := range chunks {
		p.scheduler.Enqueue(&ChunkJob{
			UserID:     req.UserID,
			SessionID:  sess.ID,
			Chunk:      chunk,
			Thresholds: th,
			parent:     p,
		})
	}
	delay := BoundaryDelay(len(chunks), p.cfg)
	p.scheduler.EnqueueAfter(delay, &BoundaryJob{
		UserID:     req.UserID,
		SessionID:  sess.ID,
		Thresholds: th,
		parent:     p,
	})

	log.Info("parallel generation started",
		"session_id", sess.ID, "chunks", len(chunks), "tracks_removed", removed, "boundary_delay", delay)
	return sess, nil
}

// dailyRange defaults to yesterday through now and aligns to whole UTC days.
func (p *ParallelGenerator) dailyRange(start, end *int64) (int64, int64) {
	now := p.now().UTC()
	from := now.Add(-24 * time.Hour).Unix()
	to := now.Unix()
	if start != nil {
		from = *start
	}
	if end != nil {
		to = *end
	}
	return DayAligned(from, to)
}

// ChunkJob runs an ordinary generator over one chunk's buffered window.
type ChunkJob struct {
	UserID     int64
	SessionID  string
	Chunk      TimeChunk
	Thresholds segmentation.Thresholds

	parent *ParallelGenerator
}

func (j *ChunkJob) Name() string { return "track_chunk" }

func (j *ChunkJob) Run(ctx context.Context) error {
	p := j.parent
	gen := NewGenerator(p.store, GeneratorOptions{
		UserID:     j.UserID,
		Thresholds: j.Thresholds,
		Loader:     ChunkLoader{UserID: j.UserID, Chunk: j.Chunk},
		Classifier: p.classifier,
		Logger:     p.root,
		Source:     "chunk",
	})
	created, err := gen.Run(ctx)
	if err != nil {
		if mErr := p.sessions.MarkFailed(ctx, j.UserID, j.SessionID, err.Error()); mErr != nil {
			p.log.Warn("failed to mark session failed", "session_id", j.SessionID, "error", mErr)
		}
		return fmt.Errorf("chunk %s of session %s: %w", j.Chunk.ID, j.SessionID, err)
	}
	if err := p.sessions.IncrementCompleted(ctx, j.UserID, j.SessionID, len(created)); err != nil {
		p.log.Warn("failed to update session progress", "session_id", j.SessionID, "error", err)
	}
	return nil
}

// BoundaryJob resolves split tracks and removes duplicates once the chunk
// jobs have had time to run. It does not wait for them.
type BoundaryJob struct {
	UserID     int64
	SessionID  string
	Thresholds segmentation.Thresholds

	parent *ParallelGenerator
}

func (j *BoundaryJob) Name() string { return "track_boundary" }

func (j *BoundaryJob) Run(ctx context.Context) error {
	p := j.parent
	log := p.log.With("user_id", j.UserID, "session_id", j.SessionID)

	sess, err := p.sessions.Get(ctx, j.UserID, j.SessionID)
	if err != nil {
		log.Warn("session unavailable for boundary pass", "error", err)
		sess = nil
	}
	if sess != nil && sess.CompletedChunks < sess.TotalChunks {
		log.Info("resolving boundaries before every chunk reported",
			"completed_chunks", sess.CompletedChunks, "total_chunks", sess.TotalChunks)
	}

	merged, err := p.resolver.Resolve(ctx, j.UserID, j.Thresholds)
	if err != nil {
		if mErr := p.sessions.MarkFailed(ctx, j.UserID, j.SessionID, err.Error()); mErr != nil {
			log.Warn("failed to mark session failed", "error", mErr)
		}
		return fmt.Errorf("resolve boundaries for user %d: %w", j.UserID, err)
	}

	removed, err := p.dedup.Run(ctx, j.UserID)
	if err != nil {
		log.Warn("deduplication failed", "error", err)
	}

	if sess == nil || sess.Status != session.StatusFailed {
		if err := p.sessions.MarkCompleted(ctx, j.UserID, j.SessionID); err != nil {
			log.Warn("failed to complete session", "error", err)
		}
	}
	log.Info("boundary pass finished", "groups_merged", merged, "duplicates_removed", removed)
	return nil
}

package debounce

import (
	"context"
	"fmt"
	"time"

	"trackline-backend/config"
	"trackline-backend/internal/cache"
	"trackline-backend/internal/jobs"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/metrics"
)

// Result is the outcome of one trigger.
type Result string

const (
	Scheduled Result = "scheduled"
	Extended  Result = "extended"
	Skipped   Result = "skipped"
	Fallback  Result = "fallback"
)

// JobFactory builds the job run once a user's burst of points settles.
type JobFactory func(userID int64) jobs.Job

// Event describes a write of new points for one user.
type Event struct {
	UserID   int64 `json:"-"`
	Imported bool  `json:"imported"`
}

// Debouncer schedules at most one delayed job per user while the debounce
// key lives in the cache.
type Debouncer struct {
	cache     cache.Store
	scheduler jobs.Scheduler
	factory   JobFactory
	ttl       time.Duration
	delay     time.Duration
	log       *logger.Logger
}

func New(c cache.Store, s jobs.Scheduler, factory JobFactory, cfg config.RealtimeConfig, log *logger.Logger) *Debouncer {
	return &Debouncer{
		cache:     c,
		scheduler: s,
		factory:   factory,
		ttl:       cfg.DebounceTTL,
		delay:     cfg.DebounceDelay,
		log:       log.With("component", "Debouncer"),
	}
}

// Key is the cache key marking a pending incremental run.
func Key(userID int64) string {
	return fmt.Sprintf("track_debounce:user:%d", userID)
}

// Trigger records a point write. The first trigger in a quiet period
// schedules the job after the debounce delay; later ones extend the key.
func (d *Debouncer) Trigger(ctx context.Context, ev Event) Result {
	res := d.trigger(ctx, ev)
	metrics.RecordDebounce(string(res))
	return res
}

func (d *Debouncer) trigger(ctx context.Context, ev Event) Result {
	if ev.Imported {
		return Skipped
	}

	key := Key(ev.UserID)
	created, err := d.cache.SetNX(ctx, key, []byte("1"), d.ttl)
	if err != nil {
		d.log.Warn("debounce key unavailable, scheduling directly", "user_id", ev.UserID, "error", err)
		d.scheduler.Enqueue(d.factory(ev.UserID))
		return Fallback
	}
	if created {
		d.scheduler.EnqueueAfter(d.delay, d.factory(ev.UserID))
		d.log.Debug("incremental generation scheduled", "user_id", ev.UserID, "delay", d.delay)
		return Scheduled
	}

	if _, err := d.cache.Expire(ctx, key, d.ttl); err != nil {
		d.log.Warn("failed to extend debounce key", "user_id", ev.UserID, "error", err)
	}
	return Extended
}

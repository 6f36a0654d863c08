// Package scheduler runs the periodic daily regeneration cycle.
package scheduler

import (
	"context"
	"time"

	"trackline-backend/config"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/tracks"
)

// Generator starts a generation run; satisfied by *tracks.Engine.
type Generator interface {
	Generate(ctx context.Context, req tracks.Request) (*tracks.Result, error)
}

// UserSource lists users with points recorded since a unix timestamp.
type UserSource interface {
	ActiveUsersSince(ctx context.Context, since int64) ([]int64, error)
}

// Daily starts a daily-mode run for every recently active user once per
// interval.
type Daily struct {
	cfg   config.SchedulerConfig
	users UserSource
	gen   Generator
	now   func() time.Time
	log   *logger.Logger
}

// NewDaily returns a Daily runner; call Run to begin ticking.
func NewDaily(cfg config.SchedulerConfig, users UserSource, gen Generator, log *logger.Logger) *Daily {
	return &Daily{
		cfg:   cfg,
		users: users,
		gen:   gen,
		now:   time.Now,
		log:   log.With("component", "DailyScheduler"),
	}
}

// Run blocks until ctx is done, running one cycle immediately and then one
// per interval.
func (d *Daily) Run(ctx context.Context) {
	if !d.cfg.DailyEnabled {
		d.log.Info("daily generation is disabled, not starting")
		return
	}
	d.log.Info("starting daily generation", "interval", d.cfg.DailyInterval)

	d.RunOnce(ctx)

	timer := time.NewTimer(d.cfg.DailyInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("daily generation shutting down")
			return
		case <-timer.C:
			d.RunOnce(ctx)
			timer.Reset(d.cfg.DailyInterval)
		}
	}
}

// RunOnce starts a run for each user active during the last interval and
// returns how many were started. A failing user does not stop the cycle.
func (d *Daily) RunOnce(ctx context.Context) int {
	since := d.now().Add(-d.cfg.DailyInterval).Unix()
	users, err := d.users.ActiveUsersSince(ctx, since)
	if err != nil {
		d.log.Error("failed to list active users", "since", since, "error", err)
		return 0
	}

	started := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		res, err := d.gen.Generate(ctx, tracks.Request{UserID: userID, Mode: tracks.ModeDaily})
		if err != nil {
			d.log.Warn("daily generation failed", "user_id", userID, "error", err)
			continue
		}
		started++
		if res.Session != nil {
			d.log.Debug("daily generation started", "user_id", userID, "session_id", res.Session.ID)
		}
	}
	d.log.Info("daily cycle finished", "users", len(users), "started", started)
	return started
}

package tracks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"trackline-backend/config"
	"trackline-backend/internal/cache"
	"trackline-backend/internal/db"
	"trackline-backend/internal/jobs"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/model"
	"trackline-backend/internal/store"
)

// base is 2024-03-10 00:00:00 UTC.
const base = int64(1710028800)

func newTestStore(t *testing.T) (store.Store, *gorm.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return store.NewGormStore(gdb), gdb
}

// walk returns n points one minute apart starting at start, moving ~55 m
// north per step from (lat, lon).
func walk(userID, start int64, n int, lat, lon float64) []model.Point {
	points := make([]model.Point, n)
	for i := range points {
		points[i] = model.Point{
			UserID:    userID,
			Timestamp: start + int64(i)*60,
			Latitude:  lat + float64(i)*0.0005,
			Longitude: lon,
		}
	}
	return points
}

func insert(t *testing.T, gdb *gorm.DB, points ...[]model.Point) []model.Point {
	t.Helper()
	var all []model.Point
	for _, p := range points {
		all = append(all, p...)
	}
	require.NoError(t, gdb.Create(&all).Error)
	return all
}

func buildTrack(t *testing.T, s store.Store, points []model.Point) *model.Track {
	t.Helper()
	track, err := NewBuilder(s).Build(context.Background(), points[0].UserID, points)
	require.NoError(t, err)
	return track
}

func allTracks(t *testing.T, gdb *gorm.DB, userID int64) []model.Track {
	t.Helper()
	var tracks []model.Track
	require.NoError(t, gdb.Where("user_id = ?", userID).Order("start_at ASC, id ASC").Find(&tracks).Error)
	return tracks
}

func membersOf(t *testing.T, gdb *gorm.DB, trackID int64) []int64 {
	t.Helper()
	var ids []int64
	require.NoError(t, gdb.Model(&model.Point{}).Where("track_id = ?", trackID).Order("timestamp ASC, id ASC").Pluck("id", &ids).Error)
	return ids
}

func untrackedCount(t *testing.T, gdb *gorm.DB, userID int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&model.Point{}).Where("user_id = ? AND track_id IS NULL", userID).Count(&n).Error)
	return n
}

func int64p(v int64) *int64 { return &v }

func unix(ts int64) time.Time { return time.Unix(ts, 0).UTC() }

func fixedClock(ts int64) func() time.Time {
	return func() time.Time { return time.Unix(ts, 0).UTC() }
}

// syncScheduler runs enqueued jobs immediately and holds delayed ones until
// RunDelayed is called.
type syncScheduler struct {
	mu      sync.Mutex
	ran     []string
	delayed []delayedJob
	errs    []error
}

type delayedJob struct {
	delay time.Duration
	job   jobs.Job
}

func (s *syncScheduler) Enqueue(job jobs.Job) {
	err := job.Run(context.Background())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ran = append(s.ran, job.Name())
	if err != nil {
		s.errs = append(s.errs, err)
	}
}

func (s *syncScheduler) EnqueueAfter(delay time.Duration, job jobs.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delayed = append(s.delayed, delayedJob{delay: delay, job: job})
}

func (s *syncScheduler) RunDelayed(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	pending := s.delayed
	s.delayed = nil
	s.mu.Unlock()
	for _, d := range pending {
		require.NoError(t, d.job.Run(context.Background()))
	}
}

func newTestEngine(t *testing.T, s store.Store, sched jobs.Scheduler, now func() time.Time, mutate func(*config.Config)) (*Engine, cache.Store) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
		cfg.ApplyDefaults()
	}
	c := cache.NewMemoryStore()
	return NewEngine(Deps{
		Store:     s,
		Cache:     c,
		Scheduler: sched,
		Config:    cfg,
		Logger:    logger.NewNop(),
		Now:       now,
	}), c
}

// flakyStore fails the first failFirst CreateTrack calls, including calls
// made on transaction-bound stores.
type flakyStore struct {
	store.Store
	calls     *int
	failFirst int
}

func (f flakyStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(flakyStore{Store: tx, calls: f.calls, failFirst: f.failFirst})
	})
}

func (f flakyStore) CreateTrack(ctx context.Context, track *model.Track, pointIDs []int64) error {
	*f.calls++
	if *f.calls <= f.failFirst {
		return errors.New("disk full")
	}
	return f.Store.CreateTrack(ctx, track, pointIDs)
}

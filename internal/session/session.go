// Package session tracks the progress of a parallel generation run in the
// shared cache. Sessions are progress indicators only; updates are plain
// read-modify-write and may lose increments under concurrent chunk jobs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"trackline-backend/internal/cache"
)

// ErrNotFound is returned when the session key is missing or expired.
var ErrNotFound = errors.New("generation session not found")

// Status is the lifecycle state of a generation session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Metadata records the parameters a run was started with.
type Metadata struct {
	Mode                    string  `json:"mode"`
	StartAt                 *int64  `json:"start_at,omitempty"`
	EndAt                   *int64  `json:"end_at,omitempty"`
	TimeThresholdMinutes    int     `json:"time_threshold_minutes"`
	DistanceThresholdMeters float64 `json:"distance_threshold_meters"`
}

// Session tracks the progress of one parallel generation run.
type Session struct {
	ID              string    `json:"session_id"`
	UserID          int64     `json:"user_id"`
	Status          Status    `json:"status"`
	TotalChunks     int       `json:"total_chunks"`
	CompletedChunks int       `json:"completed_chunks"`
	TracksCreated   int       `json:"tracks_created"`
	Metadata        Metadata  `json:"metadata"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Progress is completed/total as a percentage, 100 for a run with no chunks.
func (s *Session) Progress() float64 {
	if s.TotalChunks == 0 {
		return 100
	}
	p := float64(s.CompletedChunks) / float64(s.TotalChunks) * 100
	return math.Round(p*100) / 100
}

// Key builds the cache key of a session.
func Key(userID int64, id string) string {
	return fmt.Sprintf("track_generation:user:%d:session:%s", userID, id)
}

// Manager reads and writes sessions in a cache.Store.
type Manager struct {
	store cache.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager keeps sessions in store for ttl.
func NewManager(store cache.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{store: store, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores a new pending session with a fresh id.
func (m *Manager) Create(ctx context.Context, userID int64, totalChunks int, meta Metadata) (*Session, error) {
	now := m.now()
	s := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		Status:      StatusPending,
		TotalChunks: totalChunks,
		Metadata:    meta,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.save(ctx, s); err != nil {
		return s, err
	}
	return s, nil
}

func (m *Manager) Get(ctx context.Context, userID int64, id string) (*Session, error) {
	raw, ok, err := m.store.Get(ctx, Key(userID, id))
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (m *Manager) MarkProcessing(ctx context.Context, userID int64, id string) error {
	return m.update(ctx, userID, id, func(s *Session) {
		if s.Status == StatusPending {
			s.Status = StatusProcessing
		}
	})
}

// IncrementCompleted counts one finished chunk and the tracks it created.
func (m *Manager) IncrementCompleted(ctx context.Context, userID int64, id string, tracksCreated int) error {
	return m.update(ctx, userID, id, func(s *Session) {
		if s.Status == StatusPending {
			s.Status = StatusProcessing
		}
		s.CompletedChunks++
		s.TracksCreated += tracksCreated
	})
}

func (m *Manager) MarkCompleted(ctx context.Context, userID int64, id string) error {
	return m.update(ctx, userID, id, func(s *Session) {
		s.Status = StatusCompleted
	})
}

func (m *Manager) MarkFailed(ctx context.Context, userID int64, id string, reason string) error {
	return m.update(ctx, userID, id, func(s *Session) {
		s.Status = StatusFailed
		s.ErrorMessage = reason
	})
}

func (m *Manager) update(ctx context.Context, userID int64, id string, fn func(*Session)) error {
	s, err := m.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	fn(s)
	s.UpdatedAt = m.now()
	return m.save(ctx, s)
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	if err := m.store.Set(ctx, Key(s.UserID, s.ID), raw, m.ttl); err != nil {
		return fmt.Errorf("write session %s: %w", s.ID, err)
	}
	return nil
}

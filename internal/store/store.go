package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"trackline-backend/internal/model"
)

// Store defines the interface for all database operations of the engine.
type Store interface {
	// Transaction runs fn against a store bound to one transaction. Calls on
	// the tx store that open their own transaction become savepoints.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	UserSetting(ctx context.Context, userID int64) (*model.UserSetting, error)
	SaveUserSetting(ctx context.Context, setting *model.UserSetting) error

	UntrackedPoints(ctx context.Context, userID int64, start, end *int64) ([]model.Point, error)
	PointsBetween(ctx context.Context, userID int64, start, end int64) ([]model.Point, error)
	HasPointsBetween(ctx context.Context, userID int64, start, end int64) (bool, error)
	PointBounds(ctx context.Context, userID int64) (first, last int64, ok bool, err error)
	PointsForTracks(ctx context.Context, trackIDs []int64) ([]model.Point, error)
	ActiveUsersSince(ctx context.Context, since int64) ([]int64, error)

	CreateTrack(ctx context.Context, track *model.Track, pointIDs []int64) error
	TrackIDsOverlapping(ctx context.Context, userID int64, start, end *time.Time) ([]int64, error)
	TracksCreatedSince(ctx context.Context, userID int64, since time.Time) ([]model.Track, error)
	ListTracks(ctx context.Context, userID int64, start, end *time.Time) ([]model.Track, error)
	LatestTrackEndingBetween(ctx context.Context, userID int64, from, to time.Time, excludeID int64) (*model.Track, error)
	DeleteTracks(ctx context.Context, ids []int64) (int, error)
	ReplaceTracks(ctx context.Context, merged *model.Track, pointIDs, replacedIDs []int64) error
	DuplicateTrackGroups(ctx context.Context, userID int64) ([]DuplicateGroup, error)
	CollapseDuplicates(ctx context.Context, keepID int64, dropIDs []int64) (int, error)
	SaveClassification(ctx context.Context, trackID int64, segments []model.TrackSegment, dominantMode string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// UserSetting returns nil without error when the user has no settings row.
func (s *gormStore) UserSetting(ctx context.Context, userID int64) (*model.UserSetting, error) {
	var setting model.UserSetting
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for user %d: %w", userID, err)
	}
	return &setting, nil
}

func (s *gormStore) SaveUserSetting(ctx context.Context, setting *model.UserSetting) error {
	if err := s.db.WithContext(ctx).Save(setting).Error; err != nil {
		return fmt.Errorf("failed to save settings for user %d: %w", setting.UserID, err)
	}
	return nil
}

// --- Points ---

func (s *gormStore) UntrackedPoints(ctx context.Context, userID int64, start, end *int64) ([]model.Point, error) {
	q := s.db.WithContext(ctx).Where("user_id = ? AND track_id IS NULL", userID)
	if start != nil {
		q = q.Where("timestamp >= ?", *start)
	}
	if end != nil {
		q = q.Where("timestamp <= ?", *end)
	}
	var points []model.Point
	if err := q.Order("timestamp ASC, id ASC").Find(&points).Error; err != nil {
		return nil, fmt.Errorf("failed to load untracked points for user %d: %w", userID, err)
	}
	return points, nil
}

func (s *gormStore) PointsBetween(ctx context.Context, userID int64, start, end int64) ([]model.Point, error) {
	var points []model.Point
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ? AND timestamp <= ?", userID, start, end).
		Order("timestamp ASC, id ASC").
		Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load points for user %d in [%d, %d]: %w", userID, start, end, err)
	}
	return points, nil
}

func (s *gormStore) HasPointsBetween(ctx context.Context, userID int64, start, end int64) (bool, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&model.Point{}).
		Where("user_id = ? AND timestamp >= ? AND timestamp <= ?", userID, start, end).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return false, fmt.Errorf("failed to check points for user %d: %w", userID, err)
	}
	return len(ids) > 0, nil
}

// PointBounds returns the first and last point timestamps; ok is false when
// the user has no points.
func (s *gormStore) PointBounds(ctx context.Context, userID int64) (int64, int64, bool, error) {
	var row pointBounds
	err := s.db.WithContext(ctx).Model(&model.Point{}).
		Select("MIN(timestamp) AS first, MAX(timestamp) AS last").
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to load point bounds for user %d: %w", userID, err)
	}
	if row.First == nil || row.Last == nil {
		return 0, 0, false, nil
	}
	return *row.First, *row.Last, true, nil
}

func (s *gormStore) PointsForTracks(ctx context.Context, trackIDs []int64) ([]model.Point, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	var points []model.Point
	err := s.db.WithContext(ctx).
		Where("track_id IN ?", trackIDs).
		Order("timestamp ASC, id ASC").
		Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load points of tracks %v: %w", trackIDs, err)
	}
	return points, nil
}

// ActiveUsersSince lists users with at least one point at or after since.
func (s *gormStore) ActiveUsersSince(ctx context.Context, since int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&model.Point{}).
		Where("timestamp >= ?", since).
		Distinct().
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return ids, nil
}

// --- Tracks ---

// CreateTrack inserts the track and claims its points in one batch update.
// Either both happen or neither does.
func (s *gormStore) CreateTrack(ctx context.Context, track *model.Track, pointIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(track).Error; err != nil {
			return fmt.Errorf("failed to create track for user %d: %w", track.UserID, err)
		}
		if err := claimPoints(tx, track.ID, pointIDs); err != nil {
			return err
		}
		return nil
	})
}

// TrackIDsOverlapping returns tracks whose interval intersects [start, end].
// A nil bound is open.
func (s *gormStore) TrackIDsOverlapping(ctx context.Context, userID int64, start, end *time.Time) ([]int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Track{}).Where("user_id = ?", userID)
	if end != nil {
		q = q.Where("start_at <= ?", *end)
	}
	if start != nil {
		q = q.Where("end_at >= ?", *start)
	}
	var ids []int64
	if err := q.Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list overlapping tracks for user %d: %w", userID, err)
	}
	return ids, nil
}

func (s *gormStore) TracksCreatedSince(ctx context.Context, userID int64, since time.Time) ([]model.Track, error) {
	var tracks []model.Track
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("start_at ASC, id ASC").
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tracks for user %d: %w", userID, err)
	}
	return tracks, nil
}

// ListTracks returns the tracks overlapping [start, end] with their
// classified segments, oldest first.
func (s *gormStore) ListTracks(ctx context.Context, userID int64, start, end *time.Time) ([]model.Track, error) {
	q := s.db.WithContext(ctx).Preload("Segments").Where("user_id = ?", userID)
	if end != nil {
		q = q.Where("start_at <= ?", *end)
	}
	if start != nil {
		q = q.Where("end_at >= ?", *start)
	}
	var tracks []model.Track
	if err := q.Order("start_at ASC, id ASC").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracks for user %d: %w", userID, err)
	}
	return tracks, nil
}

// LatestTrackEndingBetween returns the track with the latest end_at inside
// [from, to], or nil when there is none.
func (s *gormStore) LatestTrackEndingBetween(ctx context.Context, userID int64, from, to time.Time, excludeID int64) (*model.Track, error) {
	var tracks []model.Track
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND end_at >= ? AND end_at <= ? AND id <> ?", userID, from, to, excludeID).
		Order("end_at DESC, id DESC").
		Limit(1).
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find preceding track for user %d: %w", userID, err)
	}
	if len(tracks) == 0 {
		return nil, nil
	}
	return &tracks[0], nil
}

// DeleteTracks releases the tracks' points and removes the tracks together
// with their segments. It returns the number of tracks deleted.
func (s *gormStore) DeleteTracks(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Point{}).Where("track_id IN ?", ids).Update("track_id", nil).Error; err != nil {
			return fmt.Errorf("failed to release points of tracks %v: %w", ids, err)
		}
		n, err := destroyTracks(tx, ids)
		deleted = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

// ReplaceTracks inserts merged, moves pointIDs onto it and destroys the
// replaced tracks. Points of replaced tracks not in pointIDs are released.
func (s *gormStore) ReplaceTracks(ctx context.Context, merged *model.Track, pointIDs, replacedIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(merged).Error; err != nil {
			return fmt.Errorf("failed to create merged track for user %d: %w", merged.UserID, err)
		}
		if err := claimPoints(tx, merged.ID, pointIDs); err != nil {
			return err
		}
		if len(replacedIDs) == 0 {
			return nil
		}
		if err := tx.Model(&model.Point{}).Where("track_id IN ?", replacedIDs).Update("track_id", nil).Error; err != nil {
			return fmt.Errorf("failed to release leftover points of tracks %v: %w", replacedIDs, err)
		}
		_, err := destroyTracks(tx, replacedIDs)
		return err
	})
}

// DuplicateTrackGroups finds (start_at, end_at) pairs held by more than one
// track of the user.
func (s *gormStore) DuplicateTrackGroups(ctx context.Context, userID int64) ([]DuplicateGroup, error) {
	var rows []trackBounds
	err := s.db.WithContext(ctx).Model(&model.Track{}).
		Select("id, start_at, end_at").
		Where("user_id = ?", userID).
		Order("id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan tracks of user %d: %w", userID, err)
	}

	type key struct{ start, end int64 }
	index := make(map[key]int)
	var groups []DuplicateGroup
	for _, r := range rows {
		k := key{r.StartAt.UnixNano(), r.EndAt.UnixNano()}
		if i, ok := index[k]; ok {
			groups[i].IDs = append(groups[i].IDs, r.ID)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, DuplicateGroup{StartAt: r.StartAt, EndAt: r.EndAt, IDs: []int64{r.ID}})
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.IDs) > 1 {
			out = append(out, g)
		}
	}
	return out, nil
}

// CollapseDuplicates moves points of dropIDs onto keepID and destroys dropIDs.
func (s *gormStore) CollapseDuplicates(ctx context.Context, keepID int64, dropIDs []int64) (int, error) {
	if len(dropIDs) == 0 {
		return 0, nil
	}
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Point{}).Where("track_id IN ?", dropIDs).Update("track_id", keepID).Error; err != nil {
			return fmt.Errorf("failed to move points onto track %d: %w", keepID, err)
		}
		n, err := destroyTracks(tx, dropIDs)
		deleted = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

// SaveClassification replaces the track's segments and sets its dominant mode.
func (s *gormStore) SaveClassification(ctx context.Context, trackID int64, segments []model.TrackSegment, dominantMode string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", trackID).Delete(&model.TrackSegment{}).Error; err != nil {
			return fmt.Errorf("failed to clear segments of track %d: %w", trackID, err)
		}
		if len(segments) > 0 {
			for i := range segments {
				segments[i].TrackID = trackID
			}
			if err := tx.Create(&segments).Error; err != nil {
				return fmt.Errorf("failed to save segments of track %d: %w", trackID, err)
			}
		}
		if err := tx.Model(&model.Track{}).Where("id = ?", trackID).Update("dominant_mode", dominantMode).Error; err != nil {
			return fmt.Errorf("failed to set dominant mode of track %d: %w", trackID, err)
		}
		return nil
	})
}

// --- Helpers ---

func claimPoints(tx *gorm.DB, trackID int64, pointIDs []int64) error {
	if len(pointIDs) == 0 {
		return nil
	}
	if err := tx.Model(&model.Point{}).Where("id IN ?", pointIDs).Update("track_id", trackID).Error; err != nil {
		return fmt.Errorf("failed to assign %d points to track %d: %w", len(pointIDs), trackID, err)
	}
	return nil
}

func destroyTracks(tx *gorm.DB, ids []int64) (int64, error) {
	if err := tx.Where("track_id IN ?", ids).Delete(&model.TrackSegment{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete segments of tracks %v: %w", ids, err)
	}
	res := tx.Where("id IN ?", ids).Delete(&model.Track{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete tracks %v: %w", ids, res.Error)
	}
	return res.RowsAffected, nil
}

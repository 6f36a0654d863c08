package model

import "time"

// Track represents a contiguous movement reconstructed from points.
type Track struct {
	ID            int64     `gorm:"primaryKey"`
	UserID        int64     `gorm:"not null;index:idx_tracks_user_period,priority:1"`
	StartAt       time.Time `gorm:"not null;index:idx_tracks_user_period,priority:2"`
	EndAt         time.Time `gorm:"not null;index:idx_tracks_user_period,priority:3"`
	Distance      int       `gorm:"not null"` // meters
	Duration      int64     `gorm:"not null"` // seconds
	AvgSpeed      float64   `gorm:"not null"` // km/h
	ElevationGain float64   `gorm:"not null"`
	ElevationLoss float64   `gorm:"not null"`
	ElevationMax  float64   `gorm:"not null"`
	ElevationMin  float64   `gorm:"not null"`
	OriginalPath  string    `gorm:"type:text;not null"` // WKT LINESTRING
	DominantMode  string    `gorm:"size:32"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time

	// Associations
	Segments []TrackSegment `gorm:"foreignKey:TrackID;constraint:OnDelete:CASCADE"`
}

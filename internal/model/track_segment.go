package model

import "time"

// TrackSegment is one transportation-mode sub-segment of a track, as reported
// by the external classifier. Indexes refer to the track's ordered points.
type TrackSegment struct {
	ID         int64   `gorm:"primaryKey"`
	TrackID    int64   `gorm:"not null;index"`
	Mode       string  `gorm:"size:32;not null"`
	StartIndex int     `gorm:"not null"`
	EndIndex   int     `gorm:"not null"`
	Distance   int     `gorm:"not null"`
	Duration   int64   `gorm:"not null"`
	AvgSpeed   float64 `gorm:"not null"`
	Confidence float64 `gorm:"not null"`
	CreatedAt  time.Time
}

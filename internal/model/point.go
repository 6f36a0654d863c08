package model

// Point is a single GPS sample. Only TrackID ever changes after insert.
type Point struct {
	ID        int64    `gorm:"primaryKey"`
	UserID    int64    `gorm:"not null;index:idx_points_user_timestamp,priority:1"`
	Timestamp int64    `gorm:"not null;index:idx_points_user_timestamp,priority:2"` // unix seconds
	Latitude  float64  `gorm:"not null"`
	Longitude float64  `gorm:"not null"`
	Altitude  *float64
	TrackID   *int64 `gorm:"index"`
}

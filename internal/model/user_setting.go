package model

import "time"

// UserSetting holds the per-user segmentation thresholds. Zero values mean
// "use the configured default".
type UserSetting struct {
	UserID                  int64 `gorm:"primaryKey;autoIncrement:false"`
	TimeThresholdMinutes    int
	DistanceThresholdMeters float64
	UpdatedAt               time.Time
}

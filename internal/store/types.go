package store

import "time"

// DuplicateGroup is a set of tracks of one user sharing identical bounds.
// IDs are ordered newest (highest id) first.
type DuplicateGroup struct {
	StartAt time.Time
	EndAt   time.Time
	IDs     []int64
}

// pointBounds is the scan target of PointBounds.
type pointBounds struct {
	First *int64
	Last  *int64
}

type trackBounds struct {
	ID      int64
	StartAt time.Time
	EndAt   time.Time
}

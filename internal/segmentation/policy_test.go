package segmentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackline-backend/internal/model"
)

// ~111 m per 0.001 degree of latitude.
func pointAt(id int64, minute int, lat float64) model.Point {
	return model.Point{ID: id, UserID: 1, Timestamp: int64(minute) * 60, Latitude: lat, Longitude: 13.4}
}

func TestPolicy_ShouldStartNewSegment(t *testing.T) {
	policy := NewPolicy(DefaultThresholds())
	prev := pointAt(1, 0, 52.5)

	testCases := []struct {
		name     string
		prev     *model.Point
		cur      model.Point
		expected bool
	}{
		{name: "start of run", prev: nil, cur: pointAt(2, 0, 52.5), expected: true},
		{name: "within both thresholds", prev: &prev, cur: pointAt(2, 5, 52.501), expected: false},
		{name: "time gap just under threshold", prev: &prev, cur: pointAt(2, 59, 52.5), expected: false},
		{name: "time gap equal to threshold", prev: &prev, cur: pointAt(2, 60, 52.5), expected: true},
		{name: "time gap exceeds threshold", prev: &prev, cur: pointAt(2, 61, 52.5), expected: true},
		{name: "distance exceeds threshold", prev: &prev, cur: pointAt(2, 1, 52.51), expected: true},
		{name: "distance just under threshold", prev: &prev, cur: pointAt(2, 1, 52.5044), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, policy.ShouldStartNewSegment(tc.prev, tc.cur))
		})
	}
}

func TestPolicy_Split_DropsSinglePointSegments(t *testing.T) {
	policy := NewPolicy(Thresholds{TimeMinutes: 60, DistanceMeters: 500})

	points := []model.Point{
		pointAt(1, 0, 52.5),
		pointAt(2, 5, 52.5005),
		pointAt(3, 65, 52.5005),
	}

	segments := policy.Split(points)
	require.Len(t, segments, 1)
	assert.Equal(t, []int64{1, 2}, ids(segments[0]))
}

func TestPolicy_Split_BoundaryLaw(t *testing.T) {
	policy := NewPolicy(DefaultThresholds())

	points := []model.Point{
		pointAt(1, 0, 52.5),
		pointAt(2, 10, 52.501),
		pointAt(3, 20, 52.502),
		pointAt(4, 30, 52.52), // distance break
		pointAt(5, 40, 52.521),
		pointAt(6, 200, 52.521), // time break
		pointAt(7, 210, 52.522),
		pointAt(8, 215, 52.523),
	}

	segments := policy.Split(points)
	require.Len(t, segments, 3)
	assert.Equal(t, []int64{1, 2, 3}, ids(segments[0]))
	assert.Equal(t, []int64{4, 5}, ids(segments[1]))
	assert.Equal(t, []int64{6, 7, 8}, ids(segments[2]))

	// Every consecutive pair lands together iff the policy keeps them together.
	segmentOf := map[int64]int{}
	for i, seg := range segments {
		for _, p := range seg {
			segmentOf[p.ID] = i
		}
	}
	for i := 1; i < len(points); i++ {
		prev := points[i-1]
		split := policy.ShouldStartNewSegment(&prev, points[i])
		assert.Equal(t, split, segmentOf[prev.ID] != segmentOf[points[i].ID], "points %d,%d", prev.ID, points[i].ID)
	}
}

func TestPolicy_Split_Empty(t *testing.T) {
	policy := NewPolicy(Thresholds{})
	assert.Empty(t, policy.Split(nil))
	assert.Empty(t, policy.Split([]model.Point{pointAt(1, 0, 52.5)}))
	assert.Equal(t, DefaultThresholds(), policy.Thresholds())
}

func ids(points []model.Point) []int64 {
	out := make([]int64, len(points))
	for i, p := range points {
		out[i] = p.ID
	}
	return out
}

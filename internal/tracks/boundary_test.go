package tracks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackline-backend/config"
	"trackline-backend/internal/classify"
	"trackline-backend/internal/logger"
	"trackline-backend/internal/model"
	"trackline-backend/internal/segmentation"
)

func TestBoundaryResolver_MergesTracksSplitAtChunkEdge(t *testing.T) {
	ctx := context.Background()
	s, gdb := newTestStore(t)
	merger := NewMerger(s, classify.NewService(nil, s), logger.NewNop())
	resolver := NewBoundaryResolver(s, merger, config.Default().Generation, logger.NewNop())

	// One journey cut at midnight, plus an unrelated trip far away.
	before := insert(t, gdb, walk(1, base+day-10*60, 10, 52.52, 13.405))
	after := insert(t, gdb, walk(1, base+day+5*60, 10, 52.5247, 13.405))
	elsewhere := insert(t, gdb, walk(1, base+day+20*60, 5, 48.85, 2.35))
	buildTrack(t, s, before)
	buildTrack(t, s, after)
	buildTrack(t, s, elsewhere)

	merged, err := resolver.Resolve(ctx, 1, segmentation.DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	tracks := allTracks(t, gdb, 1)
	require.Len(t, tracks, 2)
	assert.Equal(t, before[0].Timestamp, tracks[0].StartAt.Unix())
	assert.Equal(t, after[len(after)-1].Timestamp, tracks[0].EndAt.Unix())
	assert.Len(t, membersOf(t, gdb, tracks[0].ID), 20)
	assert.Len(t, membersOf(t, gdb, tracks[1].ID), 5)

	// A second pass finds nothing left to do.
	merged, err = resolver.Resolve(ctx, 1, segmentation.DefaultThresholds())
	require.NoError(t, err)
	assert.Zero(t, merged)
}

func TestBoundaryResolver_RespectsWindowAndDistance(t *testing.T) {
	ctx := context.Background()
	s, gdb := newTestStore(t)
	merger := NewMerger(s, nil, logger.NewNop())
	resolver := NewBoundaryResolver(s, merger, config.Default().Generation, logger.NewNop())

	a := insert(t, gdb, walk(1, base, 5, 52.52, 13.405))
	// Starts right where a ended but 40 minutes later.
	late := insert(t, gdb, walk(1, base+4*60+40*60, 5, 52.522, 13.405))
	// Starts right after a ended but 5 km away.
	far := insert(t, gdb, walk(2, base, 5, 52.52, 13.405))
	farB := insert(t, gdb, walk(2, base+5*60, 5, 52.57, 13.405))
	for _, pts := range [][]model.Point{a, late, far, farB} {
		buildTrack(t, s, pts)
	}

	for _, user := range []int64{1, 2} {
		merged, err := resolver.Resolve(ctx, user, segmentation.DefaultThresholds())
		require.NoError(t, err)
		assert.Zero(t, merged)
		assert.Len(t, allTracks(t, gdb, user), 2)
	}
}

func TestBoundaryResolver_RejectsGroupWithInternalGap(t *testing.T) {
	ctx := context.Background()
	s, gdb := newTestStore(t)
	resolver := NewBoundaryResolver(s, NewMerger(s, nil, logger.NewNop()), config.Default().Generation, logger.NewNop())

	// A long loop overlaps two short trips that are 70 minutes apart, all
	// starting and ending around the same spot.
	loop := []model.Point{
		{UserID: 1, Timestamp: base, Latitude: 52.52, Longitude: 13.405},
		{UserID: 1, Timestamp: base + 100*60, Latitude: 52.5201, Longitude: 13.405},
		{UserID: 1, Timestamp: base + 200*60, Latitude: 52.52, Longitude: 13.4051},
	}
	first := []model.Point{
		{UserID: 1, Timestamp: base + 10*60, Latitude: 52.52, Longitude: 13.405},
		{UserID: 1, Timestamp: base + 20*60, Latitude: 52.5202, Longitude: 13.405},
	}
	second := []model.Point{
		{UserID: 1, Timestamp: base + 90*60, Latitude: 52.52, Longitude: 13.405},
		{UserID: 1, Timestamp: base + 100*60, Latitude: 52.5202, Longitude: 13.405},
	}
	insert(t, gdb, loop, first, second)
	var points []model.Point
	require.NoError(t, gdb.Order("id ASC").Find(&points).Error)
	buildTrack(t, s, points[0:3])
	buildTrack(t, s, points[3:5])
	buildTrack(t, s, points[5:7])

	merged, err := resolver.Resolve(ctx, 1, segmentation.DefaultThresholds())
	require.NoError(t, err)
	assert.Zero(t, merged)
	assert.Len(t, allTracks(t, gdb, 1), 3)
}

func TestIntervalGap(t *testing.T) {
	a := model.Track{StartAt: unix(base), EndAt: unix(base + 600)}
	b := model.Track{StartAt: unix(base + 900), EndAt: unix(base + 1200)}
	c := model.Track{StartAt: unix(base + 300), EndAt: unix(base + 700)}

	assert.Equal(t, 300.0, intervalGap(a, b).Seconds())
	assert.Equal(t, 300.0, intervalGap(b, a).Seconds())
	assert.Zero(t, intervalGap(a, c))
}

func TestMerger_Merge(t *testing.T) {
	ctx := context.Background()
	s, gdb := newTestStore(t)
	merger := NewMerger(s, classify.NewService(nil, s), logger.NewNop())

	pa := insert(t, gdb, walk(1, base, 3, 52.52, 13.405))
	pb := insert(t, gdb, walk(1, base+10*60, 2, 52.53, 13.405))
	a := buildTrack(t, s, pa)
	b := buildTrack(t, s, pb)

	merged, err := merger.Merge(ctx, 1, []model.Track{*b, *a})
	require.NoError(t, err)

	all := append(append([]model.Point{}, pa...), pb...)
	want, err := ComputeTrack(1, all)
	require.NoError(t, err)

	assert.Equal(t, pointIDs(all), membersOf(t, gdb, merged.ID))
	assert.Equal(t, b.EndAt.Unix(), merged.EndAt.Unix())
	assert.Equal(t, a.StartAt.Unix(), merged.StartAt.Unix())
	assert.Equal(t, want.Distance, merged.Distance)
	assert.NotEqual(t, a.Distance+b.Distance, merged.Distance, "distance is recomputed, not summed")

	tracks := allTracks(t, gdb, 1)
	require.Len(t, tracks, 1)
	assert.Equal(t, merged.ID, tracks[0].ID)
}

func TestMerger_MergeWithoutPointsFails(t *testing.T) {
	ctx := context.Background()
	s, gdb := newTestStore(t)
	merger := NewMerger(s, nil, logger.NewNop())

	empty := &model.Track{UserID: 1, StartAt: unix(base), EndAt: unix(base + 60), OriginalPath: "LINESTRING(0 0, 0 0)"}
	require.NoError(t, s.CreateTrack(ctx, empty, nil))

	_, err := merger.Merge(ctx, 1, []model.Track{*empty})
	assert.ErrorIs(t, err, ErrTooFewPoints)
	assert.Len(t, allTracks(t, gdb, 1), 1, "nothing changes on a failed merge")
}

func TestDeduplicator_Converges(t *testing.T) {
	ctx := context.Background()
	s, gdb := newTestStore(t)
	d := NewDeduplicator(s, logger.NewNop())

	points := insert(t, gdb, walk(1, base, 4, 52.52, 13.405))
	var ids []int64
	for i := 0; i < 3; i++ {
		ids = append(ids, buildTrack(t, s, points).ID)
	}
	other := buildTrack(t, s, insert(t, gdb, walk(1, base+3600, 3, 52.52, 13.405)))

	removed, err := d.Run(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	tracks := allTracks(t, gdb, 1)
	require.Len(t, tracks, 2)
	assert.Equal(t, ids[2], tracks[0].ID, "the highest id survives")
	assert.Equal(t, other.ID, tracks[1].ID)
	assert.Equal(t, pointIDs(points), membersOf(t, gdb, ids[2]))

	groups, err := s.DuplicateTrackGroups(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, groups)

	removed, err = d.Run(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

package tracks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	timestamps []int64
}

func (f fakeIndex) PointBounds(context.Context, int64) (int64, int64, bool, error) {
	if len(f.timestamps) == 0 {
		return 0, 0, false, nil
	}
	first, last := f.timestamps[0], f.timestamps[0]
	for _, ts := range f.timestamps {
		first = min(first, ts)
		last = max(last, ts)
	}
	return first, last, true, nil
}

func (f fakeIndex) HasPointsBetween(_ context.Context, _ int64, start, end int64) (bool, error) {
	for _, ts := range f.timestamps {
		if ts >= start && ts <= end {
			return true, nil
		}
	}
	return false, nil
}

const day = int64(86400)

func TestChunker_DropsEmptyChunks(t *testing.T) {
	c := NewChunker(fakeIndex{timestamps: []int64{base + 3600, base + 4*day + 3600}}, 24*time.Hour, 6*time.Hour)

	chunks, err := c.Chunks(context.Background(), 1, int64p(base), int64p(base+5*day))
	require.NoError(t, err)

	var starts []int64
	for _, ch := range chunks {
		starts = append(starts, ch.Start-base)
	}
	assert.Equal(t, []int64{0, 3 * day, 4 * day}, starts)
}

func TestChunker_BufferedWindowsCoverRange(t *testing.T) {
	var dense []int64
	for ts := base; ts <= base+3*day; ts += 3600 {
		dense = append(dense, ts)
	}
	c := NewChunker(fakeIndex{timestamps: dense}, 24*time.Hour, 6*time.Hour)
	a, b := base+1800, base+3*day-1800

	chunks, err := c.Chunks(context.Background(), 1, int64p(a), int64p(b))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, a, chunks[0].BufferStart, "buffer is clamped to the range start")
	assert.Equal(t, b, chunks[len(chunks)-1].BufferEnd, "buffer is clamped to the range end")
	seen := make(map[string]bool)
	for i, ch := range chunks {
		assert.LessOrEqual(t, ch.BufferStart, ch.Start)
		assert.GreaterOrEqual(t, ch.BufferEnd, ch.End)
		if i > 0 {
			assert.LessOrEqual(t, ch.BufferStart, chunks[i-1].BufferEnd, "gap between chunk %d and %d", i-1, i)
			assert.Equal(t, chunks[i-1].End, ch.Start)
		}
		assert.NotEmpty(t, ch.ID)
		assert.False(t, seen[ch.ID], "chunk ids are unique")
		seen[ch.ID] = true
	}
	assert.Equal(t, chunks[0].Start+6*3600+day, chunks[0].BufferEnd)
}

func TestChunker_OpenRangeUsesPointBounds(t *testing.T) {
	c := NewChunker(fakeIndex{timestamps: []int64{base + 100, base + day + 100}}, 24*time.Hour, 6*time.Hour)

	chunks, err := c.Chunks(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, base+100, chunks[0].Start)
	assert.Equal(t, base+day+100, chunks[1].End)

	// Only the end open.
	chunks, err = c.Chunks(context.Background(), 1, int64p(base+day), nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, base+day, chunks[0].Start)
}

func TestChunker_NoWork(t *testing.T) {
	ctx := context.Background()

	chunks, err := NewChunker(fakeIndex{}, 24*time.Hour, 6*time.Hour).Chunks(ctx, 1, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	c := NewChunker(fakeIndex{timestamps: []int64{base}}, 24*time.Hour, 6*time.Hour)
	chunks, err = c.Chunks(ctx, 1, int64p(base+10), int64p(base))
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = c.Chunks(ctx, 1, int64p(base), int64p(base))
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

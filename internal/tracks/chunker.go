package tracks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TimeChunk is a slice of a generation range. Start/End are the true bounds,
// BufferStart/BufferEnd the widened window that is actually loaded. All
// values are unix seconds.
type TimeChunk struct {
	ID          string `json:"id"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	BufferStart int64  `json:"buffer_start"`
	BufferEnd   int64  `json:"buffer_end"`
}

// PointIndex answers the point existence questions the chunker needs.
type PointIndex interface {
	PointBounds(ctx context.Context, userID int64) (first, last int64, ok bool, err error)
	HasPointsBetween(ctx context.Context, userID int64, start, end int64) (bool, error)
}

// Chunker splits a range into buffered chunks.
type Chunker struct {
	index     PointIndex
	chunkSize int64
	buffer    int64
}

func NewChunker(index PointIndex, chunkSize, buffer time.Duration) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 24 * time.Hour
	}
	if buffer < 0 {
		buffer = 0
	}
	return &Chunker{
		index:     index,
		chunkSize: int64(chunkSize / time.Second),
		buffer:    int64(buffer / time.Second),
	}
}

// Chunks covers [start, end]; open bounds fall back to the user's first and
// last point. Chunks without points in their buffered window are dropped.
func (c *Chunker) Chunks(ctx context.Context, userID int64, start, end *int64) ([]TimeChunk, error) {
	from, to, ok, err := c.resolveRange(ctx, userID, start, end)
	if err != nil || !ok {
		return nil, err
	}

	var chunks []TimeChunk
	for cursor := from; ; cursor += c.chunkSize {
		chunkEnd := cursor + c.chunkSize
		if chunkEnd > to {
			chunkEnd = to
		}
		chunk := TimeChunk{
			Start:       cursor,
			End:         chunkEnd,
			BufferStart: max(cursor-c.buffer, from),
			BufferEnd:   min(chunkEnd+c.buffer, to),
		}

		has, err := c.index.HasPointsBetween(ctx, userID, chunk.BufferStart, chunk.BufferEnd)
		if err != nil {
			return nil, err
		}
		if has {
			chunk.ID = uuid.NewString()
			chunks = append(chunks, chunk)
		}
		if chunkEnd >= to {
			break
		}
	}
	return chunks, nil
}

func (c *Chunker) resolveRange(ctx context.Context, userID int64, start, end *int64) (int64, int64, bool, error) {
	if start != nil && end != nil {
		return *start, *end, *start <= *end, nil
	}
	first, last, ok, err := c.index.PointBounds(ctx, userID)
	if err != nil || !ok {
		return 0, 0, false, err
	}
	if start != nil {
		first = *start
	}
	if end != nil {
		last = *end
	}
	return first, last, first <= last, nil
}

package broker

import (
	"github.com/liquidev/rakugaki/internal/wall"
	"github.com/liquidev/rakugaki/internal/wsproto"
)

// maxChunkFrameBytes caps a single chunks notification's binary payload;
// exceeding it splits the batch across multiple moreChunks round-trips
// (spec.md §4.H).
const maxChunkFrameBytes = 1 << 20

// streamNewChunks sends s every chunk within its last-reported viewport
// that it hasn't already been sent, batching by maxChunkFrameBytes and
// setting HasMore when the batch was truncated.
func (a *Actor) streamNewChunks(s *Session) {
	if !s.HasViewport {
		return
	}

	var pending []wall.Coord
	for cy := s.Viewport.TopLeft.Y; cy <= s.Viewport.BottomRight.Y; cy++ {
		for cx := s.Viewport.TopLeft.X; cx <= s.Viewport.BottomRight.X; cx++ {
			c := wall.Coord{X: cx, Y: cy}
			if !c.InRange() {
				continue
			}
			if _, sent := s.visibleChunks[c]; sent {
				continue
			}
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return
	}

	var descriptors []wsproto.ChunkDescriptor
	var payload []byte
	hasMore := false

	for _, c := range pending {
		ch, err := a.store.GetOrCreate(c)
		if err != nil {
			// WallFull: stop streaming; nothing more will ever fit either.
			break
		}
		data, err := wall.EncodeChunk(ch)
		if err != nil {
			continue
		}
		if len(payload)+len(data) > maxChunkFrameBytes && len(payload) > 0 {
			hasMore = true
			break
		}
		descriptors = append(descriptors, wsproto.ChunkDescriptor{
			Position: wsproto.Coord{X: c.X, Y: c.Y},
			Offset:   len(payload),
			Length:   len(data),
		})
		payload = append(payload, data...)
		s.visibleChunks[c] = struct{}{}
	}

	if len(descriptors) == 0 {
		return
	}

	a.enqueue(s, OutboundFrame{
		JSON:   wsproto.ChunksNotification{Notify: "chunks", Chunks: descriptors, HasMore: hasMore},
		Binary: payload,
	})
}

// forgetOutOfView drops chunks no longer inside rect from s's
// already-sent set, so they're resent if the viewport returns to them.
func forgetOutOfView(s *Session, rect Rect) {
	for c := range s.visibleChunks {
		if c.X < rect.TopLeft.X || c.X > rect.BottomRight.X || c.Y < rect.TopLeft.Y || c.Y > rect.BottomRight.Y {
			delete(s.visibleChunks, c)
		}
	}
}

// Package wall owns per-wall chunk storage: an in-memory pixmap map with
// dirty tracking and PNG-backed persistence (spec.md §4.G). Dirty chunks
// are written when Store.AutosaveTick is called; no timer in this
// repository calls it, and Store.Close flushes through it.
package wall

import "github.com/liquidev/rakugaki/internal/raster"

// Coord is a chunk's integer grid position. Both fields are kept within
// the signed 24-bit range ([-8388608, 8388607]) to bound filename length
// and close off pathological wall-fill attacks (spec.md §9, resolved open
// question; see DESIGN.md).
type Coord struct {
	X, Y int32
}

const (
	minChunkCoord = -8388608
	maxChunkCoord = 8388607
)

// InRange reports whether c's components fall within the signed 24-bit
// coordinate cap.
func (c Coord) InRange() bool {
	return c.X >= minChunkCoord && c.X <= maxChunkCoord && c.Y >= minChunkCoord && c.Y <= maxChunkCoord
}

// Chunk is one square sub-region of a wall.
type Chunk struct {
	Pixmap       *raster.Pixmap
	Dirty        bool
	LastModified uint64 // monotonic tick, bumped by Touch
	LastSaved    uint64
}

package wall

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/liquidev/rakugaki/internal/raster"
)

// WallFullError is returned by GetOrCreate when admitting a new chunk
// would exceed max_chunks.
type WallFullError struct{ MaxChunks int }

func (e *WallFullError) Error() string { return "wall is full" }

// Store owns the chunk map for exactly one wall: everything here is
// mutated only from the wall's actor goroutine (spec.md §5, "Chunks are
// mutable only via the wall actor"), so the mutex exists to let the HTTP
// layer read a consistent snapshot (e.g. chunk count for wallInfo)
// concurrently with the actor, not to allow concurrent writers.
type Store struct {
	mu sync.Mutex

	root      string
	fs        afero.Fs
	chunkSize int
	maxChunks int
	clock     uint64

	chunks map[Coord]*Chunk
	log    *logrus.Entry
}

// New creates an empty Store rooted at root (e.g. "db/walls/<wall_id>").
// fs is injected so tests can pass an afero.MemMapFs instead of touching
// the real filesystem.
func New(fs afero.Fs, root string, chunkSize, maxChunks int, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		fs:        fs,
		root:      root,
		chunkSize: chunkSize,
		maxChunks: maxChunks,
		chunks:    make(map[Coord]*Chunk),
		log:       log,
	}
}

// Count reports the number of chunks currently resident in memory.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// GetOrCreate returns the chunk at c, creating and lazily loading it from
// disk on first access. It rejects with WallFullError once max_chunks
// resident chunks would be exceeded.
func (s *Store) GetOrCreate(c Coord) (*Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.chunks[c]; ok {
		return ch, nil
	}
	if s.maxChunks > 0 && len(s.chunks) >= s.maxChunks {
		return nil, &WallFullError{MaxChunks: s.maxChunks}
	}

	ch := s.load(c)
	s.chunks[c] = ch
	return ch, nil
}

// load attempts to read c's persisted image; a missing file yields an
// empty chunk, and a decode failure yields an empty chunk plus a logged
// CorruptChunkError (spec.md §4.G).
func (s *Store) load(c Coord) *Chunk {
	path := chunkPath(s.root, c)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return &Chunk{Pixmap: raster.NewPixmap(s.chunkSize, s.chunkSize)}
	}
	pm, err := decodeChunk(data, s.chunkSize)
	if err != nil {
		s.log.WithError(&CorruptChunkError{Coord: c, Err: err}).Warn("discarding corrupt chunk")
		return &Chunk{Pixmap: raster.NewPixmap(s.chunkSize, s.chunkSize)}
	}
	return &Chunk{Pixmap: pm, LastSaved: s.clock}
}

// Touch marks c dirty and bumps the wall's monotonic modification clock.
// The chunk must already exist (callers paint via GetOrCreate first).
func (s *Store) Touch(c Coord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock++
	if ch, ok := s.chunks[c]; ok {
		ch.Dirty = true
		ch.LastModified = s.clock
	}
}

// AutosaveTick encodes and writes every dirty chunk to disk, then clears
// their dirty flags. It returns the number of chunks flushed and the first
// write error encountered, if any (infrastructure errors are logged and
// leave the chunk dirty for retry, per spec.md §7).
func (s *Store) AutosaveTick() (flushed int, err error) {
	s.mu.Lock()
	dirty := make(map[Coord]*raster.Pixmap)
	for c, ch := range s.chunks {
		if ch.Dirty {
			dirty[c] = ch.Pixmap
		}
	}
	s.mu.Unlock()

	for c, pm := range dirty {
		data, encErr := encodeChunk(pm)
		if encErr != nil {
			s.log.WithError(encErr).WithField("chunk", c).Error("failed to encode chunk")
			if err == nil {
				err = encErr
			}
			continue
		}
		if writeErr := writeFile(s.fs, chunkPath(s.root, c), data); writeErr != nil {
			s.log.WithError(writeErr).WithField("chunk", c).Error("failed to persist chunk")
			if err == nil {
				err = writeErr
			}
			continue
		}

		s.mu.Lock()
		if ch, ok := s.chunks[c]; ok {
			ch.Dirty = false
			ch.LastSaved = s.clock
		}
		s.mu.Unlock()
		flushed++
	}
	return flushed, err
}

// Close flushes every dirty chunk before the wall is released, per
// spec.md §4.G ("A wall is closed by first flushing all dirty chunks,
// then releasing file handles").
func (s *Store) Close() error {
	_, err := s.AutosaveTick()
	return err
}

// ChunksForPaintArea returns the coordinates of every chunk whose cell
// overlaps the axis-aligned square of side paintArea centered at (x, y),
// in wall-pixel units (spec.md §8: "the set of chunks marked dirty is
// exactly the set whose ... square ... overlaps their cell").
func ChunksForPaintArea(x, y, paintArea float64, chunkSize int) []Coord {
	half := paintArea / 2
	minX, maxX := floorDiv(x-half, chunkSize), floorDiv(x+half, chunkSize)
	minY, maxY := floorDiv(y-half, chunkSize), floorDiv(y+half, chunkSize)

	var out []Coord
	for cy := minY; cy <= maxY; cy++ {
		for cx := minX; cx <= maxX; cx++ {
			out = append(out, Coord{X: int32(cx), Y: int32(cy)})
		}
	}
	return out
}

func floorDiv(v float64, size int) int {
	return int(math.Floor(v / float64(size)))
}

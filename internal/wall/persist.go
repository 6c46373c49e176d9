package wall

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/spf13/afero"

	"github.com/liquidev/rakugaki/internal/raster"
)

// CorruptChunkError wraps a decode failure for a chunk already present on
// disk (spec.md §4.G: "decode error -> CorruptChunk (logged, chunk left
// empty)").
type CorruptChunkError struct {
	Coord Coord
	Err   error
}

func (e *CorruptChunkError) Error() string {
	return fmt.Sprintf("corrupt chunk at (%d,%d): %v", e.Coord.X, e.Coord.Y, e.Err)
}

func (e *CorruptChunkError) Unwrap() error { return e.Err }

// EncodeChunk serializes ch's pixmap for wire transfer, using the same
// codec as on-disk persistence so viewport streaming and autosave share
// one encoding (spec.md §4.H, §4.G).
func EncodeChunk(ch *Chunk) ([]byte, error) { return encodeChunk(ch.Pixmap) }

// encodeChunk serializes a pixmap losslessly. The source implementation
// persists chunks as WebP; no writable WebP encoder exists among this
// project's dependencies (only decode support ships in golang.org/x/image),
// so chunks are persisted as PNG instead - lossless and alpha-preserving,
// which satisfies (and exceeds) the relaxed round-trip law of spec.md §8
// ("bit-identical ... iff the codec is configured lossless").
func encodeChunk(pm *raster.Pixmap) ([]byte, error) {
	img := &image.NRGBA{
		Pix:    pm.Pix,
		Stride: pm.Width * 4,
		Rect:   image.Rect(0, 0, pm.Width, pm.Height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeChunk deserializes a previously persisted chunk into a pixmap of
// the given side length.
func decodeChunk(data []byte, chunkSize int) (*raster.Pixmap, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		b := img.Bounds()
		converted := image.NewNRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				converted.Set(x, y, img.At(x, y))
			}
		}
		nrgba = converted
	}
	pm := raster.NewPixmap(chunkSize, chunkSize)
	pm.BlitFrom(&raster.Pixmap{Width: nrgba.Rect.Dx(), Height: nrgba.Rect.Dy(), Pix: nrgba.Pix}, 0, 0, chunkSize, chunkSize, 0, 0)
	return pm, nil
}

// chunkPath returns the on-disk path for a chunk, fanning directories out
// by coordinate hash so a wall with many chunks never puts more than a
// few thousand files in one directory.
func chunkPath(root string, c Coord) string {
	h := coordHash(c)
	return fmt.Sprintf("%s/chunks/%04x/%d_%d.png", root, h&0xffff, c.X, c.Y)
}

func coordHash(c Coord) uint32 {
	// FNV-1a over the two coordinates; only used for directory fan-out, not
	// for lookup, so collisions are harmless.
	h := uint32(2166136261)
	for _, b := range []byte{
		byte(c.X), byte(c.X >> 8), byte(c.X >> 16), byte(c.X >> 24),
		byte(c.Y), byte(c.Y >> 8), byte(c.Y >> 16), byte(c.Y >> 24),
	} {
		h ^= uint32(b)
		h *= 16777619
	}
	return h
}

func writeFile(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(dirOf(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0o644)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

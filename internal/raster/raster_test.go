package raster_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liquidev/rakugaki/internal/haku/value"
	"github.com/liquidev/rakugaki/internal/raster"
)

func pixelAt(p *raster.Pixmap, x, y int) [4]byte {
	i := (y*p.Width + x) * 4
	return [4]byte{p.Pix[i], p.Pix[i+1], p.Pix[i+2], p.Pix[i+3]}
}

func TestRenderStrokeSquareAtCenter(t *testing.T) {
	// Scenario 1 from spec.md §8: stroke 8 #000 (vec 0 0), rendered at the
	// center of a 512x512 pixmap, paints an opaque black 8x8 square
	// centered on (256,256) and leaves everything else transparent.
	heap := value.NewHeap(1 << 20)
	point := value.PointValue(0, 0)
	idx, ok := heap.Alloc(value.Obj{
		Kind: value.ObjScribble,
		Scribble: &value.Scribble{
			Kind:      value.ScribbleStroke,
			Thickness: 8,
			Color:     [4]float64{0, 0, 0, 1},
			Shape:     point,
		},
		Size: value.ScribbleSize(0),
	})
	require.True(t, ok)

	pm := raster.NewPixmap(512, 512)
	err := raster.Render(pm, heap, value.RefValue(idx), 256, 256, raster.DefaultLimits)
	require.NoError(t, err)

	require.Equal(t, [4]byte{0, 0, 0, 255}, pixelAt(pm, 256, 256))
	require.Equal(t, [4]byte{0, 0, 0, 255}, pixelAt(pm, 253, 253))
	require.Equal(t, [4]byte{0, 0, 0, 0}, pixelAt(pm, 0, 0))
	require.Equal(t, [4]byte{0, 0, 0, 0}, pixelAt(pm, 270, 270))
}

func TestRenderListFlattensToMultipleScribbles(t *testing.T) {
	// Scenario 2: two squares 8px apart along X, red on the right.
	heap := value.NewHeap(1 << 20)
	red, ok1 := heap.Alloc(value.Obj{
		Kind: value.ObjScribble,
		Scribble: &value.Scribble{
			Kind: value.ScribbleStroke, Thickness: 8,
			Color: [4]float64{1, 0, 0, 1}, Shape: value.PointValue(4, 0),
		},
		Size: value.ScribbleSize(0),
	})
	blue, ok2 := heap.Alloc(value.Obj{
		Kind: value.ObjScribble,
		Scribble: &value.Scribble{
			Kind: value.ScribbleStroke, Thickness: 8,
			Color: [4]float64{0, 0, 1, 1}, Shape: value.PointValue(-4, 0),
		},
		Size: value.ScribbleSize(0),
	})
	require.True(t, ok1)
	require.True(t, ok2)
	listIdx, ok := heap.Alloc(value.Obj{
		Kind: value.ObjList,
		List: []value.Value{value.RefValue(red), value.RefValue(blue)},
		Size: value.ListSize(2),
	})
	require.True(t, ok)

	pm := raster.NewPixmap(64, 64)
	err := raster.Render(pm, heap, value.RefValue(listIdx), 32, 32, raster.DefaultLimits)
	require.NoError(t, err)

	require.Equal(t, byte(255), pixelAt(pm, 34, 32)[0]) // red square center-ish
	require.Equal(t, byte(255), pixelAt(pm, 30, 32)[2]) // blue square center-ish
}

func TestRenderRepeatedLowAlphaFillApproachesButNeverReachesOpaque(t *testing.T) {
	// Scenario 3: repeatedly filling with a very low alpha (#0001, alpha
	// 17/255) never quite reaches full opacity because of the floor-truncation blend
	// (spec.md §9's documented precision caveat).
	pm := raster.NewPixmap(64, 64)
	heap := value.NewHeap(1 << 20)

	for i := 0; i < 100; i++ {
		idx, ok := heap.Alloc(value.Obj{
			Kind: value.ObjScribble,
			Scribble: &value.Scribble{
				Kind:  value.ScribbleFill,
				Color: [4]float64{0, 0, 0, 17.0 / 255},
				Shape: value.CircleValue(0, 0, 16),
			},
			Size: value.ScribbleSize(0),
		})
		require.True(t, ok)
		err := raster.Render(pm, heap, value.RefValue(idx), 32, 32, raster.DefaultLimits)
		require.NoError(t, err)
	}

	center := pixelAt(pm, 32, 32)
	require.Less(t, center[3], byte(255))
}

func TestRenderRejectsNonScribbleResult(t *testing.T) {
	pm := raster.NewPixmap(8, 8)
	heap := value.NewHeap(1024)
	err := raster.Render(pm, heap, value.NumberValue(3), 0, 0, raster.DefaultLimits)
	require.Error(t, err)
}

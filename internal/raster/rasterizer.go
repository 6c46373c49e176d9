package raster

import "github.com/liquidev/rakugaki/internal/haku/value"

// Limits bounds a single render call's traversal, named after the haku
// limits table (spec.md §6).
type Limits struct {
	PixmapStackCapacity   int
	TransformStackCapacity int
}

var DefaultLimits = Limits{PixmapStackCapacity: 8, TransformStackCapacity: 64}

// NotAScribbleError is returned when a brush's result value cannot be
// interpreted as a Scribble tree (spec.md §4.E invariant: "a brush's
// result must evaluate to a Scribble or a List that recursively flattens
// to Scribbles; otherwise rendering fails with a typed exception").
type NotAScribbleError struct{ Got string }

func (e *NotAScribbleError) Error() string { return "not a scribble: " + e.Got }

// Render walks result (the VM's return Value) as a scribble tree,
// translating every primitive by (tx, ty) before painting into dst.
// Traversal is post-order left-to-right: earlier Group children are
// painted first, so later children composite on top.
func Render(dst *Pixmap, heap *value.Heap, result value.Value, tx, ty float64, limits Limits) error {
	return render(dst, heap, result, tx, ty, 0, limits)
}

func render(dst *Pixmap, heap *value.Heap, v value.Value, tx, ty float64, transformDepth int, limits Limits) error {
	if transformDepth > limits.TransformStackCapacity {
		return &NotAScribbleError{Got: "transform nesting exceeded transform_stack_capacity"}
	}

	if v.Kind == value.Ref {
		obj := heap.Get(v.RefIndex)
		switch obj.Kind {
		case value.ObjList:
			for _, item := range obj.List {
				if err := render(dst, heap, item, tx, ty, transformDepth, limits); err != nil {
					return err
				}
			}
			return nil
		case value.ObjScribble:
			return renderScribble(dst, heap, obj.Scribble, tx, ty, transformDepth, limits)
		default:
			return &NotAScribbleError{Got: "Ref"}
		}
	}

	return &NotAScribbleError{Got: v.TypeName()}
}

func renderScribble(dst *Pixmap, heap *value.Heap, s *value.Scribble, tx, ty float64, transformDepth int, limits Limits) error {
	switch s.Kind {
	case value.ScribbleStroke:
		paintShape(dst, s.Shape, tx, ty, s.Thickness, true, s.Color)
		return nil
	case value.ScribbleFill:
		paintShape(dst, s.Shape, tx, ty, 0, false, s.Color)
		return nil
	case value.ScribbleGroup:
		for _, child := range s.Children {
			if err := render(dst, heap, child, tx, ty, transformDepth, limits); err != nil {
				return err
			}
		}
		return nil
	case value.ScribbleTransform:
		return render(dst, heap, s.Child, tx+s.Translate[0], ty+s.Translate[1], transformDepth+1, limits)
	default:
		return &NotAScribbleError{Got: "unknown scribble kind"}
	}
}

func paintShape(dst *Pixmap, shape value.Value, tx, ty, thickness float64, stroke bool, color [4]float64) {
	r, g, b, a := color[0], color[1], color[2], color[3]
	x := shape.Vec[0] + tx
	y := shape.Vec[1] + ty

	switch shape.ShapeKind {
	case value.ShapePoint:
		// An implicit point: a filled square of side == thickness centered
		// at the point (spec.md §4.E). A zero-thickness fill of a bare
		// point paints nothing, mirroring a fill with no area.
		side := thickness
		if side <= 0 {
			return
		}
		half := side / 2
		dst.BlendRect(x-half, y-half, x+half, y+half, r, g, b, a)
	case value.ShapeRect:
		w, h := shape.ShapeArgs[0], shape.ShapeArgs[1]
		if !stroke {
			dst.BlendRect(x, y, x+w, y+h, r, g, b, a)
			return
		}
		t := thickness
		// Outline as four blended bars; overlapping corners double-blend,
		// matching a naive four-bar stroke renderer rather than a mitered
		// outline.
		dst.BlendRect(x, y, x+w, y+t, r, g, b, a)
		dst.BlendRect(x, y+h-t, x+w, y+h, r, g, b, a)
		dst.BlendRect(x, y, x+t, y+h, r, g, b, a)
		dst.BlendRect(x+w-t, y, x+w, y+h, r, g, b, a)
	case value.ShapeCircle:
		radius := shape.ShapeArgs[0]
		if !stroke {
			dst.BlendCircle(x, y, radius, 0, r, g, b, a)
			return
		}
		dst.BlendCircle(x, y, radius, thickness, r, g, b, a)
	}
}

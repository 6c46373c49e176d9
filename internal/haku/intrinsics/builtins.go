package intrinsics

import "github.com/liquidev/rakugaki/internal/haku/value"

func typeMismatch(argIndex int, want, got string) *value.Exception {
	return value.NewException(value.TypeMismatch,
		"argument "+itoa(argIndex)+": expected "+want+", got "+got)
}

func arityMismatch(name string, got int) *value.Exception {
	return value.NewException(value.ArityMismatch, name+": unexpected number of arguments ("+itoa(got)+")")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func number(args []value.Value, i int) (float64, *value.Exception) {
	if i >= len(args) || args[i].Kind != value.Number {
		got := "missing"
		if i < len(args) {
			got = args[i].TypeName()
		}
		return 0, typeMismatch(i, "Number", got)
	}
	return args[i].Num, nil
}

// asShapeOrPoint accepts either a Shape value, or a Vec4 treated as an
// implicit Point at (v[0], v[1]) - spec.md §4.E: "Point (implicit when
// thickness applied to Vec2)".
func asShapeOrPoint(args []value.Value, i int) (value.Value, *value.Exception) {
	if i >= len(args) {
		return value.Value{}, typeMismatch(i, "Shape", "missing")
	}
	v := args[i]
	switch v.Kind {
	case value.Shape:
		return v, nil
	case value.Vec4:
		return value.PointValue(v.Vec[0], v.Vec[1]), nil
	default:
		return value.Value{}, typeMismatch(i, "Shape or Vec4", v.TypeName())
	}
}

func asRGBA(args []value.Value, i int) (value.Value, *value.Exception) {
	if i >= len(args) || args[i].Kind != value.RGBA {
		got := "missing"
		if i < len(args) {
			got = args[i].TypeName()
		}
		return value.Value{}, typeMismatch(i, "RGBA", got)
	}
	return args[i], nil
}

func newBuiltinTable() *Table {
	t := &Table{byName: make(map[string]uint16)}

	// vec: 0..=4 numeric args, resolved at runtime by arity (spec.md §4.D),
	// padded with trailing zeros.
	t.register("vec", func(args []value.Value, heap *value.Heap) (value.Value, *value.Exception) {
		if len(args) > 4 {
			return value.Value{}, arityMismatch("vec", len(args))
		}
		var v [4]float64
		for i := range args {
			n, err := number(args, i)
			if err != nil {
				return value.Value{}, err
			}
			v[i] = n
		}
		return value.Vec4Value(v), nil
	})

	// rgba: 3 or 4 components in 0..=1.
	t.register("rgba", func(args []value.Value, heap *value.Heap) (value.Value, *value.Exception) {
		if len(args) != 3 && len(args) != 4 {
			return value.Value{}, arityMismatch("rgba", len(args))
		}
		var v [4]float64
		v[3] = 1
		for i := range args {
			n, err := number(args, i)
			if err != nil {
				return value.Value{}, err
			}
			v[i] = n
		}
		return value.RGBAValue(v), nil
	})

	t.register("circle", func(args []value.Value, heap *value.Heap) (value.Value, *value.Exception) {
		if len(args) != 3 {
			return value.Value{}, arityMismatch("circle", len(args))
		}
		x, err := number(args, 0)
		if err != nil {
			return value.Value{}, err
		}
		y, err := number(args, 1)
		if err != nil {
			return value.Value{}, err
		}
		r, err := number(args, 2)
		if err != nil {
			return value.Value{}, err
		}
		return value.CircleValue(x, y, r), nil
	})

	t.register("rect", func(args []value.Value, heap *value.Heap) (value.Value, *value.Exception) {
		if len(args) != 4 {
			return value.Value{}, arityMismatch("rect", len(args))
		}
		vals := make([]float64, 4)
		for i := range vals {
			n, err := number(args, i)
			if err != nil {
				return value.Value{}, err
			}
			vals[i] = n
		}
		return value.RectValue(vals[0], vals[1], vals[2], vals[3]), nil
	})

	t.register("stroke", func(args []value.Value, heap *value.Heap) (value.Value, *value.Exception) {
		if len(args) != 3 {
			return value.Value{}, arityMismatch("stroke", len(args))
		}
		return makeScribble(args, heap, value.ScribbleStroke)
	})

	t.register("fill", func(args []value.Value, heap *value.Heap) (value.Value, *value.Exception) {
		if len(args) != 2 {
			return value.Value{}, arityMismatch("fill", len(args))
		}
		return makeScribbleFill(args, heap)
	})

	t.register("translate", func(args []value.Value, heap *value.Heap) (value.Value, *value.Exception) {
		if len(args) != 3 {
			return value.Value{}, arityMismatch("translate", len(args))
		}
		dx, err := number(args, 0)
		if err != nil {
			return value.Value{}, err
		}
		dy, err := number(args, 1)
		if err != nil {
			return value.Value{}, err
		}
		child := args[2]
		if child.Kind != value.Ref {
			return value.Value{}, typeMismatch(2, "Scribble", child.TypeName())
		}
		obj := value.Obj{
			Kind: value.ObjScribble,
			Scribble: &value.Scribble{
				Kind:      value.ScribbleTransform,
				Translate: [2]float64{dx, dy},
				Child:     child,
			},
			Size: value.ScribbleSize(0),
		}
		idx, ok := heap.Alloc(obj)
		if !ok {
			return value.Value{}, value.NewException(value.OutOfMemory, "translate: heap exhausted")
		}
		return value.RefValue(idx), nil
	})

	for _, op := range []struct {
		name string
		fn   func(a, b float64) (float64, *value.Exception)
	}{
		{"add", func(a, b float64) (float64, *value.Exception) { return a + b, nil }},
		{"sub", func(a, b float64) (float64, *value.Exception) { return a - b, nil }},
		{"mul", func(a, b float64) (float64, *value.Exception) { return a * b, nil }},
		{"div", func(a, b float64) (float64, *value.Exception) {
			if b == 0 {
				return 0, value.NewException(value.DivisionByZero, "division by zero")
			}
			return a / b, nil
		}},
	} {
		op := op
		t.register(op.name, func(args []value.Value, heap *value.Heap) (value.Value, *value.Exception) {
			if len(args) != 2 {
				return value.Value{}, arityMismatch(op.name, len(args))
			}
			a, err := number(args, 0)
			if err != nil {
				return value.Value{}, err
			}
			b, err := number(args, 1)
			if err != nil {
				return value.Value{}, err
			}
			r, exc := op.fn(a, b)
			if exc != nil {
				return value.Value{}, exc
			}
			return value.NumberValue(r), nil
		})
	}

	for _, cmp := range []struct {
		name string
		fn   func(a, b float64) bool
	}{
		{"lt", func(a, b float64) bool { return a < b }},
		{"gt", func(a, b float64) bool { return a > b }},
	} {
		cmp := cmp
		t.register(cmp.name, func(args []value.Value, heap *value.Heap) (value.Value, *value.Exception) {
			if len(args) != 2 {
				return value.Value{}, arityMismatch(cmp.name, len(args))
			}
			a, err := number(args, 0)
			if err != nil {
				return value.Value{}, err
			}
			b, err := number(args, 1)
			if err != nil {
				return value.Value{}, err
			}
			return value.BoolValue(cmp.fn(a, b)), nil
		})
	}

	return t
}

func makeScribble(args []value.Value, heap *value.Heap, kind value.ScribbleKind) (value.Value, *value.Exception) {
	thickness, err := number(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	color, err := asRGBA(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	shape, err := asShapeOrPoint(args, 2)
	if err != nil {
		return value.Value{}, err
	}
	obj := value.Obj{
		Kind: value.ObjScribble,
		Scribble: &value.Scribble{
			Kind:      kind,
			Thickness: thickness,
			Color:     color.Vec,
			Shape:     shape,
		},
		Size: value.ScribbleSize(0),
	}
	idx, ok := heap.Alloc(obj)
	if !ok {
		return value.Value{}, value.NewException(value.OutOfMemory, "stroke: heap exhausted")
	}
	return value.RefValue(idx), nil
}

func makeScribbleFill(args []value.Value, heap *value.Heap) (value.Value, *value.Exception) {
	color, err := asRGBA(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	shape, err := asShapeOrPoint(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	obj := value.Obj{
		Kind: value.ObjScribble,
		Scribble: &value.Scribble{
			Kind:  value.ScribbleFill,
			Color: color.Vec,
			Shape: shape,
		},
		Size: value.ScribbleSize(0),
	}
	idx, ok := heap.Alloc(obj)
	if !ok {
		return value.Value{}, value.NewException(value.OutOfMemory, "fill: heap exhausted")
	}
	return value.RefValue(idx), nil
}

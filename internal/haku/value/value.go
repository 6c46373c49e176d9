// Package value defines haku's runtime Value sum type, the bounded ref
// heap that backs lists/closures/scribbles, and the Exception type VM runs
// raise (spec.md §3, §4.D).
package value

import "github.com/liquidev/rakugaki/internal/haku/bytecode"

// Kind discriminates Value's variants.
type Kind uint8

const (
	Nil Kind = iota
	Bool
	Number
	Vec4
	RGBA
	Shape
	Ref
)

// ShapeKind discriminates the Shape variant.
type ShapeKind uint8

const (
	ShapePoint ShapeKind = iota
	ShapeRect
	ShapeCircle
)

// Value is haku's tagged runtime value. Only the fields relevant to Kind
// are meaningful; this mirrors bytecode.Const's union-struct style rather
// than an interface, so values never escape to the heap just to be passed
// around the VM's operand stack.
type Value struct {
	Kind Kind

	Bool bool
	Num  float64   // Number
	Vec  [4]float64 // Vec4 or RGBA

	ShapeKind ShapeKind
	ShapeArgs [3]float64 // Point: unused; Rect: x,y stored in Vec, w,h here; Circle: x,y in Vec[0:2], r here[0]

	RefIndex int // index into a Heap, valid when Kind == Ref
}

func NilValue() Value             { return Value{Kind: Nil} }
func BoolValue(b bool) Value      { return Value{Kind: Bool, Bool: b} }
func NumberValue(n float64) Value { return Value{Kind: Number, Num: n} }
func Vec4Value(v [4]float64) Value { return Value{Kind: Vec4, Vec: v} }
func RGBAValue(v [4]float64) Value { return Value{Kind: RGBA, Vec: v} }

func PointValue(x, y float64) Value {
	return Value{Kind: Shape, ShapeKind: ShapePoint, Vec: [4]float64{x, y, 0, 0}}
}

func RectValue(x, y, w, h float64) Value {
	return Value{Kind: Shape, ShapeKind: ShapeRect, Vec: [4]float64{x, y, 0, 0}, ShapeArgs: [3]float64{w, h, 0}}
}

func CircleValue(x, y, r float64) Value {
	return Value{Kind: Shape, ShapeKind: ShapeCircle, Vec: [4]float64{x, y, 0, 0}, ShapeArgs: [3]float64{r, 0, 0}}
}

func RefValue(idx int) Value { return Value{Kind: Ref, RefIndex: idx} }

func (v Value) IsTruthy() bool {
	switch v.Kind {
	case Nil:
		return false
	case Bool:
		return v.Bool
	default:
		return true
	}
}

func (v Value) TypeName() string {
	switch v.Kind {
	case Nil:
		return "Nil"
	case Bool:
		return "Bool"
	case Number:
		return "Number"
	case Vec4:
		return "Vec4"
	case RGBA:
		return "RGBA"
	case Shape:
		switch v.ShapeKind {
		case ShapePoint:
			return "Point"
		case ShapeRect:
			return "Rect"
		case ShapeCircle:
			return "Circle"
		}
		return "Shape"
	case Ref:
		return "Ref"
	default:
		return "?"
	}
}

// ObjKind discriminates the heap-allocated Ref object variants.
type ObjKind uint8

const (
	ObjList ObjKind = iota
	ObjClosure
	ObjScribble
)

// ScribbleKind discriminates Scribble tree node variants (spec.md §3).
type ScribbleKind uint8

const (
	ScribbleStroke ScribbleKind = iota
	ScribbleFill
	ScribbleGroup
	ScribbleTransform
)

// Scribble is one node of the tree the rasterizer consumes.
type Scribble struct {
	Kind ScribbleKind

	// Stroke / Fill
	Thickness float64
	Color     [4]float64
	Shape     Value

	// Group
	Children []Value

	// Transform
	Translate [2]float64
	Child     Value
}

// Upvalue is one value a Closure captured from its defining scope.
type Upvalue struct {
	Value Value
}

// Closure is a heap object pairing a compiled chunk with its captured
// environment.
type Closure struct {
	Chunk     *bytecode.Chunk
	Upvalues  []Upvalue
}

// Obj is one heap-allocated referent. Exactly one of the fields is
// meaningful, selected by Kind.
type Obj struct {
	Kind     ObjKind
	List     []Value
	Closure  *Closure
	Scribble *Scribble
	Size     int // approximate bytes charged against the heap's memory budget
}

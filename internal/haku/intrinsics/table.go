// Package intrinsics implements haku's system-call dispatch table: the
// built-in operations a brush can call (colors, vectors, shapes,
// compositing, arithmetic) as specified in spec.md §4.D.
package intrinsics

import (
	"sync"

	"github.com/liquidev/rakugaki/internal/haku/value"
)

// Fn is one intrinsic's implementation. It receives its already-popped
// argument values and the VM's heap (for allocating refs) and returns a
// result or a typed exception.
type Fn func(args []value.Value, heap *value.Heap) (value.Value, *value.Exception)

// Table is the fixed, built-in-only registry mapping intrinsic names to
// numeric ids and implementations. Unlike the teacher's decorator registry
// (which accepts third-party registrations at runtime), haku's system
// library is closed - every brush sees the same table - but the
// sync.RWMutex-guarded map-of-name shape is kept because the compiler
// looks names up by string during resolution while the VM dispatches by
// numeric id during execution, and both can run concurrently across
// sessions sharing one process-wide Table.
type Table struct {
	mu      sync.RWMutex
	byName  map[string]uint16
	byID    []Fn
	arities map[string][]int // permitted arg counts, nil means "any declared by Fn"
}

var Global = newBuiltinTable()

// ID looks up an intrinsic by name.
func (t *Table) ID(name string) (uint16, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byName[name]
	return id, ok
}

// Call dispatches to the intrinsic at id.
func (t *Table) Call(id uint16, args []value.Value, heap *value.Heap) (value.Value, *value.Exception) {
	t.mu.RLock()
	fn := t.byID[id]
	t.mu.RUnlock()
	return fn(args, heap)
}

func (t *Table) register(name string, fn Fn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := uint16(len(t.byID))
	t.byID = append(t.byID, fn)
	t.byName[name] = id
}

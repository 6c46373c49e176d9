package value

// perObjOverhead is a flat charge added to every heap allocation's
// estimated size, modeling bookkeeping cost so even small lists/closures
// eat into the memory budget (spec.md: "Allocation returns an index;
// deallocation is wholesale on VM reset").
const perObjOverhead = 32

// Heap is the VM's bounded ref pool: a Value of Kind Ref indexes into it.
// There is no mid-execution garbage collection (haku's values are
// immutable and capture by value, so the heap forms a DAG - spec.md §9) -
// every object allocated during a run stays alive until Reset.
type Heap struct {
	objects   []Obj
	usedBytes int
	budget    int
}

// NewHeap creates a Heap with the given byte budget (the `memory` limit).
func NewHeap(budget int) *Heap {
	return &Heap{budget: budget}
}

// Reset wholesale-frees every object the heap is holding, as happens when a
// VM instance is reset (brush recompilation invalidates all prior state).
func (h *Heap) Reset() {
	h.objects = h.objects[:0]
	h.usedBytes = 0
}

// UsedBytes reports current heap usage, for testing §8's peak-usage
// invariant.
func (h *Heap) UsedBytes() int { return h.usedBytes }

// Alloc reserves size bytes (plus fixed overhead) and stores obj, returning
// its index. ok is false (OutOfMemory) if the budget would be exceeded.
func (h *Heap) Alloc(obj Obj) (int, bool) {
	cost := obj.Size + perObjOverhead
	if h.usedBytes+cost > h.budget {
		return 0, false
	}
	h.usedBytes += cost
	idx := len(h.objects)
	h.objects = append(h.objects, obj)
	return idx, true
}

// Get returns the object at idx. Callers only ever pass indices taken from
// a Value of Kind Ref produced by this same heap generation, so an
// out-of-range index is a VM invariant violation, not user error.
func (h *Heap) Get(idx int) *Obj { return &h.objects[idx] }

// ListSize estimates bytes for a list of n elements.
func ListSize(n int) int { return n * 40 }

// ClosureSize estimates bytes for a closure capturing n upvalues.
func ClosureSize(n int) int { return 48 + n*16 }

// ScribbleSize estimates bytes for a scribble node with the given number of
// group children (0 for non-group nodes).
func ScribbleSize(children int) int { return 64 + children*16 }

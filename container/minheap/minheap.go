// Package minheap implements a binary min-heap over a caller supplied
// ordering. The backing slice is 1-indexed so parent/child arithmetic stays
// shift-free.
package minheap

// Heap is a binary min-heap. Ordering comes from the strictly-greater-than
// comparator passed to New: gt(a, b) reports whether a sorts after b, so Pop
// returns the element that sorts before all others.
type Heap[T any] struct {
	// tree[0] is never used. For a node at index i, its parent lives at
	// i/2 and its children at 2i and 2i+1.
	tree []T
	gt   func(a, b T) bool
}

// New constructs an empty heap ordered by gt.
func New[T any](gt func(a, b T) bool) *Heap[T] {
	return &Heap[T]{tree: make([]T, 1), gt: gt}
}

// Len returns the number of elements on the heap.
func (h *Heap[T]) Len() int {
	return len(h.tree) - 1
}

// Push adds v to the heap.
func (h *Heap[T]) Push(v T) {
	h.tree = append(h.tree, v)
	pos := len(h.tree) - 1
	for pos > 1 {
		parent := pos / 2
		if !h.gt(h.tree[parent], h.tree[pos]) {
			break
		}
		h.tree[parent], h.tree[pos] = h.tree[pos], h.tree[parent]
		pos = parent
	}
}

// Peek returns the minimum element without removing it. The second return is
// false when the heap is empty.
func (h *Heap[T]) Peek() (T, bool) {
	if h.Len() == 0 {
		var zero T
		return zero, false
	}
	return h.tree[1], true
}

// Pop removes and returns the minimum element. The second return is false
// when the heap is empty.
func (h *Heap[T]) Pop() (T, bool) {
	if h.Len() == 0 {
		var zero T
		return zero, false
	}
	top := h.tree[1]
	last := len(h.tree) - 1
	h.tree[1] = h.tree[last]
	var zero T
	h.tree[last] = zero // release the reference for GC
	h.tree = h.tree[:last]

	pos := 1
	n := len(h.tree)
	for {
		left, right := 2*pos, 2*pos+1
		smallest := pos
		if left < n && h.gt(h.tree[smallest], h.tree[left]) {
			smallest = left
		}
		if right < n && h.gt(h.tree[smallest], h.tree[right]) {
			smallest = right
		}
		if smallest == pos {
			break
		}
		h.tree[pos], h.tree[smallest] = h.tree[smallest], h.tree[pos]
		pos = smallest
	}
	return top, true
}

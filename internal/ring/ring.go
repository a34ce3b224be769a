// Package ring implements the bounded, append-only FIFO buffers used
// for HLS playlist exposure and independent segment replay. Unlike the
// hole-tolerant circular buffer it is grounded on, these buffers never
// reorder or discard anything except the oldest entry on overflow.
package ring

// Buffer is a bounded FIFO of T. Appending past the configured bound
// evicts from the front until the length is back within bound.
type Buffer[T any] struct {
	bound uint32
	items []T
}

// New returns a Buffer bounded to the given capacity. bound must be
// at least 1; callers are responsible for clamping to their domain's
// accepted range before calling New.
func New[T any](bound uint32) *Buffer[T] {
	return &Buffer[T]{bound: bound, items: make([]T, 0, bound)}
}

// Add appends item, evicting from the front if the bound is exceeded.
func (b *Buffer[T]) Add(item T) {
	b.items = append(b.items, item)
	if uint32(len(b.items)) > b.bound {
		over := uint32(len(b.items)) - b.bound
		b.items = b.items[over:]
	}
}

// Len reports the current number of entries, never more than the bound.
func (b *Buffer[T]) Len() int { return len(b.items) }

// Bound reports the configured capacity.
func (b *Buffer[T]) Bound() uint32 { return b.bound }

// Resize changes the bound, evicting from the front immediately if the
// new bound is smaller than the current length.
func (b *Buffer[T]) Resize(newBound uint32) {
	b.bound = newBound
	if uint32(len(b.items)) > newBound {
		over := uint32(len(b.items)) - newBound
		b.items = b.items[over:]
	}
}

// Items returns a snapshot slice of the current contents, oldest first.
// The returned slice does not alias Buffer's internal storage.
func (b *Buffer[T]) Items() []T {
	if len(b.items) == 0 {
		return nil
	}
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// Reset empties the buffer, keeping its configured bound.
func (b *Buffer[T]) Reset() {
	b.items = b.items[:0]
}

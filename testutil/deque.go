package testutil

// Deque is a reference double-ended queue. It is deliberately naive and not
// safe for concurrent use.
type Deque[T any] struct {
	items []T
}

// PushBack appends v.
func (d *Deque[T]) PushBack(v T) {
	d.items = append(d.items, v)
}

// PushFront prepends v.
func (d *Deque[T]) PushFront(v T) {
	d.items = append([]T{v}, d.items...)
}

// PopBack removes and returns the last element.
func (d *Deque[T]) PopBack() (T, bool) {
	var zero T
	if len(d.items) == 0 {
		return zero, false
	}
	v := d.items[len(d.items)-1]
	d.items = d.items[:len(d.items)-1]
	return v, true
}

// PopFront removes and returns the first element.
func (d *Deque[T]) PopFront() (T, bool) {
	var zero T
	if len(d.items) == 0 {
		return zero, false
	}
	v := d.items[0]
	d.items = d.items[1:]
	return v, true
}

// Len returns the number of elements.
func (d *Deque[T]) Len() int {
	return len(d.items)
}

// Clear removes all elements.
func (d *Deque[T]) Clear() {
	d.items = nil
}

// Slice returns a copy of the contents, front first.
func (d *Deque[T]) Slice() []T {
	out := make([]T, len(d.items))
	copy(out, d.items)
	return out
}

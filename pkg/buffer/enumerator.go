package buffer

import (
	"fmt"

	"github.com/c360/framering/errors"
)

// Enumerator walks a buffer once in logical order. It cannot be restarted;
// take a new one from the buffer for another pass.
//
//	e := buf.Enumerator()
//	for e.Next() {
//		e.Current().X += dx
//	}
//
// Any structural change to the buffer after the enumerator was created,
// including Set, makes the next call to Next panic. Writes through Current
// or ElementAt are not structural and are allowed.
type Enumerator[T any] struct {
	r       *ring[T]
	version uint64
	index   int
}

// Next advances to the next element and reports whether there is one.
func (e *Enumerator[T]) Next() bool {
	if e.r.released.Load() {
		errors.Contract(errors.ErrDisposed, e.r.name(), "Enumerator.Next", "advance enumerator")
	}
	if e.r.version != e.version {
		errors.Contract(errors.ErrConcurrentModification, e.r.name(), "Enumerator.Next", "advance enumerator")
	}
	if e.index+1 >= e.r.length {
		e.index = e.r.length
		return false
	}
	e.index++
	return true
}

// Current returns a pointer to the element at the cursor.
func (e *Enumerator[T]) Current() *T {
	if e.index < 0 || e.index >= e.r.length {
		errors.Contract(errors.ErrIndexOutOfRange, e.r.name(), "Enumerator.Current",
			fmt.Sprintf("read cursor %d with length %d", e.index, e.r.length))
	}
	return &e.r.items[e.r.physical(e.index)]
}

// Index returns the logical index of the cursor, -1 before the first Next.
func (e *Enumerator[T]) Index() int {
	return e.index
}

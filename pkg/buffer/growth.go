package buffer

import (
	"math"
	"math/bits"
)

// GrowthPolicy decides how large a buffer's backing store becomes.
//
// Next is consulted when an insert finds the buffer full and must return a
// capacity greater than current. Reserve is consulted by SetCapacity with the
// requested element count and the element size in bytes.
type GrowthPolicy interface {
	Next(current int) int
	Reserve(requested int, elemSize uintptr) int
}

// DoublingPolicy doubles capacity on overflow and rounds explicit reservations
// up to a power of two, never below MinBlockBytes worth of elements.
type DoublingPolicy struct {
	MinBlockBytes int
}

// DefaultMinBlockBytes is the reservation floor used by DefaultGrowthPolicy.
const DefaultMinBlockBytes = 64

// DefaultGrowthPolicy returns the policy buffers use when none is configured.
func DefaultGrowthPolicy() GrowthPolicy {
	return DoublingPolicy{MinBlockBytes: DefaultMinBlockBytes}
}

// Next returns twice current, saturating at math.MaxInt.
func (p DoublingPolicy) Next(current int) int {
	if current < 1 {
		return 1
	}
	if current > math.MaxInt/2 {
		return math.MaxInt
	}
	return current * 2
}

// Reserve returns the smallest power of two holding both requested elements
// and MinBlockBytes bytes.
func (p DoublingPolicy) Reserve(requested int, elemSize uintptr) int {
	n := requested
	if elemSize > 0 && p.MinBlockBytes > 0 {
		if floor := p.MinBlockBytes / int(elemSize); floor > n {
			n = floor
		}
	}
	return CeilPow2(n)
}

// StepPolicy grows by a fixed number of elements. Useful when memory matters
// more than amortized insert cost.
type StepPolicy struct {
	Step int
}

// Next returns current plus Step (at least one).
func (p StepPolicy) Next(current int) int {
	step := p.Step
	if step < 1 {
		step = 1
	}
	return current + step
}

// Reserve returns requested unchanged.
func (p StepPolicy) Reserve(requested int, _ uintptr) int {
	return requested
}

// maxPow2 is the largest power of two an int holds.
const maxPow2 = 1 << (bits.UintSize - 2)

// CeilPow2 returns the smallest power of two >= n, and 1 for n <= 1. Above
// the largest int power of two it returns n unchanged.
func CeilPow2(n int) int {
	if n <= 1 {
		return 1
	}
	if n > maxPow2 {
		return n
	}
	return 1 << bits.Len(uint(n-1))
}

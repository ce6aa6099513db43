// Package sampling draws random subsets from lazy sequences of records.
//
// Samplers never materialize their input. An Iterator is forward-only and
// single-consumer; wrapping it in a sampler hands ownership to the sampler.
package sampling

import (
	"iter"
	"math/rand/v2"
)

// Iterator is a lazy, forward-only sequence. Next returns false once the
// sequence is exhausted and keeps returning false afterwards.
type Iterator[T any] interface {
	Next() (T, bool)
}

// Sampler selects a subset of a sequence.
type Sampler[T any] interface {
	Sample(input Iterator[T]) Iterator[T]
}

// Random is the source of randomness used by samplers. *rand.Rand
// satisfies it.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// NewRandom returns a generator whose sequence is fully determined by seed.
func NewRandom(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Sample draws a Bernoulli sample of fraction from input using a generator
// seeded with seed.
func Sample[T any](input Iterator[T], fraction float64, seed uint64) (Iterator[T], error) {
	b, err := NewBernoulli[T](fraction, NewRandom(seed))
	if err != nil {
		return nil, err
	}
	return b.Sample(input), nil
}

// IteratorFunc adapts a function to Iterator.
type IteratorFunc[T any] func() (T, bool)

// Next calls f.
func (f IteratorFunc[T]) Next() (T, bool) { return f() }

// FromSlice iterates over items.
func FromSlice[T any](items []T) Iterator[T] {
	i := 0
	return IteratorFunc[T](func() (T, bool) {
		if i >= len(items) {
			var zero T
			return zero, false
		}
		i++
		return items[i-1], true
	})
}

// Collect drains it into a slice.
func Collect[T any](it Iterator[T]) []T {
	var out []T
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		out = append(out, v)
	}
	return out
}

// Take stops it after n elements. A negative n does not limit.
func Take[T any](it Iterator[T], n int) Iterator[T] {
	if n < 0 {
		return it
	}
	taken := 0
	return IteratorFunc[T](func() (T, bool) {
		if taken >= n {
			var zero T
			return zero, false
		}
		v, ok := it.Next()
		if ok {
			taken++
		}
		return v, ok
	})
}

// Seq adapts it for use in range loops.
func Seq[T any](it Iterator[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v, ok := it.Next(); ok; v, ok = it.Next() {
			if !yield(v) {
				return
			}
		}
	}
}

// empty is an exhausted iterator.
type empty[T any] struct{}

func (empty[T]) Next() (T, bool) {
	var zero T
	return zero, false
}

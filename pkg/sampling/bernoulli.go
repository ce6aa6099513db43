package sampling

import (
	"errors"
	"fmt"
	"math"
)

const (
	// gapThreshold selects the sampling method. Fractions at or below it skip
	// ahead by a geometrically distributed gap instead of drawing one random
	// number per element.
	gapThreshold = 0.33

	epsilon = 1e-5
)

// ErrInvalidFraction is returned for fractions outside [0, 1].
var ErrInvalidFraction = errors.New("fraction must be between [0, 1]")

// Bernoulli keeps each element independently with probability fraction.
type Bernoulli[T any] struct {
	fraction float64
	rnd      Random
}

// NewBernoulli creates a Bernoulli sampler.
func NewBernoulli[T any](fraction float64, rnd Random) (*Bernoulli[T], error) {
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidFraction, fraction)
	}
	if rnd == nil {
		return nil, errors.New("random source is required")
	}
	return &Bernoulli[T]{fraction: fraction, rnd: rnd}, nil
}

// Fraction returns the sampling probability.
func (b *Bernoulli[T]) Fraction() float64 { return b.fraction }

// Sample returns a lazy iterator over the selected elements of input.
func (b *Bernoulli[T]) Sample(input Iterator[T]) Iterator[T] {
	if b.fraction == 0 {
		return empty[T]{}
	}
	return &bernoulliIterator[T]{fraction: b.fraction, rnd: b.rnd, input: input}
}

type bernoulliIterator[T any] struct {
	fraction float64
	rnd      Random
	input    Iterator[T]
	done     bool
}

func (it *bernoulliIterator[T]) Next() (T, bool) {
	var zero T
	if it.done {
		return zero, false
	}

	var (
		v  T
		ok bool
	)
	if it.fraction <= gapThreshold {
		v, ok = it.nextGap()
	} else {
		v, ok = it.nextTrial()
	}
	if !ok {
		it.done = true
		return zero, false
	}
	return v, true
}

// nextTrial draws one number per element until one is kept.
func (it *bernoulliIterator[T]) nextTrial() (T, bool) {
	for {
		v, ok := it.input.Next()
		if !ok {
			return v, false
		}
		if it.rnd.Float64() <= it.fraction {
			return v, true
		}
	}
}

// nextGap skips gap elements and keeps the one after them. The sequence ends
// when the input runs out before the gap is crossed.
func (it *bernoulliIterator[T]) nextGap() (T, bool) {
	u := math.Max(it.rnd.Float64(), epsilon)
	gap := skipCount(math.Log(u) / math.Log1p(-it.fraction))

	v, ok := it.input.Next()
	if !ok {
		return v, false
	}
	for skipped := 0; skipped < gap; skipped++ {
		v, ok = it.input.Next()
		if !ok {
			return v, false
		}
	}
	return v, true
}

// skipCount converts a gap to an element count. Gaps too large for an int,
// which tiny fractions produce, skip the rest of the input.
func skipCount(gap float64) int {
	if math.IsNaN(gap) || gap >= math.MaxInt {
		return math.MaxInt
	}
	if gap < 0 {
		return 0
	}
	return int(gap)
}

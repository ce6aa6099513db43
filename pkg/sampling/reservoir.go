package sampling

import "fmt"

// Reservoir keeps a uniform sample of at most k elements. Unlike Bernoulli
// it consumes its whole input before yielding anything, but its output size
// is bounded.
type Reservoir[T any] struct {
	k   int
	rnd Random
}

// NewReservoir creates a reservoir sampler of size k.
func NewReservoir[T any](k int, rnd Random) (*Reservoir[T], error) {
	if k < 0 {
		return nil, fmt.Errorf("reservoir size must not be negative, got %d", k)
	}
	if rnd == nil {
		return nil, fmt.Errorf("random source is required")
	}
	return &Reservoir[T]{k: k, rnd: rnd}, nil
}

// Sample returns at most k elements of input. The input is read in full on
// the first call to Next.
func (r *Reservoir[T]) Sample(input Iterator[T]) Iterator[T] {
	if r.k == 0 {
		return empty[T]{}
	}

	var out Iterator[T]
	return IteratorFunc[T](func() (T, bool) {
		if out == nil {
			out = FromSlice(r.fill(input))
		}
		return out.Next()
	})
}

func (r *Reservoir[T]) fill(input Iterator[T]) []T {
	buf := make([]T, 0, r.k)
	seen := 0
	for v, ok := input.Next(); ok; v, ok = input.Next() {
		seen++
		if len(buf) < r.k {
			buf = append(buf, v)
			continue
		}
		if j := r.rnd.IntN(seen); j < r.k {
			buf[j] = v
		}
	}
	return buf
}

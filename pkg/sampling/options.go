package sampling

import "fmt"

// Sampling methods accepted by Apply.
const (
	MethodNone      = "none"
	MethodBernoulli = "bernoulli"
	MethodReservoir = "reservoir"
)

// Options selects and parameterizes a sampler.
type Options struct {
	Method   string  `json:"method,omitempty"`
	Fraction float64 `json:"fraction,omitempty"`
	Limit    int     `json:"limit,omitempty"` // row cap, and the reservoir size
	Seed     uint64  `json:"seed,omitempty"`
}

// Apply wraps input according to opts. With MethodNone or an empty method
// the input is only capped at Limit when Limit is positive.
func Apply[T any](input Iterator[T], opts Options) (Iterator[T], error) {
	switch opts.Method {
	case MethodNone, "":
		if opts.Limit > 0 {
			return Take(input, opts.Limit), nil
		}
		return input, nil
	case MethodBernoulli:
		b, err := NewBernoulli[T](opts.Fraction, NewRandom(opts.Seed))
		if err != nil {
			return nil, err
		}
		out := b.Sample(input)
		if opts.Limit > 0 {
			out = Take(out, opts.Limit)
		}
		return out, nil
	case MethodReservoir:
		r, err := NewReservoir[T](opts.Limit, NewRandom(opts.Seed))
		if err != nil {
			return nil, err
		}
		return r.Sample(input), nil
	default:
		return nil, fmt.Errorf("unknown sampling method %q", opts.Method)
	}
}

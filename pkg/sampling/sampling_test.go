package sampling

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// counting records how many elements have been pulled.
type counting struct {
	it    Iterator[int]
	pulls int
}

func (c *counting) Next() (int, bool) {
	v, ok := c.it.Next()
	if ok {
		c.pulls++
	}
	return v, ok
}

func TestNewBernoulli_InvalidFraction(t *testing.T) {
	for _, f := range []float64{-0.1, 1.0001, math.NaN(), math.Inf(1)} {
		_, err := NewBernoulli[int](f, NewRandom(1))
		require.Error(t, err, "fraction %v", f)
		assert.True(t, errors.Is(err, ErrInvalidFraction), "fraction %v", f)
	}

	_, err := NewBernoulli[int](0.5, nil)
	assert.Error(t, err)
}

func TestBernoulli_ZeroFractionIsEmpty(t *testing.T) {
	b, err := NewBernoulli[int](0, NewRandom(1))
	require.NoError(t, err)

	src := &counting{it: FromSlice(sequence(100))}
	assert.Empty(t, Collect(b.Sample(src)))
	assert.Equal(t, 0, src.pulls, "input is never read")
}

func TestBernoulli_FullFractionKeepsEverything(t *testing.T) {
	b, err := NewBernoulli[int](1, NewRandom(7))
	require.NoError(t, err)
	assert.Equal(t, sequence(50), Collect(b.Sample(FromSlice(sequence(50)))))
}

func TestBernoulli_TinyFraction(t *testing.T) {
	for _, f := range []float64{1e-17, 1e-300, math.SmallestNonzeroFloat64} {
		b, err := NewBernoulli[int](f, NewRandom(7))
		require.NoError(t, err)

		kept := Collect(b.Sample(FromSlice(sequence(10_000))))
		assert.LessOrEqual(t, len(kept), 5, "fraction %v", f)
	}
}

func TestSkipCount(t *testing.T) {
	tests := []struct {
		gap  float64
		want int
	}{
		{0, 0},
		{2.9, 2},
		{-0.5, 0},
		{1e30, math.MaxInt},
		{math.Inf(1), math.MaxInt},
		{math.NaN(), math.MaxInt},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, skipCount(tt.gap), "gap %v", tt.gap)
	}
}

func TestBernoulli_Deterministic(t *testing.T) {
	for _, f := range []float64{0.05, 0.33, 0.34, 0.8} {
		a, err := Sample(FromSlice(sequence(1000)), f, 42)
		require.NoError(t, err)
		b, err := Sample(FromSlice(sequence(1000)), f, 42)
		require.NoError(t, err)
		assert.Equal(t, Collect(a), Collect(b), "fraction %v", f)
	}
}

func TestBernoulli_Converges(t *testing.T) {
	const n = 100_000

	tests := []struct {
		name     string
		fraction float64
	}{
		{"gap sampling", 0.01},
		{"gap sampling at threshold", 0.33},
		{"per element trials", 0.5},
		{"per element trials high", 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Sample(FromSlice(sequence(n)), tt.fraction, 20240611)
			require.NoError(t, err)

			got := Collect(out)
			ratio := float64(len(got)) / n
			assert.InDelta(t, tt.fraction, ratio, 0.01, "sampled %d of %d", len(got), n)

			for i := 1; i < len(got); i++ {
				require.Less(t, got[i-1], got[i], "sample preserves input order without repeats")
			}
		})
	}
}

func TestBernoulli_Lazy(t *testing.T) {
	for _, f := range []float64{0.1, 0.9} {
		b, err := NewBernoulli[int](f, NewRandom(3))
		require.NoError(t, err)

		src := &counting{it: FromSlice(sequence(10_000))}
		it := b.Sample(src)
		_, ok := it.Next()
		require.True(t, ok)
		assert.Less(t, src.pulls, 10_000, "fraction %v reads only what it needs", f)
	}
}

func TestBernoulli_StaysExhausted(t *testing.T) {
	b, err := NewBernoulli[int](0.5, NewRandom(9))
	require.NoError(t, err)

	it := b.Sample(FromSlice(sequence(10)))
	Collect(it)
	for i := 0; i < 3; i++ {
		_, ok := it.Next()
		assert.False(t, ok)
	}
}

func TestReservoir(t *testing.T) {
	_, err := NewReservoir[int](-1, NewRandom(1))
	assert.Error(t, err)

	r, err := NewReservoir[int](5, NewRandom(1))
	require.NoError(t, err)
	got := Collect(r.Sample(FromSlice(sequence(100))))
	require.Len(t, got, 5)
	seen := map[int]bool{}
	for _, v := range got {
		assert.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 100)
	}

	r, err = NewReservoir[int](10, NewRandom(1))
	require.NoError(t, err)
	assert.Equal(t, sequence(4), Collect(r.Sample(FromSlice(sequence(4)))))

	r, err = NewReservoir[int](0, NewRandom(1))
	require.NoError(t, err)
	assert.Empty(t, Collect(r.Sample(FromSlice(sequence(4)))))
}

func TestReservoir_Uniform(t *testing.T) {
	const (
		n      = 20
		k      = 5
		trials = 20_000
	)
	counts := make([]int, n)
	rnd := NewRandom(11)
	for i := 0; i < trials; i++ {
		r, err := NewReservoir[int](k, rnd)
		require.NoError(t, err)
		for _, v := range Collect(r.Sample(FromSlice(sequence(n)))) {
			counts[v]++
		}
	}

	want := float64(k) / n
	for v, c := range counts {
		assert.InDelta(t, want, float64(c)/trials, 0.02, "element %d", v)
	}
}

func TestAdapters(t *testing.T) {
	var got []int
	for v := range Seq(FromSlice([]int{1, 2, 3, 4})) {
		if v == 3 {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2}, got)

	assert.Equal(t, []int{0, 1, 2}, Collect(Take(FromSlice(sequence(10)), 3)))
	assert.Equal(t, sequence(10), Collect(Take(FromSlice(sequence(10)), -1)))
	assert.Empty(t, Collect(FromSlice[int](nil)))
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantLen int
		wantErr bool
	}{
		{name: "zero options pass through", opts: Options{}, wantLen: 100},
		{name: "none with limit", opts: Options{Method: MethodNone, Limit: 10}, wantLen: 10},
		{name: "bernoulli full", opts: Options{Method: MethodBernoulli, Fraction: 1}, wantLen: 100},
		{name: "bernoulli zero", opts: Options{Method: MethodBernoulli, Fraction: 0}, wantLen: 0},
		{name: "bernoulli capped", opts: Options{Method: MethodBernoulli, Fraction: 1, Limit: 5}, wantLen: 5},
		{name: "reservoir", opts: Options{Method: MethodReservoir, Limit: 7, Seed: 3}, wantLen: 7},
		{name: "bad fraction", opts: Options{Method: MethodBernoulli, Fraction: 2}, wantErr: true},
		{name: "negative reservoir", opts: Options{Method: MethodReservoir, Limit: -1}, wantErr: true},
		{name: "unknown method", opts: Options{Method: "systematic"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := Apply(FromSlice(sequence(100)), tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, Collect(it), tt.wantLen)
		})
	}
}

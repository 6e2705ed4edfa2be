// Package randomstate provides a seedable random stream built on an MT19937
// bit source and the classic "RandomState" sampling algorithms. Datasets
// produced from the same seed and the same sequence of calls are
// reproducible across implementations that share those algorithms.
//
// A RandomState is not safe for concurrent use. Callers thread one explicitly
// through the code that draws from it.
package randomstate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mathext/prng"
)

// RandomState is a Mersenne Twister stream plus the cached second normal
// deviate produced by the polar method.
type RandomState struct {
	src      *prng.MT19937
	hasGauss bool
	gauss    float64
}

// New returns a RandomState seeded with the reference init_genrand routine.
func New(seed uint32) *RandomState {
	src := prng.NewMT19937()
	src.Seed(uint64(seed))
	return &RandomState{src: src}
}

// Uint32 returns the next raw 32-bit word.
func (r *RandomState) Uint32() uint32 {
	return r.src.Uint32()
}

// Random returns a float64 in [0, 1) with 53 bits of precision, built from
// two consecutive 32-bit words.
func (r *RandomState) Random() float64 {
	a := r.src.Uint32() >> 5
	b := r.src.Uint32() >> 6
	return (float64(a)*67108864.0 + float64(b)) / 9007199254740992.0
}

// RandInt returns an integer in [low, high). It panics if high <= low.
func (r *RandomState) RandInt(low, high int) int {
	if high <= low {
		panic("randomstate: invalid range for RandInt")
	}
	return low + int(r.bounded(uint64(high-low-1)))
}

// Interval returns an integer in [0, max] using masked rejection sampling.
// Interval(0) consumes no randomness.
func (r *RandomState) Interval(max int) int {
	if max < 0 {
		panic("randomstate: negative Interval bound")
	}
	return int(r.bounded(uint64(max)))
}

func (r *RandomState) bounded(rng uint64) uint64 {
	if rng == 0 {
		return 0
	}
	mask := rng
	mask |= mask >> 1
	mask |= mask >> 2
	mask |= mask >> 4
	mask |= mask >> 8
	mask |= mask >> 16
	mask |= mask >> 32

	if rng <= math.MaxUint32 {
		for {
			v := uint64(r.src.Uint32()) & mask
			if v <= rng {
				return v
			}
		}
	}
	for {
		v := r.src.Uint64() & mask
		if v <= rng {
			return v
		}
	}
}

// Choice returns a uniformly drawn index in [0, n).
func (r *RandomState) Choice(n int) int {
	return r.RandInt(0, n)
}

// ChoiceP returns an index drawn with the given probability weights. The
// weights are normalized by their running sum, so they need not add to
// exactly one. It panics on an empty weight vector.
func (r *RandomState) ChoiceP(p []float64) int {
	if len(p) == 0 {
		panic("randomstate: empty probability vector")
	}
	cdf := make([]float64, len(p))
	var sum float64
	for i, w := range p {
		sum += w
		cdf[i] = sum
	}
	total := cdf[len(cdf)-1]
	for i := range cdf {
		cdf[i] /= total
	}

	u := r.Random()
	idx := sort.Search(len(cdf), func(i int) bool { return cdf[i] > u })
	if idx == len(cdf) {
		idx--
	}
	return idx
}

// Gauss returns a standard normal deviate. Deviates are produced in pairs;
// the second one is cached and returned by the next call.
func (r *RandomState) Gauss() float64 {
	if r.hasGauss {
		g := r.gauss
		r.hasGauss = false
		r.gauss = 0
		return g
	}

	var x1, x2, r2 float64
	for {
		x1 = 2.0*r.Random() - 1.0
		x2 = 2.0*r.Random() - 1.0
		r2 = x1*x1 + x2*x2
		if r2 < 1.0 && r2 != 0.0 {
			break
		}
	}
	f := math.Sqrt(-2.0 * math.Log(r2) / r2)
	r.gauss = f * x1
	r.hasGauss = true
	return f * x2
}

// Normal returns a deviate from N(mean, sd^2).
func (r *RandomState) Normal(mean, sd float64) float64 {
	return mean + sd*r.Gauss()
}

// StandardExponential returns a deviate from Exp(1).
func (r *RandomState) StandardExponential() float64 {
	return -math.Log(1.0 - r.Random())
}

// StandardGamma returns a deviate from Gamma(shape, 1).
func (r *RandomState) StandardGamma(shape float64) float64 {
	switch {
	case shape == 1.0:
		return r.StandardExponential()
	case shape == 0.0:
		return 0.0
	case shape < 1.0:
		for {
			u := r.Random()
			v := r.StandardExponential()
			if u <= 1.0-shape {
				x := math.Pow(u, 1.0/shape)
				if x <= v {
					return x
				}
			} else {
				y := -math.Log((1 - u) / shape)
				x := math.Pow(1.0-shape+shape*y, 1.0/shape)
				if x <= v+y {
					return x
				}
			}
		}
	}

	b := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*b)
	for {
		var x, v float64
		for {
			x = r.Gauss()
			v = 1.0 + c*x
			if v > 0.0 {
				break
			}
		}
		v = v * v * v
		u := r.Random()
		if u < 1.0-0.0331*(x*x)*(x*x) {
			return b * v
		}
		if math.Log(u) < 0.5*x*x+b*(1.0-v+math.Log(v)) {
			return b * v
		}
	}
}

// Gamma returns a deviate from Gamma(shape, scale).
func (r *RandomState) Gamma(shape, scale float64) float64 {
	return scale * r.StandardGamma(shape)
}

// Shuffle permutes x in place (Fisher-Yates, walking down from the end).
func (r *RandomState) Shuffle(x []int) {
	for i := len(x) - 1; i >= 1; i-- {
		j := r.Interval(i)
		x[i], x[j] = x[j], x[i]
	}
}

// Permutation returns a shuffled copy of 0..n-1.
func (r *RandomState) Permutation(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	r.Shuffle(out)
	return out
}

// ChoiceWithoutReplacement draws k distinct elements of pool. It panics if k
// exceeds len(pool).
func (r *RandomState) ChoiceWithoutReplacement(pool []int, k int) []int {
	if k < 0 || k > len(pool) {
		panic("randomstate: sample larger than population")
	}
	perm := r.Permutation(len(pool))
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = pool[perm[i]]
	}
	return out
}

package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/authentix/biomatch/gesture"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillGaussian fills dst with standard normal values.
// Locks only once per call.
func (r *RNG) FillGaussian(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = float32(r.rand.NormFloat64())
	}
}

// UnitVector returns a random unit-length embedding of the given dimension.
// Gaussian components make the direction uniform on the sphere.
func (r *RNG) UnitVector(dimension int) []float32 {
	v := make([]float32, dimension)
	r.FillGaussian(v)

	var norm2 float64
	for _, x := range v {
		norm2 += float64(x) * float64(x)
	}
	if norm2 == 0 {
		v[0] = 1
		return v
	}
	inv := float32(1 / math.Sqrt(norm2))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Perturb returns a copy of v with Gaussian noise of the given scale added
// to each component. Useful for producing a probe that is close to, but not
// identical to, an enrolled embedding.
func (r *RNG) Perturb(v []float32, scale float64) []float32 {
	out := make([]float32, len(v))
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, x := range v {
		out[i] = x + float32(r.rand.NormFloat64()*scale)
	}
	return out
}

// GestureSequence generates a smooth synthetic IMU recording of n readings.
// Each channel follows a sinusoid with a channel-specific phase, plus small
// Gaussian jitter, which is enough structure for warping-based comparisons
// to behave like they do on real recordings.
func (r *RNG) GestureSequence(n int) gesture.Sequence {
	r.mu.Lock()
	phase := r.rand.Float64() * 2 * math.Pi
	r.mu.Unlock()
	return SineSequence(n, phase, 0.05, r)
}

// SineSequence generates n readings of phase-shifted sinusoids with the
// given jitter scale. Pass the same phase to produce sequences that differ
// only in length and noise, simulating the same gesture performed at
// different speeds.
func SineSequence(n int, phase, jitter float64, r *RNG) gesture.Sequence {
	seq := make(gesture.Sequence, n)
	for i := range seq {
		t := float64(i) / float64(n) * 4 * math.Pi
		row := [gesture.NumChannels]float64{}
		for c := range row {
			row[c] = math.Sin(t+phase+float64(c)*0.7) + r.noise(jitter)
		}
		seq[i] = gesture.Reading{
			AccelX: row[0],
			AccelY: row[1],
			AccelZ: row[2],
			GyroX:  row[3],
			GyroY:  row[4],
			GyroZ:  row[5],
		}
	}
	return seq
}

func (r *RNG) noise(scale float64) float64 {
	if scale == 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.NormFloat64() * scale
}

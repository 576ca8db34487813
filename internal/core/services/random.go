package services

import (
	"math/rand/v2"
	"sync"
)

// Random is the randomness source behind prompt variation, sampling jitter
// and fallback shuffling. Tests inject a seeded one.
type Random interface {
	Float64() float64
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandom returns a Random seeded from the runtime's entropy source.
func NewRandom() Random {
	return NewSeededRandom(rand.Uint64())
}

// NewSeededRandom returns a deterministic Random safe for concurrent use.
func NewSeededRandom(seed uint64) Random {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func pick(r Random, pool []string) string {
	return pool[r.IntN(len(pool))]
}

// shuffled returns a Fisher-Yates permutation of in, leaving in untouched.
func shuffled(r Random, in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

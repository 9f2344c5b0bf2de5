package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Source yields uniform integers in [0, n). Implementations must be safe for
// concurrent use.
type Source interface {
	IntN(n int) int
}

type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// NewSecure returns a ChaCha8 source seeded from crypto/rand.
func NewSecure() Source {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic("random: read seed: " + err.Error())
	}
	return &lockedSource{rng: rand.New(rand.NewChaCha8(seed))}
}

// NewSeeded returns a reproducible source for tests.
func NewSeeded(seed uint64) Source {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:], seed)
	return &lockedSource{rng: rand.New(rand.NewChaCha8(s))}
}

// Shuffle performs an in-place Fisher-Yates shuffle of the slice.
func Shuffle[T any](src Source, slice []T) {
	for i := len(slice) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		slice[i], slice[j] = slice[j], slice[i]
	}
}

// Sample draws min(k, len(pool)) distinct elements without replacement. Every
// subset of that size is equally likely. pool is not modified.
func Sample[T any](src Source, pool []T, k int) []T {
	if k <= 0 || len(pool) == 0 {
		return []T{}
	}
	if k > len(pool) {
		k = len(pool)
	}
	work := make([]T, len(pool))
	copy(work, pool)
	// partial Fisher-Yates: only the first k positions are settled
	for i := 0; i < k; i++ {
		j := i + src.IntN(len(work)-i)
		work[i], work[j] = work[j], work[i]
	}
	return work[:k]
}

// Pick returns one uniformly chosen element.
func Pick[T any](src Source, pool []T) (T, bool) {
	var zero T
	if len(pool) == 0 {
		return zero, false
	}
	return pool[src.IntN(len(pool))], true
}

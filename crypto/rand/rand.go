// Package rand exposes random number generators backed either by a
// cryptographically secure source or by a plain time-seeded one. The secure
// generator is safe for concurrent use; the deterministic one is not.
package rand

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
	"time"
)

// source adapts crypto/rand.Reader to math/rand.Source64 so the full
// math/rand API is available on top of secure randomness.
type source struct{}

var lock sync.RWMutex

// Seed does nothing, the crypto reader cannot be seeded.
func (_ *source) Seed(_ int64) {}

// Int63 returns a random value in [0, 1<<63). Panics if the crypto reader
// cannot produce data.
func (s *source) Int63() int64 {
	return int64(s.Uint64() & ^uint64(1<<63))
}

// Uint64 returns a random value in [0, 1<<64). Panics if the crypto reader
// cannot produce data.
func (_ *source) Uint64() (val uint64) {
	lock.RLock()
	defer lock.RUnlock()
	if err := binary.Read(rand.Reader, binary.BigEndian, &val); err != nil {
		panic(err)
	}
	return
}

// Rand is an alias for underlying random generator.
type Rand = mrand.Rand

// NewGenerator returns a generator drawing from crypto/rand. It is
// comparatively slow, so hold onto one rather than constructing per call.
func NewGenerator() *Rand {
	return mrand.New(&source{}) // #nosec G404 -- crypto backed
}

// NewDeterministicGenerator returns a time-seeded math/rand generator for
// simulations and tests where secure randomness is not required.
func NewDeterministicGenerator() *Rand {
	return mrand.New(mrand.NewSource(time.Now().UnixNano())) // #nosec G404 -- intentionally insecure
}

package common

import (
	"crypto/rand"
	"io"

	"lukechampine.com/frand"
)

var seedDomain = []byte("topia-aggregation-seed")

// NewSeedRandReader returns a deterministic ChaCha20 stream keyed by blake2b(seed). Equal seeds
// produce equal streams, which is what well-known test identities rely on.
func NewSeedRandReader(seed []byte) io.Reader {
	key := NewBlake2bHasher(32, seedDomain).Compute(seed)

	return frand.NewCustom(key, 1024, 20)
}

// NewRandReader falls back to crypto/rand when no seed is configured.
func NewRandReader(seed string) io.Reader {
	if len(seed) == 0 {
		return rand.Reader
	}

	return NewSeedRandReader([]byte(seed))
}

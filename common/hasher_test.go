package common

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func TestBlake2bHasherWithSize(t *testing.T) {
	h := NewBlake2bHasher(64, nil)
	require.NotNil(t, h)
	require.Equal(t, 64, h.Size())

	hashBytes1 := h.Compute(nil)
	require.Len(t, hashBytes1, 64)

	hashBytes2 := h.Compute([]byte("teststring"))
	require.Len(t, hashBytes2, 64)
	require.NotEqual(t, hashBytes1, hashBytes2)
}

func TestBlake2bHasherWithoutSize(t *testing.T) {
	h := NewBlake2bHasher(0, nil)
	require.Equal(t, blake2b.Size256, h.Size())

	expected := blake2b.Sum256([]byte("teststring"))
	require.Equal(t, expected[:], h.Compute([]byte("teststring")))
}

func TestBlake2bHasherKeyed(t *testing.T) {
	plain := NewBlake2bHasher(0, nil).Compute([]byte("round"))
	keyed := NewBlake2bHasher(0, []byte("namespace")).Compute([]byte("round"))
	require.NotEqual(t, plain, keyed)

	require.Panics(t, func() { NewBlake2bHasher(65, nil) })
}

func TestShortDigest(t *testing.T) {
	d := ShortDigest([]byte("abc"))
	require.Len(t, d, 16)
	require.Equal(t, d, ShortDigest([]byte("abc")))
}

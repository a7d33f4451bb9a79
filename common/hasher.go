package common

import (
	"encoding/hex"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

type Hasher interface {
	Compute([]byte) []byte
	Size() int
	Writer() io.Writer
	Bytes() []byte
	Reset()
}

type blake2bHasher struct {
	hash hash.Hash
}

// NewBlake2bHasher returns a blake2b hasher with the given output size, 0 meaning 32 bytes.
// key is optional and turns the hasher into a keyed MAC, which is how callers domain separate.
func NewBlake2bHasher(size int, key []byte) Hasher {
	sizeT := size
	if size < 0 || size > blake2b.Size {
		panicf("invalid blake2b hasher size: %d", size)
	}

	if size == 0 {
		sizeT = blake2b.Size256
	}

	h, err := blake2b.New(sizeT, key)
	if err != nil {
		panicf("blake2b new err:%v", err)
	}
	return &blake2bHasher{
		hash: h,
	}
}

func (b2bHasher *blake2bHasher) Compute(data []byte) []byte {
	b2bHasher.hash.Reset()
	_, _ = b2bHasher.hash.Write(data)
	return b2bHasher.hash.Sum(nil)
}

func (b2bHasher *blake2bHasher) Size() int {
	return b2bHasher.hash.Size()
}

func (b2bHasher *blake2bHasher) Writer() io.Writer {
	return b2bHasher.hash
}

func (b2bHasher *blake2bHasher) Bytes() []byte {
	return b2bHasher.hash.Sum(nil)
}

func (b2bHasher *blake2bHasher) Reset() {
	b2bHasher.hash.Reset()
}

// ShortDigest is the first 8 bytes of blake2b-256(data) in hex, for log lines.
func ShortDigest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

package bn254

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/TopiaNetwork/kyber/v3"
	"github.com/TopiaNetwork/kyber/v3/pairing/bn256"
	"github.com/TopiaNetwork/kyber/v3/util/random"
	"github.com/ethereum/go-ethereum/common/hexutil"

	tpcmm "github.com/TopiaNetwork/aggregation/common"
)

const (
	PrivateKeySize = 32
	PublicKeySize  = 128
	SignatureSize  = 64
)

var suite = bn256.NewSuite()

type PrivateKey struct {
	scalar kyber.Scalar
}

type PublicKey struct {
	point kyber.Point
	raw   []byte
}

// DeriveKey deterministically derives a key pair from a numeric seed. The same seed always yields
// the same identity, which is how well-known participant sets are declared by index.
func DeriveKey(seed uint64) (*PrivateKey, *PublicKey, error) {
	stream := random.New(tpcmm.NewSeedRandReader([]byte(strconv.FormatUint(seed, 10))))

	x := suite.G2().Scalar().Pick(stream)
	if x.Equal(suite.G2().Scalar().Zero()) {
		return nil, nil, ErrInvalidScalar
	}

	priv := &PrivateKey{scalar: x}
	return priv, priv.PublicKey(), nil
}

// PrivateKeyFromBytes parses a big-endian scalar. Unless reduce is set, the input must be exactly
// PrivateKeySize bytes and strictly below the group order; with reduce the value is taken modulo
// the order. A zero scalar is always rejected.
func PrivateKeyFromBytes(b []byte, reduce bool) (*PrivateKey, error) {
	if !reduce {
		if len(b) != PrivateKeySize {
			return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidScalar, PrivateKeySize, len(b))
		}
		if new(big.Int).SetBytes(b).Cmp(bn256.Order) >= 0 {
			return nil, fmt.Errorf("%w: value not below the group order", ErrInvalidScalar)
		}
	} else if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidScalar)
	}

	x := suite.G2().Scalar().SetBytes(b)
	if x.Equal(suite.G2().Scalar().Zero()) {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidScalar)
	}

	return &PrivateKey{scalar: x}, nil
}

// PrivateKeyFromHex accepts the scalar with or without a 0x prefix.
func PrivateKeyFromHex(s string, reduce bool) (*PrivateKey, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}

	return PrivateKeyFromBytes(b, reduce)
}

func (k *PrivateKey) PublicKey() *PublicKey {
	X := suite.G2().Point().Mul(k.scalar, nil)
	raw, _ := X.MarshalBinary()

	return &PublicKey{point: X, raw: raw}
}

func (k *PrivateKey) Bytes() []byte {
	b, _ := k.scalar.MarshalBinary()
	return b
}

func PublicKeyFromBytes(b []byte) (pub *PublicKey, err error) {
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeySize, len(b))
	}

	defer func() {
		if r := recover(); r != nil {
			pub, err = nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, r)
		}
	}()

	X := suite.G2().Point()
	if err := X.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if X.Equal(suite.G2().Point().Null()) {
		return nil, fmt.Errorf("%w: identity element", ErrInvalidPublicKey)
	}

	return &PublicKey{point: X, raw: tpcmm.BytesCopy(b)}, nil
}

func PublicKeyFromHex(s string) (*PublicKey, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	return PublicKeyFromBytes(b)
}

func (p *PublicKey) Bytes() []byte {
	return tpcmm.BytesCopy(p.raw)
}

// String is the lowercase hex encoding of the key; it doubles as the participant identity.
func (p *PublicKey) String() string {
	return hex.EncodeToString(p.raw)
}

func (p *PublicKey) Equal(o *PublicKey) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.point.Equal(o.point)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}

	return hexutil.Decode(s)
}

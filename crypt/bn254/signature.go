package bn254

import (
	"fmt"
	"sort"

	"github.com/TopiaNetwork/kyber/v3"
	"github.com/TopiaNetwork/kyber/v3/sign/bls"
)

// PartialSignature is one contributor's signature over a round's canonical message.
type PartialSignature struct {
	Round       uint64
	Contributor uint32
	Signature   []byte
}

// AggregateSignature is the G1 sum of a set of partial signatures; Contributors is sorted.
type AggregateSignature struct {
	Signature    []byte
	Contributors []uint32
}

func Sign(priv *PrivateKey, msg []byte) ([]byte, error) {
	return bls.Sign(suite, priv.scalar, msg)
}

// Verify never panics: malformed keys or signatures simply fail verification.
func Verify(pub *PublicKey, msg []byte, sig []byte) (ok bool) {
	if pub == nil || pub.point == nil || len(sig) != SignatureSize {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	return bls.Verify(suite, pub.point, msg, sig) == nil
}

func decodeSignature(sig []byte) (p kyber.Point, err error) {
	if len(sig) != SignatureSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, SignatureSize, len(sig))
	}

	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%w: %v", ErrMalformedSignature, r)
		}
	}()

	p = suite.G1().Point()
	if err := p.UnmarshalBinary(sig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	return p, nil
}

// Aggregate sums the given partial signatures. Each contributor may appear once; the result does
// not depend on the order of partials.
func Aggregate(partials []*PartialSignature) (*AggregateSignature, error) {
	if len(partials) == 0 {
		return nil, ErrEmptyAggregate
	}

	seen := make(map[uint32]struct{}, len(partials))
	contributors := make([]uint32, 0, len(partials))
	sum := suite.G1().Point().Null()
	for _, ps := range partials {
		if _, ok := seen[ps.Contributor]; ok {
			return nil, fmt.Errorf("%w: index %d", ErrDuplicateContributor, ps.Contributor)
		}
		seen[ps.Contributor] = struct{}{}

		p, err := decodeSignature(ps.Signature)
		if err != nil {
			return nil, fmt.Errorf("contributor %d: %w", ps.Contributor, err)
		}
		sum = suite.G1().Point().Add(sum, p)
		contributors = append(contributors, ps.Contributor)
	}

	sig, err := sum.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sort.Slice(contributors, func(i, j int) bool { return contributors[i] < contributors[j] })

	return &AggregateSignature{Signature: sig, Contributors: contributors}, nil
}

func AggregatePublicKeys(keys []*PublicKey) (*PublicKey, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyAggregate
	}

	sum := suite.G2().Point().Null()
	for i, k := range keys {
		if k == nil || k.point == nil {
			return nil, fmt.Errorf("%w: nil key at %d", ErrInvalidPublicKey, i)
		}
		sum = suite.G2().Point().Add(sum, k.point)
	}

	raw, err := sum.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return &PublicKey{point: sum, raw: raw}, nil
}

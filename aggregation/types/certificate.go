package types

import (
	"bytes"
	"errors"
	"fmt"

	tpcmm "github.com/TopiaNetwork/aggregation/common"
	"github.com/TopiaNetwork/aggregation/crypt/bn254"
)

var (
	ErrCertificateShape     = errors.New("certificate: contributors and contributor keys differ in length")
	ErrCertificateKey       = errors.New("certificate: public key is not the aggregate of the contributor keys")
	ErrCertificateSignature = errors.New("certificate: aggregate signature does not verify")
)

// Certificate is the output of a finalized round: an aggregate signature over Message together
// with the aggregate public key of exactly the contributors whose partial signatures it sums.
type Certificate struct {
	Round           uint64
	Message         []byte
	Signature       []byte
	PublicKey       []byte
	Contributors    []uint32
	ContributorKeys []string
}

// Verify checks the certificate on its own, without a registry: the key must be the sum of the
// listed contributor keys and the signature must verify under it.
func (c *Certificate) Verify() error {
	if len(c.Contributors) != len(c.ContributorKeys) || len(c.Contributors) == 0 {
		return ErrCertificateShape
	}

	keys := make([]*bn254.PublicKey, len(c.ContributorKeys))
	for i, k := range c.ContributorKeys {
		pub, err := bn254.PublicKeyFromHex(k)
		if err != nil {
			return fmt.Errorf("contributor %d: %w", c.Contributors[i], err)
		}
		keys[i] = pub
	}

	apk, err := bn254.AggregatePublicKeys(keys)
	if err != nil {
		return err
	}
	if !bytes.Equal(apk.Bytes(), c.PublicKey) {
		return ErrCertificateKey
	}
	if !bn254.Verify(apk, c.Message, c.Signature) {
		return ErrCertificateSignature
	}

	return nil
}

func (c *Certificate) Digest() string {
	return tpcmm.ShortDigest(c.Signature)
}

func (c *Certificate) String() string {
	return fmt.Sprintf("Certificate{round=%d contributors=%v sig=%s}", c.Round, c.Contributors, c.Digest())
}

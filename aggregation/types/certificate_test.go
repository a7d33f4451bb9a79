package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopiaNetwork/aggregation/codec"
	"github.com/TopiaNetwork/aggregation/crypt/bn254"
)

func newCertificate(t *testing.T, round uint64, msg []byte, seeds ...uint64) *Certificate {
	var partials []*bn254.PartialSignature
	var keys []*bn254.PublicKey
	cert := &Certificate{Round: round, Message: msg}
	for i, seed := range seeds {
		priv, pub, err := bn254.DeriveKey(seed)
		require.NoError(t, err)
		sig, err := bn254.Sign(priv, msg)
		require.NoError(t, err)

		partials = append(partials, &bn254.PartialSignature{Round: round, Contributor: uint32(i), Signature: sig})
		keys = append(keys, pub)
		cert.Contributors = append(cert.Contributors, uint32(i))
		cert.ContributorKeys = append(cert.ContributorKeys, pub.String())
	}

	agg, err := bn254.Aggregate(partials)
	require.NoError(t, err)
	apk, err := bn254.AggregatePublicKeys(keys)
	require.NoError(t, err)
	cert.Signature = agg.Signature
	cert.PublicKey = apk.Bytes()

	return cert
}

func TestCertificateVerify(t *testing.T) {
	cert := newCertificate(t, 9, []byte("round-9"), 1, 2, 3)
	require.NoError(t, cert.Verify())

	tampered := *cert
	tampered.Message = []byte("round-10")
	assert.ErrorIs(t, tampered.Verify(), ErrCertificateSignature)

	tampered = *cert
	tampered.ContributorKeys = cert.ContributorKeys[:2]
	assert.ErrorIs(t, tampered.Verify(), ErrCertificateShape)

	tampered = *cert
	tampered.Contributors = cert.Contributors[:2]
	tampered.ContributorKeys = cert.ContributorKeys[:2]
	assert.ErrorIs(t, tampered.Verify(), ErrCertificateKey)
}

func TestCertificateCodec(t *testing.T) {
	cert := newCertificate(t, 3, []byte("round-3"), 4, 5)

	for _, ct := range []codec.CodecType{codec.CodecType_RLP, codec.CodecType_JSON} {
		m := codec.CreateMarshaler(ct)
		data, err := m.Marshal(cert)
		require.NoError(t, err)

		var decoded Certificate
		require.NoError(t, m.Unmarshal(data, &decoded), ct.String())
		assert.Equal(t, cert, &decoded, ct.String())
		assert.NoError(t, decoded.Verify())
	}
}

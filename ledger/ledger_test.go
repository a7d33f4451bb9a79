package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tpaggtypes "github.com/TopiaNetwork/aggregation/aggregation/types"
	"github.com/TopiaNetwork/aggregation/codec"
	tpcmm "github.com/TopiaNetwork/aggregation/common"
	"github.com/TopiaNetwork/aggregation/crypt/bn254"
	"github.com/TopiaNetwork/aggregation/eventhub"
	"github.com/TopiaNetwork/aggregation/ledger/backend"
	tplgcmm "github.com/TopiaNetwork/aggregation/ledger/backend/common"
	"github.com/TopiaNetwork/aggregation/ledger/backend/memdb"
	tplog "github.com/TopiaNetwork/aggregation/log"
	tplogcmm "github.com/TopiaNetwork/aggregation/log/common"
)

func certificate(t *testing.T, round uint64) *tpaggtypes.Certificate {
	msg := append([]byte("_TEST_"), tpcmm.Uint64ToBytes(round)...)

	var (
		partials []*bn254.PartialSignature
		keys     []*bn254.PublicKey
		keyHex   []string
	)
	for i := uint32(0); i < 3; i++ {
		priv, pub, err := bn254.DeriveKey(uint64(i) + 1)
		require.NoError(t, err)
		sig, err := bn254.Sign(priv, msg)
		require.NoError(t, err)
		partials = append(partials, &bn254.PartialSignature{Round: round, Contributor: i, Signature: sig})
		keys = append(keys, pub)
		keyHex = append(keyHex, pub.String())
	}

	agg, err := bn254.Aggregate(partials)
	require.NoError(t, err)
	apk, err := bn254.AggregatePublicKeys(keys)
	require.NoError(t, err)

	return &tpaggtypes.Certificate{
		Round:           round,
		Message:         msg,
		Signature:       agg.Signature,
		PublicKey:       apk.Bytes(),
		Contributors:    agg.Contributors,
		ContributorKeys: keyHex,
	}
}

func newTestLedger(t *testing.T, bt backend.BackendType) Ledger {
	b, err := backend.NewBackend(bt, tplog.NewNopLogger(), "", "certs")
	require.NoError(t, err)

	l, err := NewLedger(tplogcmm.InfoLevel, tplog.NewNopLogger(), b, codec.CodecType_RLP, 4)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	return l
}

func TestPutGetLatest(t *testing.T) {
	for _, bt := range []backend.BackendType{backend.BackendType_Memdb, backend.BackendType_Leveldb, backend.BackendType_Badger} {
		t.Run(bt.String(), func(t *testing.T) {
			l := newTestLedger(t, bt)

			_, err := l.Latest()
			assert.ErrorIs(t, err, ErrCertificateNotFound)

			for _, round := range []uint64{10, 30, 20} {
				require.NoError(t, l.Put(certificate(t, round)))
			}

			latest, err := l.Latest()
			require.NoError(t, err)
			assert.Equal(t, uint64(30), latest.Round)

			got, err := l.Get(20)
			require.NoError(t, err)
			require.NoError(t, got.Verify())
			assert.Equal(t, uint64(20), got.Round)

			_, err = l.Get(11)
			assert.ErrorIs(t, err, ErrCertificateNotFound)

			assert.ErrorIs(t, l.Put(certificate(t, 20)), ErrCertificateExists)
		})
	}
}

func TestGetBypassesEvictedCache(t *testing.T) {
	l := newTestLedger(t, backend.BackendType_Memdb)

	for round := uint64(1); round <= 10; round++ {
		require.NoError(t, l.Put(certificate(t, round)))
	}

	got, err := l.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Round)
	require.NoError(t, got.Verify())
}

func TestRange(t *testing.T) {
	l := newTestLedger(t, backend.BackendType_Leveldb)

	for _, round := range []uint64{5, 1, 3, 7} {
		require.NoError(t, l.Put(certificate(t, round)))
	}

	rounds := func(certs []*tpaggtypes.Certificate) []uint64 {
		var out []uint64
		for _, c := range certs {
			out = append(out, c.Round)
		}
		return out
	}

	certs, err := l.Range(2, 7)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 5, 7}, rounds(certs))

	certs, err = l.Range(0, ^uint64(0))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 5, 7}, rounds(certs))

	certs, err = l.Range(8, 9)
	require.NoError(t, err)
	assert.Empty(t, certs)

	_, err = l.Range(3, 2)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestPutRejectsUnverifiableCertificate(t *testing.T) {
	l := newTestLedger(t, backend.BackendType_Memdb)

	cert := certificate(t, 4)
	cert.Message = append([]byte{}, cert.Message...)
	cert.Message[0] ^= 1

	assert.ErrorIs(t, l.Put(cert), tpaggtypes.ErrCertificateSignature)
	_, err := l.Get(4)
	assert.ErrorIs(t, err, ErrCertificateNotFound)
}

func TestAttachStoresFinalizedCertificates(t *testing.T) {
	l := newTestLedger(t, backend.BackendType_Badger)

	sysActor := actor.NewActorSystem()
	evHub := eventhub.NewEventHub(tplogcmm.InfoLevel, "ledger-test", tplog.NewNopLogger())
	require.NoError(t, evHub.Start(sysActor))
	defer evHub.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, l.Attach(ctx, evHub))

	require.NoError(t, evHub.Trig(ctx, eventhub.EventName_CertificateFinalized, certificate(t, 42)))

	require.Eventually(t, func() bool {
		cert, err := l.Get(42)
		return err == nil && cert.Round == 42
	}, 2*time.Second, 10*time.Millisecond)
}

var errDiskFull = errors.New("disk full")

// failingBackend refuses batch writes while failWrites is set.
type failingBackend struct {
	*memdb.MemBackend
	failWrites bool
}

type failingBatch struct {
	tplgcmm.Batch
	backend *failingBackend
}

func (b *failingBackend) NewBatch() tplgcmm.Batch {
	return &failingBatch{Batch: b.MemBackend.NewBatch(), backend: b}
}

func (fb *failingBatch) WriteSync() error {
	if fb.backend.failWrites {
		return errDiskFull
	}
	return fb.Batch.WriteSync()
}

func TestPutIsAllOrNothing(t *testing.T) {
	b := &failingBackend{MemBackend: memdb.NewMemDBBackend(tplog.NewNopLogger(), "certs")}
	l, err := NewLedger(tplogcmm.InfoLevel, tplog.NewNopLogger(), b, codec.CodecType_RLP, 4)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Put(certificate(t, 5)))

	b.failWrites = true
	assert.ErrorIs(t, l.Put(certificate(t, 6)), errDiskFull)

	_, err = l.Get(6)
	assert.ErrorIs(t, err, ErrCertificateNotFound)
	latest, err := l.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), latest.Round)

	b.failWrites = false
	require.NoError(t, l.Put(certificate(t, 6)), "a failed put must be retryable")
	latest, err = l.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), latest.Round)
}

package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tpaggtypes "github.com/TopiaNetwork/aggregation/aggregation/types"
	"github.com/TopiaNetwork/aggregation/crypt/bn254"
	"github.com/TopiaNetwork/aggregation/eventhub"
	"github.com/TopiaNetwork/aggregation/metrics"
	"github.com/TopiaNetwork/aggregation/registry"
)

func TestNextRoundID(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	assert.Equal(t, uint64(1_700_000_000), nextRoundID(0, now))
	assert.Equal(t, uint64(1_700_000_001), nextRoundID(1_700_000_000, now))
	assert.Equal(t, uint64(1_800_000_000), nextRoundID(1_799_999_999, now), "clock behind last round")
	assert.Equal(t, uint64(1), nextRoundID(0, time.Unix(0, 0)))
}

func TestCanonicalMessage(t *testing.T) {
	msg := CanonicalMessage([]byte("ns"), 0x0102030405060708)

	assert.Equal(t, []byte{'n', 's', 1, 2, 3, 4, 5, 6, 7, 8}, msg)
	assert.NotEqual(t, msg, CanonicalMessage([]byte("ns"), 0x0102030405060709))
	assert.NotEqual(t, msg, CanonicalMessage([]byte("nt"), 0x0102030405060708))
}

func TestRoundFinalizesAtThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.orchestrator.startRound(ctx)
	req := f.lastRequest()
	require.Equal(t, r.id, req.Round)
	require.Equal(t, CanonicalMessage(testNamespace, r.id), req.Message)
	require.Len(t, f.events.named(eventhub.EventName_RoundStarted), 1)

	for i := 0; i < 2; i++ {
		assert.Equal(t, ReplyResult_Accepted, f.orchestrator.handleReply(ctx, f.contributorID(i), f.reply(i, req)))
		assert.Equal(t, RoundState_AwaitingSignatures, r.state)
	}

	assert.Equal(t, ReplyResult_Accepted, f.orchestrator.handleReply(ctx, f.contributorID(2), f.reply(2, req)))
	require.Equal(t, RoundState_Finalized, r.state)

	certs := f.events.named(eventhub.EventName_CertificateFinalized)
	require.Len(t, certs, 1)
	cert := certs[0].(*tpaggtypes.Certificate)
	require.NoError(t, cert.Verify())
	assert.Equal(t, r.id, cert.Round)
	assert.Equal(t, []uint32{0, 1, 2}, cert.Contributors)

	keys, err := f.snap.ContributorKeys([]uint32{0, 1, 2})
	require.NoError(t, err)
	apk, err := bn254.AggregatePublicKeys(keys)
	require.NoError(t, err)
	assert.Equal(t, apk.Bytes(), cert.PublicKey)

	late := f.reply(3, req)
	assert.Equal(t, ReplyResult_Late, f.orchestrator.handleReply(ctx, f.contributorID(3), late))
	assert.Equal(t, uint32(1), r.collector.lateCount())
	assert.Len(t, f.events.named(eventhub.EventName_CertificateFinalized), 1, "a late signature must not produce a second certificate")
	assert.Equal(t, []uint32{0, 1, 2}, r.certificate.Contributors)
}

func TestRoundTimesOutBelowThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.orchestrator.startRound(ctx)
	req := f.lastRequest()
	for i := 0; i < 2; i++ {
		require.Equal(t, ReplyResult_Accepted, f.orchestrator.handleReply(ctx, f.contributorID(i), f.reply(i, req)))
	}

	f.orchestrator.expire(ctx, r.id+1)
	assert.Equal(t, RoundState_AwaitingSignatures, r.state, "deadline of another round")

	f.orchestrator.expire(ctx, r.id)
	require.Equal(t, RoundState_TimedOut, r.state)

	timeouts := f.events.named(eventhub.EventName_RoundTimedOut)
	require.Len(t, timeouts, 1)
	assert.Equal(t, &eventhub.RoundTimedOutEvent{Round: r.id, Collected: 2, Threshold: 3}, timeouts[0])
	assert.Empty(t, f.events.named(eventhub.EventName_CertificateFinalized))

	assert.Equal(t, ReplyResult_Stale, f.orchestrator.handleReply(ctx, f.contributorID(2), f.reply(2, req)))

	next := f.orchestrator.startRound(ctx)
	assert.Greater(t, next.id, r.id)
	assert.Equal(t, uint32(0), next.collector.count())
}

func TestTickTimesOutOpenRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.orchestrator.startRound(ctx)
	f.clock.Advance(10 * time.Second)
	second := f.orchestrator.startRound(ctx)

	assert.Equal(t, RoundState_TimedOut, first.state)
	assert.Equal(t, RoundState_AwaitingSignatures, second.state)
	assert.Equal(t, first.id+10, second.id)
	assert.Same(t, second, f.orchestrator.current)
}

func TestReplayIntoLaterRoundRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.orchestrator.startRound(ctx)
	old := f.reply(0, f.lastRequest())

	next := f.orchestrator.startRound(ctx)
	assert.Equal(t, ReplyResult_Stale, f.orchestrator.handleReply(ctx, f.contributorID(0), old))

	replayed := &PartialSignatureReply{Round: next.id, Contributor: old.Contributor, Signature: old.Signature}
	assert.Equal(t, ReplyResult_Invalid, f.orchestrator.handleReply(ctx, f.contributorID(0), replayed))
	assert.Equal(t, uint32(0), next.collector.count())
}

func TestRejectedReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.orchestrator.startRound(ctx)
	req := f.lastRequest()

	garbage := &PartialSignatureReply{Round: r.id, Contributor: 0, Signature: []byte{1, 2, 3}}
	assert.Equal(t, ReplyResult_Invalid, f.orchestrator.handleReply(ctx, f.contributorID(0), garbage))

	// contributor 1's signature presented under contributor 0's index
	other := f.reply(1, req)
	swapped := &PartialSignatureReply{Round: r.id, Contributor: 0, Signature: other.Signature}
	assert.Equal(t, ReplyResult_Invalid, f.orchestrator.handleReply(ctx, f.contributorID(0), swapped))

	assert.Equal(t, ReplyResult_Impersonate, f.orchestrator.handleReply(ctx, f.contributorID(2), other))

	unknown := &PartialSignatureReply{Round: r.id, Contributor: 9, Signature: other.Signature}
	assert.Equal(t, ReplyResult_Unknown, f.orchestrator.handleReply(ctx, f.contributorID(1), unknown))

	require.Equal(t, ReplyResult_Accepted, f.orchestrator.handleReply(ctx, f.contributorID(1), other))
	assert.Equal(t, ReplyResult_Duplicate, f.orchestrator.handleReply(ctx, f.contributorID(1), other))
	assert.Equal(t, uint32(1), r.collector.count())
	assert.Equal(t, RoundState_AwaitingSignatures, r.state)
}

func TestDiscardedRoundEmitsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.orchestrator.startRound(ctx)
	req := f.lastRequest()
	reply := f.reply(0, req)

	before := testutil.ToFloat64(metrics.InvariantViolations)
	f.orchestrator.discard(r, bn254.ErrMalformedSignature)

	assert.Equal(t, RoundState_Discarded, r.state)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.InvariantViolations))
	assert.Equal(t, ReplyResult_Stale, f.orchestrator.handleReply(ctx, f.contributorID(0), reply))
	assert.Empty(t, f.events.named(eventhub.EventName_CertificateFinalized))

	f.orchestrator.expire(ctx, r.id)
	assert.Equal(t, RoundState_Discarded, r.state)
	assert.Empty(t, f.events.named(eventhub.EventName_RoundTimedOut))
}

func TestFinalizeDiscardsUnverifiableAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.orchestrator.startRound(ctx)
	req := f.lastRequest()
	for i := 0; i < 2; i++ {
		require.Equal(t, ReplyResult_Accepted, f.orchestrator.handleReply(ctx, f.contributorID(i), f.reply(i, req)))
	}

	// Index 0 now resolves to a key that never signed, while index 2 still verifies on arrival.
	_, stranger, err := bn254.DeriveKey(5)
	require.NoError(t, err)
	ps := append([]*registry.Participant{}, f.snap.Participants()...)
	ps = append(ps, registry.NewParticipant(stranger, ""))
	ids := f.snap.ContributorIDs()
	swapped, err := registry.NewSnapshot(ps, []string{ps[5].ID, ids[1], ids[2], ids[3]}, f.orchestratorID())
	require.NoError(t, err)
	r.snapshot = swapped

	before := testutil.ToFloat64(metrics.InvariantViolations)
	assert.Equal(t, ReplyResult_Accepted, f.orchestrator.handleReply(ctx, f.contributorID(2), f.reply(2, req)))

	assert.Equal(t, RoundState_Discarded, r.state)
	assert.Nil(t, r.certificate)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.InvariantViolations))
	assert.Empty(t, f.events.named(eventhub.EventName_CertificateFinalized))
}

func TestRoundUsesSnapshotFromStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.orchestrator.startRound(ctx)
	assert.Same(t, f.snap, r.snapshot)
	assert.Equal(t, uint32(3), r.threshold())
	assert.Equal(t, f.clock.Now().Add(8*time.Second), r.deadline)
}

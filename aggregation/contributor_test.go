package aggregation

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopiaNetwork/aggregation/crypt/bn254"
	tplog "github.com/TopiaNetwork/aggregation/log"
	"github.com/TopiaNetwork/aggregation/registry"
)

func TestContributorSignsCanonicalMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := &SigningRequest{Round: 42, Message: CanonicalMessage(testNamespace, 42)}

	reply, result := f.contributors[2].handleRequest(ctx, f.orchestratorID(), req)
	require.Equal(t, RequestResult_Signed, result)
	require.NotNil(t, reply)

	assert.Equal(t, uint64(42), reply.Round)
	assert.Equal(t, uint32(2), reply.Contributor)

	c, _ := f.snap.Contributor(2)
	assert.True(t, bn254.Verify(c.PublicKey, req.Message, reply.Signature))
	require.Len(t, f.contDeliver[2].replies, 1)
	assert.Same(t, reply, f.contDeliver[2].replies[0])
}

func TestContributorEmptyMessageIsAccepted(t *testing.T) {
	f := newFixture(t)

	reply, result := f.contributors[0].handleRequest(context.Background(), f.orchestratorID(), &SigningRequest{Round: 7})
	require.Equal(t, RequestResult_Signed, result)

	c, _ := f.snap.Contributor(0)
	assert.True(t, bn254.Verify(c.PublicKey, CanonicalMessage(testNamespace, 7), reply.Signature))
}

func TestContributorIgnoresNonOrchestrator(t *testing.T) {
	f := newFixture(t)
	req := &SigningRequest{Round: 42, Message: CanonicalMessage(testNamespace, 42)}

	reply, result := f.contributors[0].handleRequest(context.Background(), f.contributorID(1), req)
	assert.Nil(t, reply)
	assert.Equal(t, RequestResult_NotOrchestrator, result)
	assert.Empty(t, f.contDeliver[0].replies)
}

func TestContributorRefusesForeignMessage(t *testing.T) {
	f := newFixture(t)

	for _, msg := range [][]byte{
		CanonicalMessage(testNamespace, 43),
		CanonicalMessage([]byte("other"), 42),
		[]byte("pay alice 100"),
	} {
		reply, result := f.contributors[0].handleRequest(context.Background(), f.orchestratorID(), &SigningRequest{Round: 42, Message: msg})
		assert.Nil(t, reply)
		assert.Equal(t, RequestResult_Mismatch, result)
	}
	assert.Empty(t, f.contDeliver[0].replies)
}

func TestContributorResignIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := &SigningRequest{Round: 42, Message: CanonicalMessage(testNamespace, 42)}

	first, result := f.contributors[1].handleRequest(ctx, f.orchestratorID(), req)
	require.Equal(t, RequestResult_Signed, result)

	second, result := f.contributors[1].handleRequest(ctx, f.orchestratorID(), req)
	require.Equal(t, RequestResult_Resent, result)
	assert.Equal(t, first.Signature, second.Signature)
	assert.Len(t, f.contDeliver[1].replies, 2)
}

func TestNewContributorRequiresMembership(t *testing.T) {
	f := newFixture(t)

	_, err := newContributor(tplog.NewNopLogger(), f.orchestratorID(), testNamespace, f.priKeys[0],
		registry.NewStaticProvider(f.snap), &captureDeliver{}, 16)
	assert.ErrorIs(t, err, ErrNotContributor)
}

func refreshingContributor(t *testing.T, f *fixture, seed int) (*contributor, *registry.Refresher) {
	refresher := registry.NewRefresher(tplog.NewNopLogger(), f.snap)
	c, err := newContributor(tplog.NewNopLogger(), f.snap.Participants()[seed].ID, testNamespace, f.priKeys[seed], refresher, &captureDeliver{}, 16)
	require.NoError(t, err)

	return c, refresher
}

func TestContributorIgnoredRequestKeepsRegistryRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ps := f.snap.Participants()
	c, refresher := refreshingContributor(t, f, 1)

	reply, result := c.handleRequest(ctx, ps[2].ID, &SigningRequest{Round: math.MaxUint64})
	assert.Nil(t, reply)
	assert.Equal(t, RequestResult_NotOrchestrator, result)
	assert.Equal(t, uint64(0), c.lastRound)

	reordered, err := registry.NewSnapshot(ps, []string{ps[4].ID, ps[3].ID, ps[2].ID, ps[1].ID}, ps[0].ID)
	require.NoError(t, err)
	refresher.Update(reordered)

	reply, result = c.handleRequest(ctx, ps[0].ID, &SigningRequest{Round: 100})
	require.Equal(t, RequestResult_Signed, result)
	assert.Equal(t, uint32(3), reply.Contributor)
	assert.Same(t, reordered, refresher.Snapshot())
	assert.True(t, bn254.Verify(ps[1].PublicKey, CanonicalMessage(testNamespace, 100), reply.Signature))
}

func TestContributorFollowsStagedOrchestrator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ps := f.snap.Participants()
	c, refresher := refreshingContributor(t, f, 1)

	handover, err := registry.NewSnapshot(ps, f.snap.ContributorIDs(), ps[2].ID)
	require.NoError(t, err)
	refresher.Update(handover)

	reply, result := c.handleRequest(ctx, ps[0].ID, &SigningRequest{Round: 100})
	assert.Nil(t, reply)
	assert.Equal(t, RequestResult_NotOrchestrator, result)
	assert.Same(t, f.snap, refresher.Snapshot(), "a refused request must not apply the staged registry")

	reply, result = c.handleRequest(ctx, ps[2].ID, &SigningRequest{Round: 100})
	require.Equal(t, RequestResult_Signed, result)
	assert.Equal(t, uint32(0), reply.Contributor)
	assert.Same(t, handover, refresher.Snapshot())

	_, result = c.handleRequest(ctx, ps[0].ID, &SigningRequest{Round: 100})
	assert.Equal(t, RequestResult_NotOrchestrator, result)
}

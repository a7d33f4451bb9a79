package aggregation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TopiaNetwork/aggregation/crypt/bn254"
	"github.com/TopiaNetwork/aggregation/eventhub"
	tplog "github.com/TopiaNetwork/aggregation/log"
	"github.com/TopiaNetwork/aggregation/registry"
	tptime "github.com/TopiaNetwork/aggregation/time"
)

var testNamespace = []byte("_TEST_AGGREGATION_")

type captureDeliver struct {
	sync     sync.Mutex
	requests []*SigningRequest
	replies  []*PartialSignatureReply
}

func (d *captureDeliver) deliverSigningRequest(ctx context.Context, to []string, msg *SigningRequest) error {
	d.sync.Lock()
	defer d.sync.Unlock()

	d.requests = append(d.requests, msg)
	return nil
}

func (d *captureDeliver) deliverPartialSignature(ctx context.Context, to string, msg *PartialSignatureReply) error {
	d.sync.Lock()
	defer d.sync.Unlock()

	d.replies = append(d.replies, msg)
	return nil
}

type recordedEvent struct {
	name string
	data interface{}
}

type captureTrigger struct {
	events []recordedEvent
}

func (c *captureTrigger) Trig(ctx context.Context, name string, data interface{}) error {
	c.events = append(c.events, recordedEvent{name, data})
	return nil
}

func (c *captureTrigger) named(name string) []interface{} {
	var out []interface{}
	for _, ev := range c.events {
		if ev.name == name {
			out = append(out, ev.data)
		}
	}
	return out
}

// fixture: seed 0 orchestrates, seeds 1..4 contribute, so n=4 and the threshold is 3.
type fixture struct {
	t            *testing.T
	clock        *tptime.ManualClock
	snap         *registry.Snapshot
	priKeys      []*bn254.PrivateKey
	orchestrator *orchestrator
	orchDeliver  *captureDeliver
	events       *captureTrigger
	contributors []*contributor
	contDeliver  []*captureDeliver
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t:      t,
		clock:  tptime.NewManualClock(time.Unix(1_700_000_000, 0)),
		events: &captureTrigger{},
	}

	var participants []*registry.Participant
	for seed := uint64(0); seed < 5; seed++ {
		priv, pub, err := bn254.DeriveKey(seed)
		require.NoError(t, err)
		f.priKeys = append(f.priKeys, priv)
		participants = append(participants, registry.NewParticipant(pub, ""))
	}

	var contributorIDs []string
	for _, p := range participants[1:] {
		contributorIDs = append(contributorIDs, p.ID)
	}

	snap, err := registry.NewSnapshot(participants, contributorIDs, participants[0].ID)
	require.NoError(t, err)
	f.snap = snap

	provider := registry.NewStaticProvider(snap)
	log := tplog.NewNopLogger()

	f.orchDeliver = &captureDeliver{}
	f.orchestrator = newOrchestrator(log, participants[0].ID, testNamespace, 8*time.Second, provider, f.orchDeliver, f.events, f.clock)

	for i, p := range participants[1:] {
		d := &captureDeliver{}
		c, err := newContributor(log, p.ID, testNamespace, f.priKeys[i+1], provider, d, 16)
		require.NoError(t, err)
		f.contributors = append(f.contributors, c)
		f.contDeliver = append(f.contDeliver, d)
	}

	return f
}

func (f *fixture) orchestratorID() string {
	return f.snap.Orchestrator()
}

func (f *fixture) contributorID(i int) string {
	return f.snap.ContributorIDs()[i]
}

// reply has contributor i answer req the way the orchestrator would see it.
func (f *fixture) reply(i int, req *SigningRequest) *PartialSignatureReply {
	reply, result := f.contributors[i].handleRequest(context.Background(), f.orchestratorID(), req)
	require.NotNil(f.t, reply, "contributor %d refused: %s", i, result)
	return reply
}

func (f *fixture) lastRequest() *SigningRequest {
	require.NotEmpty(f.t, f.orchDeliver.requests)
	return f.orchDeliver.requests[len(f.orchDeliver.requests)-1]
}

var _ eventhub.EventTrigger = (*captureTrigger)(nil)

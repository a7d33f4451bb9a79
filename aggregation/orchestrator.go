package aggregation

import (
	"context"
	"time"

	tpaggtypes "github.com/TopiaNetwork/aggregation/aggregation/types"
	"github.com/TopiaNetwork/aggregation/crypt/bn254"
	"github.com/TopiaNetwork/aggregation/eventhub"
	tplog "github.com/TopiaNetwork/aggregation/log"
	"github.com/TopiaNetwork/aggregation/metrics"
	"github.com/TopiaNetwork/aggregation/registry"
	tptime "github.com/TopiaNetwork/aggregation/time"
)

type ReplyResult string

const (
	ReplyResult_Accepted    ReplyResult = "accepted"
	ReplyResult_Late        ReplyResult = "late"
	ReplyResult_Stale       ReplyResult = "stale"
	ReplyResult_Unknown     ReplyResult = "unknown_contributor"
	ReplyResult_Impersonate ReplyResult = "sender_mismatch"
	ReplyResult_Duplicate   ReplyResult = "duplicate"
	ReplyResult_Invalid     ReplyResult = "invalid"
)

// orchestrator drives rounds. Every method runs on the aggregation actor, so state needs no locks.
type orchestrator struct {
	log          tplog.Logger
	nodeID       string
	namespace    []byte
	roundTimeout time.Duration
	provider     registry.Provider
	deliver      messageDeliverI
	evTrigger    eventhub.EventTrigger
	clock        tptime.Clock
	scheduler    deadlineScheduler
	lastRound    uint64
	current      *round
}

// deadlineScheduler arms the per-round timeout; the actor turns a fired deadline into expire.
type deadlineScheduler interface {
	armDeadline(round uint64, timeout time.Duration)

	disarmDeadline(round uint64)
}

func newOrchestrator(log tplog.Logger,
	nodeID string,
	namespace []byte,
	roundTimeout time.Duration,
	provider registry.Provider,
	deliver messageDeliverI,
	evTrigger eventhub.EventTrigger,
	clock tptime.Clock) *orchestrator {
	return &orchestrator{
		log:          log,
		nodeID:       nodeID,
		namespace:    namespace,
		roundTimeout: roundTimeout,
		provider:     provider,
		deliver:      deliver,
		evTrigger:    evTrigger,
		clock:        clock,
	}
}

// startRound opens a new round. A round still awaiting signatures is timed out first, so at most
// one round is ever open.
func (o *orchestrator) startRound(ctx context.Context) *round {
	if o.current != nil && o.current.state == RoundState_AwaitingSignatures {
		o.timeout(ctx, o.current)
	}

	snap := o.provider.Advance()
	now := o.clock.Now()
	id := nextRoundID(o.lastRound, now)

	r := newRound(id, CanonicalMessage(o.namespace, id), snap, now, o.roundTimeout)
	o.current = r
	o.lastRound = id

	metrics.Rounds.WithLabelValues("started").Inc()
	o.log.Infof("Round started: round=%d, contributors=%d, threshold=%d", id, snap.ContributorCount(), snap.Threshold())

	o.trig(ctx, eventhub.EventName_RoundStarted, &eventhub.RoundStartedEvent{
		Round:        id,
		Contributors: snap.ContributorCount(),
		Threshold:    snap.Threshold(),
	})

	if o.scheduler != nil {
		o.scheduler.armDeadline(id, o.roundTimeout)
	}

	o.deliver.deliverSigningRequest(ctx, snap.ContributorIDs(), &SigningRequest{Round: id, Message: r.message})

	return r
}

// handleReply validates a partial signature. Cheap checks (round, index, sender, duplicate) run
// before any pairing.
func (o *orchestrator) handleReply(ctx context.Context, from string, reply *PartialSignatureReply) ReplyResult {
	result := o.checkReply(ctx, from, reply)
	metrics.PartialSignatures.WithLabelValues(string(result)).Inc()

	return result
}

func (o *orchestrator) checkReply(ctx context.Context, from string, reply *PartialSignatureReply) ReplyResult {
	r := o.current
	if r == nil || reply.Round != r.id {
		o.log.Debugf("Drop reply for stale round: round=%d, from=%s", reply.Round, from)
		return ReplyResult_Stale
	}
	if r.state != RoundState_AwaitingSignatures && r.state != RoundState_Finalized {
		o.log.Debugf("Drop reply for closed round: round=%d, state=%s, from=%s", reply.Round, r.state, from)
		return ReplyResult_Stale
	}

	contributor, ok := r.snapshot.Contributor(reply.Contributor)
	if !ok {
		o.log.Warnf("Drop reply with unknown contributor index: round=%d, index=%d, from=%s", reply.Round, reply.Contributor, from)
		return ReplyResult_Unknown
	}
	if contributor.ID != from {
		o.log.Warnf("Drop reply claiming another contributor: round=%d, index=%d, from=%s", reply.Round, reply.Contributor, from)
		return ReplyResult_Impersonate
	}
	if r.collector.has(reply.Contributor) {
		return ReplyResult_Duplicate
	}

	if !bn254.Verify(contributor.PublicKey, r.message, reply.Signature) {
		o.log.Warnf("Drop invalid partial signature: round=%d, index=%d", reply.Round, reply.Contributor)
		return ReplyResult_Invalid
	}

	if r.state == RoundState_Finalized {
		r.collector.addLate(reply.Contributor, reply.Signature)
		o.log.Debugf("Late partial signature: round=%d, index=%d", reply.Round, reply.Contributor)
		return ReplyResult_Late
	}

	if r.collector.add(reply.Contributor, reply.Signature) {
		o.finalize(ctx, r)
	}

	return ReplyResult_Accepted
}

func (o *orchestrator) finalize(ctx context.Context, r *round) {
	agg, err := bn254.Aggregate(r.collector.collected())
	if err != nil {
		o.discard(r, err)
		return
	}

	keys, err := r.snapshot.ContributorKeys(agg.Contributors)
	if err != nil {
		o.discard(r, err)
		return
	}
	apk, err := bn254.AggregatePublicKeys(keys)
	if err != nil {
		o.discard(r, err)
		return
	}

	if !bn254.Verify(apk, r.message, agg.Signature) {
		o.discard(r, bn254.ErrMalformedSignature)
		return
	}

	keyHex := make([]string, len(keys))
	for i, k := range keys {
		keyHex[i] = k.String()
	}

	cert := &tpaggtypes.Certificate{
		Round:           r.id,
		Message:         r.message,
		Signature:       agg.Signature,
		PublicKey:       apk.Bytes(),
		Contributors:    agg.Contributors,
		ContributorKeys: keyHex,
	}
	r.certificate = cert
	r.state = RoundState_Finalized
	if o.scheduler != nil {
		o.scheduler.disarmDeadline(r.id)
	}

	elapsed := o.clock.Now().Sub(r.startedAt)
	metrics.Rounds.WithLabelValues("finalized").Inc()
	metrics.RoundDuration.Observe(elapsed.Seconds())
	o.log.Infof("Round finalized: round=%d, contributors=%v, signature=%s, elapsed=%v", r.id, cert.Contributors, cert.Digest(), elapsed)

	o.trig(ctx, eventhub.EventName_CertificateFinalized, cert)
}

// discard handles an aggregate that does not verify although each partial did. That can only mean
// a bug or a corrupted registry, so the round produces nothing.
func (o *orchestrator) discard(r *round, err error) {
	r.state = RoundState_Discarded
	if o.scheduler != nil {
		o.scheduler.disarmDeadline(r.id)
	}

	metrics.Rounds.WithLabelValues("discarded").Inc()
	metrics.InvariantViolations.Inc()
	o.log.Errorf("Aggregate of verified partials failed verification, round discarded: round=%d, err=%v", r.id, err)
}

// expire is the round deadline. It only acts on the round it was armed for.
func (o *orchestrator) expire(ctx context.Context, roundID uint64) {
	if o.current == nil || o.current.id != roundID || o.current.state != RoundState_AwaitingSignatures {
		return
	}

	o.timeout(ctx, o.current)
}

func (o *orchestrator) timeout(ctx context.Context, r *round) {
	r.state = RoundState_TimedOut
	if o.scheduler != nil {
		o.scheduler.disarmDeadline(r.id)
	}

	metrics.Rounds.WithLabelValues("timeout").Inc()
	o.log.Warnf("Round timed out: round=%d, collected=%d, threshold=%d", r.id, r.collector.count(), r.threshold())

	o.trig(ctx, eventhub.EventName_RoundTimedOut, &eventhub.RoundTimedOutEvent{
		Round:     r.id,
		Collected: r.collector.count(),
		Threshold: r.threshold(),
	})
}

func (o *orchestrator) trig(ctx context.Context, name string, data interface{}) {
	if o.evTrigger == nil {
		return
	}
	if err := o.evTrigger.Trig(ctx, name, data); err != nil {
		o.log.Warnf("Trig event %s err: %v", name, err)
	}
}

package aggregation

import (
	"bytes"
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru"

	"github.com/TopiaNetwork/aggregation/crypt/bn254"
	tplog "github.com/TopiaNetwork/aggregation/log"
	"github.com/TopiaNetwork/aggregation/metrics"
	"github.com/TopiaNetwork/aggregation/registry"
)

var ErrNotContributor = errors.New("aggregation: node is not in the contributor set")

type RequestResult string

const (
	RequestResult_Signed          RequestResult = "signed"
	RequestResult_Resent          RequestResult = "resent"
	RequestResult_NotOrchestrator RequestResult = "not_orchestrator"
	RequestResult_NotContributor  RequestResult = "not_contributor"
	RequestResult_Mismatch        RequestResult = "message_mismatch"
	RequestResult_Failed          RequestResult = "failed"
)

// contributor answers signing requests. It signs only the canonical message it derives itself,
// so for a given round it can never sign two different messages.
type contributor struct {
	log       tplog.Logger
	nodeID    string
	namespace []byte
	priKey    *bn254.PrivateKey
	provider  registry.Provider
	deliver   messageDeliverI
	replies   *lru.Cache //round -> *PartialSignatureReply
	lastRound uint64
}

func newContributor(log tplog.Logger,
	nodeID string,
	namespace []byte,
	priKey *bn254.PrivateKey,
	provider registry.Provider,
	deliver messageDeliverI,
	cacheSize int) (*contributor, error) {
	if _, ok := provider.Snapshot().ContributorIndex(nodeID); !ok {
		return nil, ErrNotContributor
	}

	replies, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	return &contributor{
		log:       log,
		nodeID:    nodeID,
		namespace: namespace,
		priKey:    priKey,
		provider:  provider,
		deliver:   deliver,
		replies:   replies,
	}, nil
}

func (c *contributor) handleRequest(ctx context.Context, from string, req *SigningRequest) (*PartialSignatureReply, RequestResult) {
	reply, result := c.sign(from, req)
	metrics.ContributorRequests.WithLabelValues(string(result)).Inc()
	if reply == nil {
		return nil, result
	}

	c.deliver.deliverPartialSignature(ctx, from, reply)

	return reply, result
}

func (c *contributor) sign(from string, req *SigningRequest) (*PartialSignatureReply, RequestResult) {
	snap := c.provider.Snapshot()
	if req.Round > c.lastRound {
		// A new round may be opened by the orchestrator of a staged registry. Nothing is applied
		// until the sender is known to be that orchestrator.
		if from != c.provider.Next().Orchestrator() {
			c.log.Warnf("Ignore signing request from non-orchestrator: round=%d, from=%s", req.Round, from)
			return nil, RequestResult_NotOrchestrator
		}
		snap = c.provider.Advance()
		c.lastRound = req.Round
	}

	if from != snap.Orchestrator() {
		c.log.Warnf("Ignore signing request from non-orchestrator: round=%d, from=%s", req.Round, from)
		return nil, RequestResult_NotOrchestrator
	}

	index, ok := snap.ContributorIndex(c.nodeID)
	if !ok {
		c.log.Warnf("Ignore signing request, not a contributor: round=%d", req.Round)
		return nil, RequestResult_NotContributor
	}

	msg := CanonicalMessage(c.namespace, req.Round)
	if len(req.Message) > 0 && !bytes.Equal(req.Message, msg) {
		c.log.Warnf("Ignore signing request with non-canonical message: round=%d", req.Round)
		return nil, RequestResult_Mismatch
	}

	if cached, ok := c.replies.Get(req.Round); ok {
		if reply := cached.(*PartialSignatureReply); reply.Contributor == index {
			return reply, RequestResult_Resent
		}
	}

	sig, err := bn254.Sign(c.priKey, msg)
	if err != nil {
		c.log.Errorf("Sign round %d err: %v", req.Round, err)
		return nil, RequestResult_Failed
	}

	reply := &PartialSignatureReply{Round: req.Round, Contributor: index, Signature: sig}
	c.replies.Add(req.Round, reply)

	c.log.Debugf("Signed round %d as contributor %d", req.Round, index)

	return reply, RequestResult_Signed
}

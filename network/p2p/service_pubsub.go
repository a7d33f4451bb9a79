package p2p

import (
	"context"
	"fmt"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"

	tplog "github.com/TopiaNetwork/aggregation/log"
	logcomm "github.com/TopiaNetwork/aggregation/log/common"
	"github.com/TopiaNetwork/aggregation/metrics"
	"github.com/TopiaNetwork/aggregation/network/message"
)

// P2PPubSubService carries broadcasts over a single gossipsub topic. Message signing is strict, so
// the origin of every accepted message is the authenticated publisher.
type P2PPubSubService struct {
	sync.Mutex
	ctx        context.Context
	log        tplog.Logger
	pubSub     *pubsub.PubSub
	p2pService *P2PService
	topicName  string
	topic      *pubsub.Topic
	sub        *pubsub.Subscription
}

func NewP2PPubSubService(ctx context.Context, log tplog.Logger, pubSub *pubsub.PubSub, p2pService *P2PService) *P2PPubSubService {
	return &P2PPubSubService{
		ctx:        ctx,
		log:        tplog.CreateModuleLogger(logcomm.InfoLevel, "P2PPubSubService", log),
		pubSub:     pubSub,
		p2pService: p2pService,
	}
}

func (ps *P2PPubSubService) Subscribe(topic string) error {
	ps.Lock()
	defer ps.Unlock()

	if ps.topic != nil {
		return fmt.Errorf("already subscribed to %s", ps.topicName)
	}

	topicValidator := message.TopicValidator(ps.p2pService.host.ID(), ps.log, ps.p2pService.isAdmitted, ps.p2pService.marshaler)
	if err := ps.pubSub.RegisterTopicValidator(topic, topicValidator, pubsub.WithValidatorInline(true)); err != nil {
		return fmt.Errorf("failed to register topic validator: %w", err)
	}

	tp, err := ps.pubSub.Join(topic)
	if err != nil {
		_ = ps.pubSub.UnregisterTopicValidator(topic)
		return fmt.Errorf("could not join topic (%s): %w", topic, err)
	}

	s, err := tp.Subscribe()
	if err != nil {
		_ = tp.Close()
		_ = ps.pubSub.UnregisterTopicValidator(topic)
		return fmt.Errorf("could not subscribe to topic (%s): %w", topic, err)
	}

	ps.topicName, ps.topic, ps.sub = topic, tp, s

	go ps.handleIncomingMessages(s)

	return nil
}

func (ps *P2PPubSubService) handleIncomingMessages(subscr *pubsub.Subscription) {
	self := ps.p2pService.ID()
	for {
		psMsg, err := subscr.Next(ps.ctx)
		if err != nil {
			if ps.ctx.Err() != nil || err == pubsub.ErrSubscriptionCancelled {
				return
			}
			ps.log.Warnf("Error from message subscription: %v", err)
			continue
		}

		wireMsg, ok := psMsg.ValidatorData.(*message.WireMessage)
		if !ok {
			continue
		}
		if !targeted(wireMsg.To, self) {
			continue
		}
		if origin := psMsg.GetFrom(); origin != ps.p2pService.host.ID() && !ps.p2pService.allow(origin) {
			metrics.P2PMessages.WithLabelValues("in", "rate_limited").Inc()
			continue
		}

		ps.p2pService.deliver(psMsg.GetFrom(), wireMsg)
	}
}

func targeted(to []string, self string) bool {
	if len(to) == 0 {
		return true
	}
	for _, id := range to {
		if id == self {
			return true
		}
	}
	return false
}

func (ps *P2PPubSubService) UnSubscribe() {
	ps.Lock()
	defer ps.Unlock()

	if ps.sub != nil {
		ps.sub.Cancel()
		ps.sub = nil
	}
	if ps.topic != nil {
		_ = ps.pubSub.UnregisterTopicValidator(ps.topicName)
		if err := ps.topic.Close(); err != nil {
			ps.log.Warnf("Could not close topic (%s): %v", ps.topicName, err)
		}
		ps.topic = nil
	}
}

func (ps *P2PPubSubService) Publish(ctx context.Context, wireMsg *message.WireMessage) error {
	ps.Lock()
	tp := ps.topic
	ps.Unlock()

	if tp == nil {
		return fmt.Errorf("not subscribed to any topic")
	}

	data, err := ps.p2pService.marshaler.Marshal(wireMsg)
	if err != nil {
		return err
	}

	if err := tp.Publish(ctx, data); err != nil {
		metrics.P2PMessages.WithLabelValues("out", "error").Inc()
		return fmt.Errorf("could not publish to topic (%s): %w", ps.topicName, err)
	}
	metrics.P2PMessages.WithLabelValues("out", "ok").Inc()

	return nil
}

package aggregation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"

	"github.com/TopiaNetwork/aggregation/codec"
	"github.com/TopiaNetwork/aggregation/configuration"
	"github.com/TopiaNetwork/aggregation/crypt/bn254"
	"github.com/TopiaNetwork/aggregation/eventhub"
	tplog "github.com/TopiaNetwork/aggregation/log"
	tplogcmm "github.com/TopiaNetwork/aggregation/log/common"
	tpnet "github.com/TopiaNetwork/aggregation/network"
	"github.com/TopiaNetwork/aggregation/network/message"
	"github.com/TopiaNetwork/aggregation/registry"
	tptime "github.com/TopiaNetwork/aggregation/time"
)

const (
	MOD_NAME = "aggregation"

	roundTimerName = "aggregation-round"
)

type Aggregation interface {
	IsOrchestrator() bool

	IsContributor() bool

	Start(sysActor *actor.ActorSystem) error

	Stop()
}

type aggregation struct {
	log          tplog.Logger
	level        tplogcmm.LogLevel
	nodeID       string
	config       *configuration.AggregationConfiguration
	marshaler    codec.Marshaler
	network      tpnet.Network
	timerMng     tptime.TimerManager
	orchestrator *orchestrator
	contributor  *contributor
	sync         sync.Mutex
	sysActor     *actor.ActorSystem
	pid          *actor.PID
}

// NewAggregation builds the roles this node plays. A node is the orchestrator when the registry
// names it so; it is a contributor when it sits in the contributor set. A node playing neither
// role is a configuration error.
func NewAggregation(level tplogcmm.LogLevel,
	log tplog.Logger,
	config *configuration.AggregationConfiguration,
	priKey *bn254.PrivateKey,
	provider registry.Provider,
	network tpnet.Network,
	evTrigger eventhub.EventTrigger,
	timerMng tptime.TimerManager,
	clock tptime.Clock) (Aggregation, error) {
	aggLog := tplog.CreateModuleLogger(level, MOD_NAME, log)

	codecType, err := config.CodecType()
	if err != nil {
		return nil, err
	}
	marshaler := codec.CreateMarshaler(codecType)

	nodeID := priKey.PublicKey().String()
	namespace := []byte(config.Namespace)
	deliver := newMessageDeliver(aggLog, network, marshaler)

	agg := &aggregation{
		log:       aggLog,
		level:     level,
		nodeID:    nodeID,
		config:    config,
		marshaler: marshaler,
		network:   network,
		timerMng:  timerMng,
	}

	snap := provider.Snapshot()
	if snap.Orchestrator() == nodeID {
		agg.orchestrator = newOrchestrator(aggLog, nodeID, namespace, config.RoundTimeout, provider, deliver, evTrigger, clock)
		agg.orchestrator.scheduler = agg
	}

	if _, ok := snap.ContributorIndex(nodeID); ok {
		agg.contributor, err = newContributor(aggLog, nodeID, namespace, priKey, provider, deliver, config.ReplyCacheSize)
		if err != nil {
			return nil, err
		}
	} else if agg.orchestrator == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotContributor, shortID(nodeID))
	}

	return agg, nil
}

func (agg *aggregation) IsOrchestrator() bool {
	return agg.orchestrator != nil
}

func (agg *aggregation) IsContributor() bool {
	return agg.contributor != nil
}

func (agg *aggregation) Start(sysActor *actor.ActorSystem) error {
	actorPID, err := CreateAggregationActor(agg.level, agg.log, sysActor, agg)
	if err != nil {
		agg.log.Errorf("CreateAggregationActor error: %v", err)
		return err
	}

	agg.sync.Lock()
	agg.sysActor = sysActor
	agg.pid = actorPID
	agg.sync.Unlock()

	agg.network.RegisterModule(MOD_NAME, actorPID)

	if agg.orchestrator != nil {
		agg.timerMng.RegisterPeriodicTimer(roundTimerName, func() {
			agg.post(&roundTick{})
		}, agg.config.Frequency)
		agg.timerMng.StartTimer(roundTimerName, true)
	}

	agg.log.Infof("Aggregation started: orchestrator=%v, contributor=%v", agg.IsOrchestrator(), agg.IsContributor())

	return nil
}

func (agg *aggregation) post(msg interface{}) {
	agg.sync.Lock()
	sysActor, pid := agg.sysActor, agg.pid
	agg.sync.Unlock()

	if pid == nil {
		return
	}
	sysActor.Root.Send(pid, msg)
}

func deadlineTimerName(round uint64) string {
	return fmt.Sprintf("aggregation-deadline-%d", round)
}

func (agg *aggregation) armDeadline(round uint64, timeout time.Duration) {
	agg.timerMng.RegisterOneTimeRoutine(deadlineTimerName(round), func() {
		agg.post(&roundDeadline{round: round})
	}, timeout)
}

func (agg *aggregation) disarmDeadline(round uint64) {
	agg.timerMng.RemoveTimer(deadlineTimerName(round))
}

func (agg *aggregation) dispatch(ctx context.Context, netMsg *message.NetworkMessage) {
	var aggMsg AggregationMessage
	err := agg.marshaler.Unmarshal(netMsg.Data, &aggMsg)
	if err != nil {
		agg.log.Errorf("Aggregation receive invalid data from %s: %v", shortID(netMsg.FromPeerID), err)
		return
	}

	switch aggMsg.MsgType {
	case AggregationMessage_SigningRequest:
		if agg.contributor == nil {
			agg.log.Debugf("Ignore signing request, not a contributor: from=%s", shortID(netMsg.FromPeerID))
			return
		}
		var msg SigningRequest
		if err = agg.marshaler.Unmarshal(aggMsg.Data, &msg); err != nil {
			agg.log.Errorf("Aggregation unmarshal msg %s err %v", aggMsg.MsgType, err)
			return
		}
		agg.contributor.handleRequest(ctx, netMsg.FromPeerID, &msg)
	case AggregationMessage_PartialSignature:
		if agg.orchestrator == nil {
			agg.log.Debugf("Ignore partial signature, not the orchestrator: from=%s", shortID(netMsg.FromPeerID))
			return
		}
		var msg PartialSignatureReply
		if err = agg.marshaler.Unmarshal(aggMsg.Data, &msg); err != nil {
			agg.log.Errorf("Aggregation unmarshal msg %s err %v", aggMsg.MsgType, err)
			return
		}
		agg.orchestrator.handleReply(ctx, netMsg.FromPeerID, &msg)
	default:
		agg.log.Errorf("Aggregation receive invalid msg %s", aggMsg.MsgType)
	}
}

func (agg *aggregation) Stop() {
	agg.timerMng.RemoveTimer(roundTimerName)
	agg.network.UnRegisterModule(MOD_NAME)

	agg.sync.Lock()
	sysActor, pid := agg.sysActor, agg.pid
	agg.pid = nil
	agg.sync.Unlock()

	if pid != nil {
		sysActor.Root.StopFuture(pid).Wait()
	}

	agg.log.Info("Aggregation stopped")
}

func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}

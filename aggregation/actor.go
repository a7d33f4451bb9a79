package aggregation

import (
	"context"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"

	tplog "github.com/TopiaNetwork/aggregation/log"
	tplogcmm "github.com/TopiaNetwork/aggregation/log/common"
	"github.com/TopiaNetwork/aggregation/network/message"
)

const dispatchTimeout = 4 * time.Second

// roundTick asks the orchestrator to open the next round.
type roundTick struct{}

// roundDeadline fires when a round's collection window closes.
type roundDeadline struct {
	round uint64
}

type AggregationActor struct {
	log tplog.Logger
	pid *actor.PID
	agg *aggregation
}

func CreateAggregationActor(level tplogcmm.LogLevel, log tplog.Logger, sysActor *actor.ActorSystem, agg *aggregation) (*actor.PID, error) {
	logAggActor := tplog.CreateModuleLogger(level, "AggregationActor", log)
	aggActor := &AggregationActor{
		log: logAggActor,
		agg: agg,
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return aggActor
	})
	pid, err := sysActor.Root.SpawnNamed(props, "aggregation-actor-"+shortID(agg.nodeID))

	aggActor.pid = pid

	return pid, err
}

// Receive serializes every input of the state machine: network payloads, round ticks and
// deadlines all run one at a time here.
func (aa *AggregationActor) Receive(actCtx actor.Context) {
	switch msg := actCtx.Message().(type) {
	case *actor.Started:
		aa.log.Info("Aggregation actor started")
	case *actor.Stopping:
		aa.log.Info("Aggregation actor stopping")
	case *actor.Stopped:
		aa.log.Info("Aggregation actor stopped")
	case *actor.Restarting:
		aa.log.Warn("Aggregation actor restarting")
	case *message.NetworkMessage:
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		aa.agg.dispatch(ctx, msg)
		cancel()
	case *roundTick:
		if aa.agg.orchestrator != nil {
			ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			aa.agg.orchestrator.startRound(ctx)
			cancel()
		}
	case *roundDeadline:
		if aa.agg.orchestrator != nil {
			aa.agg.orchestrator.expire(context.Background(), msg.round)
		}
	default:
		aa.log.Errorf("Aggregation actor receive invalid msg %T", msg)
	}
}

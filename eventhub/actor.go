package eventhub

import (
	"context"

	"github.com/AsynkronIT/protoactor-go/actor"

	tplog "github.com/TopiaNetwork/aggregation/log"
)

type EventActor struct {
	log       tplog.Logger
	pid       *actor.PID
	evManager *eventManager
}

func createEventActor(log tplog.Logger, sysActor *actor.ActorSystem, name string, evManager *eventManager) (*actor.PID, error) {
	evActor := &EventActor{
		log:       log,
		evManager: evManager,
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return evActor
	})
	pid, err := sysActor.Root.SpawnNamed(props, "event-actor-"+name)

	evActor.pid = pid

	return pid, err
}

func (ea *EventActor) Receive(actorCtx actor.Context) {
	switch msg := actorCtx.Message().(type) {
	case *actor.Started:
		ea.log.Debug("Event actor started")
	case *actor.Stopping:
		ea.log.Debug("Event actor stopping")
	case *actor.Stopped:
		ea.log.Debug("Event actor stopped")
	case *actor.Restarting:
		ea.log.Warn("Event actor restarting")
	case *EventMsg:
		ea.log.Debugf("Received event %s", msg.Name)
		if err := ea.evManager.dispatch(context.Background(), ea.log, msg); err != nil {
			ea.log.Errorf("Dispatch event %s err: %v", msg.Name, err)
		}
	}
}

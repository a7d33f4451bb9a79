package eventhub

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"reflect"
	"sync"

	"github.com/AsynkronIT/protoactor-go/actor"

	tpaggtypes "github.com/TopiaNetwork/aggregation/aggregation/types"
	tplog "github.com/TopiaNetwork/aggregation/log"
	tplogcmm "github.com/TopiaNetwork/aggregation/log/common"
)

type EventHub interface {
	Start(sysActor *actor.ActorSystem) error
	Stop()
	Trig(ctx context.Context, name string, data interface{}) error
	Observe(ctx context.Context, evName string, evHandler EventHandler) (string, error) //return observation id
	UnObserve(ctx context.Context, obsID string, evName string) error
}

var once sync.Once
var evHubMng *EventHubManager

// EventHubManager keeps one hub per node so several nodes can share a process.
type EventHubManager struct {
	sync        sync.RWMutex
	eventHubMap map[string]EventHub
}

func GetEventHubManager() *EventHubManager {
	once.Do(func() {
		evHubMng = &EventHubManager{
			eventHubMap: make(map[string]EventHub),
		}
	})

	return evHubMng
}

func (evmng *EventHubManager) GetEventHub(nodeID string) EventHub {
	evmng.sync.RLock()
	defer evmng.sync.RUnlock()

	return evmng.eventHubMap[nodeID]
}

func (evmng *EventHubManager) CreateEventHub(nodeID string, level tplogcmm.LogLevel, log tplog.Logger) EventHub {
	evmng.sync.Lock()
	defer evmng.sync.Unlock()

	if evHub, ok := evmng.eventHubMap[nodeID]; ok {
		return evHub
	}

	evmng.eventHubMap[nodeID] = NewEventHub(level, nodeID, log)

	return evmng.eventHubMap[nodeID]
}

func (evmng *EventHubManager) RemoveEventHub(nodeID string) {
	evmng.sync.Lock()
	defer evmng.sync.Unlock()

	delete(evmng.eventHubMap, nodeID)
}

type eventHub struct {
	log       tplog.Logger
	name      string
	sysActor  *actor.ActorSystem
	evPID     *actor.PID
	evManager *eventManager
}

func NewEventHub(level tplogcmm.LogLevel, name string, log tplog.Logger) EventHub {
	logEVActor := tplog.CreateModuleLogger(level, "EventHub", log)

	evManager := newEventManager()

	evManager.registerEvent(EventName_RoundStarted, reflect.TypeOf(&RoundStartedEvent{}).String())
	evManager.registerEvent(EventName_RoundTimedOut, reflect.TypeOf(&RoundTimedOutEvent{}).String())
	evManager.registerEvent(EventName_CertificateFinalized, reflect.TypeOf(&tpaggtypes.Certificate{}).String())

	return &eventHub{
		log:       logEVActor,
		name:      name,
		evManager: evManager,
	}
}

func (hub *eventHub) Start(sysActor *actor.ActorSystem) error {
	evPID, err := createEventActor(hub.log, sysActor, hub.name, hub.evManager)
	if err != nil {
		hub.log.Errorf("create event actor error: %v", err)
		return err
	}

	hub.sysActor = sysActor
	hub.evPID = evPID
	return nil
}

// Trig is a no-op until Start; events raised before the actor exists are dropped.
func (hub *eventHub) Trig(ctx context.Context, name string, data interface{}) error {
	if hub.evPID == nil {
		return nil
	}
	hub.sysActor.Root.Send(hub.evPID, &EventMsg{name, data})

	return nil
}

func (hub *eventHub) generateObsID() (string, error) {
	r := make([]byte, 10)
	_, err := rand.Read(r)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(r), nil
}

func (hub *eventHub) Observe(ctx context.Context, evName string, evHandler EventHandler) (string, error) {
	obsID, err := hub.generateObsID()
	if err != nil {
		hub.log.Errorf("Can't generate observation id: %v", err)
		return "", err
	}

	return obsID, hub.evManager.addEvObserver(obsID, evName, evHandler)
}

func (hub *eventHub) UnObserve(ctx context.Context, obsID string, evName string) error {
	return hub.evManager.removeEvObserver(obsID, evName)
}

func (hub *eventHub) Stop() {
	if hub.evPID != nil {
		hub.sysActor.Root.Poison(hub.evPID)
	}
}

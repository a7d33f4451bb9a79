package eventhub

import (
	"context"
	"fmt"
	"sync"

	tplog "github.com/TopiaNetwork/aggregation/log"
)

type eventManager struct {
	sync     sync.RWMutex
	eventMap map[string]*Event
}

func newEventManager() *eventManager {
	return &eventManager{
		eventMap: make(map[string]*Event),
	}
}

func (evc *eventManager) registerEvent(name string, dataType string) error {
	evc.sync.Lock()
	defer evc.sync.Unlock()

	if _, ok := evc.eventMap[name]; ok {
		return fmt.Errorf("Duplicated event name: %s", name)
	}

	evc.eventMap[name] = &Event{
		Name:        name,
		DataType:    dataType,
		handlerList: make(map[string]EventHandler),
	}

	return nil
}

func (evc *eventManager) addEvObserver(obsID string, evName string, evHandler EventHandler) error {
	evc.sync.RLock()
	defer evc.sync.RUnlock()

	if ev, ok := evc.eventMap[evName]; ok {
		return ev.addObserver(obsID, evHandler)
	}

	return fmt.Errorf("Unsupported event: %s, so can't add the responding observer", evName)
}

func (evc *eventManager) removeEvObserver(obsID string, evName string) error {
	evc.sync.RLock()
	defer evc.sync.RUnlock()

	if ev, ok := evc.eventMap[evName]; ok {
		return ev.removeObserver(obsID)
	}

	return fmt.Errorf("Unsupported event: %s, so can't remove the responding observer", evName)
}

func (evc *eventManager) dispatch(ctx context.Context, log tplog.Logger, evMsg *EventMsg) error {
	evc.sync.RLock()
	ev, ok := evc.eventMap[evMsg.Name]
	evc.sync.RUnlock()

	if !ok {
		return fmt.Errorf("Unsupported event %s", evMsg.Name)
	}

	return ev.process(ctx, log, evMsg.Data)
}

package eventhub

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	tplog "github.com/TopiaNetwork/aggregation/log"
)

const (
	EventName_RoundStarted         = "RoundStarted"
	EventName_RoundTimedOut        = "RoundTimedOut"
	EventName_CertificateFinalized = "CertificateFinalized"
)

type EventTrigger interface {
	Trig(ctx context.Context, name string, data interface{}) error
}

type EventHandler func(ctx context.Context, data interface{}) error

type EventObserver interface {
	Observe(ctx context.Context, evName string, evHandler EventHandler) (string, error) //return observation id
	UnObserve(ctx context.Context, obsID string, evName string) error
}

type EventMsg struct {
	Name string
	Data interface{}
}

type Event struct {
	Name        string
	DataType    string
	sync        sync.RWMutex
	handlerList map[string]EventHandler //observation id -> EventHandler
}

func (ev *Event) addObserver(obsID string, evHandler EventHandler) error {
	ev.sync.Lock()
	defer ev.sync.Unlock()

	if _, ok := ev.handlerList[obsID]; ok {
		return fmt.Errorf("Duplicated observation id: %s", obsID)
	}

	ev.handlerList[obsID] = evHandler

	return nil
}

func (ev *Event) removeObserver(obsID string) error {
	ev.sync.Lock()
	defer ev.sync.Unlock()

	delete(ev.handlerList, obsID)

	return nil
}

// process hands data to every observer on its own goroutine; observers must not assume ordering
// between events.
func (ev *Event) process(ctx context.Context, log tplog.Logger, data interface{}) error {
	if data == nil || reflect.TypeOf(data).String() != ev.DataType {
		err := fmt.Errorf("Invalid event data type: expected %s, actual %T", ev.DataType, data)
		log.Errorf("%v", err)
		return err
	}

	ev.sync.RLock()
	defer ev.sync.RUnlock()

	for obsID, evHandler := range ev.handlerList {
		go func(obsID string, evHandler EventHandler) {
			if err := evHandler(ctx, data); err != nil {
				log.Warnf("Observer %s of %s err: %v", obsID, ev.Name, err)
			}
		}(obsID, evHandler)
	}

	return nil
}

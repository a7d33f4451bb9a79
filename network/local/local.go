// Package local is an in-process transport: every endpoint joined to a Hub can reach every other
// one. It backs the single-process run mode and the tests, and can drop or delay individual
// messages to imitate an unreliable network.
package local

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/hashicorp/go-multierror"

	tpcmm "github.com/TopiaNetwork/aggregation/common"
	tplog "github.com/TopiaNetwork/aggregation/log"
	logcomm "github.com/TopiaNetwork/aggregation/log/common"
	"github.com/TopiaNetwork/aggregation/network"
	"github.com/TopiaNetwork/aggregation/network/message"
)

// LinkFilter decides the fate of one message on the link from -> to.
type LinkFilter func(from string, to string, moduleName string, data []byte) (drop bool, delay time.Duration)

type Hub struct {
	log        tplog.Logger
	sync       sync.RWMutex
	endpoints  map[string]*Endpoint
	filter     LinkFilter
	maxMsgSize int
}

func NewHub(log tplog.Logger, maxMsgSize int) *Hub {
	return &Hub{
		log:        tplog.CreateModuleLogger(logcomm.InfoLevel, "LocalNet", log),
		endpoints:  make(map[string]*Endpoint),
		maxMsgSize: maxMsgSize,
	}
}

func (h *Hub) SetLinkFilter(filter LinkFilter) {
	h.sync.Lock()
	defer h.sync.Unlock()

	h.filter = filter
}

func (h *Hub) Join(id string, sysActor *actor.ActorSystem) (*Endpoint, error) {
	h.sync.Lock()
	defer h.sync.Unlock()

	if _, ok := h.endpoints[id]; ok {
		return nil, fmt.Errorf("local network: %s already joined", id)
	}

	ep := &Endpoint{
		ModuleRouter: network.NewModuleRouter(sysActor),
		hub:          h,
		id:           id,
	}
	h.endpoints[id] = ep

	return ep, nil
}

func (h *Hub) Leave(id string) {
	h.sync.Lock()
	defer h.sync.Unlock()

	delete(h.endpoints, id)
}

func (h *Hub) route(from string, to string, moduleName string, data []byte) error {
	if h.maxMsgSize > 0 && len(data) > h.maxMsgSize {
		return fmt.Errorf("%w: %d > %d", network.ErrMsgTooLarge, len(data), h.maxMsgSize)
	}

	h.sync.RLock()
	target, ok := h.endpoints[to]
	filter := h.filter
	h.sync.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", network.ErrUnknownPeer, to)
	}

	var delay time.Duration
	if filter != nil {
		var drop bool
		if drop, delay = filter(from, to, moduleName, data); drop {
			h.log.Debugf("Drop %s message %s -> %s", moduleName, short(from), short(to))
			return nil
		}
	}

	msg := &message.NetworkMessage{
		FromPeerID: from,
		ModuleName: moduleName,
		Data:       tpcmm.BytesCopy(data),
	}
	if delay > 0 {
		time.AfterFunc(delay, func() { target.deliver(msg) })
		return nil
	}
	target.deliver(msg)

	return nil
}

type Endpoint struct {
	*network.ModuleRouter
	hub     *Hub
	id      string
	started int32
}

func (ep *Endpoint) ID() string {
	return ep.id
}

func (ep *Endpoint) isStarted() bool {
	return atomic.LoadInt32(&ep.started) == 1
}

// deliver drops messages for stopped endpoints, as a closed socket would.
func (ep *Endpoint) deliver(msg *message.NetworkMessage) {
	if !ep.isStarted() {
		return
	}
	if err := ep.Dispatch(msg); err != nil {
		ep.hub.log.Debugf("Deliver to %s: %v", short(ep.id), err)
	}
}

func (ep *Endpoint) Send(ctx context.Context, to string, moduleName string, data []byte) error {
	if !ep.isStarted() {
		return network.ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return ep.hub.route(ep.id, to, moduleName, data)
}

func (ep *Endpoint) Broadcast(ctx context.Context, to []string, moduleName string, data []byte) error {
	var errs *multierror.Error
	for _, peerID := range to {
		if err := ep.Send(ctx, peerID, moduleName, data); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", short(peerID), err))
		}
	}

	return errs.ErrorOrNil()
}

func (ep *Endpoint) Start(ctx context.Context) error {
	atomic.StoreInt32(&ep.started, 1)
	return nil
}

func (ep *Endpoint) Stop() {
	atomic.StoreInt32(&ep.started, 0)
	ep.hub.Leave(ep.id)
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

package p2p

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"
	mapset "github.com/deckarep/golang-set"
	"github.com/hashicorp/go-multierror"
	"github.com/libp2p/go-libp2p"
	p2pCrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"golang.org/x/time/rate"

	"github.com/TopiaNetwork/aggregation/codec"
	"github.com/TopiaNetwork/aggregation/configuration"
	tplog "github.com/TopiaNetwork/aggregation/log"
	logcomm "github.com/TopiaNetwork/aggregation/log/common"
	"github.com/TopiaNetwork/aggregation/metrics"
	"github.com/TopiaNetwork/aggregation/network"
	"github.com/TopiaNetwork/aggregation/network/message"
	tpnetprotoc "github.com/TopiaNetwork/aggregation/network/protocol"
	"github.com/TopiaNetwork/aggregation/registry"
)

// P2PService is the libp2p transport. Only registry participants are admitted, each inbound peer
// is rate limited, and every message is attributed to the registry identity bound to the
// authenticated libp2p peer it arrived from.
type P2PService struct {
	*network.ModuleRouter
	ctx           context.Context
	cancel        context.CancelFunc
	log           tplog.Logger
	config        *configuration.NetworkConfiguration
	selfID        string
	host          host.Host
	marshaler     codec.Marshaler
	peerSync      sync.RWMutex
	admission     mapset.Set         //admitted libp2p peer IDs
	peerIDs       map[string]peer.ID //registry ID -> libp2p peer
	registryIDs   map[peer.ID]string //libp2p peer -> registry ID
	limiterSync   sync.Mutex
	limiters      map[peer.ID]*rate.Limiter
	started       int32
	streamService *P2PStreamService
	pubsubService *P2PPubSubService
}

func NewP2PService(ctx context.Context, log tplog.Logger, config *configuration.NetworkConfiguration, sysActor *actor.ActorSystem,
	selfID string, hostKey p2pCrypto.PrivKey, participants []*registry.Participant) (*P2PService, error) {
	p2pLog := tplog.CreateModuleLogger(logcomm.InfoLevel, "P2PService", log)

	ctx, cancel := context.WithCancel(ctx)
	p2p := &P2PService{
		ModuleRouter: network.NewModuleRouter(sysActor),
		ctx:          ctx,
		cancel:       cancel,
		log:          p2pLog,
		config:       config,
		selfID:       selfID,
		marshaler:    codec.CreateMarshaler(codec.CodecType_RLP),
		limiters:     make(map[peer.ID]*rate.Limiter),
	}

	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(config.ListenAddr),
		libp2p.Identity(hostKey),
		libp2p.DefaultMuxers,
		libp2p.DefaultSecurity,
		libp2p.DefaultTransports,
		libp2p.DisableRelay(),
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		cancel()
		p2pLog.Errorf("create p2p host err: %v", err)
		return nil, err
	}
	p2p.host = h

	if err := p2p.UpdateParticipants(participants); err != nil {
		cancel()
		h.Close()
		return nil, err
	}

	p2p.streamService = NewP2PStreamService(ctx, p2pLog, p2p)
	p2p.host.SetStreamHandler(protocol.ID(tpnetprotoc.AsyncSendProtocolID), p2p.streamService.handleIncomingStream)

	if config.DeliverStrategy == configuration.DeliverStrategy_PubSub {
		ps, err := pubsub.NewGossipSub(ctx, h, p2p.defaultPubSubOptions()...)
		if err != nil {
			cancel()
			h.Close()
			p2pLog.Errorf("create p2p pubsub err: %v", err)
			return nil, err
		}
		p2p.pubsubService = NewP2PPubSubService(ctx, p2pLog, ps, p2p)
	}

	p2pLog.Infof("Create p2p service successfully: peer %s", h.ID().String())

	return p2p, nil
}

// UpdateParticipants binds every participant that has an address to its libp2p peer and replaces
// the admission set. The local participant is bound to the host itself.
func (p2p *P2PService) UpdateParticipants(participants []*registry.Participant) error {
	var errs *multierror.Error

	admission := mapset.NewSet()
	peerIDs := make(map[string]peer.ID, len(participants))
	registryIDs := make(map[peer.ID]string, len(participants))
	for _, pt := range participants {
		if pt.ID == p2p.selfID {
			peerIDs[pt.ID] = p2p.host.ID()
			registryIDs[p2p.host.ID()] = pt.ID
			continue
		}
		if pt.Address == "" {
			p2p.log.Warnf("Participant %s has no address and can't be reached", short(pt.ID))
			continue
		}

		addrInfo, err := peer.AddrInfoFromString(pt.Address)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("participant %s address %s: %w", short(pt.ID), pt.Address, err))
			continue
		}

		p2p.host.Peerstore().AddAddrs(addrInfo.ID, addrInfo.Addrs, peerstore.PermanentAddrTTL)
		admission.Add(addrInfo.ID)
		peerIDs[pt.ID] = addrInfo.ID
		registryIDs[addrInfo.ID] = pt.ID
	}

	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	p2p.peerSync.Lock()
	p2p.admission, p2p.peerIDs, p2p.registryIDs = admission, peerIDs, registryIDs
	p2p.peerSync.Unlock()

	return nil
}

func (p2p *P2PService) defaultPubSubOptions() []pubsub.Option {
	var direct []peer.AddrInfo
	for _, addr := range p2p.config.PubSub.DirectPeers {
		addrInfo, err := peer.AddrInfoFromString(addr)
		if err != nil {
			p2p.log.Warnf("Ignore invalid pubsub direct peer %s: %v", addr, err)
			continue
		}
		direct = append(direct, *addrInfo)
	}

	return []pubsub.Option{
		pubsub.WithMaxMessageSize(p2p.config.MaxMessageSize),
		pubsub.WithMessageSigning(true),
		pubsub.WithStrictSignatureVerification(true),
		pubsub.WithDirectPeers(direct),
	}
}

func (p2p *P2PService) isAdmitted(id peer.ID) bool {
	p2p.peerSync.RLock()
	defer p2p.peerSync.RUnlock()

	return p2p.admission.Contains(id)
}

// allow applies the per-peer inbound quota.
func (p2p *P2PService) allow(id peer.ID) bool {
	p2p.limiterSync.Lock()
	defer p2p.limiterSync.Unlock()

	limiter, ok := p2p.limiters[id]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(p2p.config.RateLimit), p2p.config.RateBurst)
		p2p.limiters[id] = limiter
	}

	return limiter.Allow()
}

func (p2p *P2PService) registryID(id peer.ID) (string, bool) {
	p2p.peerSync.RLock()
	defer p2p.peerSync.RUnlock()

	rid, ok := p2p.registryIDs[id]
	return rid, ok
}

func (p2p *P2PService) peerID(id string) (peer.ID, bool) {
	p2p.peerSync.RLock()
	defer p2p.peerSync.RUnlock()

	pid, ok := p2p.peerIDs[id]
	return pid, ok
}

// deliver hands an authenticated inbound message to its module actor.
func (p2p *P2PService) deliver(from peer.ID, wireMsg *message.WireMessage) {
	fromID, ok := p2p.registryID(from)
	if !ok {
		metrics.P2PMessages.WithLabelValues("in", "unknown_peer").Inc()
		return
	}

	err := p2p.Dispatch(&message.NetworkMessage{
		FromPeerID: fromID,
		ModuleName: wireMsg.ModuleName,
		Data:       wireMsg.Data,
	})
	if err != nil {
		metrics.P2PMessages.WithLabelValues("in", "no_module").Inc()
		p2p.log.Debugf("Dispatch from %s: %v", short(fromID), err)
		return
	}
	metrics.P2PMessages.WithLabelValues("in", "ok").Inc()
}

func (p2p *P2PService) ID() string {
	return p2p.selfID
}

func (p2p *P2PService) PeerID() peer.ID {
	return p2p.host.ID()
}

func (p2p *P2PService) ListenAddr() []string {
	addrInfo := peer.AddrInfo{
		ID:    p2p.host.ID(),
		Addrs: p2p.host.Addrs(),
	}

	maP2PAddrs, err := peer.AddrInfoToP2pAddrs(&addrInfo)
	if err != nil {
		p2p.log.Errorf("AddrInfoToP2pAddrs error: %v", err)
		return nil
	}

	var addrs []string
	for _, maAddr := range maP2PAddrs {
		addrs = append(addrs, maAddr.String())
	}

	return addrs
}

func (p2p *P2PService) isStarted() bool {
	return atomic.LoadInt32(&p2p.started) == 1
}

func (p2p *P2PService) Send(ctx context.Context, to string, moduleName string, data []byte) error {
	if !p2p.isStarted() {
		return network.ErrNotStarted
	}
	if len(data) > p2p.config.MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", network.ErrMsgTooLarge, len(data), p2p.config.MaxMessageSize)
	}

	if to == p2p.selfID {
		p2p.deliver(p2p.host.ID(), &message.WireMessage{ModuleName: moduleName, Data: data})
		return nil
	}

	peerID, ok := p2p.peerID(to)
	if !ok {
		return fmt.Errorf("%w: %s", network.ErrUnknownPeer, short(to))
	}

	err := p2p.streamService.send(ctx, peerID, &message.WireMessage{ModuleName: moduleName, Data: data})
	if err != nil {
		metrics.P2PMessages.WithLabelValues("out", "error").Inc()
		return err
	}
	metrics.P2PMessages.WithLabelValues("out", "ok").Inc()

	return nil
}

// Broadcast uses the gossip topic when configured, otherwise one stream per target.
func (p2p *P2PService) Broadcast(ctx context.Context, to []string, moduleName string, data []byte) error {
	if p2p.pubsubService != nil {
		if !p2p.isStarted() {
			return network.ErrNotStarted
		}
		return p2p.pubsubService.Publish(ctx, &message.WireMessage{ModuleName: moduleName, To: to, Data: data})
	}

	var errsSync sync.Mutex
	var errs *multierror.Error
	var wg sync.WaitGroup
	for _, id := range to {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := p2p.Send(ctx, id, moduleName, data); err != nil {
				errsSync.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", short(id), err))
				errsSync.Unlock()
			}
		}(id)
	}
	wg.Wait()

	return errs.ErrorOrNil()
}

// Start dials every admitted peer once; failures are logged and retried implicitly on the next Send.
func (p2p *P2PService) Start(ctx context.Context) error {
	if p2p.pubsubService != nil {
		if err := p2p.pubsubService.Subscribe(p2p.config.PubSub.Topic); err != nil {
			return err
		}
	}

	atomic.StoreInt32(&p2p.started, 1)

	p2p.peerSync.RLock()
	admitted := p2p.admission.ToSlice()
	p2p.peerSync.RUnlock()

	for _, v := range admitted {
		go func(id peer.ID) {
			dialCtx, cancel := context.WithTimeout(ctx, tpnetprotoc.DialTimeout)
			defer cancel()
			if err := p2p.host.Connect(dialCtx, p2p.host.Peerstore().PeerInfo(id)); err != nil {
				p2p.log.Debugf("Initial dial to %s failed: %v", id.String(), err)
			}
		}(v.(peer.ID))
	}

	return nil
}

func (p2p *P2PService) Stop() {
	atomic.StoreInt32(&p2p.started, 0)
	if p2p.pubsubService != nil {
		p2p.pubsubService.UnSubscribe()
	}
	p2p.cancel()
	if err := p2p.host.Close(); err != nil {
		p2p.log.Warnf("Close p2p host: %v", err)
	}
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func deadline(d time.Duration) time.Time {
	return time.Now().Add(d)
}

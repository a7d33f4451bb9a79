package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/AsynkronIT/protoactor-go/actor"

	"github.com/TopiaNetwork/aggregation/aggregation"
	tpaggtypes "github.com/TopiaNetwork/aggregation/aggregation/types"
	"github.com/TopiaNetwork/aggregation/configuration"
	"github.com/TopiaNetwork/aggregation/crypt/bn254"
	"github.com/TopiaNetwork/aggregation/eventhub"
	"github.com/TopiaNetwork/aggregation/ledger"
	"github.com/TopiaNetwork/aggregation/ledger/backend"
	tplog "github.com/TopiaNetwork/aggregation/log"
	tplogcmm "github.com/TopiaNetwork/aggregation/log/common"
	"github.com/TopiaNetwork/aggregation/metrics"
	tpnet "github.com/TopiaNetwork/aggregation/network"
	tpnetcmn "github.com/TopiaNetwork/aggregation/network/common"
	"github.com/TopiaNetwork/aggregation/network/local"
	"github.com/TopiaNetwork/aggregation/network/p2p"
	"github.com/TopiaNetwork/aggregation/registry"
	tptime "github.com/TopiaNetwork/aggregation/time"
)

const ledgerName = "certificates"

type Node struct {
	log       tplog.Logger
	level     tplogcmm.LogLevel
	nodeID    string
	config    *configuration.Configuration
	sysActor  *actor.ActorSystem
	evHub     eventhub.EventHub
	network   tpnet.Network
	p2p       *p2p.P2PService
	provider  *registry.Refresher
	ledger    ledger.Ledger
	timerMng  tptime.TimerManager
	agg       aggregation.Aggregation
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

// NewNode wires one node from config. hub is only used, and required, for the local network type.
func NewNode(level tplogcmm.LogLevel, log tplog.Logger, config *configuration.Configuration, hub *local.Hub) (*Node, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	priKey, pubKey, err := config.NodeConfig.Identity(config.AggConfig.AllowKeyReduction)
	if err != nil {
		return nil, err
	}
	nodeID := pubKey.String()
	nodeLog := tplog.CreateModuleLogger(level, "Node", log)

	if config.NetConfig.Type == configuration.NetworkType_P2P {
		if err = CompleteSeededAddresses(config.RegConfig); err != nil {
			return nil, err
		}
	}
	snap, err := config.RegConfig.Snapshot(nodeID)
	if err != nil {
		return nil, err
	}
	if !snap.IsParticipant(nodeID) {
		return nil, fmt.Errorf("node %s is not a declared participant", shortID(nodeID))
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		log:      nodeLog,
		level:    level,
		nodeID:   nodeID,
		config:   config,
		sysActor: actor.NewActorSystem(),
		provider: registry.NewRefresher(nodeLog, snap),
		ctx:      ctx,
		cancel:   cancel,
	}

	n.evHub = eventhub.GetEventHubManager().CreateEventHub(nodeID, level, log)

	if err = n.createNetwork(log, priKey, hub, snap); err != nil {
		n.release()
		return nil, err
	}

	if n.ledger, err = createLedger(level, log, config); err != nil {
		n.release()
		return nil, err
	}

	n.timerMng = tptime.NewTimerManager(nodeLog, shortID(nodeID), config.AggConfig.TimerResolution)

	n.agg, err = aggregation.NewAggregation(level, log, config.AggConfig, priKey, n.provider, n.network, n.evHub, n.timerMng, tptime.SystemClock())
	if err != nil {
		n.release()
		return nil, err
	}

	return n, nil
}

func (n *Node) createNetwork(log tplog.Logger, priKey *bn254.PrivateKey, hub *local.Hub, snap *registry.Snapshot) error {
	switch n.config.NetConfig.Type {
	case configuration.NetworkType_Local:
		if hub == nil {
			return fmt.Errorf("network type %s needs a local hub", configuration.NetworkType_Local)
		}
		ep, err := hub.Join(n.nodeID, n.sysActor)
		if err != nil {
			return err
		}
		n.network = ep
	case configuration.NetworkType_P2P:
		hostKey, err := tpnetcmn.HostKeyFromSecret(priKey.Bytes())
		if err != nil {
			return err
		}
		svc, err := p2p.NewP2PService(n.ctx, log, n.config.NetConfig, n.sysActor, n.nodeID, hostKey, snap.Participants())
		if err != nil {
			return err
		}
		n.p2p = svc
		n.network = svc
	default:
		return fmt.Errorf("unknown network type %q", n.config.NetConfig.Type)
	}

	return nil
}

func createLedger(level tplogcmm.LogLevel, log tplog.Logger, config *configuration.Configuration) (ledger.Ledger, error) {
	lgConfig := config.LedgerConfig
	if lgConfig.Backend == configuration.LedgerBackend_None {
		return nil, nil
	}

	backendType, err := backend.ParseBackendType(lgConfig.Backend)
	if err != nil {
		return nil, err
	}

	path := ""
	if backendType != backend.BackendType_Memdb {
		path = lgConfig.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(config.NodeConfig.RootPath, path)
		}
	}

	b, err := backend.NewBackend(backendType, log, path, ledgerName)
	if err != nil {
		return nil, err
	}

	codecType, _ := config.AggConfig.CodecType()
	return ledger.NewLedger(level, log, b, codecType, lgConfig.CacheSize)
}

// CompleteSeededAddresses appends /p2p/<peer id> to the address of every participant declared by
// seed, since its transport key is derivable. Participants declared by public key must spell out
// their peer ID.
func CompleteSeededAddresses(regConfig *configuration.RegistryConfiguration) error {
	for _, d := range regConfig.Participants {
		if d.Seed == nil || d.Address == "" {
			continue
		}

		priKey, _, err := bn254.DeriveKey(*d.Seed)
		if err != nil {
			return err
		}
		peerID, err := tpnetcmn.PeerIDFromSecret(priKey.Bytes())
		if err != nil {
			return err
		}
		if d.Address, err = tpnetcmn.CompleteAddress(d.Address, peerID); err != nil {
			return err
		}
	}

	return nil
}

func (n *Node) ID() string {
	return n.nodeID
}

func (n *Node) EventHub() eventhub.EventHub {
	return n.evHub
}

func (n *Node) Ledger() ledger.Ledger {
	return n.ledger
}

func (n *Node) Aggregation() aggregation.Aggregation {
	return n.agg
}

func (n *Node) Start() error {
	if err := n.evHub.Start(n.sysActor); err != nil {
		return err
	}

	if _, err := n.evHub.Observe(n.ctx, eventhub.EventName_CertificateFinalized, n.logCertificate); err != nil {
		return err
	}

	if n.ledger != nil {
		if err := n.ledger.Attach(n.ctx, n.evHub); err != nil {
			return err
		}
	}

	if err := n.network.Start(n.ctx); err != nil {
		return err
	}

	if err := n.agg.Start(n.sysActor); err != nil {
		return err
	}

	if addr := n.config.NodeConfig.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(n.ctx, n.log, addr); err != nil {
				n.log.Errorf("Metrics server on %s err: %v", addr, err)
			}
		}()
	}

	n.log.Infof("Node started: id=%s, orchestrator=%v, contributor=%v", shortID(n.nodeID), n.agg.IsOrchestrator(), n.agg.IsContributor())

	return nil
}

func (n *Node) logCertificate(ctx context.Context, data interface{}) error {
	cert, ok := data.(*tpaggtypes.Certificate)
	if !ok {
		return fmt.Errorf("unexpected event data %T", data)
	}

	n.log.Infof("Certificate: round=%d, contributors=%v, signature=%s", cert.Round, cert.Contributors, cert.Digest())
	return nil
}

// Run starts the node and blocks until SIGINT or SIGTERM. SIGHUP reloads the registry from the
// configuration file; the new registry applies from the next round.
func (n *Node) Run() error {
	if err := n.Start(); err != nil {
		n.Stop()
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	for sig := range signals {
		if sig == syscall.SIGHUP {
			if err := n.reloadRegistry(); err != nil {
				n.log.Errorf("Reload registry err: %v", err)
			}
			continue
		}

		n.log.Warnf("Caught signal %v, graceful stop", sig)
		break
	}

	n.Stop()

	return nil
}

func (n *Node) reloadRegistry() error {
	fsPath := n.config.FsPath()
	if fsPath == "" {
		return fmt.Errorf("no configuration file to reload")
	}

	config, err := configuration.Load(fsPath)
	if err != nil {
		return err
	}

	return n.UpdateRegistry(config.RegConfig)
}

// UpdateRegistry stages a new registry. Transport admission changes at once; the aggregation
// state machine picks the snapshot up at its next round boundary.
func (n *Node) UpdateRegistry(regConfig *configuration.RegistryConfiguration) error {
	if err := regConfig.Validate(); err != nil {
		return err
	}
	if n.p2p != nil {
		if err := CompleteSeededAddresses(regConfig); err != nil {
			return err
		}
	}

	snap, err := regConfig.Snapshot(n.nodeID)
	if err != nil {
		return err
	}

	if n.p2p != nil {
		if err = n.p2p.UpdateParticipants(snap.Participants()); err != nil {
			return err
		}
	}
	n.provider.Update(snap)

	return nil
}

func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		if n.agg != nil {
			n.agg.Stop()
		}
		n.release()
		n.log.Info("Node stopped")
	})
}

func (n *Node) release() {
	if n.timerMng != nil {
		n.timerMng.Stop()
	}
	if n.network != nil {
		n.network.Stop()
	}
	if n.evHub != nil {
		n.evHub.Stop()
		eventhub.GetEventHubManager().RemoveEventHub(n.nodeID)
	}
	if n.ledger != nil {
		if err := n.ledger.Close(); err != nil {
			n.log.Warnf("Close ledger err: %v", err)
		}
	}
	n.cancel()
}

func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}

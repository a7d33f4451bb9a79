package node

import (
	"strconv"

	"github.com/TopiaNetwork/aggregation/configuration"
	tplog "github.com/TopiaNetwork/aggregation/log"
	tplogcmm "github.com/TopiaNetwork/aggregation/log/common"
	"github.com/TopiaNetwork/aggregation/network/local"
)

// LocalClusterConfigs derives one configuration per node of a single-process cluster: seed 0
// orchestrates and seeds 1..contributors sign. Everything but identity and registry is copied
// from base.
func LocalClusterConfigs(base *configuration.Configuration, contributors int) []*configuration.Configuration {
	regConfig := &configuration.RegistryConfiguration{Orchestrator: "0"}
	for seed := uint64(0); seed <= uint64(contributors); seed++ {
		s := seed
		regConfig.Participants = append(regConfig.Participants, &configuration.ParticipantDeclaration{Seed: &s})
		if seed > 0 {
			regConfig.Contributors = append(regConfig.Contributors, strconv.FormatUint(seed, 10))
		}
	}

	configs := make([]*configuration.Configuration, 0, contributors+1)
	for seed := uint64(0); seed <= uint64(contributors); seed++ {
		s := seed

		nodeConfig := *base.NodeConfig
		nodeConfig.Seed = &s
		nodeConfig.PrivateKey = ""
		nodeConfig.MetricsAddr = ""
		if seed == 0 {
			nodeConfig.MetricsAddr = base.NodeConfig.MetricsAddr
		}

		netConfig := *base.NetConfig
		netConfig.Type = configuration.NetworkType_Local

		ledgerConfig := *base.LedgerConfig
		if seed > 0 {
			ledgerConfig.Backend = configuration.LedgerBackend_None
		}

		configs = append(configs, &configuration.Configuration{
			NodeConfig:   &nodeConfig,
			AggConfig:    base.AggConfig,
			NetConfig:    &netConfig,
			RegConfig:    regConfig,
			LedgerConfig: &ledgerConfig,
		})
	}

	return configs
}

// NewLocalCluster builds, without starting, every node of LocalClusterConfigs on one hub. The
// orchestrator is the first node.
func NewLocalCluster(level tplogcmm.LogLevel, log tplog.Logger, base *configuration.Configuration, contributors int) ([]*Node, error) {
	hub := local.NewHub(log, base.NetConfig.MaxMessageSize)

	var nodes []*Node
	for _, config := range LocalClusterConfigs(base, contributors) {
		n, err := NewNode(level, log, config, hub)
		if err != nil {
			for _, built := range nodes {
				built.Stop()
			}
			return nil, err
		}
		nodes = append(nodes, n)
	}

	return nodes, nil
}

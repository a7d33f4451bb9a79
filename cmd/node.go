package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TopiaNetwork/aggregation/configuration"
	tplog "github.com/TopiaNetwork/aggregation/log"
	tplogcmm "github.com/TopiaNetwork/aggregation/log/common"
	tpnode "github.com/TopiaNetwork/aggregation/node"
)

const (
	nodeFuncName = "node"
	nodeCmdDes   = "Operate a node: start."
)

var (
	configPath   string
	seed         uint64
	privateKey   string
	listenAddr   string
	orchestrator string
	metricsAddr  string
)

var nodeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts the node.",
	Long: `Starts a node. The node orchestrates when no orchestrator is configured,
otherwise it contributes partial signatures to the configured orchestrator.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("trailing args detected")
		}

		config, err := configuration.Load(configPath)
		if err != nil {
			return err
		}
		applyStartFlags(cmd, config)

		// Parsing of the command line is done so silence cmd usage
		cmd.SilenceUsage = true

		level, log, err := mainLogger(config.NodeConfig)
		if err != nil {
			return err
		}

		n, err := tpnode.NewNode(level, log, config, nil)
		if err != nil {
			return err
		}

		return n.Run()
	},
}

func applyStartFlags(cmd *cobra.Command, config *configuration.Configuration) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		s := seed
		config.NodeConfig.Seed = &s
		config.NodeConfig.PrivateKey = ""
	}
	if flags.Changed("private-key") {
		config.NodeConfig.PrivateKey = privateKey
		config.NodeConfig.Seed = nil
	}
	if flags.Changed("listen") {
		config.NetConfig.ListenAddr = listenAddr
	}
	if flags.Changed("orchestrator") {
		config.RegConfig.Orchestrator = orchestrator
	}
	if flags.Changed("metrics") {
		config.NodeConfig.MetricsAddr = metricsAddr
	}
}

func mainLogger(nodeConfig *configuration.NodeConfiguration) (tplogcmm.LogLevel, tplog.Logger, error) {
	level, err := tplogcmm.ParseLogLevel(nodeConfig.LogLevel)
	if err != nil {
		return level, nil, err
	}
	format, err := tplog.ParseLogFormat(nodeConfig.LogFormat)
	if err != nil {
		return level, nil, err
	}

	output := tplog.StdErrOutput
	if nodeConfig.LogFile != "" {
		output = tplog.FileLogOutput
	}

	log, err := tplog.CreateMainLogger(level, format, output, nodeConfig.LogFile)
	return level, log, err
}

func startCmd() *cobra.Command {
	flags := nodeStartCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "configuration file (yaml, json or toml)")
	flags.Uint64Var(&seed, "seed", 0, "derive the node identity from this seed")
	flags.StringVar(&privateKey, "private-key", "", "node private key, 32 bytes hex")
	flags.StringVar(&listenAddr, "listen", "", "p2p listen multiaddr")
	flags.StringVar(&orchestrator, "orchestrator", "", "orchestrator seed or public key; empty makes this node the orchestrator")
	flags.StringVar(&metricsAddr, "metrics", "", "serve prometheus metrics on this address")
	return nodeStartCmd
}

var nodeCmd = &cobra.Command{
	Use:   nodeFuncName,
	Short: fmt.Sprint(nodeCmdDes),
	Long:  fmt.Sprint(nodeCmdDes),
}

func NodeCmd() *cobra.Command {
	nodeCmd.AddCommand(startCmd())

	return nodeCmd
}

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TopiaNetwork/aggregation/configuration"
	tpnode "github.com/TopiaNetwork/aggregation/node"
)

var (
	localConfigPath   string
	localContributors int
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Runs an orchestrator and its contributors in one process.",
	Long: `Runs seed 0 as orchestrator and seeds 1..N as contributors over the in-process
network until interrupted. Aggregation, ledger and logging settings come from --config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if localContributors < 1 {
			return fmt.Errorf("--contributors must be at least 1")
		}

		base, err := configuration.Load(localConfigPath)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		level, log, err := mainLogger(base.NodeConfig)
		if err != nil {
			return err
		}

		nodes, err := tpnode.NewLocalCluster(level, log, base, localContributors)
		if err != nil {
			return err
		}
		defer func() {
			for _, n := range nodes {
				n.Stop()
			}
		}()

		// contributors first so the first round finds them listening
		for i := len(nodes) - 1; i >= 0; i-- {
			if err = nodes[i].Start(); err != nil {
				return err
			}
		}

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		log.Warnf("Caught signal %v, graceful stop", sig)

		return nil
	},
}

func LocalCmd() *cobra.Command {
	flags := localCmd.Flags()
	flags.StringVarP(&localConfigPath, "config", "c", "", "configuration file (yaml, json or toml)")
	flags.IntVar(&localContributors, "contributors", 4, "number of contributors")

	return localCmd
}

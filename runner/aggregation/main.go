package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/TopiaNetwork/aggregation/cmd"
)

var mainCmd = &cobra.Command{Use: "aggregation"}

func main() {
	mainCmd.AddCommand(cmd.NodeCmd())
	mainCmd.AddCommand(cmd.KeyCmd())
	mainCmd.AddCommand(cmd.LocalCmd())

	if mainCmd.Execute() != nil {
		os.Exit(1)
	}
}

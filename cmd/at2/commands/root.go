package commands

import (
	"github.com/at2-network/at2-node/src/config"
	"github.com/spf13/cobra"
)

var _config = config.NewDefaultConfig()

// RootCmd is the root command for the at2 node CLI.
var RootCmd = &cobra.Command{
	Use:   "at2",
	Short: "AT2 asset-transfer node",
}

func init() {
	RootCmd.PersistentFlags().StringP("datadir", "d", _config.DataDir, "Top-level directory for configuration and data")
}

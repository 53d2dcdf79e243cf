package commands

import (
	"fmt"

	"github.com/at2-network/at2-node/src/version"
	"github.com/spf13/cobra"
)

// VersionCmd displays the version of at2 being used
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version)
	},
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/pageblocks/internal/mcp"
)

// Version is set via ldflags at build time.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of pageblocks",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pageblocks %s\n", Version)
	},
}

func init() {
	mcpserver.Version = Version
	rootCmd.AddCommand(versionCmd)
}

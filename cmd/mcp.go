package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pageblocks/internal/audit"
	"github.com/ziadkadry99/pageblocks/internal/documents"
	mcpserver "github.com/ziadkadry99/pageblocks/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing document and section tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		fmt.Fprintf(os.Stderr, "pageblocks MCP server started on stdio (db=%s)\n", database.Path())

		srv := mcpserver.NewServer(documents.NewStore(database), offlineRenderer(cfg), audit.NewStore(database))
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

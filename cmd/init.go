package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pageblocks/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pageblocks configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the builder host and writes a .pageblocks.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
